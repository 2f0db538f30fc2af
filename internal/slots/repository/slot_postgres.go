package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	slotserrors "slotswapper/internal/slots/errors"
	"slotswapper/pkg/db/postgres"
	"slotswapper/pkg/model"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const slotColumns = `id, owner_id, title, start_time, end_time, status, created_at`

type postgresSlotRepository struct {
	db *sqlx.DB
}

func NewPostgresSlotRepository(db *sqlx.DB) SlotRepository {
	return &postgresSlotRepository{db: db}
}

func (r *postgresSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	slot.ID = uuid.NewString()
	slot.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	query := `INSERT INTO slots (` + slotColumns + `)
		VALUES (:id, :owner_id, :title, :start_time, :end_time, :status, :created_at)`

	if _, err := postgres.Conn(ctx, r.db).NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}
	return nil
}

func (r *postgresSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	canonical, ok := postgres.CanonicalID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}
	id = canonical

	var slot model.Slot
	err := postgres.Conn(ctx, r.db).GetContext(ctx, &slot, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, slotserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}
	return &slot, nil
}

// FindByIDs locks rows in ascending id order when called inside a
// transaction, so two transactions locking the same pair cannot deadlock.
// The result is keyed by the ids as the caller spelled them.
func (r *postgresSlotRepository) FindByIDs(ctx context.Context, ids ...string) (map[string]*model.Slot, error) {
	requested := make(map[string][]string, len(ids))
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		canonical, ok := postgres.CanonicalID(id)
		if !ok {
			continue
		}
		if _, seen := requested[canonical]; !seen {
			valid = append(valid, canonical)
		}
		requested[canonical] = append(requested[canonical], id)
	}
	sort.Strings(valid)

	found := make(map[string]*model.Slot, len(ids))
	if len(valid) == 0 {
		return found, nil
	}

	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = ANY($1) ORDER BY id`
	if postgres.InTransaction(ctx) {
		query += ` FOR UPDATE`
	}

	var slots []*model.Slot
	if err := postgres.Conn(ctx, r.db).SelectContext(ctx, &slots, query, pq.Array(valid)); err != nil {
		return nil, fmt.Errorf("failed to lock slots: %w", err)
	}

	for _, slot := range slots {
		for _, id := range requested[slot.ID] {
			found[id] = slot
		}
	}
	return found, nil
}

func (r *postgresSlotRepository) FindByOwner(ctx context.Context, ownerID string) ([]*model.Slot, error) {
	ownerID, ok := postgres.CanonicalID(ownerID)
	if !ok {
		return []*model.Slot{}, nil
	}

	slots := []*model.Slot{}
	query := `SELECT ` + slotColumns + ` FROM slots WHERE owner_id = $1 ORDER BY start_time ASC`
	if err := postgres.Conn(ctx, r.db).SelectContext(ctx, &slots, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to find slots: %w", err)
	}
	return slots, nil
}

func (r *postgresSlotRepository) FindSwappable(ctx context.Context, excludeOwnerID string) ([]*model.Slot, error) {
	slots := []*model.Slot{}
	query := `SELECT ` + slotColumns + ` FROM slots
		WHERE status = $1 AND owner_id::text <> $2
		ORDER BY start_time ASC`
	if err := postgres.Conn(ctx, r.db).SelectContext(ctx, &slots, query, model.SlotStatusSwappable, excludeOwnerID); err != nil {
		return nil, fmt.Errorf("failed to find swappable slots: %w", err)
	}
	return slots, nil
}

func (r *postgresSlotRepository) Update(ctx context.Context, slot *model.Slot) error {
	id, ok := postgres.CanonicalID(slot.ID)
	if !ok {
		return fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, slot.ID)
	}
	slot.ID = id

	query := `UPDATE slots SET title = :title, start_time = :start_time, end_time = :end_time, status = :status
		WHERE id = :id`

	result, err := postgres.Conn(ctx, r.db).NamedExecContext(ctx, query, slot)
	if err != nil {
		return fmt.Errorf("failed to update slot: %w", err)
	}
	return requireRow(result, slotserrors.ErrNotFound)
}

func (r *postgresSlotRepository) UpdateStatus(ctx context.Context, id string, from, to model.SlotStatus) error {
	canonical, ok := postgres.CanonicalID(id)
	if !ok {
		return fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}
	id = canonical

	conn := postgres.Conn(ctx, r.db)
	result, err := conn.ExecContext(ctx, `UPDATE slots SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update slot status: %w", err)
	}
	if err := requireRow(result, slotserrors.ErrStatusChanged); err != nil {
		return r.missOrChanged(ctx, conn, id)
	}
	return nil
}

func (r *postgresSlotRepository) ExchangeOwners(ctx context.Context, firstID, firstNewOwner, secondID, secondNewOwner string) error {
	conn := postgres.Conn(ctx, r.db)

	for _, change := range []struct{ id, owner string }{
		{firstID, firstNewOwner},
		{secondID, secondNewOwner},
	} {
		id, ok := postgres.CanonicalID(change.id)
		if !ok {
			return fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, change.id)
		}

		result, err := conn.ExecContext(ctx,
			`UPDATE slots SET owner_id = $1, status = $2 WHERE id = $3 AND status = $4`,
			change.owner, model.SlotStatusBusy, id, model.SlotStatusSwapPending,
		)
		if err != nil {
			return fmt.Errorf("failed to exchange slot owner: %w", err)
		}
		if err := requireRow(result, slotserrors.ErrStatusChanged); err != nil {
			return r.missOrChanged(ctx, conn, id)
		}
	}
	return nil
}

func (r *postgresSlotRepository) Delete(ctx context.Context, id string) error {
	canonical, ok := postgres.CanonicalID(id)
	if !ok {
		return fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}
	id = canonical

	result, err := postgres.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return slotserrors.ErrReferenced
		}
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	return requireRow(result, slotserrors.ErrNotFound)
}

func (r *postgresSlotRepository) missOrChanged(ctx context.Context, conn postgres.Querier, id string) error {
	var exists bool
	if err := conn.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM slots WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("failed to check slot: %w", err)
	}
	if !exists {
		return slotserrors.ErrNotFound
	}
	return slotserrors.ErrStatusChanged
}

func requireRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
