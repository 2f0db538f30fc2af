package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	swapserrors "slotswapper/internal/swaps/errors"
	"slotswapper/pkg/db/postgres"
	"slotswapper/pkg/model"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	swapRequestColumns = `id, requester_id, responder_id, my_slot_id, their_slot_id, status, created_at`
	historyColumns     = `id, requester_id, responder_id, my_slot_id, their_slot_id, my_slot_title, their_slot_title, status, decided_at`
)

type postgresSwapRequestRepository struct {
	db *sqlx.DB
}

func NewPostgresSwapRequestRepository(db *sqlx.DB) SwapRequestRepository {
	return &postgresSwapRequestRepository{db: db}
}

func (r *postgresSwapRequestRepository) Create(ctx context.Context, req *model.SwapRequest) error {
	req.ID = uuid.NewString()
	req.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	query := `INSERT INTO swap_requests (` + swapRequestColumns + `)
		VALUES (:id, :requester_id, :responder_id, :my_slot_id, :their_slot_id, :status, :created_at)`

	if _, err := postgres.Conn(ctx, r.db).NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("failed to create swap request: %w", err)
	}
	return nil
}

func (r *postgresSwapRequestRepository) FindByID(ctx context.Context, id string) (*model.SwapRequest, error) {
	canonical, ok := postgres.CanonicalID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", swapserrors.ErrInvalidID, id)
	}
	id = canonical

	var req model.SwapRequest
	query := `SELECT ` + swapRequestColumns + ` FROM swap_requests WHERE id = $1`
	if postgres.InTransaction(ctx) {
		query += ` FOR UPDATE`
	}
	if err := postgres.Conn(ctx, r.db).GetContext(ctx, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, swapserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find swap request: %w", err)
	}
	return &req, nil
}

func (r *postgresSwapRequestRepository) SetStatus(ctx context.Context, id string, from, to model.SwapStatus) error {
	canonical, ok := postgres.CanonicalID(id)
	if !ok {
		return fmt.Errorf("%w: %s", swapserrors.ErrInvalidID, id)
	}
	id = canonical

	result, err := postgres.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE swap_requests SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update swap request status: %w", err)
	}
	return requireRow(result, swapserrors.ErrStatusChanged)
}

func (r *postgresSwapRequestRepository) Delete(ctx context.Context, id string) error {
	canonical, ok := postgres.CanonicalID(id)
	if !ok {
		return fmt.Errorf("%w: %s", swapserrors.ErrInvalidID, id)
	}
	id = canonical

	result, err := postgres.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM swap_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete swap request: %w", err)
	}
	return requireRow(result, swapserrors.ErrNotFound)
}

func (r *postgresSwapRequestRepository) ListIncoming(ctx context.Context, responderID string) ([]*model.SwapRequest, error) {
	return r.listPending(ctx, "responder_id", responderID)
}

func (r *postgresSwapRequestRepository) ListOutgoing(ctx context.Context, requesterID string) ([]*model.SwapRequest, error) {
	return r.listPending(ctx, "requester_id", requesterID)
}

// column is one of two constants above, never caller input.
func (r *postgresSwapRequestRepository) listPending(ctx context.Context, column, userID string) ([]*model.SwapRequest, error) {
	reqs := []*model.SwapRequest{}
	userID, ok := postgres.CanonicalID(userID)
	if !ok {
		return reqs, nil
	}

	query := `SELECT ` + swapRequestColumns + ` FROM swap_requests
		WHERE ` + column + ` = $1 AND status = $2
		ORDER BY created_at DESC, id DESC`
	if err := postgres.Conn(ctx, r.db).SelectContext(ctx, &reqs, query, userID, model.SwapStatusPending); err != nil {
		return nil, fmt.Errorf("failed to find swap requests: %w", err)
	}
	return reqs, nil
}

type postgresHistoryRepository struct {
	db *sqlx.DB
}

func NewPostgresHistoryRepository(db *sqlx.DB) HistoryRepository {
	return &postgresHistoryRepository{db: db}
}

func (r *postgresHistoryRepository) Append(ctx context.Context, entry *model.HistoryEntry) error {
	entry.ID = uuid.NewString()

	query := `INSERT INTO swap_history (` + historyColumns + `)
		VALUES (:id, :requester_id, :responder_id, :my_slot_id, :their_slot_id, :my_slot_title, :their_slot_title, :status, :decided_at)`

	if _, err := postgres.Conn(ctx, r.db).NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("failed to append swap history: %w", err)
	}
	return nil
}

func (r *postgresHistoryRepository) ListForUser(ctx context.Context, userID string) ([]*model.HistoryEntry, error) {
	entries := []*model.HistoryEntry{}
	userID, ok := postgres.CanonicalID(userID)
	if !ok {
		return entries, nil
	}

	query := `SELECT ` + historyColumns + ` FROM swap_history
		WHERE requester_id = $1 OR responder_id = $1
		ORDER BY decided_at DESC, id DESC`
	if err := postgres.Conn(ctx, r.db).SelectContext(ctx, &entries, query, userID); err != nil {
		return nil, fmt.Errorf("failed to find swap history: %w", err)
	}
	return entries, nil
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
