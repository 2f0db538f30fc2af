package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	userserrors "slotswapper/internal/users/errors"
	"slotswapper/pkg/db/postgres"
	"slotswapper/pkg/model"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const userColumns = `id, name, email, password_hash, created_at`

type postgresUserRepository struct {
	db *sqlx.DB
}

func NewPostgresUserRepository(db *sqlx.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) Create(ctx context.Context, user *model.User) error {
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	query := `INSERT INTO users (` + userColumns + `)
		VALUES (:id, :name, :email, :password_hash, :created_at)`

	if _, err := postgres.Conn(ctx, r.db).NamedExecContext(ctx, query, user); err != nil {
		if postgres.IsUniqueViolation(err) {
			return userserrors.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *postgresUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	canonical, ok := postgres.CanonicalID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", userserrors.ErrInvalidID, id)
	}
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, canonical)
}

func (r *postgresUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *postgresUserRepository) findOne(ctx context.Context, query string, arg any) (*model.User, error) {
	var user model.User
	if err := postgres.Conn(ctx, r.db).GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, userserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

func (r *postgresUserRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if canonical, ok := postgres.CanonicalID(id); ok {
			valid = append(valid, canonical)
		}
	}

	found := make(map[string]*model.User, len(valid))
	if len(valid) == 0 {
		return found, nil
	}

	var users []*model.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	if err := postgres.Conn(ctx, r.db).SelectContext(ctx, &users, query, pq.Array(valid)); err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}

	for _, user := range users {
		found[user.ID] = user
	}
	return found, nil
}

func (r *postgresUserRepository) Update(ctx context.Context, user *model.User) error {
	id, ok := postgres.CanonicalID(user.ID)
	if !ok {
		return fmt.Errorf("%w: %s", userserrors.ErrInvalidID, user.ID)
	}
	user.ID = id

	result, err := postgres.Conn(ctx, r.db).NamedExecContext(ctx,
		`UPDATE users SET name = :name, password_hash = :password_hash WHERE id = :id`, user)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return userserrors.ErrNotFound
	}
	return nil
}
