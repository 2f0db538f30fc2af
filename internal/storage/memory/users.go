package memory

import (
	"context"
	userserrors "slotswapper/internal/users/errors"
	"slotswapper/internal/users/repository"
	"slotswapper/pkg/model"
	"time"

	"github.com/google/uuid"
)

func (s *Store) Users() repository.UserRepository {
	return userRepo{store: s}
}

type userRepo struct {
	store *Store
}

func (r userRepo) Create(ctx context.Context, user *model.User) error {
	defer r.store.guard(ctx)()

	for _, existing := range r.store.users {
		if existing.Email == user.Email {
			return userserrors.ErrDuplicateEmail
		}
	}

	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	r.store.users[user.ID] = *user
	return nil
}

func (r userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	defer r.store.guard(ctx)()

	user, ok := r.store.users[id]
	if !ok {
		return nil, userserrors.ErrNotFound
	}
	return &user, nil
}

func (r userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	defer r.store.guard(ctx)()

	for _, user := range r.store.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, userserrors.ErrNotFound
}

func (r userRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	defer r.store.guard(ctx)()

	found := make(map[string]*model.User, len(ids))
	for _, id := range ids {
		if user, ok := r.store.users[id]; ok {
			found[id] = &user
		}
	}
	return found, nil
}

func (r userRepo) Update(ctx context.Context, user *model.User) error {
	defer r.store.guard(ctx)()

	existing, ok := r.store.users[user.ID]
	if !ok {
		return userserrors.ErrNotFound
	}
	existing.Name = user.Name
	existing.PasswordHash = user.PasswordHash
	r.store.users[user.ID] = existing
	return nil
}
