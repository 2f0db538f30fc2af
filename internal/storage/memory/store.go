// Package memory is an in-process storage backend. Transactions are
// serialized behind one lock and rolled back from a snapshot on error, which
// gives the same all-or-nothing behaviour as the database backends.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"slotswapper/pkg/db"
	apperrors "slotswapper/pkg/errors"
	"slotswapper/pkg/model"
	"sync"

	"github.com/google/uuid"
)

type txKey struct{}

type storedSlot struct {
	slot model.Slot
	seq  int64
}

type storedRequest struct {
	req model.SwapRequest
	seq int64
}

type Store struct {
	mu sync.Mutex

	seq      int64
	slots    map[string]storedSlot
	requests map[string]storedRequest
	history  []model.HistoryEntry
	users    map[string]model.User
}

type snapshot struct {
	seq      int64
	slots    map[string]storedSlot
	requests map[string]storedRequest
	history  []model.HistoryEntry
	users    map[string]model.User
}

func NewStore() *Store {
	return &Store{
		slots:    make(map[string]storedSlot),
		requests: make(map[string]storedRequest),
		users:    make(map[string]model.User),
	}
}

// guard takes the store lock unless ctx already runs inside one of this
// store's transactions.
func (s *Store) guard(ctx context.Context) func() {
	if owner, ok := ctx.Value(txKey{}).(*Store); ok && owner == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// canonical maps every spelling uuid.Parse accepts onto the stored form.
func canonical(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return id
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		seq:      s.seq,
		slots:    maps.Clone(s.slots),
		requests: maps.Clone(s.requests),
		history:  slices.Clone(s.history),
		users:    maps.Clone(s.users),
	}
}

func (s *Store) restore(snap snapshot) {
	s.seq = snap.seq
	s.slots = snap.slots
	s.requests = snap.requests
	s.history = snap.history
	s.users = snap.users
}

// TransactionManager returns a db.TransactionManager backed by this store.
func (s *Store) TransactionManager() db.TransactionManager {
	return txManager{store: s}
}

type txManager struct {
	store *Store
}

func (m txManager) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) (err error) {
	s := m.store
	if owner, ok := ctx.Value(txKey{}).(*Store); ok && owner == s {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.restore(snap)
		if apperrors.IsAppError(err) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}
