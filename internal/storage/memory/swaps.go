package memory

import (
	"context"
	"sort"
	swapserrors "slotswapper/internal/swaps/errors"
	"slotswapper/internal/swaps/repository"
	"slotswapper/pkg/model"
	"time"

	"github.com/google/uuid"
)

func (s *Store) SwapRequests() repository.SwapRequestRepository {
	return swapRequestRepo{store: s}
}

func (s *Store) History() repository.HistoryRepository {
	return historyRepo{store: s}
}

type swapRequestRepo struct {
	store *Store
}

func (r swapRequestRepo) Create(ctx context.Context, req *model.SwapRequest) error {
	defer r.store.guard(ctx)()

	req.ID = uuid.NewString()
	req.CreatedAt = time.Now().UTC()
	r.store.requests[req.ID] = storedRequest{req: *req, seq: r.store.nextSeq()}
	return nil
}

func (r swapRequestRepo) FindByID(ctx context.Context, id string) (*model.SwapRequest, error) {
	defer r.store.guard(ctx)()
	id = canonical(id)

	stored, ok := r.store.requests[id]
	if !ok {
		return nil, swapserrors.ErrNotFound
	}
	req := stored.req
	return &req, nil
}

func (r swapRequestRepo) SetStatus(ctx context.Context, id string, from, to model.SwapStatus) error {
	defer r.store.guard(ctx)()
	id = canonical(id)

	stored, ok := r.store.requests[id]
	if !ok || stored.req.Status != from {
		return swapserrors.ErrStatusChanged
	}
	stored.req.Status = to
	r.store.requests[id] = stored
	return nil
}

func (r swapRequestRepo) Delete(ctx context.Context, id string) error {
	defer r.store.guard(ctx)()
	id = canonical(id)

	if _, ok := r.store.requests[id]; !ok {
		return swapserrors.ErrNotFound
	}
	delete(r.store.requests, id)
	return nil
}

func (r swapRequestRepo) ListIncoming(ctx context.Context, responderID string) ([]*model.SwapRequest, error) {
	return r.listPending(ctx, func(req *model.SwapRequest) bool { return req.ResponderID == responderID })
}

func (r swapRequestRepo) ListOutgoing(ctx context.Context, requesterID string) ([]*model.SwapRequest, error) {
	return r.listPending(ctx, func(req *model.SwapRequest) bool { return req.RequesterID == requesterID })
}

func (r swapRequestRepo) listPending(ctx context.Context, keep func(*model.SwapRequest) bool) ([]*model.SwapRequest, error) {
	defer r.store.guard(ctx)()

	matched := make([]storedRequest, 0)
	for _, stored := range r.store.requests {
		if stored.req.Status == model.SwapStatusPending && keep(&stored.req) {
			matched = append(matched, stored)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].req.CreatedAt.Equal(matched[j].req.CreatedAt) {
			return matched[i].req.CreatedAt.After(matched[j].req.CreatedAt)
		}
		return matched[i].seq > matched[j].seq
	})

	reqs := make([]*model.SwapRequest, 0, len(matched))
	for i := range matched {
		req := matched[i].req
		reqs = append(reqs, &req)
	}
	return reqs, nil
}

type historyRepo struct {
	store *Store
}

func (r historyRepo) Append(ctx context.Context, entry *model.HistoryEntry) error {
	defer r.store.guard(ctx)()

	entry.ID = uuid.NewString()
	r.store.history = append(r.store.history, *entry)
	return nil
}

func (r historyRepo) ListForUser(ctx context.Context, userID string) ([]*model.HistoryEntry, error) {
	defer r.store.guard(ctx)()

	entries := make([]*model.HistoryEntry, 0)
	for i := len(r.store.history) - 1; i >= 0; i-- {
		entry := r.store.history[i]
		if entry.RequesterID == userID || entry.ResponderID == userID {
			entries = append(entries, &entry)
		}
	}
	// Newest insertions come first, so a stable sort keeps them ahead on ties.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DecidedAt.After(entries[j].DecidedAt)
	})
	return entries, nil
}
