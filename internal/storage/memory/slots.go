package memory

import (
	"context"
	"sort"
	slotserrors "slotswapper/internal/slots/errors"
	"slotswapper/internal/slots/repository"
	"slotswapper/pkg/model"
	"time"

	"github.com/google/uuid"
)

func (s *Store) Slots() repository.SlotRepository {
	return slotRepo{store: s}
}

type slotRepo struct {
	store *Store
}

func (r slotRepo) Create(ctx context.Context, slot *model.Slot) error {
	defer r.store.guard(ctx)()

	slot.ID = uuid.NewString()
	slot.CreatedAt = time.Now().UTC()
	r.store.slots[slot.ID] = storedSlot{slot: *slot, seq: r.store.nextSeq()}
	return nil
}

func (r slotRepo) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	defer r.store.guard(ctx)()
	id = canonical(id)

	stored, ok := r.store.slots[id]
	if !ok {
		return nil, slotserrors.ErrNotFound
	}
	slot := stored.slot
	return &slot, nil
}

func (r slotRepo) FindByIDs(ctx context.Context, ids ...string) (map[string]*model.Slot, error) {
	defer r.store.guard(ctx)()

	found := make(map[string]*model.Slot, len(ids))
	for _, id := range ids {
		if stored, ok := r.store.slots[canonical(id)]; ok {
			slot := stored.slot
			found[id] = &slot
		}
	}
	return found, nil
}

func (r slotRepo) FindByOwner(ctx context.Context, ownerID string) ([]*model.Slot, error) {
	return r.filter(ctx, func(s *model.Slot) bool { return s.OwnerID == ownerID })
}

func (r slotRepo) FindSwappable(ctx context.Context, excludeOwnerID string) ([]*model.Slot, error) {
	return r.filter(ctx, func(s *model.Slot) bool {
		return s.Status == model.SlotStatusSwappable && s.OwnerID != excludeOwnerID
	})
}

func (r slotRepo) filter(ctx context.Context, keep func(*model.Slot) bool) ([]*model.Slot, error) {
	defer r.store.guard(ctx)()

	matched := make([]storedSlot, 0)
	for _, stored := range r.store.slots {
		if keep(&stored.slot) {
			matched = append(matched, stored)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].slot.StartTime.Equal(matched[j].slot.StartTime) {
			return matched[i].slot.StartTime.Before(matched[j].slot.StartTime)
		}
		return matched[i].seq < matched[j].seq
	})

	slots := make([]*model.Slot, 0, len(matched))
	for i := range matched {
		slot := matched[i].slot
		slots = append(slots, &slot)
	}
	return slots, nil
}

func (r slotRepo) Update(ctx context.Context, slot *model.Slot) error {
	defer r.store.guard(ctx)()

	slot.ID = canonical(slot.ID)
	stored, ok := r.store.slots[slot.ID]
	if !ok {
		return slotserrors.ErrNotFound
	}
	stored.slot.Title = slot.Title
	stored.slot.StartTime = slot.StartTime
	stored.slot.EndTime = slot.EndTime
	stored.slot.Status = slot.Status
	r.store.slots[slot.ID] = stored
	return nil
}

func (r slotRepo) UpdateStatus(ctx context.Context, id string, from, to model.SlotStatus) error {
	defer r.store.guard(ctx)()
	id = canonical(id)

	stored, ok := r.store.slots[id]
	if !ok {
		return slotserrors.ErrNotFound
	}
	if stored.slot.Status != from {
		return slotserrors.ErrStatusChanged
	}
	stored.slot.Status = to
	r.store.slots[id] = stored
	return nil
}

func (r slotRepo) ExchangeOwners(ctx context.Context, firstID, firstNewOwner, secondID, secondNewOwner string) error {
	defer r.store.guard(ctx)()
	firstID, secondID = canonical(firstID), canonical(secondID)

	first, ok := r.store.slots[firstID]
	if !ok {
		return slotserrors.ErrNotFound
	}
	second, ok := r.store.slots[secondID]
	if !ok {
		return slotserrors.ErrNotFound
	}
	if first.slot.Status != model.SlotStatusSwapPending || second.slot.Status != model.SlotStatusSwapPending {
		return slotserrors.ErrStatusChanged
	}

	first.slot.OwnerID, first.slot.Status = firstNewOwner, model.SlotStatusBusy
	second.slot.OwnerID, second.slot.Status = secondNewOwner, model.SlotStatusBusy
	r.store.slots[firstID] = first
	r.store.slots[secondID] = second
	return nil
}

// Delete refuses slots still referenced by a swap request, like the foreign
// key in the SQL schema.
func (r slotRepo) Delete(ctx context.Context, id string) error {
	defer r.store.guard(ctx)()
	id = canonical(id)

	if _, ok := r.store.slots[id]; !ok {
		return slotserrors.ErrNotFound
	}
	for _, stored := range r.store.requests {
		if stored.req.MySlotID == id || stored.req.TheirSlotID == id {
			return slotserrors.ErrReferenced
		}
	}
	delete(r.store.slots, id)
	return nil
}
