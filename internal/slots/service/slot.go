package service

import (
	"context"
	"errors"
	slotserrors "slotswapper/internal/slots/errors"
	"slotswapper/internal/slots/repository"
	"slotswapper/internal/slots/validator"
	usersrepo "slotswapper/internal/users/repository"
	"slotswapper/pkg/config"
	"slotswapper/pkg/db"
	apperrors "slotswapper/pkg/errors"
	"slotswapper/pkg/model"
	"slotswapper/pkg/sanitizer"
	"slotswapper/pkg/validation"
)

const (
	resourceSlot = "Slot"

	msgDeleteReserved = "Cannot delete this slot because it is part of a swap request. Cancel the request first."
	msgStatusReserved = "Cannot change the status of a slot that is part of a swap request"
)

type SlotService interface {
	ListMine(ctx context.Context, ownerID string) ([]*model.Slot, error)
	Create(ctx context.Context, ownerID string, input *model.SlotCreate) (*model.Slot, error)
	Update(ctx context.Context, ownerID, id string, updates *model.SlotUpdate) (*model.Slot, error)
	Delete(ctx context.Context, ownerID, id string) error
	ListSwappable(ctx context.Context, callerID string) ([]*model.MarketplaceSlot, error)
}

type slotService struct {
	repo      repository.SlotRepository
	users     usersrepo.UserRepository
	tx        db.TransactionManager
	validator *validator.SlotValidator
	cfg       *config.Config
}

func NewSlotService(
	repo repository.SlotRepository,
	users usersrepo.UserRepository,
	tx db.TransactionManager,
	validator *validator.SlotValidator,
	cfg *config.Config,
) SlotService {
	return &slotService{
		repo:      repo,
		users:     users,
		tx:        tx,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *slotService) ListMine(ctx context.Context, ownerID string) ([]*model.Slot, error) {
	slots, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		s.cfg.Log.Error("Failed to list slots", "owner_id", ownerID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve slots", err)
	}
	return slots, nil
}

func (s *slotService) Create(ctx context.Context, ownerID string, input *model.SlotCreate) (*model.Slot, error) {
	input.Title = sanitizer.SanitizeTitle(input.Title)
	if input.Status == "" {
		input.Status = model.SlotStatusBusy
	}

	if err := s.validator.Validate(input); err != nil {
		s.cfg.Log.Warn("Slot validation failed", "owner_id", ownerID, "error", err)
		return nil, validation.AppError("Invalid slot", err)
	}

	slot := &model.Slot{
		OwnerID:   ownerID,
		Title:     input.Title,
		StartTime: input.StartTime.UTC(),
		EndTime:   input.EndTime.UTC(),
		Status:    input.Status,
	}
	if err := s.repo.Create(ctx, slot); err != nil {
		s.cfg.Log.Error("Failed to create slot", "owner_id", ownerID, "error", err)
		return nil, apperrors.Internal("Failed to create slot", err)
	}

	s.cfg.Log.Info("Slot created successfully",
		"id", slot.ID,
		"owner_id", ownerID,
		"status", slot.Status,
	)
	return slot, nil
}

// Update applies a partial update to one of the caller's slots. Status and
// ownership of a SWAP_PENDING slot belong to the negotiation engine, so only
// title and times may change while a request is live.
func (s *slotService) Update(ctx context.Context, ownerID, id string, updates *model.SlotUpdate) (*model.Slot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}
	if updates.Title != nil {
		title := sanitizer.SanitizeTitle(*updates.Title)
		updates.Title = &title
	}
	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Slot update validation failed", "id", id, "error", err)
		return nil, validation.AppError("Invalid slot update", err)
	}

	var updated *model.Slot
	err := s.tx.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.findOwned(txCtx, ownerID, id)
		if err != nil {
			return err
		}

		if updates.Status != nil && *updates.Status != existing.Status {
			if !updates.Status.IsClientSettable() {
				return apperrors.Validation("Invalid slot update", map[string]any{"status": "status must be one of: BUSY SWAPPABLE"})
			}
			if existing.Status == model.SlotStatusSwapPending {
				return apperrors.Conflict(msgStatusReserved)
			}
		}

		merged := mergeSlotUpdates(existing, updates)
		if err := s.validator.ValidateRange(merged); err != nil {
			return validation.AppError("Invalid slot update", err)
		}

		if err := s.repo.Update(txCtx, merged); err != nil {
			if errors.Is(err, slotserrors.ErrNotFound) {
				return apperrors.NotFoundWithID(resourceSlot, id)
			}
			return apperrors.Internal("Failed to update slot", err)
		}
		updated = merged
		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to update slot", "id", id, "owner_id", ownerID, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Slot updated successfully", "id", id, "status", updated.Status)
	return updated, nil
}

func (s *slotService) Delete(ctx context.Context, ownerID, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Slot ID cannot be empty")
	}

	err := s.tx.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.findOwned(txCtx, ownerID, id)
		if err != nil {
			return err
		}
		if existing.Status == model.SlotStatusSwapPending {
			return apperrors.Conflict(msgDeleteReserved)
		}

		if err := s.repo.Delete(txCtx, existing.ID); err != nil {
			switch {
			case errors.Is(err, slotserrors.ErrReferenced):
				return apperrors.Conflict(msgDeleteReserved)
			case errors.Is(err, slotserrors.ErrNotFound):
				return apperrors.NotFoundWithID(resourceSlot, id)
			}
			return apperrors.Internal("Failed to delete slot", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to delete slot", "id", id, "owner_id", ownerID, "error", err)
		return err
	}

	s.cfg.Log.Info("Slot deleted successfully", "id", id)
	return nil
}

func (s *slotService) ListSwappable(ctx context.Context, callerID string) ([]*model.MarketplaceSlot, error) {
	slots, err := s.repo.FindSwappable(ctx, callerID)
	if err != nil {
		s.cfg.Log.Error("Failed to list swappable slots", "caller_id", callerID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve swappable slots", err)
	}

	ownerIDs := make([]string, 0, len(slots))
	seen := make(map[string]bool, len(slots))
	for _, slot := range slots {
		if !seen[slot.OwnerID] {
			seen[slot.OwnerID] = true
			ownerIDs = append(ownerIDs, slot.OwnerID)
		}
	}

	owners, err := s.users.FindByIDs(ctx, ownerIDs)
	if err != nil {
		s.cfg.Log.Error("Failed to resolve slot owners", "error", err)
		return nil, apperrors.Internal("Failed to retrieve swappable slots", err)
	}

	result := make([]*model.MarketplaceSlot, 0, len(slots))
	for _, slot := range slots {
		item := &model.MarketplaceSlot{Slot: *slot}
		if owner, ok := owners[slot.OwnerID]; ok {
			item.Owner = owner.Summary()
		}
		result = append(result, item)
	}
	return result, nil
}

// findOwned hides slots owned by someone else behind NOT_FOUND.
func (s *slotService) findOwned(ctx context.Context, ownerID, id string) (*model.Slot, error) {
	slots, err := s.repo.FindByIDs(ctx, id)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve slot", err)
	}
	slot, ok := slots[id]
	if !ok || slot.OwnerID != ownerID {
		return nil, apperrors.NotFoundWithID(resourceSlot, id)
	}
	return slot, nil
}

func mergeSlotUpdates(existing *model.Slot, updates *model.SlotUpdate) *model.Slot {
	merged := *existing
	if updates.Title != nil {
		merged.Title = *updates.Title
	}
	if updates.StartTime != nil {
		merged.StartTime = updates.StartTime.UTC()
	}
	if updates.EndTime != nil {
		merged.EndTime = updates.EndTime.UTC()
	}
	if updates.Status != nil {
		merged.Status = *updates.Status
	}
	return &merged
}
