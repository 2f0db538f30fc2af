package service

import (
	"context"
	"errors"
	slotserrors "slotswapper/internal/slots/errors"
	slotsrepo "slotswapper/internal/slots/repository"
	"slotswapper/internal/swaps/events"
	swapserrors "slotswapper/internal/swaps/errors"
	"slotswapper/internal/swaps/repository"
	usersrepo "slotswapper/internal/users/repository"
	"slotswapper/pkg/config"
	"slotswapper/pkg/db"
	apperrors "slotswapper/pkg/errors"
	"slotswapper/pkg/model"
	"time"
)

const (
	resourceSlot        = "Slot"
	resourceSwapRequest = "Swap request"
)

type SwapService interface {
	Propose(ctx context.Context, callerID, mySlotID, theirSlotID string) (*model.SwapRequest, error)
	Respond(ctx context.Context, callerID, requestID string, accept bool) (model.HistoryStatus, error)
	Cancel(ctx context.Context, callerID, requestID string) (model.HistoryStatus, error)
	ListLiveRequests(ctx context.Context, userID string) (*model.LiveRequests, error)
	ListHistory(ctx context.Context, userID string) ([]*model.HistoryItem, error)
}

type swapService struct {
	slots     slotsrepo.SlotRepository
	requests  repository.SwapRequestRepository
	history   repository.HistoryRepository
	users     usersrepo.UserRepository
	tx        db.TransactionManager
	publisher events.Publisher
	cfg       *config.Config
}

func NewSwapService(
	slots slotsrepo.SlotRepository,
	requests repository.SwapRequestRepository,
	history repository.HistoryRepository,
	users usersrepo.UserRepository,
	tx db.TransactionManager,
	publisher events.Publisher,
	cfg *config.Config,
) SwapService {
	return &swapService{
		slots:     slots,
		requests:  requests,
		history:   history,
		users:     users,
		tx:        tx,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *swapService) Propose(ctx context.Context, callerID, mySlotID, theirSlotID string) (*model.SwapRequest, error) {
	if mySlotID == "" || theirSlotID == "" {
		return nil, apperrors.InvalidInput("my_slot_id and their_slot_id are required")
	}

	var req *model.SwapRequest
	err := s.tx.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		mySlot, theirSlot, err := s.loadPair(txCtx, mySlotID, theirSlotID)
		if err != nil {
			return err
		}

		if mySlot.OwnerID != callerID {
			return apperrors.Forbidden("You can only offer a slot you own")
		}
		if theirSlot.OwnerID == callerID {
			return apperrors.InvalidSwap("Cannot swap with yourself")
		}
		if mySlot.Status != model.SlotStatusSwappable || theirSlot.Status != model.SlotStatusSwappable {
			return apperrors.InvalidState("Both slots must be SWAPPABLE")
		}

		req = &model.SwapRequest{
			RequesterID: callerID,
			ResponderID: theirSlot.OwnerID,
			MySlotID:    mySlot.ID,
			TheirSlotID: theirSlot.ID,
			Status:      model.SwapStatusPending,
		}
		if err := s.requests.Create(txCtx, req); err != nil {
			return apperrors.Internal("Failed to create swap request", err)
		}

		for _, id := range []string{mySlot.ID, theirSlot.ID} {
			if err := s.slots.UpdateStatus(txCtx, id, model.SlotStatusSwappable, model.SlotStatusSwapPending); err != nil {
				return slotTransitionError(err, "Slot is no longer SWAPPABLE")
			}
		}
		return nil
	})
	if err != nil {
		s.logFailure("Failed to propose swap", err, "caller_id", callerID, "my_slot_id", mySlotID, "their_slot_id", theirSlotID)
		return nil, err
	}

	s.cfg.Log.Info("Swap request created",
		"request_id", req.ID,
		"requester_id", req.RequesterID,
		"responder_id", req.ResponderID,
	)
	s.publish(ctx, model.NewSwapEvent(model.SwapEventProposed, req))
	return req, nil
}

func (s *swapService) Respond(ctx context.Context, callerID, requestID string, accept bool) (model.HistoryStatus, error) {
	outcome := model.HistoryStatusRejected
	if accept {
		outcome = model.HistoryStatusAccepted
	}
	return s.resolve(ctx, callerID, requestID, outcome)
}

func (s *swapService) Cancel(ctx context.Context, callerID, requestID string) (model.HistoryStatus, error) {
	return s.resolve(ctx, callerID, requestID, model.HistoryStatusCancelled)
}

// resolve drives a pending request to its terminal outcome: the request row
// is marked, slots are exchanged or released, history is written and the
// request is deleted, all in one transaction.
func (s *swapService) resolve(ctx context.Context, callerID, requestID string, outcome model.HistoryStatus) (model.HistoryStatus, error) {
	if requestID == "" {
		return "", apperrors.InvalidInput("Swap request ID cannot be empty")
	}

	var req *model.SwapRequest
	err := s.tx.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		found, err := s.requests.FindByID(txCtx, requestID)
		if err != nil {
			if errors.Is(err, swapserrors.ErrNotFound) || errors.Is(err, swapserrors.ErrInvalidID) {
				return apperrors.NotFoundWithID(resourceSwapRequest, requestID)
			}
			return apperrors.Internal("Failed to load swap request", err)
		}

		if outcome == model.HistoryStatusCancelled {
			if found.RequesterID != callerID {
				return apperrors.Forbidden("Only the requester can cancel this swap request")
			}
		} else if found.ResponderID != callerID {
			return apperrors.Forbidden("Only the responder can answer this swap request")
		}

		if found.Status != model.SwapStatusPending {
			return apperrors.AlreadyHandled(resourceSwapRequest, requestID)
		}

		mySlot, theirSlot, err := s.loadPair(txCtx, found.MySlotID, found.TheirSlotID)
		if err != nil {
			return err
		}

		requestStatus := model.SwapStatusRejected
		if outcome == model.HistoryStatusAccepted {
			requestStatus = model.SwapStatusAccepted
		}
		if err := s.requests.SetStatus(txCtx, found.ID, model.SwapStatusPending, requestStatus); err != nil {
			if errors.Is(err, swapserrors.ErrStatusChanged) {
				return apperrors.AlreadyHandled(resourceSwapRequest, requestID)
			}
			return apperrors.Internal("Failed to update swap request", err)
		}

		switch outcome {
		case model.HistoryStatusAccepted:
			err = s.slots.ExchangeOwners(txCtx, mySlot.ID, found.ResponderID, theirSlot.ID, found.RequesterID)
			if err != nil {
				return slotTransitionError(err, "Slots are no longer reserved for this swap")
			}
		case model.HistoryStatusRejected, model.HistoryStatusCancelled:
			for _, id := range []string{mySlot.ID, theirSlot.ID} {
				if err := s.slots.UpdateStatus(txCtx, id, model.SlotStatusSwapPending, model.SlotStatusSwappable); err != nil {
					return slotTransitionError(err, "Slot is no longer reserved for this swap")
				}
			}
		}

		entry := &model.HistoryEntry{
			RequesterID:    found.RequesterID,
			ResponderID:    found.ResponderID,
			MySlotID:       mySlot.ID,
			TheirSlotID:    theirSlot.ID,
			MySlotTitle:    mySlot.Title,
			TheirSlotTitle: theirSlot.Title,
			Status:         outcome,
			DecidedAt:      time.Now().UTC(),
		}
		if err := s.history.Append(txCtx, entry); err != nil {
			return apperrors.Internal("Failed to record swap history", err)
		}

		if err := s.requests.Delete(txCtx, found.ID); err != nil {
			return apperrors.Internal("Failed to remove swap request", err)
		}

		found.Status = requestStatus
		req = found
		return nil
	})
	if err != nil {
		s.logFailure("Failed to resolve swap request", err, "request_id", requestID, "caller_id", callerID, "outcome", outcome)
		return "", err
	}

	s.cfg.Log.Info("Swap request resolved",
		"request_id", requestID,
		"outcome", outcome,
		"requester_id", req.RequesterID,
		"responder_id", req.ResponderID,
	)
	s.publish(ctx, model.NewSwapEvent(model.SwapEventFor(outcome), req))
	return outcome, nil
}

func (s *swapService) ListLiveRequests(ctx context.Context, userID string) (*model.LiveRequests, error) {
	incoming, err := s.requests.ListIncoming(ctx, userID)
	if err != nil {
		s.cfg.Log.Error("Failed to list incoming swap requests", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve swap requests", err)
	}
	outgoing, err := s.requests.ListOutgoing(ctx, userID)
	if err != nil {
		s.cfg.Log.Error("Failed to list outgoing swap requests", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve swap requests", err)
	}

	ids := make([]string, 0, 2*(len(incoming)+len(outgoing)))
	for _, req := range append(append([]*model.SwapRequest{}, incoming...), outgoing...) {
		ids = append(ids, req.MySlotID, req.TheirSlotID)
	}
	slots, err := s.slots.FindByIDs(ctx, ids...)
	if err != nil {
		s.cfg.Log.Error("Failed to load slots for swap requests", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve swap requests", err)
	}

	return &model.LiveRequests{
		Incoming: withSlots(incoming, slots),
		Outgoing: withSlots(outgoing, slots),
	}, nil
}

func (s *swapService) ListHistory(ctx context.Context, userID string) ([]*model.HistoryItem, error) {
	entries, err := s.history.ListForUser(ctx, userID)
	if err != nil {
		s.cfg.Log.Error("Failed to list swap history", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve swap history", err)
	}

	counterpartyIDs := make([]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		_, other := entry.RoleOf(userID)
		if !seen[other] {
			seen[other] = true
			counterpartyIDs = append(counterpartyIDs, other)
		}
	}

	users, err := s.users.FindByIDs(ctx, counterpartyIDs)
	if err != nil {
		s.cfg.Log.Error("Failed to resolve history counterparties", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve swap history", err)
	}

	items := make([]*model.HistoryItem, 0, len(entries))
	for _, entry := range entries {
		role, other := entry.RoleOf(userID)
		item := &model.HistoryItem{HistoryEntry: *entry, Role: role}
		if user, ok := users[other]; ok {
			item.Counterparty = user.Summary()
		} else {
			// Deleted accounts still show up in history, just without a name.
			item.Counterparty = &model.UserSummary{ID: other}
		}
		items = append(items, item)
	}
	return items, nil
}

// loadPair reads both slots through the locking lookup.
func (s *swapService) loadPair(ctx context.Context, firstID, secondID string) (*model.Slot, *model.Slot, error) {
	slots, err := s.slots.FindByIDs(ctx, firstID, secondID)
	if err != nil {
		return nil, nil, apperrors.Internal("Failed to load slots", err)
	}
	first, ok := slots[firstID]
	if !ok {
		return nil, nil, apperrors.NotFoundWithID(resourceSlot, firstID)
	}
	second, ok := slots[secondID]
	if !ok {
		return nil, nil, apperrors.NotFoundWithID(resourceSlot, secondID)
	}
	return first, second, nil
}

func (s *swapService) publish(ctx context.Context, event *model.SwapEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.cfg.Log.Error("Failed to publish swap event",
			"type", event.Type,
			"request_id", event.RequestID,
			"error", err,
		)
	}
}

// logFailure keeps client mistakes at warn level and real faults at error.
func (s *swapService) logFailure(msg string, err error, args ...any) {
	args = append(args, "error", err)
	if appErr := apperrors.AsAppError(err); appErr.StatusCode() < 500 {
		s.cfg.Log.Warn(msg, args...)
		return
	}
	s.cfg.Log.Error(msg, args...)
}

func slotTransitionError(err error, message string) error {
	switch {
	case errors.Is(err, slotserrors.ErrStatusChanged):
		return apperrors.InvalidState(message)
	case errors.Is(err, slotserrors.ErrNotFound), errors.Is(err, slotserrors.ErrInvalidID):
		return apperrors.NotFound(resourceSlot)
	}
	return apperrors.Internal("Failed to update slot", err)
}

func withSlots(reqs []*model.SwapRequest, slots map[string]*model.Slot) []*model.SwapRequestView {
	views := make([]*model.SwapRequestView, 0, len(reqs))
	for _, req := range reqs {
		views = append(views, &model.SwapRequestView{
			SwapRequest: *req,
			MySlot:      slots[req.MySlotID],
			TheirSlot:   slots[req.TheirSlotID],
		})
	}
	return views
}
