package model

import "time"

type SwapEventType string

const (
	SwapEventProposed  SwapEventType = "swap.proposed"
	SwapEventAccepted  SwapEventType = "swap.accepted"
	SwapEventRejected  SwapEventType = "swap.rejected"
	SwapEventCancelled SwapEventType = "swap.cancelled"
)

// SwapEvent is published after a negotiation transition has been committed.
type SwapEvent struct {
	Type        SwapEventType `json:"type"`
	RequestID   string        `json:"request_id"`
	RequesterID string        `json:"requester_id"`
	ResponderID string        `json:"responder_id"`
	MySlotID    string        `json:"my_slot_id"`
	TheirSlotID string        `json:"their_slot_id"`
	OccurredAt  time.Time     `json:"occurred_at"`
}

func NewSwapEvent(eventType SwapEventType, req *SwapRequest) *SwapEvent {
	return &SwapEvent{
		Type:        eventType,
		RequestID:   req.ID,
		RequesterID: req.RequesterID,
		ResponderID: req.ResponderID,
		MySlotID:    req.MySlotID,
		TheirSlotID: req.TheirSlotID,
		OccurredAt:  time.Now().UTC(),
	}
}

func SwapEventFor(status HistoryStatus) SwapEventType {
	switch status {
	case HistoryStatusAccepted:
		return SwapEventAccepted
	case HistoryStatusRejected:
		return SwapEventRejected
	case HistoryStatusCancelled:
		return SwapEventCancelled
	}
	return ""
}
