package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type SwapStatus string

const (
	SwapStatusPending  SwapStatus = "PENDING"
	SwapStatusAccepted SwapStatus = "ACCEPTED"
	SwapStatusRejected SwapStatus = "REJECTED"
)

func (s SwapStatus) IsValid() bool {
	switch s {
	case SwapStatusPending, SwapStatusAccepted, SwapStatusRejected:
		return true
	}
	return false
}

type SwapRequest struct {
	ID          string     `json:"id" bson:"_id,omitempty" db:"id"`
	RequesterID string     `json:"requester_id" bson:"requester_id" db:"requester_id"`
	ResponderID string     `json:"responder_id" bson:"responder_id" db:"responder_id"`
	MySlotID    string     `json:"my_slot_id" bson:"my_slot_id" db:"my_slot_id"`
	TheirSlotID string     `json:"their_slot_id" bson:"their_slot_id" db:"their_slot_id"`
	Status      SwapStatus `json:"status" bson:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at" db:"created_at"`
}

// SwapRequestView is a live request together with the two slots it references.
type SwapRequestView struct {
	SwapRequest
	MySlot    *Slot `json:"my_slot,omitempty"`
	TheirSlot *Slot `json:"their_slot,omitempty"`
}

type LiveRequests struct {
	Incoming []*SwapRequestView `json:"incoming"`
	Outgoing []*SwapRequestView `json:"outgoing"`
}

type ProposeRequest struct {
	MySlotID    string `json:"my_slot_id" validate:"required,max=64"`
	TheirSlotID string `json:"their_slot_id" validate:"required,max=64"`
}

// Decision accepts a JSON boolean or the strings "true"/"false".
type Decision bool

func (d *Decision) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*d = Decision(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("accept must be a boolean")
	}
	parsed, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("accept must be a boolean, got %q", s)
	}
	*d = Decision(parsed)
	return nil
}

type RespondRequest struct {
	Accept *Decision `json:"accept" validate:"required"`
}

type StatusResponse struct {
	Status HistoryStatus `json:"status"`
}
