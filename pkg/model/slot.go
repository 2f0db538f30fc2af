package model

import (
	"time"
)

type SlotStatus string

const (
	SlotStatusBusy        SlotStatus = "BUSY"
	SlotStatusSwappable   SlotStatus = "SWAPPABLE"
	SlotStatusSwapPending SlotStatus = "SWAP_PENDING"
)

func (s SlotStatus) IsValid() bool {
	switch s {
	case SlotStatusBusy, SlotStatusSwappable, SlotStatusSwapPending:
		return true
	}
	return false
}

// IsClientSettable reports whether an owner may set this status directly.
// SWAP_PENDING is reserved for the negotiation engine.
func (s SlotStatus) IsClientSettable() bool {
	switch s {
	case SlotStatusBusy, SlotStatusSwappable:
		return true
	case SlotStatusSwapPending:
		return false
	}
	return false
}

type Slot struct {
	ID        string     `json:"id" bson:"_id,omitempty" db:"id"`
	OwnerID   string     `json:"owner_id" bson:"owner_id" db:"owner_id"`
	Title     string     `json:"title" bson:"title" db:"title"`
	StartTime time.Time  `json:"start_time" bson:"start_time" db:"start_time"`
	EndTime   time.Time  `json:"end_time" bson:"end_time" db:"end_time"`
	Status    SlotStatus `json:"status" bson:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at" db:"created_at"`
}

type SlotCreate struct {
	Title     string     `json:"title" validate:"required,min=1,max=200"`
	StartTime time.Time  `json:"start_time" validate:"required"`
	EndTime   time.Time  `json:"end_time" validate:"required,gtfield=StartTime"`
	Status    SlotStatus `json:"status,omitempty" validate:"omitempty,oneof=BUSY SWAPPABLE"`
}

type SlotUpdate struct {
	Title     *string     `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	StartTime *time.Time  `json:"start_time,omitempty"`
	EndTime   *time.Time  `json:"end_time,omitempty"`
	Status    *SlotStatus `json:"status,omitempty" validate:"omitempty,oneof=BUSY SWAPPABLE"`
}

// MarketplaceSlot is a swappable slot as seen by other users.
type MarketplaceSlot struct {
	Slot
	Owner *UserSummary `json:"owner,omitempty"`
}
