package model

import "time"

type HistoryStatus string

const (
	HistoryStatusAccepted  HistoryStatus = "ACCEPTED"
	HistoryStatusRejected  HistoryStatus = "REJECTED"
	HistoryStatusCancelled HistoryStatus = "CANCELLED"
)

func (s HistoryStatus) IsValid() bool {
	switch s {
	case HistoryStatusAccepted, HistoryStatusRejected, HistoryStatusCancelled:
		return true
	}
	return false
}

type HistoryRole string

const (
	RoleRequester HistoryRole = "REQUESTER"
	RoleResponder HistoryRole = "RESPONDER"
)

// HistoryEntry is immutable once written.
type HistoryEntry struct {
	ID             string        `json:"id" bson:"_id,omitempty" db:"id"`
	RequesterID    string        `json:"requester_id" bson:"requester_id" db:"requester_id"`
	ResponderID    string        `json:"responder_id" bson:"responder_id" db:"responder_id"`
	MySlotID       string        `json:"my_slot_id" bson:"my_slot_id" db:"my_slot_id"`
	TheirSlotID    string        `json:"their_slot_id" bson:"their_slot_id" db:"their_slot_id"`
	MySlotTitle    string        `json:"my_slot_title" bson:"my_slot_title" db:"my_slot_title"`
	TheirSlotTitle string        `json:"their_slot_title" bson:"their_slot_title" db:"their_slot_title"`
	Status         HistoryStatus `json:"status" bson:"status" db:"status"`
	DecidedAt      time.Time     `json:"decided_at" bson:"decided_at" db:"decided_at"`
}

// HistoryItem is a history entry as seen by one of its two participants.
type HistoryItem struct {
	HistoryEntry
	Role         HistoryRole  `json:"role"`
	Counterparty *UserSummary `json:"counterparty"`
}

// RoleOf returns the role userID played in the entry and the id of the other party.
func (h *HistoryEntry) RoleOf(userID string) (HistoryRole, string) {
	if h.RequesterID == userID {
		return RoleRequester, h.ResponderID
	}
	return RoleResponder, h.RequesterID
}
