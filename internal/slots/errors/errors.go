package errors

import "errors"

var (
	ErrNotFound = errors.New("slot not found")

	ErrInvalidID = errors.New("invalid slot ID format")

	// ErrStatusChanged means a compare-and-set on the slot status lost a race.
	ErrStatusChanged = errors.New("slot status changed concurrently")

	// ErrReferenced means a swap request still points at the slot.
	ErrReferenced = errors.New("slot is referenced by a swap request")
)
