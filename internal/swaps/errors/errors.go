package errors

import "errors"

var (
	ErrNotFound = errors.New("swap request not found")

	ErrInvalidID = errors.New("invalid swap request ID format")

	ErrStatusChanged = errors.New("swap request status changed concurrently")
)
