package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrStaleStatus means a conditional status update matched no document:
	// the booking moved since the caller read it.
	ErrStaleStatus = errors.New("booking status changed concurrently")
)
