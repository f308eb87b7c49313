package errors

import "errors"

var (
	ErrNotFound = errors.New("waitlist entry not found")

	ErrInvalidID = errors.New("invalid waitlist entry ID format")

	// ErrStaleStatus means a conditional status update matched no document.
	ErrStaleStatus = errors.New("waitlist entry status changed concurrently")
)
