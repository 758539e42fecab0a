package store

import "errors"

var (
	// ErrCapacityExceeded is returned when a conditional increment finds the
	// slot already at capacity. Nothing has been mutated when it is returned.
	ErrCapacityExceeded = errors.New("slot capacity exceeded")

	// ErrNotFound is returned when a booking or waitlist entry does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrWaitlistEmpty is returned by promotion when no entry is queued for
	// the slot.
	ErrWaitlistEmpty = errors.New("waitlist empty for slot")
)
