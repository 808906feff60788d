package timers

import "errors"

var (
	// ErrNotFound indicates the timer does not exist.
	ErrNotFound = errors.New("timer not found")
	// ErrNotExtendable indicates the timer is ended or cancelled.
	ErrNotExtendable = errors.New("timer not extendable")
	// ErrConflict indicates the timer kept changing under concurrent writes.
	ErrConflict = errors.New("timer modified concurrently")
)
