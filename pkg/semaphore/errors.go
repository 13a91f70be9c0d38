package semaphore

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDisabled indicates the writer lock is administratively disabled.
	ErrDisabled = errors.New("writer lock is disabled")

	// ErrNotHeld indicates the caller does not hold the writer lock.
	ErrNotHeld = errors.New("writer lock not held by caller")
)

// HeldError is returned when the lock is already held. It carries the
// current holder so clients can show who to wait for.
type HeldError struct {
	Holder string
	Since  time.Time
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("writer lock held by %q", e.Holder)
}
