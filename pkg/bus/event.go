// Package bus fans service events out to subscribers over bounded,
// lossy per-subscription queues.
//
// Publishing never blocks: when a subscriber's queue is full the
// oldest event is dropped and the subscription is marked lossy. The
// lossy flag is sticky and rides on every subsequent delivery, so a
// slow consumer knows its view has gaps and can resynchronize.
package bus

import (
	"time"
)

// EventType names the kinds of events the service emits.
type EventType string

const (
	// EventLockState carries a writer lock snapshot. Emitted on every
	// lock transition, as the first event of each subscription, and by
	// the reconciler when it notices a change.
	EventLockState EventType = "lock_state"

	// EventMessageCreated, EventMessageUpdated and EventMessageDeleted
	// follow successful message mutations.
	EventMessageCreated EventType = "message_created"
	EventMessageUpdated EventType = "message_updated"
	EventMessageDeleted EventType = "message_deleted"

	// EventAdminToggle follows an admin enabling or disabling the
	// writer gate.
	EventAdminToggle EventType = "admin_toggle"

	// EventWriterChanged follows every acquisition and release of the
	// writer lock, naming the principal involved.
	EventWriterChanged EventType = "writer_changed"
)

// Writer change kinds carried by EventWriterChanged.
const (
	WriterAcquired = "acquired"
	WriterReleased = "released"
	WriterForced   = "forced"
)

// LockState is the event view of the writer lock.
type LockState struct {
	Enabled bool   `json:"enabled"`
	Holder  string `json:"holder,omitempty"`
	// Value is 0 when held, 1 when free.
	Value int `json:"value"`
}

// MessageRef identifies the message a mutation event refers to.
type MessageRef struct {
	ID     int64  `json:"id"`
	Author string `json:"author"`
	Body   string `json:"body,omitempty"`
}

// AdminToggle records who flipped the writer gate and to what.
type AdminToggle struct {
	Admin   string `json:"admin"`
	Enabled bool   `json:"enabled"`
}

// WriterChange records a lock handover.
type WriterChange struct {
	// Change is one of WriterAcquired, WriterReleased, WriterForced.
	Change    string `json:"change"`
	Principal string `json:"principal"`
}

// Event is a single entry on a subscription queue.
type Event struct {
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Lock      *LockState    `json:"lock,omitempty"`
	Message   *MessageRef   `json:"message,omitempty"`
	Toggle    *AdminToggle  `json:"toggle,omitempty"`
	Writer    *WriterChange `json:"writer,omitempty"`

	// Lossy is true once the subscription has dropped at least one
	// event. It stays true for the life of the subscription.
	Lossy bool `json:"lossy,omitempty"`
}
