// Package semaphore implements the single-holder writer lock that
// serializes message mutations across the chat service.
//
// The lock is non-blocking and unfair: TryAcquire either takes a free
// lock or fails immediately with the current holder, and contenders
// race on the next release with no queue. An admin can disable the
// lock entirely, which force-releases the current holder and drains
// all acquisition until re-enabled.
package semaphore

import (
	"sync"
	"time"
)

// Release reasons, recorded in audit entries and events.
const (
	ReasonClient     = "client"
	ReasonAdmin      = "admin"
	ReasonClientGone = "client-gone"
	ReasonShutdown   = "shutdown"
)

// Transition describes one ownership change: an acquisition, or a
// release with the reason and the principal that lost the lock.
type Transition struct {
	Acquired  bool
	Principal string
	Reason    string
	State     State
}

// State is a snapshot of the writer lock.
type State struct {
	Enabled    bool      `json:"enabled"`
	Holder     string    `json:"holder,omitempty"`
	AcquiredAt time.Time `json:"acquired_at,omitempty"`
}

// Held reports whether the lock currently has a holder.
func (s State) Held() bool {
	return s.Holder != ""
}

// Value returns the wire representation of the lock state:
// 0 when held, 1 when free.
func (s State) Value() int {
	if s.Held() {
		return 0
	}
	return 1
}

// Config configures a Semaphore.
type Config struct {
	// Enabled is the initial enabled state. The zero Config starts
	// the lock disabled; callers usually want Enabled: true.
	Enabled bool

	// OnChange, if set, is called with the new state after every
	// transition, while the internal lock is still held. Transitions
	// are therefore delivered in commit order. The callback must not
	// call back into the Semaphore and must not block.
	OnChange func(State)

	// OnTransition, if set, is called for every ownership change under
	// the same discipline as OnChange, before it. Audit trails hang off
	// this hook so their entries land in commit order.
	OnTransition func(Transition)

	// Metrics records lock activity. Nil disables instrumentation.
	Metrics *Metrics

	// Now is the clock, overridable in tests. Nil selects time.Now.
	Now func() time.Time
}

// Semaphore is the writer lock. All methods are safe for concurrent use.
type Semaphore struct {
	mu         sync.Mutex
	enabled    bool
	holder     string
	acquiredAt time.Time

	onChange     func(State)
	onTransition func(Transition)
	metrics      *Metrics
	now          func() time.Time
}

// New creates a Semaphore.
func New(cfg Config) *Semaphore {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Semaphore{
		enabled:      cfg.Enabled,
		onChange:     cfg.OnChange,
		onTransition: cfg.OnTransition,
		metrics:      cfg.Metrics,
		now:          cfg.Now,
	}
	s.metrics.SetHeld(false)
	s.metrics.SetEnabled(cfg.Enabled)
	return s
}

// TryAcquire attempts to take the lock for owner without blocking.
//
// It fails with ErrDisabled when the lock is disabled and with
// *HeldError when any holder exists, including owner itself: the lock
// does not support re-entry, matching trylock semantics.
func (s *Semaphore) TryAcquire(owner string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		s.metrics.ObserveAcquire(StatusDisabled)
		return s.snapshot(), ErrDisabled
	}
	if s.holder != "" {
		s.metrics.ObserveAcquire(StatusHeld)
		return s.snapshot(), &HeldError{Holder: s.holder, Since: s.acquiredAt}
	}

	s.holder = owner
	s.acquiredAt = s.now().UTC()
	s.metrics.ObserveAcquire(StatusAcquired)
	s.metrics.SetHeld(true)

	state := s.snapshot()
	s.transition(Transition{Acquired: true, Principal: owner, State: state})
	s.notify(state)
	return state, nil
}

// Release releases the lock held by owner. Only the holder may
// release; anyone else gets ErrNotHeld, as does a release of a free
// lock.
func (s *Semaphore) Release(owner string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.holder == "" || s.holder != owner {
		return s.snapshot(), ErrNotHeld
	}
	return s.releaseLocked(ReasonClient), nil
}

// ForceRelease releases the lock regardless of holder. It returns the
// previous holder and whether a release actually happened. Used for
// admin intervention, vanished clients and shutdown.
func (s *Semaphore) ForceRelease(reason string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.holder == "" {
		return "", false
	}
	holder := s.holder
	s.releaseLocked(reason)
	return holder, true
}

// ReleaseIfHeldBy releases the lock only if owner currently holds it.
// It returns whether a release happened. Used by presence tracking,
// where the vanished client may have already released.
func (s *Semaphore) ReleaseIfHeldBy(owner, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.holder != owner || owner == "" {
		return false
	}
	s.releaseLocked(reason)
	return true
}

// SetEnabled flips the writer-enabled flag. Disabling while the lock
// is held force-releases the holder in the same critical section, so
// no acquisition can slip between the release and the disable. It
// returns the released holder, if any, and whether the flag changed.
func (s *Semaphore) SetEnabled(enabled bool) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enabled == enabled {
		return "", false
	}

	var released string
	if !enabled && s.holder != "" {
		released = s.holder
		s.releaseLocked(ReasonAdmin)
	}

	s.enabled = enabled
	s.metrics.SetEnabled(enabled)
	s.notify(s.snapshot())
	return released, true
}

// CheckOwner returns nil when owner currently holds the lock. Message
// mutations gate on this; it is a point-in-time check and O(1).
func (s *Semaphore) CheckOwner(owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.holder == "" || s.holder != owner {
		return ErrNotHeld
	}
	return nil
}

// Status returns a snapshot of the lock.
func (s *Semaphore) Status() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// releaseLocked clears the holder and notifies. Caller holds s.mu and
// has verified the lock is held.
func (s *Semaphore) releaseLocked(reason string) State {
	holder := s.holder
	held := s.now().UTC().Sub(s.acquiredAt)
	s.holder = ""
	s.acquiredAt = time.Time{}

	s.metrics.ObserveRelease(reason)
	s.metrics.ObserveHoldDuration(held)
	s.metrics.SetHeld(false)

	state := s.snapshot()
	s.transition(Transition{Principal: holder, Reason: reason, State: state})
	s.notify(state)
	return state
}

func (s *Semaphore) snapshot() State {
	return State{
		Enabled:    s.enabled,
		Holder:     s.holder,
		AcquiredAt: s.acquiredAt,
	}
}

func (s *Semaphore) notify(state State) {
	if s.onChange != nil {
		s.onChange(state)
	}
}

func (s *Semaphore) transition(t Transition) {
	if s.onTransition != nil {
		s.onTransition(t)
	}
}
