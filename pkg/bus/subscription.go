package bus

import (
	"context"
	"errors"
	"sync"
)

// ErrSubscriptionClosed is returned by Next after Close once the queue
// has drained.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Subscription is a single consumer's bounded event queue.
type Subscription struct {
	id  string
	bus *Bus

	mu     sync.Mutex
	queue  []Event
	lossy  bool
	closed bool

	// notify wakes a blocked Next. Capacity 1; publishers never block
	// on it.
	notify chan struct{}
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Lossy reports whether the subscription has ever dropped an event.
func (s *Subscription) Lossy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lossy
}

// Next returns the next event, blocking until one is queued, the
// context is cancelled, or the subscription is closed. Queued events
// are still delivered after Close; ErrSubscriptionClosed follows the
// last one.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			ev.Lossy = s.lossy
			s.mu.Unlock()
			return ev, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return Event{}, ErrSubscriptionClosed
		}

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-s.notify:
		}
	}
}

// Close detaches the subscription from the bus. Idempotent.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.id)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.wake()
}

// push enqueues an event, dropping the oldest on overflow. Returns
// whether a drop happened.
func (s *Subscription) push(ev Event, maxQueue int) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}

	var dropped bool
	if len(s.queue) >= maxQueue {
		// Drop-oldest keeps the most recent view of the world.
		s.queue = s.queue[1:]
		s.lossy = true
		dropped = true
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	s.wake()
	return dropped
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
