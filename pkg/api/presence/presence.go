// Package presence tracks which principals are actively talking to the
// service. A principal that stops sending requests and has no open
// subscriptions is declared vanished after a grace period, which lets
// the writer lock be reclaimed from crashed or disconnected clients.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/podium-chat/podium/internal/logger"
)

// Defaults for the tracker.
const (
	DefaultGrace         = 30 * time.Second
	DefaultSweepInterval = 5 * time.Second
)

// State of a principal as seen by the tracker.
type State string

const (
	StateAbsent State = "absent"
	StateActive State = "active"
	StateGrace  State = "grace"
)

// Config configures a Tracker.
type Config struct {
	// Grace is how long a principal may be silent, with no open
	// subscriptions, before it is declared vanished. Zero selects
	// DefaultGrace.
	Grace time.Duration

	// SweepInterval is how often Run scans for expired principals.
	// Zero selects DefaultSweepInterval.
	SweepInterval time.Duration

	// OnVanish is called, outside the tracker mutex, for every
	// principal that transitions to absent. Optional.
	OnVanish func(username string)

	// Now is the clock, overridable in tests. Nil selects time.Now.
	Now func() time.Time
}

type record struct {
	lastSeen time.Time
	subs     int
}

// Tracker maintains per-principal presence. All methods are safe for
// concurrent use.
type Tracker struct {
	grace    time.Duration
	interval time.Duration
	onVanish func(string)
	now      func() time.Time

	mu      sync.Mutex
	records map[string]*record
}

// New creates a Tracker.
func New(cfg Config) *Tracker {
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGrace
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Tracker{
		grace:    cfg.Grace,
		interval: cfg.SweepInterval,
		onVanish: cfg.OnVanish,
		now:      cfg.Now,
		records:  make(map[string]*record),
	}
}

// Touch marks a request from username. An absent principal becomes
// present; a principal in grace returns to activity.
func (t *Tracker) Touch(username string) {
	if username == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[username]
	if !ok {
		r = &record{}
		t.records[username] = r
	}
	r.lastSeen = t.now()
}

// SubscriptionOpened records a live event subscription for username.
// A principal with open subscriptions never expires.
func (t *Tracker) SubscriptionOpened(username string) {
	if username == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[username]
	if !ok {
		r = &record{}
		t.records[username] = r
	}
	r.subs++
	r.lastSeen = t.now()
}

// SubscriptionClosed records a subscription teardown. The principal
// enters grace; the sweep declares it vanished unless it comes back.
func (t *Tracker) SubscriptionClosed(username string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[username]
	if !ok {
		return
	}
	if r.subs > 0 {
		r.subs--
	}
	r.lastSeen = t.now()
}

// Logout removes the principal immediately and fires OnVanish, so a
// held writer lock is released without waiting out the grace period.
func (t *Tracker) Logout(username string) {
	t.mu.Lock()
	_, ok := t.records[username]
	delete(t.records, username)
	t.mu.Unlock()

	if ok && t.onVanish != nil {
		t.onVanish(username)
	}
}

// State reports the current presence of username.
func (t *Tracker) State(username string) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[username]
	switch {
	case !ok:
		return StateAbsent
	case r.subs > 0:
		return StateActive
	default:
		return StateGrace
	}
}

// Run sweeps for vanished principals until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

// sweep removes principals whose grace has expired and fires OnVanish
// for each, outside the mutex.
func (t *Tracker) sweep() {
	cutoff := t.now().Add(-t.grace)

	t.mu.Lock()
	var vanished []string
	for username, r := range t.records {
		if r.subs == 0 && r.lastSeen.Before(cutoff) {
			delete(t.records, username)
			vanished = append(vanished, username)
		}
	}
	t.mu.Unlock()

	for _, username := range vanished {
		logger.Info("principal vanished", logger.KeyUsername, username)
		if t.onVanish != nil {
			t.onVanish(username)
		}
	}
}
