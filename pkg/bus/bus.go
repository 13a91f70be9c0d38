package bus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/podium-chat/podium/internal/logger"
)

// Defaults for the bus.
const (
	DefaultQueueSize         = 256
	DefaultReconcileInterval = 2 * time.Second
)

// Config configures a Bus.
type Config struct {
	// QueueSize bounds each subscription queue. Zero selects
	// DefaultQueueSize.
	QueueSize int

	// ReconcileInterval is how often the reconciler polls the lock
	// state. Zero selects DefaultReconcileInterval.
	ReconcileInterval time.Duration

	// Status returns the authoritative lock state for the reconciler
	// and for subscription snapshots. Required when Run is used.
	Status func() LockState

	// Metrics records bus activity. Nil disables instrumentation.
	Metrics *Metrics

	// Now is the clock, overridable in tests. Nil selects time.Now.
	Now func() time.Time
}

// Bus distributes events to subscriptions. All methods are safe for
// concurrent use.
type Bus struct {
	queueSize int
	interval  time.Duration
	status    func() LockState
	metrics   *Metrics
	now       func() time.Time

	mu   sync.Mutex
	subs map[string]*Subscription

	// lastLock is the last lock state published on the bus; the
	// reconciler only emits when the authoritative state differs.
	lastLock    LockState
	hasLastLock bool
}

// New creates a Bus.
func New(cfg Config) *Bus {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = DefaultReconcileInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Bus{
		queueSize: cfg.QueueSize,
		interval:  cfg.ReconcileInterval,
		status:    cfg.Status,
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		subs:      make(map[string]*Subscription),
	}
}

// Subscribe registers a new subscription. Its first queued event is a
// lock state snapshot, so subscribers start from a known state instead
// of waiting for the next transition. A transition racing the snapshot
// may be missed; the reconciler heals that within one interval.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{
		id:     uuid.New().String(),
		bus:    b,
		notify: make(chan struct{}, 1),
	}

	// Snapshot without holding b.mu: Status reaches into the lock's
	// own mutex, and lock transitions take b.mu through Publish.
	var snapshot LockState
	if b.status != nil {
		snapshot = b.status()
	} else {
		b.mu.Lock()
		snapshot = b.lastLock
		b.mu.Unlock()
	}

	// Seed the queue before registering so the snapshot is always the
	// first event.
	sub.push(Event{
		Type:      EventLockState,
		Timestamp: b.now().UTC(),
		Lock:      &snapshot,
	}, b.queueSize)

	b.mu.Lock()
	b.subs[sub.id] = sub
	count := len(b.subs)
	b.mu.Unlock()

	b.metrics.SetSubscribers(count)

	logger.Debug("event subscription opened",
		logger.KeySubscriptionID, sub.id,
		logger.KeyCount, count)
	return sub
}

// Publish enqueues an event on every subscription. It never blocks;
// slow subscribers lose their oldest event instead.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.now().UTC()
	}

	b.mu.Lock()
	if ev.Type == EventLockState && ev.Lock != nil {
		b.lastLock = *ev.Lock
		b.hasLastLock = true
	}
	subs := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	b.metrics.ObservePublish(string(ev.Type))

	for _, sub := range subs {
		if sub.push(ev, b.queueSize) {
			b.metrics.ObserveDrop()
			logger.Warn("subscriber queue overflow, dropped oldest event",
				logger.KeySubscriptionID, sub.id)
		}
	}
}

// PublishLockState publishes a lock state transition.
func (b *Bus) PublishLockState(state LockState) {
	b.Publish(Event{Type: EventLockState, Lock: &state})
}

// PublishMessage publishes a message mutation event.
func (b *Bus) PublishMessage(t EventType, ref MessageRef) {
	b.Publish(Event{Type: t, Message: &ref})
}

// PublishAdminToggle publishes a writer gate toggle.
func (b *Bus) PublishAdminToggle(admin string, enabled bool) {
	b.Publish(Event{Type: EventAdminToggle, Toggle: &AdminToggle{Admin: admin, Enabled: enabled}})
}

// PublishWriterChange publishes a lock handover.
func (b *Bus) PublishWriterChange(change, principal string) {
	b.Publish(Event{Type: EventWriterChanged, Writer: &WriterChange{Change: change, Principal: principal}})
}

// Run drives the reconciler until ctx is cancelled. Every interval it
// compares the authoritative lock state with the last published state
// and emits a lock_state event only when they differ. This heals any
// missed transition without flooding idle subscribers.
func (b *Bus) Run(ctx context.Context) {
	if b.status == nil {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.reconcile()
		}
	}
}

// reconcile performs a single reconciliation pass. The first pass
// primes the comparison state without emitting.
func (b *Bus) reconcile() {
	current := b.status()

	b.mu.Lock()
	if !b.hasLastLock {
		b.lastLock = current
		b.hasLastLock = true
		b.mu.Unlock()
		return
	}
	unchanged := b.lastLock == current
	b.mu.Unlock()

	if unchanged {
		return
	}

	b.metrics.ObserveReconcileEmit()
	logger.Debug("reconciler publishing lock state",
		logger.KeyHolder, current.Holder,
		logger.KeyEnabled, current.Enabled)
	b.PublishLockState(current)
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	_, ok := b.subs[id]
	delete(b.subs, id)
	count := len(b.subs)
	b.mu.Unlock()

	if ok {
		b.metrics.SetSubscribers(count)
		logger.Debug("event subscription closed",
			logger.KeySubscriptionID, id,
			logger.KeyCount, count)
	}
}
