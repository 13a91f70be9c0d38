// Package audit records every state-changing operation of the service
// in an append-only trail.
//
// The trail normally lives in the store. If the store starts failing,
// the log degrades to a bounded in-memory ring rather than dropping
// entries or blocking the operations being audited. IDs keep climbing
// from the last persisted entry, so the trail stays ordered across the
// degradation. Strict mode trades this availability for certainty and
// surfaces store failures to the caller instead.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/podium-chat/podium/internal/logger"
	"github.com/podium-chat/podium/pkg/semaphore"
	"github.com/podium-chat/podium/pkg/store"
)

// Audit action names.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
	ActionRead   = "READ"

	ActionAcquire = "ACQUIRE"
	ActionRelease = "RELEASE"

	ActionAdminToggle       = "ADMIN_TOGGLE"
	ActionAdminForceRelease = "ADMIN_FORCE_RELEASE"

	ActionLogin       = "LOGIN"
	ActionLoginFailed = "LOGIN_FAILED"
	ActionRegister    = "REGISTER"
	ActionLockout     = "LOCKOUT"
)

// DefaultRingSize bounds the degraded in-memory ring.
const DefaultRingSize = 10000

// Entry is one audit record.
type Entry = store.AuditEntry

// Config configures a Log.
type Config struct {
	// Store persists the trail. Required.
	Store store.Store

	// RingSize bounds the degraded ring. Zero selects DefaultRingSize.
	RingSize int

	// Strict makes Append return store errors instead of degrading.
	Strict bool

	// Now is the clock, overridable in tests. Nil selects time.Now.
	Now func() time.Time
}

// Log is the audit trail. All methods are safe for concurrent use.
type Log struct {
	store    store.Store
	ringSize int
	strict   bool
	now      func() time.Time

	mu       sync.Mutex
	degraded bool
	nextID   int64
	ring     []Entry
}

// NewLog creates an audit log. It reads the last persisted ID so
// degraded-mode IDs continue the sequence.
func NewLog(ctx context.Context, cfg Config) (*Log, error) {
	if cfg.RingSize <= 0 {
		cfg.RingSize = DefaultRingSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	last, err := cfg.Store.LastAuditID(ctx)
	if err != nil {
		if cfg.Strict {
			return nil, err
		}
		logger.Warn("audit store unreadable at startup, starting degraded", logger.KeyError, err.Error())
	}

	return &Log{
		store:    cfg.Store,
		ringSize: cfg.RingSize,
		strict:   cfg.Strict,
		now:      cfg.Now,
		degraded: err != nil,
		nextID:   last,
	}, nil
}

// Append records an entry. The caller fills Action, Username, Content
// and LockValue; Append assigns ID and Timestamp.
//
// In non-strict mode Append never fails: a store error flips the log
// into degraded mode and the entry lands in the ring.
func (l *Log) Append(ctx context.Context, e Entry) (int64, error) {
	e.Timestamp = l.now().UTC()

	id, err := l.store.AppendAudit(ctx, e)
	if err == nil {
		l.mu.Lock()
		if l.degraded {
			// Store came back. Ring entries stay in memory for List
			// until restart; new entries persist again.
			l.degraded = false
			logger.Info("audit store recovered", logger.KeyAuditID, id)
		}
		if id > l.nextID {
			l.nextID = id
		}
		l.mu.Unlock()
		return id, nil
	}

	if l.strict {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.degraded {
		l.degraded = true
		logger.Error("audit store failing, degrading to in-memory ring",
			logger.KeyError, err.Error())
	}

	l.nextID++
	e.ID = l.nextID
	if len(l.ring) >= l.ringSize {
		l.ring = l.ring[1:]
	}
	l.ring = append(l.ring, e)
	return e.ID, nil
}

// RecordLockTransition appends the entry for a writer-lock ownership
// change. Wired as the semaphore's OnTransition hook, it runs inside
// the transition's critical section, so ACQUIRE, RELEASE and
// ADMIN_FORCE_RELEASE land on the trail in commit order. Failures are
// logged, never surfaced: the transition has already committed.
func (l *Log) RecordLockTransition(ctx context.Context, t semaphore.Transition) {
	e := Entry{Username: t.Principal, LockValue: t.State.Value()}
	switch {
	case t.Acquired:
		e.Action = ActionAcquire
	case t.Reason == semaphore.ReasonAdmin:
		e.Action = ActionAdminForceRelease
		e.Content = "reason=" + t.Reason
	default:
		e.Action = ActionRelease
		e.Content = "reason=" + t.Reason
	}

	if _, err := l.Append(ctx, e); err != nil {
		logger.Error("audit append failed",
			logger.KeyAction, e.Action,
			logger.KeyError, err.Error())
	}
}

// List returns a page of the trail, newest first. While the store is
// reachable it serves the persisted trail; in degraded mode it serves
// the ring.
func (l *Log) List(ctx context.Context, offset, limit int) ([]Entry, int64, error) {
	l.mu.Lock()
	degraded := l.degraded
	l.mu.Unlock()

	if !degraded {
		entries, total, err := l.store.ListAudit(ctx, offset, limit)
		if err == nil {
			return entries, total, nil
		}
		logger.Warn("audit store list failed, serving in-memory ring", logger.KeyError, err.Error())
	}

	return l.listRing(offset, limit)
}

// listRing pages over the ring, newest first.
func (l *Log) listRing(offset, limit int) ([]Entry, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := int64(len(l.ring))
	if offset >= len(l.ring) {
		return nil, total, nil
	}

	// Ring is oldest-to-newest; walk it backwards.
	entries := make([]Entry, 0, limit)
	for i := len(l.ring) - 1 - offset; i >= 0 && len(entries) < limit; i-- {
		entries = append(entries, l.ring[i])
	}
	return entries, total, nil
}

// Healthy reports whether the trail is persisting to the store.
func (l *Log) Healthy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.degraded
}

// Buffered returns how many entries are held only in memory.
func (l *Log) Buffered() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ring)
}
