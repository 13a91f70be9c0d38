package message

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podium-chat/podium/pkg/audit"
	"github.com/podium-chat/podium/pkg/bus"
	"github.com/podium-chat/podium/pkg/semaphore"
	"github.com/podium-chat/podium/pkg/store"
)

type fixture struct {
	svc   *Service
	lock  *semaphore.Semaphore
	audit *audit.Log
	bus   *bus.Bus
	store store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := store.NewGORMStore(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	lock := semaphore.New(semaphore.Config{Enabled: true})
	log, err := audit.NewLog(context.Background(), audit.Config{Store: st})
	require.NoError(t, err)

	b := bus.New(bus.Config{Status: func() bus.LockState {
		s := lock.Status()
		return bus.LockState{Enabled: s.Enabled, Holder: s.Holder, Value: s.Value()}
	}})

	svc, err := NewService(Config{Store: st, Lock: lock, Audit: log, Bus: b})
	require.NoError(t, err)

	return &fixture{svc: svc, lock: lock, audit: log, bus: b, store: st}
}

// acquire takes the writer lock for username, failing the test if it
// is contended.
func (f *fixture) acquire(t *testing.T, username string) {
	t.Helper()
	_, err := f.lock.TryAcquire(username)
	require.NoError(t, err)
}

// auditActions returns the actions on the trail, newest first.
func (f *fixture) auditActions(t *testing.T) []string {
	t.Helper()
	entries, _, err := f.audit.List(context.Background(), 0, 100)
	require.NoError(t, err)
	actions := make([]string, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
	}
	return actions
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("HolderCreatesMessage", func(t *testing.T) {
		f := newFixture(t)
		f.acquire(t, "alice")

		msg, err := f.svc.Create(ctx, "alice", "hello")
		require.NoError(t, err)
		assert.Positive(t, msg.ID)
		assert.Equal(t, "alice", msg.Author)
		assert.Equal(t, "hello", msg.Body)
		assert.False(t, msg.CreatedAt.IsZero())

		assert.Contains(t, f.auditActions(t), audit.ActionCreate)
	})

	t.Run("NonHolderRejected", func(t *testing.T) {
		f := newFixture(t)
		f.acquire(t, "alice")

		_, err := f.svc.Create(ctx, "bob", "hi")
		assert.ErrorIs(t, err, semaphore.ErrNotHeld)

		// Rejected mutations leave no trace on the trail.
		assert.NotContains(t, f.auditActions(t), audit.ActionCreate)
	})

	t.Run("FreeLockRejected", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Create(ctx, "alice", "hi")
		assert.ErrorIs(t, err, semaphore.ErrNotHeld)
	})

	t.Run("BodyBoundaries", func(t *testing.T) {
		f := newFixture(t)
		f.acquire(t, "alice")

		tests := []struct {
			name    string
			body    string
			wantErr error
		}{
			{"Empty", "", ErrInvalidBody},
			{"WhitespaceOnly", " \t\n ", ErrInvalidBody},
			{"SingleCharacter", "a", nil},
			{"MaxLength", strings.Repeat("a", 2000), nil},
			{"OverMaxLength", strings.Repeat("a", 2001), ErrInvalidBody},
			// Length is counted in characters, not bytes.
			{"MultibyteAtMaxLength", strings.Repeat("é", 2000), nil},
			{"MultibyteOverMaxLength", strings.Repeat("é", 2001), ErrInvalidBody},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.Create(ctx, "alice", tt.body)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.NoError(t, err)
				}
			})
		}
	})

	t.Run("PublishesCreatedEvent", func(t *testing.T) {
		f := newFixture(t)
		f.acquire(t, "alice")

		sub := f.bus.Subscribe()
		defer sub.Close()

		// First event is the lock snapshot.
		ev, err := sub.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, bus.EventLockState, ev.Type)

		msg, err := f.svc.Create(ctx, "alice", "hello")
		require.NoError(t, err)

		ev, err = sub.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, bus.EventMessageCreated, ev.Type)
		require.NotNil(t, ev.Message)
		assert.Equal(t, msg.ID, ev.Message.ID)
		assert.Equal(t, "alice", ev.Message.Author)
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("AuthorUpdatesOwnMessage", func(t *testing.T) {
		f := newFixture(t)
		f.acquire(t, "alice")

		created, err := f.svc.Create(ctx, "alice", "original")
		require.NoError(t, err)

		updated, err := f.svc.Update(ctx, "alice", created.ID, "edited")
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "alice", updated.Author)
		assert.Equal(t, "edited", updated.Body)

		page, err := f.svc.List(ctx, "alice", 1, 10)
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "edited", page.Items[0].Body)
	})

	t.Run("NonAuthorForbidden", func(t *testing.T) {
		f := newFixture(t)
		f.acquire(t, "alice")

		created, err := f.svc.Create(ctx, "alice", "original")
		require.NoError(t, err)

		// Hand the lock to bob; author check still rejects him.
		_, err = f.lock.Release("alice")
		require.NoError(t, err)
		f.acquire(t, "bob")

		_, err = f.svc.Update(ctx, "bob", created.ID, "hijacked")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("NonHolderRejectedBeforeAuthorCheck", func(t *testing.T) {
		f := newFixture(t)
		f.acquire(t, "alice")

		created, err := f.svc.Create(ctx, "alice", "original")
		require.NoError(t, err)
		_, err = f.lock.Release("alice")
		require.NoError(t, err)

		_, err = f.svc.Update(ctx, "alice", created.ID, "edited")
		assert.ErrorIs(t, err, semaphore.ErrNotHeld)
	})

	t.Run("MissingMessage", func(t *testing.T) {
		f := newFixture(t)
		f.acquire(t, "alice")

		_, err := f.svc.Update(ctx, "alice", 999, "edited")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("PublishesUpdatedEvent", func(t *testing.T) {
		f := newFixture(t)
		f.acquire(t, "alice")

		created, err := f.svc.Create(ctx, "alice", "original")
		require.NoError(t, err)

		sub := f.bus.Subscribe()
		defer sub.Close()
		_, err = sub.Next(ctx) // snapshot
		require.NoError(t, err)

		_, err = f.svc.Update(ctx, "alice", created.ID, "edited")
		require.NoError(t, err)

		ev, err := sub.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, bus.EventMessageUpdated, ev.Type)
		require.NotNil(t, ev.Message)
		assert.Equal(t, "edited", ev.Message.Body)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("AuthorDeletesOwnMessage", func(t *testing.T) {
		f := newFixture(t)
		f.acquire(t, "alice")

		created, err := f.svc.Create(ctx, "alice", "to delete")
		require.NoError(t, err)

		require.NoError(t, f.svc.Delete(ctx, "alice", created.ID))

		page, err := f.svc.List(ctx, "alice", 1, 10)
		require.NoError(t, err)
		assert.Empty(t, page.Items)

		assert.Contains(t, f.auditActions(t), audit.ActionDelete)
	})

	t.Run("NonAuthorForbidden", func(t *testing.T) {
		f := newFixture(t)
		f.acquire(t, "alice")

		created, err := f.svc.Create(ctx, "alice", "keep")
		require.NoError(t, err)
		_, err = f.lock.Release("alice")
		require.NoError(t, err)
		f.acquire(t, "bob")

		assert.ErrorIs(t, f.svc.Delete(ctx, "bob", created.ID), ErrForbidden)
	})

	t.Run("MissingMessage", func(t *testing.T) {
		f := newFixture(t)
		f.acquire(t, "alice")

		assert.ErrorIs(t, f.svc.Delete(ctx, "alice", 999), store.ErrNotFound)
	})

	t.Run("PublishesDeletedEvent", func(t *testing.T) {
		f := newFixture(t)
		f.acquire(t, "alice")

		created, err := f.svc.Create(ctx, "alice", "to delete")
		require.NoError(t, err)

		sub := f.bus.Subscribe()
		defer sub.Close()
		_, err = sub.Next(ctx) // snapshot
		require.NoError(t, err)

		require.NoError(t, f.svc.Delete(ctx, "alice", created.ID))

		ev, err := sub.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, bus.EventMessageDeleted, ev.Type)
		require.NotNil(t, ev.Message)
		assert.Equal(t, created.ID, ev.Message.ID)
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, f *fixture, n int) {
		t.Helper()
		f.acquire(t, "alice")
		for i := 1; i <= n; i++ {
			_, err := f.svc.Create(ctx, "alice", fmt.Sprintf("msg %d", i))
			require.NoError(t, err)
		}
	}

	t.Run("NewestFirstWithDefaults", func(t *testing.T) {
		f := newFixture(t)
		seed(t, f, 3)

		page, err := f.svc.List(ctx, "bob", DefaultPage, DefaultLimit)
		require.NoError(t, err)
		assert.Equal(t, DefaultPage, page.Page)
		assert.Equal(t, DefaultLimit, page.Limit)
		assert.Equal(t, int64(3), page.Total)
		assert.False(t, page.HasMore)
		require.Len(t, page.Items, 3)
		assert.Equal(t, "msg 3", page.Items[0].Body)
		assert.Equal(t, "msg 1", page.Items[2].Body)
	})

	t.Run("Paginates", func(t *testing.T) {
		f := newFixture(t)
		seed(t, f, 5)

		page1, err := f.svc.List(ctx, "bob", 1, 2)
		require.NoError(t, err)
		assert.True(t, page1.HasMore)
		require.Len(t, page1.Items, 2)
		assert.Equal(t, "msg 5", page1.Items[0].Body)

		page3, err := f.svc.List(ctx, "bob", 3, 2)
		require.NoError(t, err)
		assert.False(t, page3.HasMore)
		require.Len(t, page3.Items, 1)
		assert.Equal(t, "msg 1", page3.Items[0].Body)
	})

	t.Run("ValidatesPagination", func(t *testing.T) {
		f := newFixture(t)

		tests := []struct {
			name    string
			page    int
			limit   int
			wantErr error
		}{
			{"PageZero", 0, 10, ErrInvalidPage},
			{"NegativePage", -1, 10, ErrInvalidPage},
			{"PageTooLarge", 1001, 10, ErrInvalidPage},
			{"LimitZero", 1, 0, ErrInvalidLimit},
			{"LimitTooLarge", 1, 101, ErrInvalidLimit},
			{"UpperBounds", 1000, 100, nil},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.List(ctx, "bob", tt.page, tt.limit)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.NoError(t, err)
				}
			})
		}
	})

	t.Run("RecordsReadOnTrail", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.List(ctx, "bob", 1, 10)
		require.NoError(t, err)

		assert.Contains(t, f.auditActions(t), audit.ActionRead)
	})

	t.Run("ReadsDoNotRequireLock", func(t *testing.T) {
		f := newFixture(t)
		seed(t, f, 1)

		// Lock held by alice; bob can still read.
		_, err := f.svc.List(ctx, "bob", 1, 10)
		assert.NoError(t, err)
	})
}

func TestAuditCarriesLockValue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.acquire(t, "alice")

	_, err := f.svc.Create(ctx, "alice", "hello")
	require.NoError(t, err)

	entries, _, err := f.audit.List(ctx, 0, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionCreate, entries[0].Action)
	// Lock still held at append time.
	assert.Equal(t, 0, entries[0].LockValue)
}

func TestMutationOrderUnderContention(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.acquire(t, "alice")

	var lastID int64
	for i := 0; i < 20; i++ {
		msg, err := f.svc.Create(ctx, "alice", "hello")
		require.NoError(t, err)
		assert.Greater(t, msg.ID, lastID)
		lastID = msg.ID
	}
}
