package credentials

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextIsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		expected  bool
	}{
		{
			name:      "expired in past",
			expiresAt: time.Now().Add(-1 * time.Hour),
			expected:  true,
		},
		{
			name:      "expires soon (within 60s)",
			expiresAt: time.Now().Add(30 * time.Second),
			expected:  true,
		},
		{
			name:      "not expired",
			expiresAt: time.Now().Add(2 * time.Hour),
			expected:  false,
		},
		{
			name:      "zero time is expired",
			expiresAt: time.Time{},
			expected:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &Context{ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.expected, ctx.IsExpired())
		})
	}
}

func TestStoreOperations(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	store, err := NewStore()
	require.NoError(t, err)
	assert.NotNil(t, store)

	expectedPath := filepath.Join(tmpDir, DefaultConfigDir, ConfigFileName)
	assert.Equal(t, expectedPath, store.ConfigPath())

	// Empty state.
	_, err = store.GetCurrentContext()
	assert.ErrorIs(t, err, ErrNoCurrentContext)
	assert.Empty(t, store.ListContexts())

	ctx1 := &Context{
		ServerURL: "http://localhost:8080",
		Username:  "admin",
		Token:     "token1",
		ExpiresAt: time.Now().Add(1 * time.Hour),
	}
	require.NoError(t, store.SetContext("default", ctx1))
	require.NoError(t, store.UseContext("default"))

	current, err := store.GetCurrentContext()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", current.ServerURL)
	assert.Equal(t, "admin", current.Username)

	ctx2 := &Context{
		ServerURL: "http://production:8080",
		Username:  "prod-admin",
	}
	require.NoError(t, store.SetContext("production", ctx2))

	contexts := store.ListContexts()
	assert.Len(t, contexts, 2)
	assert.Contains(t, contexts, "default")
	assert.Contains(t, contexts, "production")

	require.NoError(t, store.UseContext("production"))
	assert.Equal(t, "production", store.GetCurrentContextName())

	require.NoError(t, store.RenameContext("production", "prod"))
	assert.Equal(t, "prod", store.GetCurrentContextName())

	require.NoError(t, store.DeleteContext("prod"))
	assert.Empty(t, store.GetCurrentContextName())

	_, err = store.GetContext("nonexistent")
	assert.ErrorIs(t, err, ErrContextNotFound)

	err = store.UseContext("nonexistent")
	assert.ErrorIs(t, err, ErrContextNotFound)
}

func TestStoreUpdateToken(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	store, err := NewStore()
	require.NoError(t, err)

	ctx := &Context{
		ServerURL: "http://localhost:8080",
		Username:  "admin",
		Token:     "old-token",
	}
	require.NoError(t, store.SetContext("default", ctx))
	require.NoError(t, store.UseContext("default"))

	newExpiry := time.Now().Add(2 * time.Hour)
	require.NoError(t, store.UpdateToken("new-token", newExpiry))

	current, err := store.GetCurrentContext()
	require.NoError(t, err)
	assert.Equal(t, "new-token", current.Token)
	assert.WithinDuration(t, newExpiry, current.ExpiresAt, time.Second)
}

func TestStoreClearCurrentContext(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	store, err := NewStore()
	require.NoError(t, err)

	ctx := &Context{
		ServerURL: "http://localhost:8080",
		Username:  "admin",
		Token:     "token",
		ExpiresAt: time.Now().Add(1 * time.Hour),
	}
	require.NoError(t, store.SetContext("default", ctx))
	require.NoError(t, store.UseContext("default"))

	require.NoError(t, store.ClearCurrentContext())

	// Token cleared, server and user remain for the next login.
	current, err := store.GetCurrentContext()
	require.NoError(t, err)
	assert.Empty(t, current.Token)
	assert.True(t, current.ExpiresAt.IsZero())
	assert.Equal(t, "http://localhost:8080", current.ServerURL)
	assert.Equal(t, "admin", current.Username)
}

func TestStorePreferences(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	store, err := NewStore()
	require.NoError(t, err)

	prefs := store.GetPreferences()
	assert.Empty(t, prefs.DefaultOutput)
	assert.Empty(t, prefs.Color)

	newPrefs := Preferences{
		DefaultOutput: "json",
		Color:         "auto",
	}
	require.NoError(t, store.SetPreferences(newPrefs))

	prefs = store.GetPreferences()
	assert.Equal(t, "json", prefs.DefaultOutput)
	assert.Equal(t, "auto", prefs.Color)
}
