package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podium-chat/podium/pkg/identity"
)

const testSecret = "test-secret-at-least-32-characters!!"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestSigner(t *testing.T) (*JWTSigner, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	signer, err := NewJWTSigner(JWTConfig{
		Secret: testSecret,
		Now:    clock.Now,
	})
	require.NoError(t, err)
	return signer, clock
}

func testUser() identity.User {
	return identity.User{Username: "alice", Role: identity.RoleWriter}
}

func TestNewJWTSigner(t *testing.T) {
	t.Run("RejectsShortSecret", func(t *testing.T) {
		_, err := NewJWTSigner(JWTConfig{Secret: "too-short"})
		assert.Error(t, err)
	})

	t.Run("AppliesDefaults", func(t *testing.T) {
		signer, err := NewJWTSigner(JWTConfig{Secret: testSecret})
		require.NoError(t, err)
		assert.Equal(t, DefaultIssuer, signer.issuer)
		assert.Equal(t, DefaultTokenDuration, signer.duration)
	})
}

func TestSignAndVerify(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		signer, clock := newTestSigner(t)

		token, issued, err := signer.Sign(testUser())
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.NotEmpty(t, issued.TokenID)

		claims, err := signer.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "alice", claims.Username)
		assert.Equal(t, identity.RoleWriter, claims.Role)
		assert.Equal(t, issued.TokenID, claims.TokenID)
		assert.Equal(t, clock.Now().Add(DefaultTokenDuration), claims.ExpiresAt)
	})

	t.Run("TokenIDsAreUnique", func(t *testing.T) {
		signer, _ := newTestSigner(t)

		_, a, err := signer.Sign(testUser())
		require.NoError(t, err)
		_, b, err := signer.Sign(testUser())
		require.NoError(t, err)
		assert.NotEqual(t, a.TokenID, b.TokenID)
	})

	t.Run("ExpiredTokenRejected", func(t *testing.T) {
		signer, clock := newTestSigner(t)

		token, _, err := signer.Sign(testUser())
		require.NoError(t, err)

		clock.Advance(DefaultTokenDuration + time.Minute)

		_, err = signer.Verify(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("TokenValidJustBeforeExpiry", func(t *testing.T) {
		signer, clock := newTestSigner(t)

		token, _, err := signer.Sign(testUser())
		require.NoError(t, err)

		clock.Advance(DefaultTokenDuration - time.Second)

		_, err = signer.Verify(token)
		assert.NoError(t, err)
	})

	t.Run("WrongSecretRejected", func(t *testing.T) {
		signer, _ := newTestSigner(t)
		other, err := NewJWTSigner(JWTConfig{Secret: "another-secret-at-least-32-chars!!!!"})
		require.NoError(t, err)

		token, _, err := signer.Sign(testUser())
		require.NoError(t, err)

		_, err = other.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("GarbageTokenRejected", func(t *testing.T) {
		signer, _ := newTestSigner(t)

		_, err := signer.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("TamperedTokenRejected", func(t *testing.T) {
		signer, _ := newTestSigner(t)

		token, _, err := signer.Sign(testUser())
		require.NoError(t, err)

		tampered := token[:len(token)-4] + "AAAA"
		_, err = signer.Verify(tampered)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("WrongIssuerRejected", func(t *testing.T) {
		signer, _ := newTestSigner(t)
		other, err := NewJWTSigner(JWTConfig{Secret: testSecret, Issuer: "someone-else"})
		require.NoError(t, err)

		token, _, err := other.Sign(testUser())
		require.NoError(t, err)

		_, err = signer.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestAuthority(t *testing.T) {
	newRegistry := func(t *testing.T) *identity.Registry {
		t.Helper()
		reg, err := identity.NewRegistry(identity.RegistryConfig{
			Hasher: plainTestHasher{},
		})
		require.NoError(t, err)
		return reg
	}

	t.Run("LoginIssuesVerifiableToken", func(t *testing.T) {
		signer, _ := newTestSigner(t)
		reg := newRegistry(t)
		_, err := reg.Register("alice", "secret1", identity.RoleWriter)
		require.NoError(t, err)

		auth := NewAuthority(signer, reg)

		token, issued, err := auth.Login("alice", "secret1")
		require.NoError(t, err)
		assert.Equal(t, "alice", issued.Username)

		claims, err := auth.Authenticate(token)
		require.NoError(t, err)
		assert.Equal(t, "alice", claims.Username)
		assert.Equal(t, identity.RoleWriter, claims.Role)
	})

	t.Run("LoginRejectsBadCredentials", func(t *testing.T) {
		signer, _ := newTestSigner(t)
		reg := newRegistry(t)
		_, err := reg.Register("alice", "secret1", identity.RoleWriter)
		require.NoError(t, err)

		auth := NewAuthority(signer, reg)

		_, _, err = auth.Login("alice", "wrong99")
		assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
	})

	t.Run("TokenForUnknownAccountRejected", func(t *testing.T) {
		signer, _ := newTestSigner(t)
		reg := newRegistry(t)
		auth := NewAuthority(signer, reg)

		// Token signed for a user that was never registered here.
		token, _, err := signer.Sign(testUser())
		require.NoError(t, err)

		_, err = auth.Authenticate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("RoleMismatchRejected", func(t *testing.T) {
		signer, _ := newTestSigner(t)
		reg := newRegistry(t)
		_, _, err := reg.EnsureAdmin("alice", "secret1")
		require.NoError(t, err)

		auth := NewAuthority(signer, reg)

		// Token carries RoleWriter but the account is now an admin.
		token, _, err := signer.Sign(identity.User{Username: "alice", Role: identity.RoleWriter})
		require.NoError(t, err)

		_, err = auth.Authenticate(token)
		assert.ErrorIs(t, err, ErrRoleMismatch)
	})
}

// plainTestHasher avoids bcrypt cost in authority tests.
type plainTestHasher struct{}

func (plainTestHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainTestHasher) Verify(hash, password string) error {
	if hash == "plain:"+password {
		return nil
	}
	return assert.AnError
}
