// Package session issues and verifies the bearer tokens that
// authenticate every command after login.
package session

import (
	"errors"
	"time"

	"github.com/podium-chat/podium/pkg/identity"
)

var (
	// ErrInvalidToken indicates the token is malformed, has a bad
	// signature, or was not issued by this service.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token was valid but has expired.
	ErrExpiredToken = errors.New("token expired")

	// ErrRoleMismatch indicates the role baked into the token no longer
	// matches the account's current role.
	ErrRoleMismatch = errors.New("token role does not match account role")
)

// Claims is the verified content of a session token.
type Claims struct {
	Username  string
	Role      identity.Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenSigner issues and verifies session tokens. The JWT
// implementation lives in this package; tests may substitute a stub.
type TokenSigner interface {
	// Sign issues a token for the user.
	Sign(user identity.User) (string, Claims, error)

	// Verify checks the token and returns its claims. It returns
	// ErrExpiredToken for expired tokens and ErrInvalidToken for
	// anything else that fails verification.
	Verify(token string) (Claims, error)
}
