package session

import (
	"errors"

	"github.com/podium-chat/podium/pkg/identity"
)

// Authority ties token verification to the account registry. A token
// is only as good as the account behind it: the account must still
// exist and its role must match the role the token was issued with.
type Authority struct {
	signer   TokenSigner
	registry *identity.Registry
}

// NewAuthority creates an Authority.
func NewAuthority(signer TokenSigner, registry *identity.Registry) *Authority {
	return &Authority{signer: signer, registry: registry}
}

// Login verifies credentials and issues a session token.
func (a *Authority) Login(username, password string) (string, Claims, error) {
	user, err := a.registry.Authenticate(username, password)
	if err != nil {
		return "", Claims{}, err
	}
	return a.signer.Sign(user)
}

// Authenticate verifies a token and re-checks the account it names.
func (a *Authority) Authenticate(token string) (Claims, error) {
	claims, err := a.signer.Verify(token)
	if err != nil {
		return Claims{}, err
	}

	user, err := a.registry.Lookup(claims.Username)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			// Account vanished since the token was issued.
			return Claims{}, ErrInvalidToken
		}
		return Claims{}, err
	}
	if user.Role != claims.Role {
		return Claims{}, ErrRoleMismatch
	}

	return claims, nil
}
