package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/podium-chat/podium/pkg/identity"
)

// Token issuing defaults.
const (
	DefaultTokenDuration = time.Hour
	DefaultIssuer        = "podium"

	// MinSecretLength is the minimum signing secret length in bytes.
	MinSecretLength = 32
)

// JWTConfig holds the JWT signer configuration.
type JWTConfig struct {
	// Secret is the HMAC signing secret. Must be at least
	// MinSecretLength bytes.
	Secret string

	// Issuer is the token issuer claim. Empty selects DefaultIssuer.
	Issuer string

	// TokenDuration is the token lifetime. Zero selects
	// DefaultTokenDuration.
	TokenDuration time.Duration

	// Now is the clock, overridable in tests. Nil selects time.Now.
	Now func() time.Time
}

// JWTSigner issues and verifies HS256 session tokens.
type JWTSigner struct {
	secret   []byte
	issuer   string
	duration time.Duration
	now      func() time.Time
}

// jwtClaims is the on-wire claim set.
type jwtClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// NewJWTSigner creates a JWT signer from the given configuration.
func NewJWTSigner(cfg JWTConfig) (*JWTSigner, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d characters", MinSecretLength)
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.TokenDuration <= 0 {
		cfg.TokenDuration = DefaultTokenDuration
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &JWTSigner{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		duration: cfg.TokenDuration,
		now:      cfg.Now,
	}, nil
}

// Sign issues a token for the user.
func (s *JWTSigner) Sign(user identity.User) (string, Claims, error) {
	now := s.now().UTC()
	expires := now.Add(s.duration)
	tokenID := uuid.New().String()

	claims := jwtClaims{
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Issuer:    s.issuer,
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, Claims{
		Username:  user.Username,
		Role:      user.Role,
		TokenID:   tokenID,
		IssuedAt:  now,
		ExpiresAt: expires,
	}, nil
}

// Verify checks the token signature and claims.
func (s *JWTSigner) Verify(tokenString string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)

	var claims jwtClaims
	token, err := parser.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, ErrInvalidToken
	}
	if !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	role := identity.Role(claims.Role)
	if claims.Username == "" || !role.Valid() {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		Username: claims.Username,
		Role:     role,
		TokenID:  claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
