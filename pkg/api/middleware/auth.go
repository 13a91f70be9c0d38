// Package middleware provides HTTP middleware for the command API.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/podium-chat/podium/internal/logger"
	"github.com/podium-chat/podium/pkg/identity"
	"github.com/podium-chat/podium/pkg/session"
)

// Context key type for storing claims
type contextKey string

const claimsContextKey contextKey = "claims"

// GetClaimsFromContext retrieves session claims from the request
// context. Returns nil outside routes wrapped by Auth.
func GetClaimsFromContext(ctx context.Context) *session.Claims {
	claims, ok := ctx.Value(claimsContextKey).(*session.Claims)
	if !ok {
		return nil
	}
	return claims
}

// extractBearerToken extracts the token from a Bearer Authorization header.
// Returns the token string and true if successful, or empty string and false if not.
func extractBearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	return parts[1], true
}

// Auth validates the bearer token and stores the resolved claims in
// the request context. onAuthenticated, if non-nil, is called with the
// caller's username on every authenticated request; the presence
// tracker hangs off it.
func Auth(authority *session.Authority, onAuthenticated func(username string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "token-invalid", "authorization header required")
				return
			}

			claims, err := authority.Authenticate(token)
			if err != nil {
				switch {
				case errors.Is(err, session.ErrExpiredToken):
					writeError(w, http.StatusUnauthorized, "token-expired", "token has expired")
				case errors.Is(err, session.ErrRoleMismatch):
					writeError(w, http.StatusUnauthorized, "role-mismatch", "token role no longer matches account")
				default:
					writeError(w, http.StatusUnauthorized, "token-invalid", "token is invalid")
				}
				return
			}

			if onAuthenticated != nil {
				onAuthenticated(claims.Username)
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, &claims)
			if lc := logger.FromContext(ctx); lc != nil {
				ctx = logger.WithContext(ctx, lc.WithCaller(claims.Username, string(claims.Role), claims.TokenID))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireWriter blocks callers whose role cannot hold the writer lock.
// Must be used after Auth.
func RequireWriter() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "token-invalid", "authentication required")
				return
			}
			if !claims.Role.CanWrite() {
				writeError(w, http.StatusForbidden, "forbidden", "writer role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin blocks non-admin callers. Must be used after Auth.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "token-invalid", "authentication required")
				return
			}
			if claims.Role != identity.RoleAdmin {
				writeError(w, http.StatusForbidden, "forbidden", "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes a failure envelope. Kept local so the middleware
// does not depend on the handlers package.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":    false,
		"error": map[string]string{"kind": kind, "message": message},
	})
}
