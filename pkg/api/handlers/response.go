package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/podium-chat/podium/pkg/identity"
	"github.com/podium-chat/podium/pkg/message"
	"github.com/podium-chat/podium/pkg/semaphore"
	"github.com/podium-chat/podium/pkg/session"
	"github.com/podium-chat/podium/pkg/store"
)

// Error kinds carried on the wire. The set is closed; handlers map
// every component error onto one of these.
const (
	KindInvalidInput       = "invalid-input"
	KindInvalidCredentials = "invalid-credentials"
	KindAccountLocked      = "account-locked"
	KindTokenExpired       = "token-expired"
	KindTokenInvalid       = "token-invalid"
	KindRoleMismatch       = "role-mismatch"
	KindForbidden          = "forbidden"
	KindSemUnavailable     = "semaphore-unavailable"
	KindSemNotHeld         = "semaphore-not-held"
	KindWriterDisabled     = "writer-disabled"
	KindNotFound           = "not-found"
	KindStoreError         = "store-error"
	KindTimeout            = "timeout"
	KindRateLimited        = "rate-limited"
	KindInternal           = "internal"
)

// ErrorBody is the error half of the response envelope.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`

	// RetryAfter is a hint in seconds, present on retryable errors and
	// account lockouts.
	RetryAfter int64 `json:"retry_after,omitempty"`

	// Holder names the current lock holder on semaphore-unavailable,
	// so clients can show who is writing.
	Holder string `json:"holder,omitempty"`
}

// Envelope is the uniform response wrapper for every command.
type Envelope struct {
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"ok":false,"error":{"kind":"internal","message":"failed to encode response"}}`, http.StatusInternalServerError)
	}
}

// WriteOK writes a success envelope with status 200.
func WriteOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Envelope{OK: true, Data: data})
}

// WriteCreated writes a success envelope with status 201.
func WriteCreated(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, Envelope{OK: true, Data: data})
}

// WriteErrorBody writes a failure envelope.
func WriteErrorBody(w http.ResponseWriter, status int, body ErrorBody) {
	writeJSON(w, status, Envelope{OK: false, Error: &body})
}

// WriteKind writes a failure envelope with just a kind and message.
func WriteKind(w http.ResponseWriter, status int, kind, message string) {
	WriteErrorBody(w, status, ErrorBody{Kind: kind, Message: message})
}

// WriteError maps a component error onto the wire taxonomy. Unknown
// errors become `internal` with a redacted message; the detail stays in
// server logs only.
func WriteError(w http.ResponseWriter, err error) {
	if status, body, ok := classify(err); ok {
		WriteErrorBody(w, status, body)
		return
	}
	WriteKind(w, http.StatusInternalServerError, KindInternal, "internal error")
}

// WriteStoreError is WriteError with a store-error fallback, used on
// paths whose unknown failures are store failures by construction.
func WriteStoreError(w http.ResponseWriter, err error) {
	if status, body, ok := classify(err); ok {
		WriteErrorBody(w, status, body)
		return
	}
	WriteKind(w, http.StatusInternalServerError, KindStoreError, "storage failure")
}

func classify(err error) (int, ErrorBody, bool) {
	var locked *identity.LockedError
	var held *semaphore.HeldError

	switch {
	case errors.Is(err, identity.ErrInvalidUsername),
		errors.Is(err, identity.ErrInvalidPassword),
		errors.Is(err, identity.ErrInvalidRole),
		errors.Is(err, message.ErrInvalidBody),
		errors.Is(err, message.ErrInvalidPage),
		errors.Is(err, message.ErrInvalidLimit):
		return http.StatusBadRequest, ErrorBody{Kind: KindInvalidInput, Message: err.Error()}, true

	case errors.Is(err, identity.ErrUsernameTaken):
		return http.StatusConflict, ErrorBody{Kind: KindInvalidInput, Message: err.Error()}, true

	case errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorBody{Kind: KindInvalidCredentials, Message: "invalid username or password"}, true

	case errors.As(err, &locked):
		return http.StatusForbidden, ErrorBody{
			Kind:       KindAccountLocked,
			Message:    "account temporarily locked",
			RetryAfter: retryAfterSeconds(locked.RetryAfter(time.Now())),
		}, true

	case errors.Is(err, session.ErrExpiredToken):
		return http.StatusUnauthorized, ErrorBody{Kind: KindTokenExpired, Message: "token has expired"}, true

	case errors.Is(err, session.ErrInvalidToken):
		return http.StatusUnauthorized, ErrorBody{Kind: KindTokenInvalid, Message: "token is invalid"}, true

	case errors.Is(err, session.ErrRoleMismatch):
		return http.StatusUnauthorized, ErrorBody{Kind: KindRoleMismatch, Message: "token role no longer matches account"}, true

	case errors.Is(err, message.ErrForbidden):
		return http.StatusForbidden, ErrorBody{Kind: KindForbidden, Message: err.Error()}, true

	case errors.As(err, &held):
		return http.StatusConflict, ErrorBody{
			Kind:       KindSemUnavailable,
			Message:    "writer lock is held",
			RetryAfter: 1,
			Holder:     held.Holder,
		}, true

	case errors.Is(err, semaphore.ErrNotHeld):
		return http.StatusConflict, ErrorBody{Kind: KindSemNotHeld, Message: "caller does not hold the writer lock"}, true

	case errors.Is(err, semaphore.ErrDisabled):
		return http.StatusConflict, ErrorBody{Kind: KindWriterDisabled, Message: "writer lock is disabled"}, true

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, ErrorBody{Kind: KindNotFound, Message: "not found"}, true

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorBody{Kind: KindTimeout, Message: "operation timed out"}, true
	}

	return 0, ErrorBody{}, false
}

func retryAfterSeconds(d time.Duration) int64 {
	secs := int64(d.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}
