package identity

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidUsername indicates the username violates the account policy.
	ErrInvalidUsername = errors.New("username must be 3-50 characters of letters, digits, underscore or hyphen")

	// ErrInvalidPassword indicates the password violates the account policy.
	ErrInvalidPassword = errors.New("password must be 6-128 characters with at least one letter and one digit")

	// ErrInvalidRole indicates an unknown role name.
	ErrInvalidRole = errors.New("role must be one of reader, writer, admin")

	// ErrUsernameTaken indicates an account with that username already exists.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrUserNotFound indicates no account exists with that username.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials indicates the username/password pair did not verify.
	// The same error is returned for unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// LockedError is returned when an account is locked out after repeated
// failed logins. Triggered is true on the attempt that caused the lock,
// so callers can record the lockout exactly once.
type LockedError struct {
	Username  string
	Until     time.Time
	Triggered bool
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account %q locked until %s", e.Username, e.Until.Format(time.RFC3339))
}

// Unwrap exposes the triggering attempt as a plain credential failure:
// the wrong password is answered like any other wrong password, and
// the caller learns about the lock on the next attempt.
func (e *LockedError) Unwrap() error {
	if e.Triggered {
		return ErrInvalidCredentials
	}
	return nil
}

// RetryAfter returns how long the caller should wait before retrying.
func (e *LockedError) RetryAfter(now time.Time) time.Duration {
	d := e.Until.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
