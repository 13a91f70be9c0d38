// Package identity manages user accounts, credential verification and
// login lockout for the chat service.
package identity

import (
	"regexp"
	"time"
)

// Role identifies the privilege level of an account.
type Role string

const (
	// RoleReader may read messages and watch the event stream.
	RoleReader Role = "reader"
	// RoleWriter may additionally acquire the writer lock and mutate
	// the message log.
	RoleWriter Role = "writer"
	// RoleAdmin may additionally toggle the writer gate, force-release
	// the lock and read the audit trail.
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleReader || r == RoleWriter || r == RoleAdmin
}

// CanWrite reports whether the role may hold the writer lock.
func (r Role) CanWrite() bool {
	return r == RoleWriter || r == RoleAdmin
}

// User is the public view of an account. Password material never leaves
// the registry.
type User struct {
	Username    string    `json:"username"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	LastLoginAt time.Time `json:"last_login_at,omitzero"`
}

// Username and password policy.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 6
	MaxPasswordLength = 128
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateUsername checks the username against the account policy.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return ErrInvalidUsername
	}
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidatePassword checks the password against the account policy.
// Passwords must carry at least one letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return ErrInvalidPassword
	}
	var hasLetter, hasDigit bool
	for _, c := range password {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			hasLetter = true
		case c >= '0' && c <= '9':
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return ErrInvalidPassword
	}
	return nil
}
