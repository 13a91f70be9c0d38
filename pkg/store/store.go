// Package store persists messages and the audit trail.
//
// Two backends implement the Store interface: a GORM-backed SQL store
// (SQLite or PostgreSQL) and a Badger key-value store. Everything
// above this package talks to the interface only.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Message is a chat message.
type Message struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Author    string    `json:"author" gorm:"size:50;not null;index"`
	Body      string    `json:"body" gorm:"size:2000;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

// AuditEntry is one row of the append-only audit trail. LockValue
// records the writer lock state observed after the audited operation
// took effect: 0 when held, 1 when free.
type AuditEntry struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index"`
	Action    string    `json:"action" gorm:"size:32;not null;index"`
	Username  string    `json:"username" gorm:"size:50;not null;index"`
	Content   string    `json:"content" gorm:"size:2000"`
	LockValue int       `json:"lock_value" gorm:"not null"`
}

// Store is the persistence contract for messages and audit entries.
// Implementations must be safe for concurrent use.
type Store interface {
	// PutMessage inserts a message and returns its assigned ID.
	PutMessage(ctx context.Context, author, body string, createdAt time.Time) (int64, error)

	// UpdateMessage replaces the body of an existing message.
	// Returns ErrNotFound if no message has that ID.
	UpdateMessage(ctx context.Context, id int64, body string, updatedAt time.Time) error

	// DeleteMessage removes a message.
	// Returns ErrNotFound if no message has that ID.
	DeleteMessage(ctx context.Context, id int64) error

	// GetMessageAuthor returns the author of a message.
	// Returns ErrNotFound if no message has that ID.
	GetMessageAuthor(ctx context.Context, id int64) (string, error)

	// ListMessages returns a page of messages in descending ID order
	// (newest first) together with the total message count.
	ListMessages(ctx context.Context, offset, limit int) ([]Message, int64, error)

	// AppendAudit appends an entry to the audit trail and returns its
	// assigned ID. IDs are strictly increasing.
	AppendAudit(ctx context.Context, e AuditEntry) (int64, error)

	// ListAudit returns a page of audit entries in descending ID order
	// (newest first) together with the total entry count.
	ListAudit(ctx context.Context, offset, limit int) ([]AuditEntry, int64, error)

	// LastAuditID returns the highest audit entry ID, or 0 when the
	// trail is empty.
	LastAuditID(ctx context.Context) (int64, error)

	// Close releases backend resources.
	Close() error
}
