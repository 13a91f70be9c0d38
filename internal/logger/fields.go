package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so the logs
// stay queryable after aggregation.
const (
	// ========================================================================
	// Request & Session
	// ========================================================================
	KeyRequestID = "request_id" // Per-request correlation ID
	KeyCommand   = "command"    // Command name: TRY_ACQUIRE, CREATE, LIST, etc.
	KeyUsername  = "username"   // Authenticated caller
	KeyRole      = "role"       // Caller role: reader, writer, admin
	KeyTokenID   = "token_id"   // Session token ID
	KeyClientIP  = "client_ip"  // Client IP address

	// ========================================================================
	// Writer Lock
	// ========================================================================
	KeyHolder  = "holder"  // Current writer lock holder
	KeyEnabled = "enabled" // Writer lock enabled flag
	KeyReason  = "reason"  // Release reason: client, admin, client-gone, shutdown

	// ========================================================================
	// Messages & Audit
	// ========================================================================
	KeyMessageID = "message_id" // Message identifier
	KeyAuditID   = "audit_id"   // Audit entry identifier
	KeyAction    = "action"     // Audit action name
	KeyPage      = "page"       // Requested page
	KeyLimit     = "limit"      // Requested page size
	KeyCount     = "count"      // Result count

	// ========================================================================
	// Event Stream
	// ========================================================================
	KeySubscriptionID = "subscription_id" // Event subscription identifier
	KeyEventType      = "event_type"      // Event type name
	KeyDropped        = "dropped"         // Events dropped from a queue

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyStoreType  = "store_type"  // Store backend: sqlite, postgres, badger
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// RequestID returns a slog.Attr for the per-request correlation ID
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// Command returns a slog.Attr for the command name
func Command(name string) slog.Attr {
	return slog.String(KeyCommand, name)
}

// Username returns a slog.Attr for the authenticated caller
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// Role returns a slog.Attr for the caller role
func Role(role string) slog.Attr {
	return slog.String(KeyRole, role)
}

// ClientIP returns a slog.Attr for the client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Holder returns a slog.Attr for the current writer lock holder
func Holder(name string) slog.Attr {
	return slog.String(KeyHolder, name)
}

// Enabled returns a slog.Attr for the writer lock enabled flag
func Enabled(on bool) slog.Attr {
	return slog.Bool(KeyEnabled, on)
}

// Reason returns a slog.Attr for a release reason
func Reason(reason string) slog.Attr {
	return slog.String(KeyReason, reason)
}

// MessageID returns a slog.Attr for a message identifier
func MessageID(id int64) slog.Attr {
	return slog.Int64(KeyMessageID, id)
}

// AuditID returns a slog.Attr for an audit entry identifier
func AuditID(id int64) slog.Attr {
	return slog.Int64(KeyAuditID, id)
}

// Action returns a slog.Attr for an audit action name
func Action(action string) slog.Attr {
	return slog.String(KeyAction, action)
}

// Count returns a slog.Attr for a result count
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

// SubscriptionID returns a slog.Attr for an event subscription identifier
func SubscriptionID(id string) slog.Attr {
	return slog.String(KeySubscriptionID, id)
}

// EventType returns a slog.Attr for an event type name
func EventType(t string) slog.Attr {
	return slog.String(KeyEventType, t)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// StoreType returns a slog.Attr for the store backend name
func StoreType(t string) slog.Attr {
	return slog.String(KeyStoreType, t)
}
