// Package message owns the shared message log. Every mutation is
// gated on writer lock ownership and leaves an audit entry and a bus
// event behind; reads run concurrently and never touch the lock.
package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/podium-chat/podium/internal/logger"
	"github.com/podium-chat/podium/pkg/audit"
	"github.com/podium-chat/podium/pkg/bus"
	"github.com/podium-chat/podium/pkg/semaphore"
	"github.com/podium-chat/podium/pkg/store"
)

// Message body policy.
const (
	MinBodyLength = 1
	MaxBodyLength = 2000
)

// Pagination policy.
const (
	DefaultPage  = 1
	DefaultLimit = 50
	MaxPage      = 1000
	MaxLimit     = 100
)

var (
	// ErrInvalidBody indicates the body violates the length policy.
	ErrInvalidBody = errors.New("message body must be 1-2000 characters")

	// ErrForbidden indicates the caller is not the author of the
	// message it tried to modify.
	ErrForbidden = errors.New("only the author may modify a message")

	// ErrInvalidPage and ErrInvalidLimit indicate pagination parameters
	// outside the accepted ranges.
	ErrInvalidPage  = errors.New("page must be between 1 and 1000")
	ErrInvalidLimit = errors.New("limit must be between 1 and 100")
)

// Config configures a Service.
type Config struct {
	// Store persists messages. Required.
	Store store.Store

	// Lock is the writer lock gating mutations. Required.
	Lock *semaphore.Semaphore

	// Audit receives an entry for every committed operation. Required.
	Audit *audit.Log

	// Bus receives an event for every committed mutation. Optional.
	Bus *bus.Bus

	// Now is the clock, overridable in tests. Nil selects time.Now.
	Now func() time.Time
}

// Page is one page of the message log, newest first.
type Page struct {
	Items   []store.Message `json:"items"`
	Page    int             `json:"page"`
	Limit   int             `json:"limit"`
	Total   int64           `json:"total"`
	HasMore bool            `json:"has_more"`
}

// Service coordinates message mutations. All methods are safe for
// concurrent use.
type Service struct {
	store store.Store
	lock  *semaphore.Semaphore
	audit *audit.Log
	bus   *bus.Bus
	now   func() time.Time

	// mu serializes mutations so audit entries and bus events are
	// appended in commit order. Reads do not take it.
	mu sync.Mutex
}

// NewService creates a message service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("message: store is required")
	}
	if cfg.Lock == nil {
		return nil, errors.New("message: writer lock is required")
	}
	if cfg.Audit == nil {
		return nil, errors.New("message: audit log is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store: cfg.Store,
		lock:  cfg.Lock,
		audit: cfg.Audit,
		bus:   cfg.Bus,
		now:   cfg.Now,
	}, nil
}

// ValidateBody checks a message body against the content policy: not
// blank after trimming, and at most MaxBodyLength characters. Length
// counts characters, not bytes, so multibyte text is not shortchanged.
func ValidateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrInvalidBody
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return ErrInvalidBody
	}
	return nil
}

// Create appends a message authored by username. The caller must hold
// the writer lock.
func (s *Service) Create(ctx context.Context, username, body string) (store.Message, error) {
	if err := ValidateBody(body); err != nil {
		return store.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Ownership is checked inside the serialized section: a concurrent
	// force-release cannot slip between the check and the commit.
	if err := s.lock.CheckOwner(username); err != nil {
		return store.Message{}, err
	}

	now := s.now().UTC()
	id, err := s.store.PutMessage(ctx, username, body, now)
	if err != nil {
		return store.Message{}, err
	}

	s.appendAudit(ctx, audit.ActionCreate, username, body, 0)
	if s.bus != nil {
		s.bus.PublishMessage(bus.EventMessageCreated, bus.MessageRef{ID: id, Author: username, Body: body})
	}

	logger.Info("message created",
		logger.KeyMessageID, id,
		logger.KeyUsername, username)

	return store.Message{ID: id, Author: username, Body: body, CreatedAt: now, UpdatedAt: now}, nil
}

// Update replaces the body of a message. The caller must hold the
// writer lock and be the message's author.
func (s *Service) Update(ctx context.Context, username string, id int64, body string) (store.Message, error) {
	if err := ValidateBody(body); err != nil {
		return store.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.CheckOwner(username); err != nil {
		return store.Message{}, err
	}

	author, err := s.store.GetMessageAuthor(ctx, id)
	if err != nil {
		return store.Message{}, err
	}
	if author != username {
		return store.Message{}, ErrForbidden
	}

	now := s.now().UTC()
	if err := s.store.UpdateMessage(ctx, id, body, now); err != nil {
		return store.Message{}, err
	}

	s.appendAudit(ctx, audit.ActionUpdate, username, fmt.Sprintf("id=%d %s", id, body), 0)
	if s.bus != nil {
		s.bus.PublishMessage(bus.EventMessageUpdated, bus.MessageRef{ID: id, Author: author, Body: body})
	}

	logger.Info("message updated",
		logger.KeyMessageID, id,
		logger.KeyUsername, username)

	return store.Message{ID: id, Author: author, Body: body, UpdatedAt: now}, nil
}

// Delete removes a message. The caller must hold the writer lock and
// be the message's author.
func (s *Service) Delete(ctx context.Context, username string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.CheckOwner(username); err != nil {
		return err
	}

	author, err := s.store.GetMessageAuthor(ctx, id)
	if err != nil {
		return err
	}
	if author != username {
		return ErrForbidden
	}

	if err := s.store.DeleteMessage(ctx, id); err != nil {
		return err
	}

	s.appendAudit(ctx, audit.ActionDelete, username, fmt.Sprintf("id=%d", id), 0)
	if s.bus != nil {
		s.bus.PublishMessage(bus.EventMessageDeleted, bus.MessageRef{ID: id})
	}

	logger.Info("message deleted",
		logger.KeyMessageID, id,
		logger.KeyUsername, username)

	return nil
}

// List returns one page of the message log, newest first. Callers
// apply DefaultPage and DefaultLimit for absent parameters; List
// rejects anything outside the accepted ranges, including zero. The
// read is recorded on the audit trail but does not consult the writer
// lock.
func (s *Service) List(ctx context.Context, username string, page, limit int) (Page, error) {
	if page < 1 || page > MaxPage {
		return Page{}, ErrInvalidPage
	}
	if limit < 1 || limit > MaxLimit {
		return Page{}, ErrInvalidLimit
	}

	offset := (page - 1) * limit
	items, total, err := s.store.ListMessages(ctx, offset, limit)
	if err != nil {
		return Page{}, err
	}

	s.appendAudit(ctx, audit.ActionRead, username, fmt.Sprintf("page=%d limit=%d", page, limit), s.lock.Status().Value())

	return Page{
		Items:   items,
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasMore: int64(page*limit) < total,
	}, nil
}

// appendAudit records a committed operation. Mutations pass the lock
// value validated inside their serialized section rather than
// re-reading it, so a release racing the commit cannot stamp the entry
// with a free lock. The audit log degrades internally on store
// failure, so a non-nil error only occurs in strict mode and is logged
// rather than rolling back the mutation.
func (s *Service) appendAudit(ctx context.Context, action, username, content string, lockValue int) {
	_, err := s.audit.Append(ctx, audit.Entry{
		Action:    action,
		Username:  username,
		Content:   content,
		LockValue: lockValue,
	})
	if err != nil {
		logger.Error("audit append failed",
			logger.KeyAction, action,
			logger.KeyError, err.Error())
	}
}
