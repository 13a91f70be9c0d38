package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
)

// ============================================================================
// Database Key Namespace Design
// ============================================================================
//
// Badger is a key-value store, so prefixed keys organize the record
// types into namespaces. IDs are encoded as 8-byte big-endian integers
// after the prefix, which makes lexicographic key order equal to ID
// order and lets range scans serve the paginated list operations.
//
// Data Type      Prefix    Key Format       Value Type
// ======================================================================
// Message        "m:"      m:<id BE64>      Message (JSON)
// Audit Entry    "a:"      a:<id BE64>      AuditEntry (JSON)
// ID Counters    "seq:"    seq:msg, seq:audit   uint64 (binary)

const (
	prefixMessage = "m:"
	prefixAudit   = "a:"

	keySeqMessage = "seq:msg"
	keySeqAudit   = "seq:audit"
)

// keyMessage generates a key for message data: "m:<id>"
func keyMessage(id int64) []byte {
	return appendID([]byte(prefixMessage), id)
}

// keyAudit generates a key for audit data: "a:<id>"
func keyAudit(id int64) []byte {
	return appendID([]byte(prefixAudit), id)
}

func appendID(prefix []byte, id int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return append(prefix, buf[:]...)
}

// BadgerStore implements Store on an embedded Badger database.
//
// Writes are serialized by an internal mutex so ID allocation never
// hits transaction conflicts; reads run concurrently on Badger's MVCC
// snapshots.
type BadgerStore struct {
	db *badgerdb.DB

	// writeMu serializes Update transactions.
	writeMu sync.Mutex
}

// NewBadgerStore opens (or creates) a Badger-backed store.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create badger directory: %w", err)
	}

	opts := badgerdb.DefaultOptions(cfg.Dir)
	opts.Logger = nil // Badger's own logger is too chatty

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

// PutMessage inserts a message and returns its assigned ID.
func (s *BadgerStore) PutMessage(ctx context.Context, author, body string, createdAt time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var id int64
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		next, err := nextID(txn, keySeqMessage)
		if err != nil {
			return err
		}
		id = next

		msg := Message{
			ID:        id,
			Author:    author,
			Body:      body,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
		return txn.Set(keyMessage(id), data)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create message: %w", err)
	}
	return id, nil
}

// UpdateMessage replaces the body of an existing message.
func (s *BadgerStore) UpdateMessage(ctx context.Context, id int64, body string, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		msg, err := getMessage(txn, id)
		if err != nil {
			return err
		}
		msg.Body = body
		msg.UpdatedAt = updatedAt

		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
		return txn.Set(keyMessage(id), data)
	})
	if err == ErrNotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return nil
}

// DeleteMessage removes a message.
func (s *BadgerStore) DeleteMessage(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keyMessage(id)); err == badgerdb.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(keyMessage(id))
	})
	if err == ErrNotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// GetMessageAuthor returns the author of a message.
func (s *BadgerStore) GetMessageAuthor(ctx context.Context, id int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var author string
	err := s.db.View(func(txn *badgerdb.Txn) error {
		msg, err := getMessage(txn, id)
		if err != nil {
			return err
		}
		author = msg.Author
		return nil
	})
	if err == ErrNotFound {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get message author: %w", err)
	}
	return author, nil
}

// ListMessages returns a page of messages, newest first.
func (s *BadgerStore) ListMessages(ctx context.Context, offset, limit int) ([]Message, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	var messages []Message
	var total int64

	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixMessage)
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts past the end of the prefix range.
		seek := appendID([]byte(prefixMessage), int64(^uint64(0)>>1))

		skipped := 0
		for it.Seek(seek); it.Valid(); it.Next() {
			total++
			if skipped < offset {
				skipped++
				continue
			}
			if len(messages) >= limit {
				continue // keep counting for the total
			}
			err := it.Item().Value(func(val []byte) error {
				var msg Message
				if err := json.Unmarshal(val, &msg); err != nil {
					return fmt.Errorf("failed to decode message: %w", err)
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, total, nil
}

// AppendAudit appends an entry to the audit trail.
func (s *BadgerStore) AppendAudit(ctx context.Context, e AuditEntry) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var id int64
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		next, err := nextID(txn, keySeqAudit)
		if err != nil {
			return err
		}
		id = next
		e.ID = id

		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode audit entry: %w", err)
		}
		return txn.Set(keyAudit(id), data)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to append audit entry: %w", err)
	}
	return id, nil
}

// ListAudit returns a page of audit entries, newest first.
func (s *BadgerStore) ListAudit(ctx context.Context, offset, limit int) ([]AuditEntry, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	var entries []AuditEntry
	var total int64

	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixAudit)
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts past the end of the prefix range.
		seek := appendID([]byte(prefixAudit), int64(^uint64(0)>>1))

		skipped := 0
		for it.Seek(seek); it.Valid(); it.Next() {
			total++
			if skipped < offset {
				skipped++
				continue
			}
			if len(entries) >= limit {
				continue // keep counting for the total
			}
			err := it.Item().Value(func(val []byte) error {
				var e AuditEntry
				if err := json.Unmarshal(val, &e); err != nil {
					return fmt.Errorf("failed to decode audit entry: %w", err)
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, total, nil
}

// LastAuditID returns the highest audit entry ID, or 0 when empty.
func (s *BadgerStore) LastAuditID(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var last int64
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySeqAudit))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			last = int64(binary.BigEndian.Uint64(val))
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read last audit id: %w", err)
	}
	return last, nil
}

// Close closes the underlying Badger database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// nextID increments and returns the counter stored at key. IDs start
// at 1. Caller holds writeMu, so the read-modify-write is safe.
func nextID(txn *badgerdb.Txn, key string) (int64, error) {
	var current uint64
	item, err := txn.Get([]byte(key))
	if err == nil {
		err = item.Value(func(val []byte) error {
			current = binary.BigEndian.Uint64(val)
			return nil
		})
		if err != nil {
			return 0, err
		}
	} else if err != badgerdb.ErrKeyNotFound {
		return 0, err
	}

	next := current + 1
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)
	if err := txn.Set([]byte(key), buf[:]); err != nil {
		return 0, fmt.Errorf("failed to advance id counter: %w", err)
	}
	return int64(next), nil
}

// getMessage reads and decodes a message inside a transaction.
func getMessage(txn *badgerdb.Txn, id int64) (Message, error) {
	item, err := txn.Get(keyMessage(id))
	if err == badgerdb.ErrKeyNotFound {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, err
	}

	var msg Message
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &msg)
	})
	if err != nil {
		return Message{}, fmt.Errorf("failed to decode message: %w", err)
	}
	return msg, nil
}
