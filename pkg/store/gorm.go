package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DatabaseType defines the supported SQL backends.
type DatabaseType string

const (
	// DatabaseTypeSQLite uses SQLite (single-node, default).
	DatabaseTypeSQLite DatabaseType = "sqlite"

	// DatabaseTypePostgres uses PostgreSQL.
	DatabaseTypePostgres DatabaseType = "postgres"

	// DatabaseTypeBadger uses the embedded Badger key-value store.
	DatabaseTypeBadger DatabaseType = "badger"
)

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the path to the SQLite database file.
	// Default: $XDG_DATA_HOME/podium/podium.db
	Path string
}

// PostgresConfig contains PostgreSQL-specific configuration.
type PostgresConfig struct {
	Host         string
	Port         int
	Database     string
	User         string
	Password     string
	SSLMode      string // disable, require, verify-ca, verify-full
	MaxOpenConns int
	MaxIdleConns int
}

// DSN returns the PostgreSQL connection string.
func (c *PostgresConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		c.Host, c.Port, c.User, c.Password, c.Database)

	if c.SSLMode != "" {
		dsn += fmt.Sprintf(" sslmode=%s", c.SSLMode)
	}

	return dsn
}

// BadgerConfig contains Badger-specific configuration.
type BadgerConfig struct {
	// Dir is the Badger data directory.
	// Default: $XDG_DATA_HOME/podium/badger
	Dir string
}

// Config contains store configuration.
type Config struct {
	Type     DatabaseType
	SQLite   SQLiteConfig
	Postgres PostgresConfig
	Badger   BadgerConfig
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = DatabaseTypeSQLite
	}

	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, _ := os.UserHomeDir()
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	if c.Type == DatabaseTypeSQLite && c.SQLite.Path == "" {
		c.SQLite.Path = filepath.Join(dataDir, "podium", "podium.db")
	}

	if c.Type == DatabaseTypeBadger && c.Badger.Dir == "" {
		c.Badger.Dir = filepath.Join(dataDir, "podium", "badger")
	}

	if c.Type == DatabaseTypePostgres {
		if c.Postgres.Port == 0 {
			c.Postgres.Port = 5432
		}
		if c.Postgres.SSLMode == "" {
			c.Postgres.SSLMode = "disable"
		}
		if c.Postgres.MaxOpenConns == 0 {
			c.Postgres.MaxOpenConns = 25
		}
		if c.Postgres.MaxIdleConns == 0 {
			c.Postgres.MaxIdleConns = 5
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case DatabaseTypePostgres:
		if c.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if c.Postgres.Database == "" {
			return fmt.Errorf("postgres database is required")
		}
		if c.Postgres.User == "" {
			return fmt.Errorf("postgres user is required")
		}
	case DatabaseTypeBadger:
		if c.Badger.Dir == "" {
			return fmt.Errorf("badger directory is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Type)
	}
	return nil
}

// New creates a store based on the configuration.
func New(config *Config) (Store, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store configuration: %w", err)
	}

	if config.Type == DatabaseTypeBadger {
		return NewBadgerStore(config.Badger)
	}
	return NewGORMStore(config)
}

// GORMStore implements Store using GORM. SQLite and PostgreSQL share
// the same codebase via dialectors.
type GORMStore struct {
	db     *gorm.DB
	config *Config
}

// NewGORMStore opens a SQL-backed store and migrates the schema.
func NewGORMStore(config *Config) (*GORMStore, error) {
	var dialector gorm.Dialector
	switch config.Type {
	case DatabaseTypeSQLite:
		// Ensure parent directory exists for SQLite
		if err := os.MkdirAll(filepath.Dir(config.SQLite.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// SQLite pragmas for better concurrent access:
		// - journal_mode(WAL): Write-Ahead Logging for concurrent readers/single writer
		// - busy_timeout(5000): Wait up to 5 seconds when database is locked
		dsn := config.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)

	case DatabaseTypePostgres:
		dialector = postgres.Open(config.Postgres.DSN())

	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	// Suppress GORM logs by default
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool for PostgreSQL
	if config.Type == DatabaseTypePostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)
	}

	if err := db.AutoMigrate(&Message{}, &AuditEntry{}); err != nil {
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}

	return &GORMStore{db: db, config: config}, nil
}

// DB returns the underlying GORM database connection.
// This is useful for advanced queries or testing.
func (s *GORMStore) DB() *gorm.DB {
	return s.db
}

// PutMessage inserts a message and returns its assigned ID.
func (s *GORMStore) PutMessage(ctx context.Context, author, body string, createdAt time.Time) (int64, error) {
	msg := Message{
		Author:    author,
		Body:      body,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return 0, fmt.Errorf("failed to create message: %w", err)
	}
	return msg.ID, nil
}

// UpdateMessage replaces the body of an existing message.
func (s *GORMStore) UpdateMessage(ctx context.Context, id int64, body string, updatedAt time.Time) error {
	result := s.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", id).
		Updates(map[string]any{"body": body, "updated_at": updatedAt})
	if result.Error != nil {
		return fmt.Errorf("failed to update message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMessage removes a message.
func (s *GORMStore) DeleteMessage(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&Message{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetMessageAuthor returns the author of a message.
func (s *GORMStore) GetMessageAuthor(ctx context.Context, id int64) (string, error) {
	var msg Message
	err := s.db.WithContext(ctx).Select("author").First(&msg, id).Error
	if err != nil {
		return "", convertNotFoundError(err, ErrNotFound)
	}
	return msg.Author, nil
}

// ListMessages returns a page of messages, newest first.
func (s *GORMStore) ListMessages(ctx context.Context, offset, limit int) ([]Message, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&Message{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	var messages []Message
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, total, nil
}

// AppendAudit appends an entry to the audit trail.
func (s *GORMStore) AppendAudit(ctx context.Context, e AuditEntry) (int64, error) {
	e.ID = 0 // the database assigns IDs
	if err := s.db.WithContext(ctx).Create(&e).Error; err != nil {
		return 0, fmt.Errorf("failed to append audit entry: %w", err)
	}
	return e.ID, nil
}

// ListAudit returns a page of audit entries, newest first.
func (s *GORMStore) ListAudit(ctx context.Context, offset, limit int) ([]AuditEntry, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&AuditEntry{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	var entries []AuditEntry
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, total, nil
}

// LastAuditID returns the highest audit entry ID, or 0 when empty.
func (s *GORMStore) LastAuditID(ctx context.Context) (int64, error) {
	var entry AuditEntry
	err := s.db.WithContext(ctx).Order("id DESC").First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read last audit id: %w", err)
	}
	return entry.ID, nil
}

// Close closes the underlying database connection.
func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// convertNotFoundError converts gorm.ErrRecordNotFound to the appropriate domain error.
func convertNotFoundError(err error, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}
