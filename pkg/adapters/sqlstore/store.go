// Package sqlstore implements ports.Storage over a key/value table in a SQL database.
//
// The statements use the MySQL dialect; the driver is registered by importing
// github.com/go-sql-driver/mysql, which Open does.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/wizard/pkg/domain"
	_ "github.com/go-sql-driver/mysql"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "wizard_storage"

var invalidTableChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// normalizeTableName keeps table names safe to interpolate into statements.
func normalizeTableName(name string) string {
	return strings.ToLower(invalidTableChars.ReplaceAllString(name, "_"))
}

// Store implements ports.Storage on a *sql.DB.
type Store struct {
	db    *sql.DB
	table string
}

type Option func(*Store)

// WithTable overrides the table name.
func WithTable(name string) Option {
	return func(s *Store) {
		s.table = normalizeTableName(name)
	}
}

// Open connects to MySQL using dsn and ensures the table exists.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store := New(db, opts...)
	if err := store.CreateTableIfNotExists(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, table: DefaultTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func createTableQuery(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	StorageKey VARCHAR(255) NOT NULL,
	StorageValue MEDIUMTEXT NOT NULL,
	UpdatedTimestamp TIMESTAMP NOT NULL,
	PRIMARY KEY (StorageKey)
);`, table)
}

func getQuery(table string) string {
	return fmt.Sprintf("SELECT StorageValue FROM %s WHERE StorageKey = ?;", table)
}

func upsertQuery(table string) string {
	return fmt.Sprintf("INSERT INTO %s (StorageKey, StorageValue, UpdatedTimestamp) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE StorageValue = VALUES(StorageValue), UpdatedTimestamp = VALUES(UpdatedTimestamp);", table)
}

func deleteQuery(table string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE StorageKey = ?;", table)
}

func listQuery(table string) string {
	return fmt.Sprintf("SELECT StorageKey FROM %s;", table)
}

// CreateTableIfNotExists creates the key/value table.
func (s *Store) CreateTableIfNotExists(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableQuery(s.table)); err != nil {
		return fmt.Errorf("failed to create storage table: %w", err)
	}
	return nil
}

// Get returns the value stored at key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, getQuery(s.table), key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to query storage: %w", err)
	}
	return value, nil
}

// Set upserts value at key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, upsertQuery(s.table), key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}
	return nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, deleteQuery(s.table), key); err != nil {
		return fmt.Errorf("failed to delete from storage: %w", err)
	}
	return nil
}

// List returns every stored key.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, listQuery(s.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list storage: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan storage key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}
