// Package store persists scroll state outside the page. The browser's own
// sessionStorage dies with the tab; the SQLite backend survives restarts and
// lets several tabs of the same profile share one position table.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/navkeeper/dbopen"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_kv (
	profile    TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (profile, key)
);
`

// SQLiteKV is a key-value store scoped to a profile, backed by SQLite.
// It satisfies scrollmem.KV.
type SQLiteKV struct {
	db      *sql.DB
	profile string
	logger  *slog.Logger
}

// Option customises Open.
type Option func(*SQLiteKV)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *SQLiteKV) { s.logger = l } }

// Open opens (creating if needed) the store at path for the given profile.
func Open(path, profile string, opts ...Option) (*SQLiteKV, error) {
	if profile == "" {
		return nil, errors.New("store: empty profile")
	}
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	s := &SQLiteKV{db: db, profile: profile, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// New wraps an already-open database. Used by tests with dbopen.OpenMemory.
func New(db *sql.DB, profile string, opts ...Option) *SQLiteKV {
	s := &SQLiteKV{db: db, profile: profile, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the stored value for key. Read failures report absence; the
// caller treats missing persisted state as a cold start.
func (s *SQLiteKV) Get(key string) (string, bool) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM session_kv WHERE profile = ? AND key = ?`,
		s.profile, key,
	).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("store: get failed", "key", key, "error", err)
		}
		return "", false
	}
	return value, true
}

// Set upserts key to value, retrying on busy.
func (s *SQLiteKV) Set(key, value string) error {
	_, err := dbopen.Exec(context.Background(), s.db,
		`INSERT INTO session_kv (profile, key, value, updated_at)
		 VALUES (?, ?, ?, datetime('now'))
		 ON CONFLICT (profile, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		s.profile, key, value,
	)
	if err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteKV) Close() error {
	return s.db.Close()
}
