package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/navkeeper/dbopen"
	"github.com/hazyhaar/navkeeper/idgen"
	"github.com/hazyhaar/navkeeper/nav"
)

const sinkSchema = `
CREATE TABLE IF NOT EXISTS nav_event_logs (
	event_id   TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	target     TEXT,
	method     TEXT,
	status     INTEGER,
	final_url  TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_nav_event_logs_time
	ON nav_event_logs(created_at DESC);
`

// SQLite records lifecycle events in a queryable table, for sessions that
// need their navigation history to outlive the process.
type SQLite struct {
	db    *sql.DB
	owned bool
	newID idgen.Generator
}

// NewSQLite opens (creating if needed) an event log at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(sinkSchema))
	if err != nil {
		return nil, fmt.Errorf("sink: open event log: %w", err)
	}
	return &SQLite{db: db, owned: true, newID: idgen.Prefixed("nav_", idgen.Default)}, nil
}

// NewSQLiteDB wraps an already-open database carrying the event log schema.
func NewSQLiteDB(db *sql.DB) *SQLite {
	return &SQLite{db: db, newID: idgen.Prefixed("nav_", idgen.Default)}
}

func (s *SQLite) Send(ctx context.Context, ev nav.Event) error {
	e := wrap(ev)
	_, err := dbopen.Exec(ctx, s.db, `
		INSERT INTO nav_event_logs (
			event_id, kind, target, method, status, final_url, created_at
		) VALUES (?,?,?,?,?,?,?)`,
		s.newID(), e.Kind, e.Target, e.Method, e.Status, e.URL, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("sink: log event: %w", err)
	}
	return nil
}

// Prune deletes events older than the retention window. Zero days keeps
// everything.
func (s *SQLite) Prune(ctx context.Context, days int) error {
	if days <= 0 {
		return nil
	}
	cutoff := time.Now().Unix() - int64(days)*86400
	if _, err := dbopen.Exec(ctx, s.db,
		`DELETE FROM nav_event_logs WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("sink: prune event log: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}
