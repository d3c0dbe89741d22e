// Package history keeps a ledger of every build invocation in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jorge-barreto/ok/internal/staging"

	_ "modernc.org/sqlite"
)

// FileName is the ledger's file under the staging root.
const FileName = "history.db"

// Store is the build ledger.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init history: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS builds (
        id TEXT PRIMARY KEY,
        spec TEXT NOT NULL,
        mode TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL,
        started TEXT NOT NULL,
        finished TEXT NOT NULL DEFAULT '',
        duration TEXT NOT NULL DEFAULT '',
        cost_usd REAL NOT NULL DEFAULT 0,
        turns INTEGER NOT NULL DEFAULT 0,
        error TEXT NOT NULL DEFAULT ''
    );
    CREATE INDEX IF NOT EXISTS builds_spec_started ON builds (spec, started);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts r, or updates it if a record with the same id exists.
func (s *Store) Record(ctx context.Context, r *staging.Record) error {
	query := `INSERT INTO builds (id, spec, mode, status, started, finished, duration, cost_usd, turns, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		mode = excluded.mode,
		status = excluded.status,
		finished = excluded.finished,
		duration = excluded.duration,
		cost_usd = excluded.cost_usd,
		turns = excluded.turns,
		error = excluded.error`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Spec, r.Mode, r.Status, formatTime(r.Started), formatTime(r.Finished),
		r.Duration, r.CostUSD, r.Turns, r.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record build: %w", err)
	}
	return nil
}

// List returns up to limit records, newest first. An empty spec lists all.
func (s *Store) List(ctx context.Context, spec string, limit int) ([]*staging.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
        SELECT id, spec, mode, status, started, finished, duration, cost_usd, turns, error
        FROM builds
        WHERE (? = '' OR spec = ?)
        ORDER BY started DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, query, spec, spec, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*staging.Record
	for rows.Next() {
		var r staging.Record
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Spec, &r.Mode, &r.Status, &started, &finished,
			&r.Duration, &r.CostUSD, &r.Turns, &r.Error); err != nil {
			return nil, err
		}
		r.Started = parseTime(started)
		r.Finished = parseTime(finished)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
