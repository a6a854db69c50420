// Package history keeps a SQLite ledger of processed work items.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"video-transcriber/internal/domain"
)

// FileName is the database file created under the config directory.
const FileName = "history.db"

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	source TEXT NOT NULL,
	output_path TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	duration REAL NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_created_at ON entries(created_at);
CREATE INDEX IF NOT EXISTS idx_entries_run_id ON entries(run_id);
`

// Recorder is the write side used by the batch runner.
type Recorder interface {
	Record(ctx context.Context, e domain.HistoryEntry) error
}

// Store is a SQLite-backed history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Record inserts e. CreatedAt is filled when empty.
func (s *Store) Record(ctx context.Context, e domain.HistoryEntry) error {
	if e.CreatedAt == "" {
		e.CreatedAt = s.now().UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO entries (run_id, kind, source, output_path, title, status, error, duration, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, string(e.Kind), e.Source, e.OutputPath, e.Title, e.Status, e.Error, e.Duration, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("record history entry: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, run_id, kind, source, output_path, title, status, error, duration, created_at
	FROM entries ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.HistoryEntry, 0)
	for rows.Next() {
		var e domain.HistoryEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.RunID, &kind, &e.Source, &e.OutputPath, &e.Title, &e.Status, &e.Error, &e.Duration, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		e.Kind = domain.WorkKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
