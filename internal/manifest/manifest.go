// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package manifest maintains a per-output-tree index of dumped images
// in SQLite. The status subcommand reads it, and each successful item
// records itself so resumed runs can report what is already covered.
package manifest

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mlehane/sdkdump/pkg/types"
)

const (
	manifestDir = ".sdkdump"
	dbFile      = "manifest.db"
)

// Store is the manifest database for one output tree.
type Store struct {
	db *sql.DB
}

// Open opens or creates the manifest under outputRoot, creating the
// schema if it does not exist.
func Open(outputRoot string) (*Store, error) {
	dir := filepath.Join(outputRoot, manifestDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating manifest directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating manifest schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started TEXT NOT NULL,
			platform TEXT,
			version TEXT,
			mode TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS images (
			item TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			headers INTEGER NOT NULL,
			dumped_at TEXT NOT NULL,
			run_id INTEGER REFERENCES runs(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_images_kind ON images(kind)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// BeginRun inserts a run row and returns its id.
func (s *Store) BeginRun(dc types.DumpContext) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO runs (started, platform, version, mode) VALUES (?, ?, ?, ?)`,
		dc.Started.Format(time.RFC3339), string(dc.Platform), dc.Runtime.Version, string(dc.Mode),
	)
	if err != nil {
		return 0, fmt.Errorf("recording run: %w", err)
	}
	return res.LastInsertId()
}

// RecordImage upserts one dumped item. A re-dump of the same item keeps
// a single row with the latest counts.
func (s *Store) RecordImage(runID int64, item, kind string, headers int) error {
	_, err := s.db.Exec(
		`INSERT INTO images (item, kind, headers, dumped_at, run_id)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(item) DO UPDATE SET
		   kind = excluded.kind,
		   headers = excluded.headers,
		   dumped_at = excluded.dumped_at,
		   run_id = excluded.run_id`,
		item, kind, headers, time.Now().Format(time.RFC3339), runID,
	)
	if err != nil {
		return fmt.Errorf("recording image %s: %w", item, err)
	}
	return nil
}

// Seen reports whether the item was recorded by any run.
func (s *Store) Seen(item string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM images WHERE item = ?`, item).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying manifest: %w", err)
	}
	return n > 0, nil
}

// KindCount is one row of the status summary.
type KindCount struct {
	Kind    string
	Images  int
	Headers int
}

// Summary aggregates the manifest by image kind.
func (s *Store) Summary() ([]KindCount, error) {
	rows, err := s.db.Query(
		`SELECT kind, COUNT(*), SUM(headers) FROM images GROUP BY kind ORDER BY kind`)
	if err != nil {
		return nil, fmt.Errorf("querying manifest summary: %w", err)
	}
	defer rows.Close()

	var out []KindCount
	for rows.Next() {
		var kc KindCount
		if err := rows.Scan(&kc.Kind, &kc.Images, &kc.Headers); err != nil {
			return nil, err
		}
		out = append(out, kc)
	}
	return out, rows.Err()
}
