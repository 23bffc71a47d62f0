// Package store is the durable Task Store: Task, Config and Keyword
// tables backed by SQLite (modernc.org/sqlite, pure Go, no cgo). It
// survives process restart — status transitions, retry counters and
// per-task checkpoints are committed before a worker acts on them, so a
// crash mid-task loses at most the in-flight step.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps the database handle shared by every worker, the API
// adapter and the supervisor. All mutating methods run inside a single
// transaction.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id             INTEGER PRIMARY KEY,
	filename       TEXT NOT NULL,
	filepath       TEXT NOT NULL,
	status         TEXT NOT NULL,
	stage          TEXT NOT NULL DEFAULT '',
	progress       INTEGER NOT NULL DEFAULT 0,
	log            TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL,
	finished_at    TEXT,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	overrides_json TEXT NOT NULL DEFAULT '{}',
	upload_speed   REAL NOT NULL DEFAULT 0,
	upload_eta     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS keywords (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	type    TEXT NOT NULL,
	content TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1
);
`

// Open opens (creating if absent) the SQLite database at path, enables
// WAL and a busy timeout so concurrent workers don't fail on SQLITE_BUSY,
// and applies the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// WAL readers/writers don't serialize across connections well with
	// modernc's driver under heavy concurrent writers; keep one writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory database, for tests.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// withTx runs fn inside a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
