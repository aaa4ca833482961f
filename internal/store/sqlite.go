package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// SQLiteStore persists the EventStore to a single SQLite file, with a
// per-key version column implementing the optimistic concurrency
// contract of spec.md §4.3: Commit succeeds only if the key's version
// is unchanged since Begin.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewSQLiteStore opens (creating if absent) a SQLite-backed Store at
// path. The file is created with 0600 permissions before sql.Open
// touches it, avoiding a window where it's briefly world-readable.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			f, createErr := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
			if createErr == nil {
				if closeErr := f.Close(); closeErr != nil {
					slog.Warn("store: failed to close event store file after creation",
						slog.String("path", path), slog.String("error", closeErr.Error()))
				}
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events_by_correlation_key (
			correlation_key TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			batch BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create table: %w", err)
	}

	if path != ":memory:" {
		if err := os.Chmod(path, 0600); err != nil {
			slog.Warn("store: failed to set restrictive permissions on event store file",
				slog.String("path", path), slog.String("error", err.Error()))
		}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Begin(correlationKey string) (Txn, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	var version int64
	var batchBytes []byte
	err := s.db.QueryRow(`
		SELECT version, batch FROM events_by_correlation_key WHERE correlation_key = ?
	`, correlationKey).Scan(&version, &batchBytes)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		version, batchBytes = 0, nil
	case err != nil:
		return nil, fmt.Errorf("store: begin: %w", err)
	}

	records, err := decodeBatch(batchBytes)
	if err != nil {
		return nil, err
	}

	return &sqliteTxn{
		store:          s,
		correlationKey: correlationKey,
		baseVersion:    version,
		pending:        records,
	}, nil
}

func (s *SQLiteStore) PurgeAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.db.Exec(`DELETE FROM events_by_correlation_key`); err != nil {
		return fmt.Errorf("store: purge: %w", err)
	}
	if _, err := s.db.Exec(`VACUUM`); err != nil {
		return fmt.Errorf("store: purge compact: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type sqliteTxn struct {
	store          *SQLiteStore
	correlationKey string
	baseVersion    int64
	pending        []Record
	done           bool
}

func (t *sqliteTxn) Read() ([]Record, error) {
	return append([]Record(nil), t.pending...), nil
}

func (t *sqliteTxn) Append(rec Record) ([]Record, error) {
	t.pending = append(t.pending, rec)
	return append([]Record(nil), t.pending...), nil
}

func (t *sqliteTxn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true

	encoded, err := encodeBatch(t.pending)
	if err != nil {
		return err
	}

	var result sql.Result
	if t.baseVersion == 0 {
		result, err = t.store.db.Exec(`
			INSERT INTO events_by_correlation_key (correlation_key, version, batch)
			VALUES (?, 1, ?)
			ON CONFLICT(correlation_key) DO NOTHING
		`, t.correlationKey, encoded)
	} else {
		result, err = t.store.db.Exec(`
			UPDATE events_by_correlation_key SET version = version + 1, batch = ?
			WHERE correlation_key = ? AND version = ?
		`, encoded, t.correlationKey, t.baseVersion)
	}
	if err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	if rows == 0 {
		return ErrConflict
	}
	return nil
}

func (t *sqliteTxn) Rollback() error {
	t.done = true
	return nil
}
