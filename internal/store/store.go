// Package store implements the EventStore of spec.md §4.3: a
// transactional, append-only list of correlated events keyed by
// correlation key. Callers never see raw keys or encodings directly —
// they open a Txn scoped to one correlation key, read its current
// batch, optionally append, and commit.
package store

import (
	"errors"
	"time"
)

// Record is one correlated event as persisted in a batch, matching
// spec.md §4.3's encoding: (received, correlation_key, event_type,
// data). data is the event's payload as UTF-8 JSON bytes.
type Record struct {
	Received       time.Time
	CorrelationKey string
	EventType      string
	Data           []byte
}

// ErrConflict is returned by Txn.Commit when a concurrent writer
// committed to the same key first (spec.md §4.3's optimistic
// concurrency contract). The caller may retry the whole read-modify-
// append sequence.
var ErrConflict = errors.New("store: optimistic concurrency conflict")

// ErrClosed is returned by any operation on a closed Store.
var ErrClosed = errors.New("store: closed")

// Store is the EventStore backing. Implementations must be safe for
// concurrent use; appends to distinct keys never conflict.
type Store interface {
	// Begin opens a transaction scoped to one correlation key. The
	// transaction observes a snapshot of that key's batch as of Begin;
	// Commit fails with ErrConflict if another transaction committed to
	// the same key in the meantime.
	Begin(correlationKey string) (Txn, error)

	// PurgeAll deletes every key, compacts, and flushes. Used between
	// test runs and by the acceptance harness; not part of normal
	// operation.
	PurgeAll() error

	// Close releases any resources (connections, files).
	Close() error
}

// Txn is a transaction scoped to a single correlation key.
type Txn interface {
	// Read returns the key's current batch, oldest first. An absent key
	// yields an empty (nil) slice, not an error.
	Read() ([]Record, error)

	// Append reads the current batch, pushes rec, and returns the
	// updated batch; rec is always the last element of the result. The
	// write is only visible to other transactions after Commit.
	Append(rec Record) ([]Record, error)

	// Commit persists the transaction's writes, or returns ErrConflict
	// if a concurrent transaction committed to the same key first.
	Commit() error

	// Rollback discards the transaction's writes. Safe to call after
	// Commit (no-op).
	Rollback() error
}
