// Package expiry implements the durable, min-ordered queue of future
// rule re-evaluations described in spec.md §4.8. The queue survives
// process restart: its entire state is a single file, rewritten
// atomically under an exclusive OS lock on every mutation.
package expiry

import (
	"errors"
	"time"
)

// Entry is a scheduled future re-evaluation point for a specific
// correlation key and rule (spec.md's EventExpiry).
type Entry struct {
	ExpiresAt      time.Time `cbor:"1,keyasint"`
	CorrelationKey string    `cbor:"2,keyasint"`
	RuleName       string    `cbor:"3,keyasint"`
}

// Less orders entries first by ExpiresAt, then CorrelationKey, then
// RuleName, matching the Queue's persistence invariant.
func (e Entry) Less(other Entry) bool {
	if !e.ExpiresAt.Equal(other.ExpiresAt) {
		return e.ExpiresAt.Before(other.ExpiresAt)
	}
	if e.CorrelationKey != other.CorrelationKey {
		return e.CorrelationKey < other.CorrelationKey
	}
	return e.RuleName < other.RuleName
}

// Sentinel errors for Queue operations.
var (
	// ErrEmpty is returned by Ack when the queue has no head.
	ErrEmpty = errors.New("expiry: queue is empty")
	// ErrNotDue is returned by Ack when the head has not yet expired.
	ErrNotDue = errors.New("expiry: head is not due")
	// ErrNoMatch is returned by Nack when no entry matches the key.
	ErrNoMatch = errors.New("expiry: no entry for correlation key")
)

// Queue is the durable min-ordered expiry queue.
// Implementations must be safe for use from a single goroutine at a
// time (the Driver loop never calls a Queue concurrently with itself);
// they need only guard against other processes via the file lock.
type Queue interface {
	// Peek returns the current head (the minimum by ExpiresAt), or
	// ok=false if the queue is empty.
	Peek() (entry Entry, ok bool)

	// Add inserts an entry, re-sorts, persists, and refreshes the head.
	Add(entry Entry) error

	// Ack removes the head. It fails with ErrEmpty if there is no head,
	// or ErrNotDue if the head's ExpiresAt is still in the future
	// relative to now.
	Ack(now time.Time) error

	// Nack removes every entry with the given correlation key (used
	// when a rule fires for a reason other than the scheduled expiry,
	// superseding it). Fails with ErrNoMatch if nothing matched.
	Nack(correlationKey string) error

	// Close releases any resources (file handles, locks).
	Close() error
}
