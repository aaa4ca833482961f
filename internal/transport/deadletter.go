package transport

import (
	"log/slog"
	"sync"
	"time"
)

// DeadLetter is where a message that failed Messaging or EventMatch
// processing goes, per spec.md §7: per-message, logged, message not
// acked. Unlike the teacher's retry-and-park DLQ, there is no retry
// schedule here — at-least-once redelivery is the transport's job
// (the message is simply left un-acked), so this only needs to record
// what happened for observability and tests.
//
// Grounded on pkg/flowgraph/event/dlq.go's InMemoryDLQ, trimmed to
// drop AttemptCount/NextRetryAt/park-after-N-retries machinery: no
// SPEC_FULL.md component re-drives a dead-lettered message, so a
// retry scheduler has nothing to call it back for.
type DeadLetter struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries []Entry
}

// Entry is one recorded failure.
type Entry struct {
	Source    string
	Kind      string
	Err       error
	Timestamp time.Time
}

// NewDeadLetter returns an empty DeadLetter sink.
func NewDeadLetter(logger *slog.Logger) *DeadLetter {
	return &DeadLetter{logger: logger}
}

// Record logs and stores one failure. now is passed in rather than
// taken from time.Now so tests can assert on deterministic timestamps.
func (d *DeadLetter) Record(source, kind string, err error, now time.Time) {
	d.mu.Lock()
	d.entries = append(d.entries, Entry{Source: source, Kind: kind, Err: err, Timestamp: now})
	d.mu.Unlock()

	if d.logger != nil {
		d.logger.Warn("message dead-lettered, not acked",
			slog.String("source", source),
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
}

// Entries returns a snapshot of recorded failures, oldest first.
func (d *DeadLetter) Entries() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Entry(nil), d.entries...)
}

// Len returns the number of recorded failures.
func (d *DeadLetter) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
