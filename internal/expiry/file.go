package expiry

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gofrs/flock"
)

// FileQueue is a Queue backed by a single CBOR-encoded file, guarded by
// an exclusive OS file lock on every mutation. It is the production
// implementation named in spec.md §4.8 and §6 ("<expiry_file> — single
// binary-encoded list of expiries, sorted").
type FileQueue struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock

	head    Entry
	hasHead bool
}

// Open creates or reopens a FileQueue at path. Reopening from the same
// path yields the same Peek result a prior instance would have shown,
// satisfying the restart-survival invariant in spec.md §8.
func Open(path string) (*FileQueue, error) {
	q := &FileQueue{
		path: path,
		lock: flock.New(path + ".lock"),
	}
	if err := q.withLock(func() error {
		entries, err := q.readLocked()
		if err != nil {
			return err
		}
		q.setHeadLocked(entries)
		return nil
	}); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *FileQueue) withLock(fn func() error) error {
	if err := q.lock.Lock(); err != nil {
		return fmt.Errorf("expiry: acquire file lock: %w", err)
	}
	defer q.lock.Unlock()
	return fn()
}

// readLocked reads and decodes the full entry list. A missing file is
// treated as an empty queue, not an error, so that Open can be used on
// a path that has never been written to.
func (q *FileQueue) readLocked() ([]Entry, error) {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("expiry: read %s: %w", q.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var entries []Entry
	if err := cbor.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("expiry: decode %s: %w", q.path, err)
	}
	return entries, nil
}

// writeLocked persists entries with write-then-rename, so a crash
// mid-write leaves either the pre- or post-state file intact.
func (q *FileQueue) writeLocked(entries []Entry) error {
	data, err := cbor.Marshal(entries)
	if err != nil {
		return fmt.Errorf("expiry: encode: %w", err)
	}
	tmp := q.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("expiry: write temp file: %w", err)
	}
	if err := os.Rename(tmp, q.path); err != nil {
		return fmt.Errorf("expiry: rename temp file: %w", err)
	}
	q.setHeadLocked(entries)
	return nil
}

func (q *FileQueue) setHeadLocked(entries []Entry) {
	if len(entries) == 0 {
		q.hasHead = false
		return
	}
	q.head = entries[0]
	q.hasHead = true
}

// Peek implements Queue.
func (q *FileQueue) Peek() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.head, q.hasHead
}

// Add implements Queue.
func (q *FileQueue) Add(entry Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.withLock(func() error {
		entries, err := q.readLocked()
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Less(entries[j]) })
		return q.writeLocked(entries)
	})
}

// Ack implements Queue.
func (q *FileQueue) Ack(now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.withLock(func() error {
		entries, err := q.readLocked()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return ErrEmpty
		}
		if now.Before(entries[0].ExpiresAt) {
			return ErrNotDue
		}
		return q.writeLocked(entries[1:])
	})
}

// Nack implements Queue.
func (q *FileQueue) Nack(correlationKey string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.withLock(func() error {
		entries, err := q.readLocked()
		if err != nil {
			return err
		}
		kept := entries[:0]
		removed := 0
		for _, e := range entries {
			if e.CorrelationKey == correlationKey {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if removed == 0 {
			return ErrNoMatch
		}
		return q.writeLocked(kept)
	})
}

// Close implements Queue.
func (q *FileQueue) Close() error {
	return nil
}

var _ Queue = (*FileQueue)(nil)
