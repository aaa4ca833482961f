package expiry

import (
	"sort"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue for tests. Entries are lost when
// the process exits; there is no file lock to acquire.
type MemoryQueue struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Peek implements Queue.
func (m *MemoryQueue) Peek() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return Entry{}, false
	}
	return m.entries[0], true
}

// Add implements Queue.
func (m *MemoryQueue) Add(entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	sort.Slice(m.entries, func(i, j int) bool { return m.entries[i].Less(m.entries[j]) })
	return nil
}

// Ack implements Queue.
func (m *MemoryQueue) Ack(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return ErrEmpty
	}
	if now.Before(m.entries[0].ExpiresAt) {
		return ErrNotDue
	}
	m.entries = m.entries[1:]
	return nil
}

// Nack implements Queue.
func (m *MemoryQueue) Nack(correlationKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	removed := 0
	for _, e := range m.entries {
		if e.CorrelationKey == correlationKey {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if removed == 0 {
		return ErrNoMatch
	}
	m.entries = kept
	return nil
}

// Close implements Queue.
func (m *MemoryQueue) Close() error { return nil }

// Len reports the number of pending entries, for test assertions.
func (m *MemoryQueue) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

var _ Queue = (*MemoryQueue)(nil)
