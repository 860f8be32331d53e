package logs

import (
	"sync"

	"github.com/charliek/horn/internal/domain"
)

// RingBuffer keeps the most recent log entries, overwriting the oldest once
// capacity is reached.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []domain.LogEntry
	next    int  // slot the next write goes to
	full    bool // every slot has been written at least once
}

// NewRingBuffer creates a ring buffer holding up to capacity entries
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultManagerConfig().BufferSize
	}
	return &RingBuffer{entries: make([]domain.LogEntry, capacity)}
}

// Write stores an entry
func (b *RingBuffer) Write(entry domain.LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.next] = entry
	b.next++
	if b.next == len(b.entries) {
		b.next = 0
		b.full = true
	}
}

// Read returns every stored entry, oldest first
func (b *RingBuffer) Read() []domain.LogEntry {
	return b.ReadLast(b.Capacity())
}

// ReadLast returns up to n of the newest entries, oldest first
func (b *RingBuffer) ReadLast(n int) []domain.LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := b.countLocked()
	if n <= 0 || count == 0 {
		return nil
	}
	if n > count {
		n = count
	}

	out := make([]domain.LogEntry, 0, n)
	start := (b.next - n + len(b.entries)) % len(b.entries)
	for i := 0; i < n; i++ {
		out = append(out, b.entries[(start+i)%len(b.entries)])
	}
	return out
}

// Count returns the number of stored entries
func (b *RingBuffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.countLocked()
}

func (b *RingBuffer) countLocked() int {
	if b.full {
		return len(b.entries)
	}
	return b.next
}

// Capacity returns the maximum number of entries kept
func (b *RingBuffer) Capacity() int {
	return len(b.entries)
}
