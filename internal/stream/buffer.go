// Package stream maintains the live alert tape: a bounded newest-first
// buffer fed by an SSE subscription to the upstream metrics service.
package stream

import (
	"sync"

	"hypewatch/internal/domain/hype"
)

// DefaultCapacity is the alert tape length used when none is configured.
const DefaultCapacity = 10

// Buffer is a bounded, ordered container of alert events, newest first.
// Pushing at capacity evicts the oldest entry. Repeated identical events
// are retained as distinct entries. Safe for concurrent use.
type Buffer struct {
	mu      sync.RWMutex
	entries []hype.AlertEvent // ring storage
	head    int               // index of the newest entry
	count   int
}

// NewBuffer creates a buffer holding at most capacity events.
// Capacities below 1 fall back to DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		entries: make([]hype.AlertEvent, capacity),
		head:    0,
	}
}

// Capacity returns the fixed maximum number of retained events.
func (b *Buffer) Capacity() int {
	return len(b.entries)
}

// Push inserts event at the front. When the buffer is full the oldest
// entry is overwritten. O(1).
func (b *Buffer) Push(event hype.AlertEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.head = (b.head - 1 + len(b.entries)) % len(b.entries)
	b.entries[b.head] = event
	if b.count < len(b.entries) {
		b.count++
	}
}

// Len returns the number of retained events.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Snapshot returns the retained events newest-first without mutating the
// buffer. The returned slice is a copy.
func (b *Buffer) Snapshot() []hype.AlertEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]hype.AlertEvent, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(b.head+i)%len(b.entries)]
	}
	return out
}
