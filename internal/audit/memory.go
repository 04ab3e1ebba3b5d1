package audit

import (
	"context"
	"sync"
)

const defaultMemoryCapacity = 1000

// MemoryLog keeps the most recent entries in memory.
type MemoryLog struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
}

// NewMemoryLog constructs a log holding at most capacity entries.
func NewMemoryLog(capacity int) *MemoryLog {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryLog{capacity: capacity}
}

// Log appends an entry, evicting the oldest past capacity.
func (l *MemoryLog) Log(_ context.Context, entry Entry) error {
	entry = normalize(entry)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if over := len(l.entries) - l.capacity; over > 0 {
		l.entries = append([]Entry(nil), l.entries[over:]...)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *MemoryLog) Recent(_ context.Context, limit int) ([]Entry, error) {
	limit = clampLimit(limit)
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, min(limit, len(l.entries)))
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.entries[i])
	}
	return out, nil
}
