package retrieval

import "sync"

// DefaultHistoryCapacity is the number of searches kept in history.
const DefaultHistoryCapacity = 50

// History is a bounded search history, newest first. Entries are ordered by
// search start time, so a search that finishes late never overtakes a newer one.
type History struct {
	mu       sync.Mutex
	entries  []HistoryEntry
	capacity int
}

// NewHistory creates a history holding at most capacity entries.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		entries:  make([]HistoryEntry, 0, capacity),
		capacity: capacity,
	}
}

// Add inserts an entry, dropping the oldest once full.
func (h *History) Add(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pos := 0
	for pos < len(h.entries) && h.entries[pos].Timestamp.After(entry.Timestamp) {
		pos++
	}
	if pos >= h.capacity {
		// Older than everything retained in a full buffer.
		return
	}

	h.entries = append(h.entries, HistoryEntry{})
	copy(h.entries[pos+1:], h.entries[pos:])
	h.entries[pos] = entry
	if len(h.entries) > h.capacity {
		h.entries = h.entries[:h.capacity]
	}
}

// Entries returns a copy of the history, newest first.
func (h *History) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Clear removes all entries.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = h.entries[:0]
}
