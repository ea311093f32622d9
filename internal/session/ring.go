package session

import (
	"github.com/ashureev/askzen/internal/domain"
)

// historyRing is a fixed-size circular buffer of history entries.
// When full, a push overwrites the oldest entry. Not safe for concurrent use;
// the owning entry's mutex guards it.
type historyRing struct {
	buf  []domain.HistoryEntry
	size int
	head int // write position
	tail int // read position
	full bool
}

func newHistoryRing(size int) *historyRing {
	if size <= 0 {
		size = domain.HistoryLimit
	}
	return &historyRing{
		buf:  make([]domain.HistoryEntry, size),
		size: size,
	}
}

// Push appends e, evicting the oldest entry when the ring is at capacity.
func (r *historyRing) Push(e domain.HistoryEntry) {
	if r.full {
		r.tail = (r.tail + 1) % r.size
	}
	r.buf[r.head] = e
	r.head = (r.head + 1) % r.size
	if r.head == r.tail {
		r.full = true
	}
}

// Entries returns the stored entries oldest-first as a fresh slice.
func (r *historyRing) Entries() []domain.HistoryEntry {
	n := r.Len()
	out := make([]domain.HistoryEntry, n)
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.tail+i)%r.size]
	}
	return out
}

// Len returns the number of stored entries.
func (r *historyRing) Len() int {
	if r.full {
		return r.size
	}
	if r.head >= r.tail {
		return r.head - r.tail
	}
	return (r.size - r.tail) + r.head
}

// Reset drops every entry.
func (r *historyRing) Reset() {
	clear(r.buf)
	r.head = 0
	r.tail = 0
	r.full = false
}

// Capacity returns the maximum number of entries.
func (r *historyRing) Capacity() int {
	return r.size
}
