package sse

import (
	"encoding/json"
	"sync"
	"time"
)

// DefaultCapacity is the number of events a Buffer retains when no capacity
// is configured.
const DefaultCapacity = 100

// Buffer is a process-wide, capacity-bounded, ordered log of events. Appends
// evict the oldest entry once the buffer is full; readers never remove
// anything and keep their own cursor.
type Buffer struct {
	mu       sync.RWMutex
	ring     []Event
	start    int // ring position of the oldest retained event
	size     int
	next     uint64
	notify   chan struct{}
	now      func() time.Time
	capacity int
}

// NewBuffer creates an empty buffer. A non-positive capacity falls back to
// DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		ring:     make([]Event, capacity),
		notify:   make(chan struct{}),
		now:      time.Now,
		capacity: capacity,
	}
}

// Append assigns the next index to a new event, stores it, and evicts the
// oldest event when the buffer is over capacity. Waiters on Notify are woken.
func (b *Buffer) Append(kind Kind, data json.RawMessage) Event {
	b.mu.Lock()
	ev := Event{
		Index:     b.next,
		Kind:      kind,
		Data:      data,
		Timestamp: b.now().UTC(),
	}
	b.next++

	if b.size == b.capacity {
		b.ring[b.start] = ev
		b.start = (b.start + 1) % b.capacity
	} else {
		b.ring[(b.start+b.size)%b.capacity] = ev
		b.size++
	}

	woken := b.notify
	b.notify = make(chan struct{})
	b.mu.Unlock()

	close(woken)
	return ev
}

// SliceFrom returns the retained events with Index >= cursor in increasing
// index order. cursor is the next index the caller expects. The second
// return value counts events the caller can no longer receive because they
// were evicted.
func (b *Buffer) SliceFrom(cursor uint64) ([]Event, uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if cursor >= b.next || b.size == 0 {
		return nil, 0
	}

	oldest := b.next - uint64(b.size)
	var missed uint64
	if cursor < oldest {
		missed = oldest - cursor
		cursor = oldest
	}

	offset := int(cursor - oldest)
	out := make([]Event, 0, b.size-offset)
	for i := offset; i < b.size; i++ {
		out = append(out, b.ring[(b.start+i)%b.capacity])
	}
	return out, missed
}

// Next returns the index the next appended event will receive. A stream that
// starts its cursor here sees only events published after it connected.
func (b *Buffer) Next() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.next
}

// Oldest returns the index of the oldest retained event, or Next() when the
// buffer is empty.
func (b *Buffer) Oldest() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.next - uint64(b.size)
}

// Len returns the number of retained events.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Capacity returns the maximum number of retained events.
func (b *Buffer) Capacity() int { return b.capacity }

// Notify returns a channel that is closed by the next Append. Fetch it before
// reading with SliceFrom so an append between the two is not lost.
func (b *Buffer) Notify() <-chan struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.notify
}
