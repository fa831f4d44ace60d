package logger

import "sync"

// RingBuffer keeps the last N values pushed to it. Safe for concurrent use.
type RingBuffer[T any] struct {
	mu    sync.RWMutex
	slots []T
	next  int
	full  bool
}

// NewRingBuffer returns a buffer holding up to capacity values. A capacity
// below one is raised to one.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	return &RingBuffer[T]{slots: make([]T, max(capacity, 1))}
}

// Push stores v, evicting the oldest value once the buffer is full.
func (r *RingBuffer[T]) Push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.slots[r.next] = v
	r.next++
	if r.next == len(r.slots) {
		r.next = 0
		r.full = true
	}
}

// GetAll returns a copy of the stored values, oldest first.
func (r *RingBuffer[T]) GetAll() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full {
		return append(make([]T, 0, r.next), r.slots[:r.next]...)
	}
	out := make([]T, 0, len(r.slots))
	out = append(out, r.slots[r.next:]...)
	return append(out, r.slots[:r.next]...)
}

func (r *RingBuffer[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.slots)
	}
	return r.next
}

// Clear drops every stored value.
func (r *RingBuffer[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.slots)
	r.next = 0
	r.full = false
}
