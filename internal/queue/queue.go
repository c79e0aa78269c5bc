// Package queue holds the write-behind buffer the session journal batches
// records through between flushes.
package queue

import (
	"sync"
)

// Buffer accumulates records of one kind until the next flush drains them.
// Safe for concurrent use: recording handlers push while the flush loop
// drains.
type Buffer[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewBuffer creates an empty buffer.
func NewBuffer[T any]() *Buffer[T] {
	return &Buffer[T]{}
}

// Push appends records to the buffer.
func (b *Buffer[T]) Push(items ...T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, items...)
}

// Len returns the number of buffered records.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Drain returns everything buffered, in push order, and leaves the buffer
// empty. The backing capacity is kept for the next batch.
func (b *Buffer[T]) Drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	batch := b.items
	b.items = make([]T, 0, cap(b.items))
	return batch
}
