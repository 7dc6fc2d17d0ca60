// SPDX-License-Identifier: MIT
//
// Package ring provides a generic fixed-capacity FIFO. Pushing past capacity
// evicts the oldest element; it never blocks and never grows.
package ring

import (
	"errors"
	"fmt"
)

// ErrSize is returned for a capacity below one.
var ErrSize = errors.New("ring: size must be at least 1")

// Buffer holds up to Size elements, oldest first. It is not safe for
// concurrent use; the pipeline only touches it from the render goroutine.
type Buffer[T any] struct {
	items []T
	head  int // index of the oldest element
	count int
}

// New creates an empty buffer with the given capacity.
func New[T any](size int) (*Buffer[T], error) {
	if size < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrSize, size)
	}
	return &Buffer[T]{items: make([]T, size)}, nil
}

// Len returns the number of stored elements.
func (b *Buffer[T]) Len() int { return b.count }

// Size returns the capacity.
func (b *Buffer[T]) Size() int { return len(b.items) }

// At returns the i-th element, 0 being the oldest.
func (b *Buffer[T]) At(i int) T {
	if i < 0 || i >= b.count {
		panic(fmt.Sprintf("ring: index %d out of range [0,%d)", i, b.count))
	}
	return b.items[(b.head+i)%len(b.items)]
}

// Push appends v. When the buffer is full the oldest element is evicted and
// returned with ok set.
func (b *Buffer[T]) Push(v T) (evicted T, ok bool) {
	size := len(b.items)
	if b.count < size {
		b.items[(b.head+b.count)%size] = v
		b.count++
		return evicted, false
	}
	evicted = b.items[b.head]
	b.items[b.head] = v
	b.head = (b.head + 1) % size
	return evicted, true
}

// Resize changes the capacity. Shrinking keeps the most recent elements.
func (b *Buffer[T]) Resize(size int) error {
	if size < 1 {
		return fmt.Errorf("%w, got %d", ErrSize, size)
	}
	if size == len(b.items) {
		return nil
	}
	keep := min(b.count, size)
	items := make([]T, size)
	for i := range keep {
		items[i] = b.At(b.count - keep + i)
	}
	b.items = items
	b.head = 0
	b.count = keep
	return nil
}

// Last returns up to n of the most recent elements, oldest first.
func (b *Buffer[T]) Last(n int) []T {
	n = max(0, min(n, b.count))
	out := make([]T, n)
	for i := range n {
		out[i] = b.At(b.count - n + i)
	}
	return out
}

// Items returns every stored element, oldest first.
func (b *Buffer[T]) Items() []T {
	return b.Last(b.count)
}

// Newest returns the most recently pushed element.
func (b *Buffer[T]) Newest() (v T, ok bool) {
	if b.count == 0 {
		return v, false
	}
	return b.At(b.count - 1), true
}

// Reset drops every element and keeps the capacity.
func (b *Buffer[T]) Reset() {
	clear(b.items)
	b.head = 0
	b.count = 0
}
