// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package topk provides a fixed-capacity collector for the K largest
// items under a caller-supplied ordering.
package topk

import "container/heap"

// A Heap retains the cap largest items inserted into it. The zero
// value is not usable; call New.
type Heap[T any] struct {
	inner minHeap[T]
	cap   int
}

// New returns a Heap retaining the cap largest items by less.
func New[T any](cap int, less func(a, b T) bool) *Heap[T] {
	return &Heap[T]{inner: minHeap[T]{less: less}, cap: cap}
}

// Insert offers v to the heap. If the heap is full and v exceeds the
// current minimum, the displaced minimum is returned; if full and v
// does not exceed it, v itself is returned. Otherwise v is retained
// and ok is false.
func (h *Heap[T]) Insert(v T) (displaced T, ok bool) {
	if h.inner.Len() == h.cap {
		if h.cap > 0 && h.inner.less(h.inner.items[0], v) {
			displaced = h.inner.items[0]
			h.inner.items[0] = v
			heap.Fix(&h.inner, 0)
			return displaced, true
		}
		return v, true
	}
	heap.Push(&h.inner, v)
	return displaced, false
}

// Len returns the number of retained items.
func (h *Heap[T]) Len() int {
	return h.inner.Len()
}

// Items returns the retained items in unspecified order.
func (h *Heap[T]) Items() []T {
	return h.inner.items
}

// minHeap is a min-heap so that the smallest retained item is always
// at the root, ready to be displaced.
type minHeap[T any] struct {
	items []T
	less  func(a, b T) bool
}

func (h *minHeap[T]) Len() int           { return len(h.items) }
func (h *minHeap[T]) Less(i, j int) bool { return h.less(h.items[i], h.items[j]) }
func (h *minHeap[T]) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *minHeap[T]) Push(x any) {
	h.items = append(h.items, x.(T))
}

func (h *minHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	x := old[n-1]
	h.items = old[:n-1]
	return x
}
