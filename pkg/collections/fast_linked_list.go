package collections

import (
	"iter"

	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// FastLinkedList is an insertion-ordered list of values under stable
// integer handles, stored densely with a free list for removed slots.
type FastLinkedList[V any] struct {
	values      []V
	links       []link
	head        int
	tail        int
	free        int
	initialized int
	count       int
}

// NewFastLinkedList creates a list with room for capacity values.
func NewFastLinkedList[V any](capacity int) *FastLinkedList[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &FastLinkedList[V]{
		values: make([]V, capacity),
		links:  make([]link, capacity),
		head:   -1,
		tail:   -1,
		free:   -1,
	}
}

// Count returns the number of values.
func (l *FastLinkedList[V]) Count() int { return l.count }

// IsEmpty reports whether the list holds no values.
func (l *FastLinkedList[V]) IsEmpty() bool { return l.count == 0 }

// Insert appends value and returns its handle.
func (l *FastLinkedList[V]) Insert(value V) int {
	var h int
	switch {
	case l.free >= 0:
		h = l.free
		l.free = l.links[h].next
	case l.initialized < len(l.values):
		h = l.initialized
		l.initialized++
	default:
		n := 2 * len(l.values)
		values := make([]V, n)
		copy(values, l.values)
		links := make([]link, n)
		copy(links, l.links)
		l.values, l.links = values, links
		h = l.initialized
		l.initialized++
	}

	l.values[h] = value
	l.links[h] = link{list: ListVisible, prev: l.tail, next: -1}
	if l.tail >= 0 {
		l.links[l.tail].next = h
	} else {
		l.head = h
	}
	l.tail = h
	l.count++
	return h
}

// Remove unlinks h and recycles its slot.
func (l *FastLinkedList[V]) Remove(h int) {
	if debugChecks && (h < 0 || h >= l.initialized || l.links[h].list != ListVisible) {
		trillerrors.Fail(trillerrors.ErrorTypePrecondition, "Remove of handle %d that is not in the list", h)
	}
	lk := l.links[h]
	if lk.prev >= 0 {
		l.links[lk.prev].next = lk.next
	} else {
		l.head = lk.next
	}
	if lk.next >= 0 {
		l.links[lk.next].prev = lk.prev
	} else {
		l.tail = lk.prev
	}

	var zero V
	l.values[h] = zero
	l.links[h] = link{list: ListFree, prev: -1, next: l.free}
	l.free = h
	l.count--
}

// Front returns the first handle, or -1.
func (l *FastLinkedList[V]) Front() int { return l.head }

// Next returns the handle after h, or -1.
func (l *FastLinkedList[V]) Next(h int) int { return l.links[h].next }

// Iterate advances *index through the list. Start with IteratorStart.
func (l *FastLinkedList[V]) Iterate(index *int) bool {
	var next int
	if *index == IteratorStart {
		next = l.head
	} else {
		next = l.links[*index].next
	}
	if next < 0 {
		return false
	}
	*index = next
	return true
}

// All yields handles and values in insertion order.
func (l *FastLinkedList[V]) All() iter.Seq2[int, V] {
	return func(yield func(int, V) bool) {
		for h := l.head; h >= 0; h = l.links[h].next {
			if !yield(h, l.values[h]) {
				return
			}
		}
	}
}

// Get returns the value of h.
func (l *FastLinkedList[V]) Get(h int) V { return l.values[h] }

// Set replaces the value of h.
func (l *FastLinkedList[V]) Set(h int, value V) { l.values[h] = value }

// Ref returns a pointer to the value of h, valid until the next insert.
func (l *FastLinkedList[V]) Ref(h int) *V { return &l.values[h] }

// Clear empties the list, keeping its capacity.
func (l *FastLinkedList[V]) Clear() {
	clear(l.values)
	l.head, l.tail, l.free = -1, -1, -1
	l.initialized = 0
	l.count = 0
}
