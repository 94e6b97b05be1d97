// Package lockfree provides lock-free data structures for the pool layer.
package lockfree

import (
	"sync/atomic"
)

// Queue is an unbounded multi-producer multi-consumer FIFO queue
// (Michael-Scott). Enqueue and Dequeue never block and never fail for lack
// of space; the queue grows one node per element.
type Queue[T any] struct {
	head atomic.Pointer[node[T]]
	_    [7]uint64 //nolint:unused // keep head and tail on separate cache lines

	tail atomic.Pointer[node[T]]
	_    [7]uint64 //nolint:unused

	length atomic.Int64
}

type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{}
	sentinel := &node[T]{}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q
}

// Enqueue appends item to the tail of the queue. Safe for concurrent use.
func (q *Queue[T]) Enqueue(item T) {
	n := &node[T]{value: item}
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}
		if next != nil {
			// Tail is lagging, help it forward.
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		if tail.next.CompareAndSwap(nil, n) {
			q.tail.CompareAndSwap(tail, n)
			q.length.Add(1)
			return
		}
	}
}

// Dequeue removes and returns the item at the head of the queue.
// Returns the zero value and false if the queue is empty.
func (q *Queue[T]) Dequeue() (T, bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()
		if head != q.head.Load() {
			continue
		}
		if next == nil {
			var zero T
			return zero, false
		}
		if head == tail {
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		if q.head.CompareAndSwap(head, next) {
			value := next.value
			var zero T
			next.value = zero // next becomes the sentinel; drop the reference
			q.length.Add(-1)
			return value, true
		}
	}
}

// Len returns the number of queued items. This is an approximation while
// producers and consumers are active.
func (q *Queue[T]) Len() int {
	n := q.length.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// IsEmpty returns true if the queue holds no items.
func (q *Queue[T]) IsEmpty() bool {
	return q.head.Load().next.Load() == nil
}

// Range calls fn for every queued item from head to tail without removing
// it, stopping early if fn returns false. The snapshot is only consistent
// when no other goroutine mutates the queue.
func (q *Queue[T]) Range(fn func(T) bool) {
	for n := q.head.Load().next.Load(); n != nil; n = n.next.Load() {
		if !fn(n.value) {
			return
		}
	}
}

// AtomicCounter provides a lock-free counter for statistics and metrics collection
// with atomic operations for thread-safe updates.
type AtomicCounter struct {
	value atomic.Uint64
}

// NewAtomicCounter creates a new atomic counter initialized to zero.
func NewAtomicCounter() *AtomicCounter {
	return &AtomicCounter{}
}

// Increment atomically increments the counter by one.
func (c *AtomicCounter) Increment() {
	c.value.Add(1)
}

// Add atomically adds the given delta value to the counter.
func (c *AtomicCounter) Add(delta uint64) {
	c.value.Add(delta)
}

// Get returns the current value of the counter atomically.
func (c *AtomicCounter) Get() uint64 {
	return c.value.Load()
}

// Reset atomically resets the counter to zero.
func (c *AtomicCounter) Reset() {
	c.value.Store(0)
}
