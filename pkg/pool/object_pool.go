package pool

import (
	"sync/atomic"

	"github.com/microsoft/Trill-sub013/pkg/lockfree"
)

// ObjectPool recycles objects of one shape through a lock-free queue and
// keeps the number of objects it ever created, so Created() - Queued() is
// the number currently checked out. Unlike sync.Pool it never drops objects
// on its own, which is what makes leak accounting possible.
type ObjectPool[T any] struct {
	queue   *lockfree.Queue[T]
	created atomic.Int64
	newFn   func() T

	hits   lockfree.AtomicCounter
	misses lockfree.AtomicCounter
}

// NewObjectPool creates a pool that calls newFn on a miss.
func NewObjectPool[T any](newFn func() T) *ObjectPool[T] {
	return &ObjectPool[T]{
		queue: lockfree.NewQueue[T](),
		newFn: newFn,
	}
}

// Get returns a recycled object and true, or a freshly created one and
// false. It never blocks.
func (p *ObjectPool[T]) Get() (T, bool) {
	if obj, ok := p.queue.Dequeue(); ok {
		p.hits.Increment()
		return obj, true
	}
	return p.Allocate(), false
}

// Allocate creates a new object without consulting the queue. It counts as
// a miss.
func (p *ObjectPool[T]) Allocate() T {
	p.created.Add(1)
	p.misses.Increment()
	return p.newFn()
}

// Put enqueues obj for reuse.
func (p *ObjectPool[T]) Put(obj T) {
	p.queue.Enqueue(obj)
}

// Discard records that a checked-out object will never come back.
func (p *ObjectPool[T]) Discard() {
	p.created.Add(-1)
}

// Drain dequeues every queued object, calls fn on it and forgets it.
// Returns the number drained.
func (p *ObjectPool[T]) Drain(fn func(T)) int {
	n := 0
	for {
		obj, ok := p.queue.Dequeue()
		if !ok {
			return n
		}
		p.created.Add(-1)
		if fn != nil {
			fn(obj)
		}
		n++
	}
}

// Range visits queued objects without dequeuing them.
func (p *ObjectPool[T]) Range(fn func(T) bool) {
	p.queue.Range(fn)
}

// Created returns the number of live objects this pool created.
func (p *ObjectPool[T]) Created() int64 {
	return p.created.Load()
}

// Queued returns the number of objects waiting for reuse.
func (p *ObjectPool[T]) Queued() int {
	return p.queue.Len()
}

// ResetCreated zeroes the creation counter along with the hit and miss
// counts.
func (p *ObjectPool[T]) ResetCreated() {
	p.created.Store(0)
	p.hits.Reset()
	p.misses.Reset()
}

// Hits returns the number of Gets served from the queue.
func (p *ObjectPool[T]) Hits() uint64 { return p.hits.Get() }

// Misses returns the number of objects allocated.
func (p *ObjectPool[T]) Misses() uint64 { return p.misses.Get() }
