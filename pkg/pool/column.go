package pool

import (
	"sync"
)

// Column is a fixed-capacity typed array with a logical used length and a
// reference count. While the count is above one the column is shared and
// must not be mutated in place; call MakeWritable first.
type Column[T any] struct {
	// Data is the backing array. Its length is the pool's capacity.
	Data []T
	// UsedLength is the logical number of rows written. Batches update it
	// when they are sealed.
	UsedLength int

	pool     *ColumnPool[T]
	mu       sync.Mutex
	refCount int
}

// New returns a column of the given size that belongs to no pool. Returning
// it to a zero count drops its storage.
func New[T any](size int) *Column[T] {
	return &Column[T]{Data: make([]T, size), refCount: 1}
}

func newPooled[T any](p *ColumnPool[T]) *Column[T] {
	return &Column[T]{Data: make([]T, p.size), pool: p, refCount: 1}
}

// Pool returns the owning pool, or nil for poolless columns.
func (c *Column[T]) Pool() *ColumnPool[T] {
	return c.pool
}

// RefCount returns the current reference count.
func (c *Column[T]) RefCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refCount
}

// IncrementRefCount adds n holders. It takes the same lock as Return so a
// concurrent Return cannot observe zero in between.
func (c *Column[T]) IncrementRefCount(n int) {
	c.mu.Lock()
	c.refCount += n
	c.mu.Unlock()
}

// Return releases one reference. When the count reaches zero the storage is
// cleared (if the pool clears on return), UsedLength is reset and the column
// is enqueued back to its pool, all before the lock is released. A column
// of a disabled pool, or a poolless column, drops its storage instead.
//
// Returning more often than referenced drives the count negative; the pool
// reports that through Leaked.
func (c *Column[T]) Return() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refCount--
	if c.refCount != 0 {
		return
	}

	p := c.pool
	if p == nil || p.opts.disabled {
		c.Data = nil
		c.UsedLength = 0
		if p != nil {
			p.objects.Discard()
		}
		return
	}

	if p.opts.clearOnReturn {
		clear(c.Data)
	}
	c.UsedLength = 0
	p.counters.Returned()
	p.objects.Put(c)
}

// MakeWritable returns a column the caller owns exclusively. With a count of
// one that is c itself. Otherwise a column is taken from p (the owning pool
// when p is nil), the whole backing array and UsedLength are copied, and c
// loses one reference.
func (c *Column[T]) MakeWritable(p *ColumnPool[T]) *Column[T] {
	if c.RefCount() == 1 {
		return c
	}

	if p == nil {
		p = c.pool
	}
	var n *Column[T]
	if p != nil {
		n = p.Get()
	} else {
		n = New[T](len(c.Data))
	}
	copy(n.Data, c.Data)
	n.UsedLength = c.UsedLength

	c.Return()
	return n
}
