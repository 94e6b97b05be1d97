package pool

import (
	"fmt"
	"math/bits"

	"go.uber.org/zap"

	"github.com/microsoft/Trill-sub013/pkg/logger"
	"github.com/microsoft/Trill-sub013/pkg/metrics"
)

// growthLogThreshold is the population above which every doubling of a
// pool's created count is logged.
const growthLogThreshold = 1024

// Stats is a snapshot of a pool's population.
type Stats struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Capacity int    `json:"capacity"`
	Created  int64  `json:"created"`
	Queued   int    `json:"queued"`
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Leaked   bool   `json:"leaked"`
}

// Sample converts the snapshot for the metrics collector.
func (s Stats) Sample() metrics.Sample {
	return metrics.Sample{
		Name:    s.Name,
		Kind:    s.Kind,
		Created: s.Created,
		Queued:  s.Queued,
		Leaked:  s.Leaked,
	}
}

// ColumnPool recycles columns of one element type and one capacity. Get
// never blocks and never fails: a miss allocates. The pool is safe for
// concurrent use.
type ColumnPool[T any] struct {
	size     int
	opts     options
	objects  *ObjectPool[*Column[T]]
	counters *metrics.PoolCounters
	logger   *zap.Logger
}

// NewColumnPool creates a pool of columns holding size elements each.
func NewColumnPool[T any](size int, opts ...Option) *ColumnPool[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		var zero T
		o.name = fmt.Sprintf("column/%T/%d", zero, size)
	}

	p := &ColumnPool[T]{
		size:     size,
		opts:     o,
		counters: metrics.ForPool(o.name),
		logger:   logger.Named(o.logger, "pool").With(zap.String("pool", o.name)),
	}
	p.objects = NewObjectPool(func() *Column[T] { return newPooled(p) })
	return p
}

// Name returns the pool name.
func (p *ColumnPool[T]) Name() string { return p.opts.name }

// Capacity returns the length of every column in the pool.
func (p *ColumnPool[T]) Capacity() int { return p.size }

// Get returns a column with a reference count of one. A recycled column
// holds zeros when the pool clears on return and stale data otherwise.
func (p *ColumnPool[T]) Get() *Column[T] {
	var (
		c   *Column[T]
		hit bool
	)
	if p.opts.disabled {
		c = p.objects.Allocate()
	} else {
		c, hit = p.objects.Get()
	}
	if hit {
		c.mu.Lock()
		c.refCount = 1
		c.mu.Unlock()
		p.counters.Hit()
		return c
	}

	p.counters.Miss()
	if n := p.objects.Created(); n >= growthLogThreshold && bits.OnesCount64(uint64(n)) == 1 {
		p.logger.Debug("column pool grew",
			zap.Int64("created", n),
			zap.Int("queued", p.objects.Queued()))
	}
	return c
}

// Free drains the queue and drops the storage of every drained column. When
// reset is true the created count is zeroed as well. Columns still in use
// are not affected; they come back to the queue when their holders return
// them.
func (p *ColumnPool[T]) Free(reset bool) {
	n := p.objects.Drain(func(c *Column[T]) {
		c.mu.Lock()
		c.Data = nil
		c.pool = nil
		c.mu.Unlock()
	})
	if reset {
		p.objects.ResetCreated()
	}
	p.logger.Debug("column pool freed", zap.Int("drained", n), zap.Bool("reset", reset))
}

// Leaked reports whether the pool is inconsistent: the created count differs
// from the queue length, or a queued column has a non-zero reference count.
// The answer is only meaningful when no column is in flight.
func (p *ColumnPool[T]) Leaked() bool {
	if p.objects.Created() != int64(p.objects.Queued()) {
		return true
	}
	leaked := false
	p.objects.Range(func(c *Column[T]) bool {
		if c.RefCount() != 0 {
			leaked = true
			return false
		}
		return true
	})
	return leaked
}

// Stats returns a snapshot of the pool population.
func (p *ColumnPool[T]) Stats() Stats {
	return Stats{
		Name:     p.opts.name,
		Kind:     "column",
		Capacity: p.size,
		Created:  p.objects.Created(),
		Queued:   p.objects.Queued(),
		Hits:     p.objects.Hits(),
		Misses:   p.objects.Misses(),
		Leaked:   p.Leaked(),
	}
}

// Status returns a one-line human readable description of the pool.
func (p *ColumnPool[T]) Status() string {
	s := p.Stats()
	return fmt.Sprintf("%s: capacity=%d created=%d queued=%d leaked=%t",
		s.Name, s.Capacity, s.Created, s.Queued, s.Leaked)
}
