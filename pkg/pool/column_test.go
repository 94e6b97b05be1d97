package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPool[T any](size int, opts ...Option) *ColumnPool[T] {
	return NewColumnPool[T](size, append([]Option{WithLogger(zap.NewNop())}, opts...)...)
}

func TestColumnRefCountReturnsExactlyOnce(t *testing.T) {
	tests := []struct {
		name  string
		clear bool
	}{
		{"clear on return", true},
		{"keep stale data", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPool[int64](8, WithClearOnReturn(tt.clear))

			c := p.Get()
			c.Data[0] = 7
			c.UsedLength = 1
			c.IncrementRefCount(2)
			require.Equal(t, 3, c.RefCount())

			c.Return()
			c.Return()
			assert.Equal(t, 0, p.Stats().Queued, "column must stay out while referenced")

			c.Return()
			assert.Equal(t, 1, p.Stats().Queued)
			assert.Equal(t, 0, c.UsedLength)
			if tt.clear {
				assert.Equal(t, int64(0), c.Data[0])
			} else {
				assert.Equal(t, int64(7), c.Data[0])
			}
			assert.False(t, p.Leaked())

			again := p.Get()
			assert.Same(t, c, again)
			assert.Equal(t, 1, again.RefCount())
		})
	}
}

func TestColumnMakeWritable(t *testing.T) {
	p := newTestPool[int32](4)

	c := p.Get()
	assert.Same(t, c, c.MakeWritable(p), "exclusive column is already writable")

	copy(c.Data, []int32{1, 2, 3, 4})
	c.UsedLength = 3
	c.IncrementRefCount(1)

	w := c.MakeWritable(p)
	require.NotSame(t, c, w)
	assert.Equal(t, 1, c.RefCount())
	assert.Equal(t, 1, w.RefCount())
	assert.Equal(t, c.UsedLength, w.UsedLength)
	assert.Equal(t, c.Data[:c.UsedLength], w.Data[:w.UsedLength])

	w.Data[0] = 100
	assert.Equal(t, int32(1), c.Data[0])

	c.Return()
	w.Return()
	assert.False(t, p.Leaked())
	assert.Equal(t, int64(2), p.Stats().Created)
}

func TestColumnMakeWritableUsesOwningPool(t *testing.T) {
	p := newTestPool[byte](2)
	c := p.Get()
	c.IncrementRefCount(1)

	w := c.MakeWritable(nil)
	assert.Same(t, p, w.Pool())
	w.Return()
	c.Return()
	assert.False(t, p.Leaked())
}

func TestPoollessColumn(t *testing.T) {
	c := New[string](3)
	assert.Nil(t, c.Pool())
	assert.Len(t, c.Data, 3)

	c.IncrementRefCount(1)
	w := c.MakeWritable(nil)
	assert.NotSame(t, c, w)
	assert.Nil(t, w.Pool())

	c.Return()
	assert.Nil(t, c.Data)
}

func TestColumnPoolDoubleReturnIsLeak(t *testing.T) {
	p := newTestPool[int64](2)
	c := p.Get()
	c.Return()
	require.False(t, p.Leaked())

	c.Return()
	assert.Equal(t, -1, c.RefCount())
	assert.True(t, p.Leaked())
	assert.True(t, p.Stats().Leaked)
}

func TestColumnPoolNeverReturnedIsLeak(t *testing.T) {
	p := newTestPool[int64](2)
	a := p.Get()
	_ = p.Get()
	a.Return()

	s := p.Stats()
	assert.Equal(t, int64(2), s.Created)
	assert.Equal(t, 1, s.Queued)
	assert.True(t, p.Leaked())
	assert.Contains(t, p.Status(), "leaked=true")
}

func TestColumnPoolFree(t *testing.T) {
	p := newTestPool[int64](16, WithName("free-test"))

	cols := make([]*Column[int64], 4)
	for i := range cols {
		cols[i] = p.Get()
	}
	inFlight := cols[3]
	for _, c := range cols[:3] {
		c.Return()
	}

	p.Free(false)
	s := p.Stats()
	assert.Equal(t, "free-test", s.Name)
	assert.Equal(t, int64(1), s.Created)
	assert.Equal(t, 0, s.Queued)
	for _, c := range cols[:3] {
		assert.Nil(t, c.Data)
	}

	assert.Len(t, inFlight.Data, 16, "in-flight columns keep their storage")
	inFlight.Return()
	assert.False(t, p.Leaked())

	p.Free(true)
	assert.Equal(t, int64(0), p.Stats().Created)
	assert.False(t, p.Leaked())
}

func TestColumnPoolDisabled(t *testing.T) {
	p := newTestPool[int64](4, WithPoolingDisabled(true))

	a := p.Get()
	a.Return()
	assert.Nil(t, a.Data)

	b := p.Get()
	assert.NotSame(t, a, b)
	b.Return()

	s := p.Stats()
	assert.Equal(t, int64(0), s.Created)
	assert.Equal(t, 0, s.Queued)
	assert.False(t, s.Leaked)
}

func TestColumnPoolConcurrentSharing(t *testing.T) {
	p := newTestPool[int64](64)

	const workers = 8
	const rounds = 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				c := p.Get()
				c.IncrementRefCount(2)

				var inner sync.WaitGroup
				for j := 0; j < 3; j++ {
					inner.Add(1)
					go func() {
						defer inner.Done()
						c.Return()
					}()
				}
				inner.Wait()
			}
		}()
	}
	wg.Wait()

	s := p.Stats()
	assert.Equal(t, int64(s.Queued), s.Created)
	assert.False(t, p.Leaked())
	assert.LessOrEqual(t, s.Created, int64(workers))
}

func TestObjectPool(t *testing.T) {
	n := 0
	p := NewObjectPool(func() *int { n++; v := n; return &v })

	a, hit := p.Get()
	assert.False(t, hit)
	p.Put(a)

	b, hit := p.Get()
	assert.True(t, hit)
	assert.Same(t, a, b)
	assert.Equal(t, int64(1), p.Created())

	p.Put(b)
	p.Put(p.Allocate())
	assert.Equal(t, 2, p.Queued())

	var seen []int
	assert.Equal(t, 2, p.Drain(func(v *int) { seen = append(seen, *v) }))
	assert.ElementsMatch(t, []int{1, 2}, seen)
	assert.Equal(t, int64(0), p.Created())

	_ = p.Allocate()
	p.Discard()
	assert.Equal(t, int64(0), p.Created())
	assert.Equal(t, uint64(1), p.Hits())
	assert.Equal(t, uint64(3), p.Misses())

	p.ResetCreated()
	assert.Zero(t, p.Hits())
	assert.Zero(t, p.Misses())
}

func TestColumnPoolStatsCountHitsAndMisses(t *testing.T) {
	p := newTestPool[int64](64)
	a := p.Get()
	b := p.Get()
	a.Return()
	c := p.Get()
	assert.Same(t, a, c)

	s := p.Stats()
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(2), s.Misses)

	b.Return()
	c.Return()
	assert.False(t, p.Leaked())
}
