package batch

import (
	"github.com/microsoft/Trill-sub013/pkg/pool"
)

// BatchPool recycles Batch objects. A batch comes back with no columns and
// its count, cursor and seal state reset.
type BatchPool[K comparable, P any] struct {
	mp       *MemoryPool[K, P]
	disabled bool
	objects  *pool.ObjectPool[*Batch[K, P]]
}

func newBatchPool[K comparable, P any](mp *MemoryPool[K, P], disabled bool) *BatchPool[K, P] {
	return &BatchPool[K, P]{
		mp:       mp,
		disabled: disabled,
		objects: pool.NewObjectPool(func() *Batch[K, P] {
			return &Batch[K, P]{mp: mp}
		}),
	}
}

// Get returns an unallocated batch.
func (bp *BatchPool[K, P]) Get() *Batch[K, P] {
	if bp.disabled {
		return bp.objects.Allocate()
	}
	b, _ := bp.objects.Get()
	return b
}

// Return releases b and recycles it.
func (bp *BatchPool[K, P]) Return(b *Batch[K, P]) {
	b.Release()
	if bp.disabled {
		bp.objects.Discard()
		return
	}
	bp.objects.Put(b)
}

// Free forgets every queued batch. With reset the created count is zeroed.
func (bp *BatchPool[K, P]) Free(reset bool) {
	bp.objects.Drain(nil)
	if reset {
		bp.objects.ResetCreated()
	}
}

// Leaked reports whether some batch was never returned or returned twice.
func (bp *BatchPool[K, P]) Leaked() bool {
	return bp.objects.Created() != int64(bp.objects.Queued())
}

// Stats returns a snapshot of the batch population.
func (bp *BatchPool[K, P]) Stats() pool.Stats {
	return pool.Stats{
		Name:     bp.mp.name,
		Kind:     "batch",
		Capacity: bp.mp.size,
		Created:  bp.objects.Created(),
		Queued:   bp.objects.Queued(),
		Hits:     bp.objects.Hits(),
		Misses:   bp.objects.Misses(),
		Leaked:   bp.Leaked(),
	}
}
