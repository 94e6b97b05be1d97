package batch

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/microsoft/Trill-sub013/internal/bitvector"
	"github.com/microsoft/Trill-sub013/pkg/collections"
	"github.com/microsoft/Trill-sub013/pkg/logger"
	"github.com/microsoft/Trill-sub013/pkg/pool"
	"github.com/microsoft/Trill-sub013/pkg/registry"
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// MemoryPool owns the column pools needed to build a batch of one key and
// payload type, plus the pool of Batch objects themselves. Column pools are
// drawn from the registry, so memory pools of different payload types share
// their time, hash and bit-vector columns.
type MemoryPool[K comparable, P any] struct {
	name        string
	size        int
	columnar    bool
	partitioned bool
	trivialKey  bool
	hasher      func(K) uint32
	popcount    func(uint64) int

	longs    *pool.ColumnPool[int64]
	hashes   *pool.ColumnPool[uint32]
	bits     *pool.ColumnPool[uint64]
	keys     *pool.ColumnPool[K]
	payloads *pool.ColumnPool[P]
	batches  *BatchPool[K, P]

	logger *zap.Logger
}

// NewMemoryPool creates a memory pool over reg. Most callers want
// GetMemoryPool, which shares one instance per configuration.
func NewMemoryPool[K comparable, P any](reg *registry.Registry, opts ...Option) *MemoryPool[K, P] {
	o := defaultMemoryOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newMemoryPool[K, P](reg, memoryKey[K, P](o), o)
}

func newMemoryPool[K comparable, P any](reg *registry.Registry, key registry.Key, o memoryOptions) *MemoryPool[K, P] {
	if o.size < 1 {
		trillerrors.Fail(trillerrors.ErrorTypeValidation, "batch size must be positive, got %d", o.size)
	}

	var zero K
	_, trivial := any(zero).(Empty)

	mp := &MemoryPool[K, P]{
		name:        key.String(),
		size:        o.size,
		columnar:    o.columnar,
		partitioned: o.partitioned,
		trivialKey:  trivial,
		popcount:    bitvector.Counter(o.popcount),
		longs:       registry.ColumnPool[int64](reg, o.size),
		hashes:      registry.ColumnPool[uint32](reg, o.size),
		bits:        registry.ColumnPool[uint64](reg, bitvector.Words(o.size)),
		keys:        registry.ColumnPool[K](reg, o.size),
		payloads:    registry.ColumnPool[P](reg, o.size),
		logger:      logger.Named(o.logger, "batch").With(zap.String("pool", key.String())),
	}

	switch h := o.hasher.(type) {
	case nil:
		mp.hasher = collections.DefaultHasher[K]()
		switch kind := collections.DefaultHasherKind[K](); kind {
		case collections.HasherFormatted:
			mp.logger.Warn("key type can hold interface values and hashes through fmt; supply WithHasher",
				zap.String("key", registry.TypeName[K]()))
		case collections.HasherFields:
			mp.logger.Debug("key type hashes by reflection", zap.String("key", registry.TypeName[K]()))
		}
	case func(K) uint32:
		mp.hasher = h
	default:
		trillerrors.Fail(trillerrors.ErrorTypeValidation,
			"hasher %T does not match key type %s", o.hasher, registry.TypeName[K]())
	}

	mp.batches = newBatchPool(mp, o.disabled)
	return mp
}

func memoryKey[K comparable, P any](o memoryOptions) registry.Key {
	kind := "batch"
	if o.columnar {
		kind += "+columnar"
	}
	if o.partitioned {
		kind += "+partitioned"
	}
	return registry.Key{
		Kind: kind,
		Type: fmt.Sprintf("%s,%s", registry.TypeName[K](), registry.TypeName[P]()),
		Size: o.size,
	}
}

// GetMemoryPool returns the memory pool registered in reg for K, P and the
// configuration in opts, creating it on first use. Options that are not
// part of the fingerprint (logger, hasher) only take effect on creation.
func GetMemoryPool[K comparable, P any](reg *registry.Registry, opts ...Option) *MemoryPool[K, P] {
	o := defaultMemoryOptions()
	for _, opt := range opts {
		opt(&o)
	}
	key := memoryKey[K, P](o)
	return registry.Acquire(reg, key, func() *MemoryPool[K, P] {
		return newMemoryPool[K, P](reg, key, o)
	})
}

// Name returns the pool fingerprint.
func (mp *MemoryPool[K, P]) Name() string { return mp.name }

// BatchSize returns the row capacity of every batch.
func (mp *MemoryPool[K, P]) BatchSize() int { return mp.size }

// IsColumnar reports whether payload columns are owned outside the batch.
func (mp *MemoryPool[K, P]) IsColumnar() bool { return mp.columnar }

// IsPartitioned reports whether the stream is partitioned by key.
func (mp *MemoryPool[K, P]) IsPartitioned() bool { return mp.partitioned }

// HasTrivialKey reports whether K is Empty.
func (mp *MemoryPool[K, P]) HasTrivialKey() bool { return mp.trivialKey }

// Hash hashes a key with the pool's hasher.
func (mp *MemoryPool[K, P]) Hash(key K) uint32 { return mp.hasher(key) }

// TimeColumns returns the pool of sync and other time columns.
func (mp *MemoryPool[K, P]) TimeColumns() *pool.ColumnPool[int64] { return mp.longs }

// HashColumns returns the pool of hash columns.
func (mp *MemoryPool[K, P]) HashColumns() *pool.ColumnPool[uint32] { return mp.hashes }

// BitVectorColumns returns the pool of bit-vector columns.
func (mp *MemoryPool[K, P]) BitVectorColumns() *pool.ColumnPool[uint64] { return mp.bits }

// KeyColumns returns the pool of key columns.
func (mp *MemoryPool[K, P]) KeyColumns() *pool.ColumnPool[K] { return mp.keys }

// PayloadColumns returns the pool of payload columns.
func (mp *MemoryPool[K, P]) PayloadColumns() *pool.ColumnPool[P] { return mp.payloads }

// Batches returns the pool of Batch objects.
func (mp *MemoryPool[K, P]) Batches() *BatchPool[K, P] { return mp.batches }

// Get returns a batch with no columns. Call Allocate or CloneFrom next.
func (mp *MemoryPool[K, P]) Get() *Batch[K, P] {
	return mp.batches.Get()
}

// GetAllocated returns a batch with fresh columns.
func (mp *MemoryPool[K, P]) GetAllocated() *Batch[K, P] {
	b := mp.batches.Get()
	b.Allocate()
	return b
}

// Return releases b's columns and gives b back to the batch pool.
func (mp *MemoryPool[K, P]) Return(b *Batch[K, P]) {
	mp.batches.Return(b)
}

// Free frees the batch pool and the column pools this memory pool uses.
func (mp *MemoryPool[K, P]) Free(reset bool) {
	mp.batches.Free(reset)
	mp.longs.Free(reset)
	mp.hashes.Free(reset)
	mp.bits.Free(reset)
	mp.keys.Free(reset)
	mp.payloads.Free(reset)
	mp.logger.Debug("memory pool freed", zap.Bool("reset", reset))
}

// Leaked reports whether the batch pool or any column pool used by this
// memory pool is inconsistent.
func (mp *MemoryPool[K, P]) Leaked() bool {
	return mp.batches.Leaked() ||
		mp.longs.Leaked() ||
		mp.hashes.Leaked() ||
		mp.bits.Leaked() ||
		mp.keys.Leaked() ||
		mp.payloads.Leaked()
}

// Stats describes the batch object pool. Column pools are registered
// separately and report their own stats.
func (mp *MemoryPool[K, P]) Stats() pool.Stats {
	s := mp.batches.Stats()
	s.Name = mp.name
	return s
}
