package batch

import (
	"github.com/microsoft/Trill-sub013/internal/bitvector"
	"github.com/microsoft/Trill-sub013/pkg/metrics"
	"github.com/microsoft/Trill-sub013/pkg/pool"
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// Batch is a fixed-capacity window of temporal events stored as parallel
// columns. A batch is single-writer: only the operator that holds it may
// call its mutators.
type Batch[K comparable, P any] struct {
	VSync     *pool.Column[int64]
	VOther    *pool.Column[int64]
	Key       *pool.Column[K]
	Payload   *pool.Column[P]
	Hash      *pool.Column[uint32]
	BitVector *pool.Column[uint64]

	// Count is the number of rows written.
	Count int
	// Iter is a consumer cursor. The batch itself only resets it.
	Iter int

	sealed   bool
	deflated bool
	mp       *MemoryPool[K, P]
}

// Pool returns the memory pool the batch belongs to.
func (b *Batch[K, P]) Pool() *MemoryPool[K, P] { return b.mp }

// Capacity returns the maximum number of rows.
func (b *Batch[K, P]) Capacity() int { return b.mp.size }

// IsSealed reports whether the batch has been sealed.
func (b *Batch[K, P]) IsSealed() bool { return b.sealed }

// IsDeflated reports whether the key and hash columns have been dropped.
func (b *Batch[K, P]) IsDeflated() bool { return b.deflated }

// IsFull reports whether Count has reached capacity.
func (b *Batch[K, P]) IsFull() bool { return b.Count >= b.mp.size }

// Allocate takes one column of each kind from the memory pool. The payload
// column is skipped in columnar mode. The bit-vector is zeroed so no row
// starts out filtered.
func (b *Batch[K, P]) Allocate() {
	if b.VSync != nil {
		trillerrors.Fail(trillerrors.ErrorTypePrecondition, "batch is already allocated")
	}
	mp := b.mp
	b.VSync = mp.longs.Get()
	b.VOther = mp.longs.Get()
	b.Hash = mp.hashes.Get()
	b.BitVector = mp.bits.Get()
	bitvector.Reset(b.BitVector.Data)
	b.Key = mp.keys.Get()
	if !mp.columnar {
		b.Payload = mp.payloads.Get()
	}
	b.Count = 0
	b.Iter = 0
	b.sealed = false
	b.deflated = false
}

// AllocatePayload attaches a payload column, for columnar batches whose
// consumer wants row-form payloads after all.
func (b *Batch[K, P]) AllocatePayload() {
	if b.Payload != nil {
		trillerrors.Fail(trillerrors.ErrorTypePrecondition, "payload column is already allocated")
	}
	b.Payload = b.mp.payloads.Get()
	b.Payload.UsedLength = b.Count
}

func (b *Batch[K, P]) checkWritable() {
	if b.sealed {
		trillerrors.Fail(trillerrors.ErrorTypePrecondition, "add to a sealed batch")
	}
	if b.VSync == nil {
		trillerrors.Fail(trillerrors.ErrorTypePrecondition, "add to an unallocated batch")
	}
	if b.Count >= b.mp.size {
		trillerrors.Fail(trillerrors.ErrorTypeCapacity, "batch is full (%d rows)", b.mp.size)
	}
	if debugChecks && (b.VSync.RefCount() != 1 || b.BitVector.RefCount() != 1) {
		trillerrors.Fail(trillerrors.ErrorTypePrecondition, "add to a shared batch; call MakeWritable first")
	}
}

// Add writes one data row and reports whether the batch is now full.
func (b *Batch[K, P]) Add(vsync, vother int64, key K, payload P) bool {
	b.checkWritable()

	i := b.Count
	b.VSync.Data[i] = vsync
	b.VOther.Data[i] = vother
	if b.Key != nil {
		b.Key.Data[i] = key
	}
	if b.Payload != nil {
		b.Payload.Data[i] = payload
	}
	if b.Hash != nil {
		if b.mp.trivialKey {
			b.Hash.Data[i] = 0
		} else {
			b.Hash.Data[i] = b.mp.hasher(key)
		}
	}
	b.Count++
	return b.Count == b.mp.size
}

// AddPunctuation writes a punctuation row at vsync and reports whether the
// batch is now full.
func (b *Batch[K, P]) AddPunctuation(vsync int64) bool {
	var key K
	return b.addControl(vsync, PunctuationOtherTime, key)
}

// AddPartitionPunctuation writes a punctuation row for one partition.
func (b *Batch[K, P]) AddPartitionPunctuation(vsync int64, key K) bool {
	return b.addControl(vsync, PunctuationOtherTime, key)
}

// AddLowWatermark writes a low-watermark row at vsync and reports whether
// the batch is now full.
func (b *Batch[K, P]) AddLowWatermark(vsync int64) bool {
	var key K
	return b.addControl(vsync, LowWatermarkOtherTime, key)
}

func (b *Batch[K, P]) addControl(vsync, marker int64, key K) bool {
	b.checkWritable()

	i := b.Count
	b.VSync.Data[i] = vsync
	b.VOther.Data[i] = marker
	if b.Key != nil {
		b.Key.Data[i] = key
	}
	if b.Payload != nil {
		var zero P
		b.Payload.Data[i] = zero
	}
	if b.Hash != nil {
		if b.mp.trivialKey {
			b.Hash.Data[i] = 0
		} else {
			b.Hash.Data[i] = b.mp.hasher(key)
		}
	}
	bitvector.Set(b.BitVector.Data, i)
	b.Count++
	return b.Count == b.mp.size
}

// Seal makes the batch immutable and propagates Count into the columns.
func (b *Batch[K, P]) Seal() {
	b.sealed = true
	b.EnsureConsistency()
	metrics.BatchesSealed.Inc()
}

// EnsureConsistency sets every column's UsedLength to Count, and the
// bit-vector's to 1 + Count/64 words.
func (b *Batch[K, P]) EnsureConsistency() {
	n := b.Count
	if b.VSync != nil {
		b.VSync.UsedLength = n
	}
	if b.VOther != nil {
		b.VOther.UsedLength = n
	}
	if b.Key != nil {
		b.Key.UsedLength = n
	}
	if b.Payload != nil {
		b.Payload.UsedLength = n
	}
	if b.Hash != nil {
		b.Hash.UsedLength = n
	}
	if b.BitVector != nil {
		b.BitVector.UsedLength = bitvector.Words(n)
	}
}

// IsFiltered reports whether row i is deleted or is a control row.
func (b *Batch[K, P]) IsFiltered(i int) bool {
	return bitvector.Test(b.BitVector.Data, i)
}

// SetFiltered marks row i deleted. The bit-vector is made writable first,
// so batches sharing it are unaffected.
func (b *Batch[K, P]) SetFiltered(i int) {
	b.BitVector = b.BitVector.MakeWritable(b.mp.bits)
	bitvector.Set(b.BitVector.Data, i)
}

// ComputeCount returns the number of live rows.
func (b *Batch[K, P]) ComputeCount() int {
	return b.ComputeCountRange(0, b.Count-1)
}

// ComputeCountRange returns the number of live rows in the inclusive range
// [start, end].
func (b *Batch[K, P]) ComputeCountRange(start, end int) int {
	if end < start {
		return 0
	}
	return end - start + 1 - bitvector.CountSet(b.BitVector.Data, start, end, b.mp.popcount)
}

// MinTimestamp returns the smallest sync time among live rows. Partitioned
// batches are scanned fully; otherwise sync times are non-decreasing and the
// first live row wins.
func (b *Batch[K, P]) MinTimestamp() (int64, bool) {
	words := b.BitVector.Data
	if !b.mp.partitioned {
		for i := 0; i < b.Count; i++ {
			if !bitvector.Test(words, i) {
				return b.VSync.Data[i], true
			}
		}
		return 0, false
	}

	lo, found := InfinitySyncTime, false
	for i := 0; i < b.Count; i++ {
		if !bitvector.Test(words, i) && b.VSync.Data[i] <= lo {
			lo, found = b.VSync.Data[i], true
		}
	}
	return lo, found
}

// MaxTimestamp returns the largest sync time among live rows, scanning
// backwards from the last row in unpartitioned batches.
func (b *Batch[K, P]) MaxTimestamp() (int64, bool) {
	words := b.BitVector.Data
	if !b.mp.partitioned {
		for i := b.Count - 1; i >= 0; i-- {
			if !bitvector.Test(words, i) {
				return b.VSync.Data[i], true
			}
		}
		return 0, false
	}

	var hi int64
	found := false
	for i := 0; i < b.Count; i++ {
		if !bitvector.Test(words, i) && (!found || b.VSync.Data[i] > hi) {
			hi, found = b.VSync.Data[i], true
		}
	}
	return hi, found
}

func share[T any](c *pool.Column[T], swing bool) *pool.Column[T] {
	if c != nil && !swing {
		c.IncrementRefCount(1)
	}
	return c
}

// CloneFrom copies other's column references into b, which must be
// unallocated. Without swing every column gains a reference and both batches
// share it. With swing the references move: other loses its columns and must
// not be used until it is allocated again.
func (b *Batch[K, P]) CloneFrom(other *Batch[K, P], swing bool) {
	b.cloneFrom(other, swing, true)
}

// CloneFromNoPayload is CloneFrom without the payload column, for operators
// that project the payload away. It always shares.
func (b *Batch[K, P]) CloneFromNoPayload(other *Batch[K, P]) {
	b.cloneFrom(other, false, false)
}

func (b *Batch[K, P]) cloneFrom(other *Batch[K, P], swing, payload bool) {
	if b.VSync != nil {
		trillerrors.Fail(trillerrors.ErrorTypePrecondition, "clone into an allocated batch")
	}

	b.VSync = share(other.VSync, swing)
	b.VOther = share(other.VOther, swing)
	b.Key = share(other.Key, swing)
	b.Hash = share(other.Hash, swing)
	b.BitVector = share(other.BitVector, swing)
	if payload {
		b.Payload = share(other.Payload, swing)
	}
	b.Count = other.Count
	b.Iter = other.Iter
	b.sealed = other.sealed
	b.deflated = other.deflated

	if swing {
		other.VSync, other.VOther, other.Key, other.Hash, other.BitVector = nil, nil, nil, nil, nil
		if payload {
			other.Payload = nil
		}
	}
}

// MakeWritable makes every column exclusive to b, copying shared ones.
func (b *Batch[K, P]) MakeWritable() {
	mp := b.mp
	if b.VSync != nil {
		b.VSync = b.VSync.MakeWritable(mp.longs)
	}
	if b.VOther != nil {
		b.VOther = b.VOther.MakeWritable(mp.longs)
	}
	if b.Key != nil {
		b.Key = b.Key.MakeWritable(mp.keys)
	}
	if b.Payload != nil {
		b.Payload = b.Payload.MakeWritable(mp.payloads)
	}
	if b.Hash != nil {
		b.Hash = b.Hash.MakeWritable(mp.hashes)
	}
	if b.BitVector != nil {
		b.BitVector = b.BitVector.MakeWritable(mp.bits)
	}
}

// Deflate drops the key and hash columns of a trivially keyed batch. It is
// a precondition fault for real keys.
func (b *Batch[K, P]) Deflate() {
	if !b.mp.trivialKey {
		trillerrors.Fail(trillerrors.ErrorTypePrecondition, "deflate of a batch with key type %s", b.mp.keys.Name())
	}
	if b.deflated {
		return
	}
	if b.Key != nil {
		b.Key.Return()
		b.Key = nil
	}
	if b.Hash != nil {
		b.Hash.Return()
		b.Hash = nil
	}
	b.deflated = true
}

// Inflate regenerates the key and hash columns dropped by Deflate. Every row
// gets the zero key and a zero hash.
func (b *Batch[K, P]) Inflate() {
	if !b.deflated {
		return
	}
	used := b.Count
	if b.VSync != nil {
		used = b.VSync.UsedLength
	}

	b.Key = b.mp.keys.Get()
	var zero K
	for i := range b.Key.Data {
		b.Key.Data[i] = zero
	}
	b.Key.UsedLength = used

	b.Hash = b.mp.hashes.Get()
	clear(b.Hash.Data)
	b.Hash.UsedLength = used

	b.deflated = false
}

func release[T any](c *pool.Column[T]) {
	if c != nil {
		c.Return()
	}
}

// Release returns every column and resets the batch to its unallocated
// state.
func (b *Batch[K, P]) Release() {
	release(b.VSync)
	release(b.VOther)
	release(b.Key)
	release(b.Payload)
	release(b.Hash)
	release(b.BitVector)
	b.VSync, b.VOther, b.Key, b.Payload, b.Hash, b.BitVector = nil, nil, nil, nil, nil, nil
	b.Count = 0
	b.Iter = 0
	b.sealed = false
	b.deflated = false
}

// Free releases the batch and returns it to its batch pool.
func (b *Batch[K, P]) Free() {
	b.mp.batches.Return(b)
}

// Validate checks that every live row has vsync <= vother. Control rows and
// filtered rows are skipped.
func (b *Batch[K, P]) Validate() error {
	var rows []int
	for i := 0; i < b.Count; i++ {
		if b.IsFiltered(i) || IsSentinel(b.VOther.Data[i]) {
			continue
		}
		if b.VSync.Data[i] > b.VOther.Data[i] {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return trillerrors.Newf(trillerrors.ErrorTypeValidation,
		"%d rows end before they start", len(rows)).
		WithDetail("rows", rows).
		WithDetail("pool", b.mp.name)
}
