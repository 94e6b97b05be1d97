package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/microsoft/Trill-sub013/internal/bitvector"
	"github.com/microsoft/Trill-sub013/pkg/registry"
	"github.com/microsoft/Trill-sub013/pkg/testutil"
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

func newRegistry() *registry.Registry {
	return registry.New(registry.WithLogger(zap.NewNop()))
}

func newPool[K comparable, P any](t *testing.T, size int, opts ...Option) (*registry.Registry, *MemoryPool[K, P]) {
	t.Helper()
	reg := newRegistry()
	opts = append([]Option{WithBatchSize(size), WithLogger(zap.NewNop())}, opts...)
	return reg, GetMemoryPool[K, P](reg, opts...)
}

func TestComputeCountScenario(t *testing.T) {
	for _, mode := range []bitvector.Mode{bitvector.Table, bitvector.Intrinsic, bitvector.Auto} {
		t.Run(mode.String(), func(t *testing.T) {
			_, mp := newPool[Empty, int64](t, 8, WithPopcount(mode))
			b := mp.GetAllocated()
			defer b.Free()

			for i := 0; i < 8; i++ {
				b.Add(int64(i), InfinitySyncTime, Empty{}, int64(i))
			}
			b.SetFiltered(1)
			b.SetFiltered(3)

			assert.Equal(t, 6, b.ComputeCountRange(0, 7))
			assert.Equal(t, 6, b.ComputeCount())
			assert.True(t, b.IsFiltered(1))
			assert.False(t, b.IsFiltered(2))
			assert.Equal(t, 2, b.ComputeCountRange(1, 4))
		})
	}
}

func TestRowCountConsistency(t *testing.T) {
	_, mp := newPool[int64, string](t, 200)
	b := mp.GetAllocated()
	defer b.Free()

	control, filtered := 0, 0
	for i := 0; i < 150; i++ {
		switch i % 7 {
		case 3:
			b.AddPunctuation(int64(i))
			control++
		case 5:
			b.AddLowWatermark(int64(i))
			control++
		default:
			b.Add(int64(i), int64(i+10), int64(i%4), "p")
			if i%11 == 0 {
				b.SetFiltered(b.Count - 1)
				filtered++
			}
		}
	}

	assert.Equal(t, 150, b.Count)
	assert.Equal(t, 150-control-filtered, b.ComputeCount())
	assert.Equal(t, PunctuationOtherTime, b.VOther.Data[3])
	assert.Equal(t, LowWatermarkOtherTime, b.VOther.Data[5])
	assert.True(t, b.IsFiltered(3))
	assert.NoError(t, b.Validate())
}

func TestAddReportsFullAndSealFaults(t *testing.T) {
	_, mp := newPool[Empty, int](t, 3)
	b := mp.GetAllocated()
	defer b.Free()

	assert.False(t, b.Add(1, 2, Empty{}, 1))
	assert.False(t, b.AddPunctuation(2))
	assert.True(t, b.Add(3, 4, Empty{}, 3))
	assert.True(t, b.IsFull())

	testutil.ExpectFault(t, trillerrors.ErrorTypeCapacity, func() { b.Add(5, 6, Empty{}, 5) })

	b.Seal()
	assert.True(t, b.IsSealed())
	testutil.ExpectFault(t, trillerrors.ErrorTypePrecondition, func() { b.AddLowWatermark(7) })
}

func TestSealEnsuresConsistency(t *testing.T) {
	_, mp := newPool[int64, int64](t, 130)
	b := mp.GetAllocated()
	defer b.Free()

	for i := 0; i < 70; i++ {
		b.Add(int64(i), int64(i)+1, int64(i), int64(i))
	}
	b.Seal()

	assert.Equal(t, 70, b.VSync.UsedLength)
	assert.Equal(t, 70, b.VOther.UsedLength)
	assert.Equal(t, 70, b.Key.UsedLength)
	assert.Equal(t, 70, b.Payload.UsedLength)
	assert.Equal(t, 70, b.Hash.UsedLength)
	assert.Equal(t, 2, b.BitVector.UsedLength)
	assert.Equal(t, mp.Hash(5), b.Hash.Data[5])
	assert.Equal(t, uint32(0), b.Hash.Data[100])
}

func TestTrivialKeyHashIsZero(t *testing.T) {
	_, mp := newPool[Empty, int](t, 4)
	b := mp.GetAllocated()
	defer b.Free()
	b.Hash.Data[0] = 99
	b.Add(1, 2, Empty{}, 0)
	assert.Equal(t, uint32(0), b.Hash.Data[0])
	assert.True(t, mp.HasTrivialKey())
}

func TestMinMaxTimestamp(t *testing.T) {
	rows := []int64{5, 3, 9, 1, 7}

	t.Run("partitioned scans every row", func(t *testing.T) {
		_, mp := newPool[int64, int](t, 8, WithPartitioned())
		b := mp.GetAllocated()
		defer b.Free()
		for i, s := range rows {
			b.Add(s, InfinitySyncTime, int64(i), 0)
		}
		b.SetFiltered(3)

		lo, ok := b.MinTimestamp()
		require.True(t, ok)
		assert.Equal(t, int64(3), lo)
		hi, ok := b.MaxTimestamp()
		require.True(t, ok)
		assert.Equal(t, int64(9), hi)
	})

	t.Run("unpartitioned stops at first and last live row", func(t *testing.T) {
		_, mp := newPool[Empty, int](t, 8)
		b := mp.GetAllocated()
		defer b.Free()
		for _, s := range []int64{1, 2, 3, 4, 5} {
			b.Add(s, InfinitySyncTime, Empty{}, 0)
		}
		b.SetFiltered(0)
		b.SetFiltered(4)

		lo, ok := b.MinTimestamp()
		require.True(t, ok)
		assert.Equal(t, int64(2), lo)
		hi, ok := b.MaxTimestamp()
		require.True(t, ok)
		assert.Equal(t, int64(4), hi)
	})

	t.Run("no live rows", func(t *testing.T) {
		_, mp := newPool[Empty, int](t, 8)
		b := mp.GetAllocated()
		defer b.Free()
		b.AddPunctuation(3)
		_, ok := b.MinTimestamp()
		assert.False(t, ok)
		_, ok = b.MaxTimestamp()
		assert.False(t, ok)
	})
}

func TestCloneFromSharesColumns(t *testing.T) {
	_, mp := newPool[int64, int64](t, 16)
	src := mp.GetAllocated()
	for i := 0; i < 4; i++ {
		src.Add(int64(i), int64(i)+5, int64(i), int64(i*10))
	}
	src.Seal()

	dst := mp.Get()
	dst.CloneFrom(src, false)
	assert.Same(t, src.VSync, dst.VSync)
	assert.Same(t, src.Payload, dst.Payload)
	assert.Equal(t, 2, src.VSync.RefCount())
	assert.Equal(t, 4, dst.Count)
	assert.True(t, dst.IsSealed())

	// A consumer that filters must not affect the other holder.
	dst.SetFiltered(0)
	assert.True(t, dst.IsFiltered(0))
	assert.False(t, src.IsFiltered(0))
	assert.NotSame(t, src.BitVector, dst.BitVector)

	dst.MakeWritable()
	assert.NotSame(t, src.VSync, dst.VSync)
	assert.Equal(t, src.VSync.Data[:4], dst.VSync.Data[:4])
	assert.Equal(t, src.Payload.Data[:4], dst.Payload.Data[:4])
	assert.Equal(t, 1, src.VSync.RefCount())

	src.Free()
	dst.Free()
	assert.False(t, mp.Leaked())
}

func TestCloneFromSwingTransfersOwnership(t *testing.T) {
	_, mp := newPool[int64, int64](t, 16)
	src := mp.GetAllocated()
	src.Add(1, 2, 3, 4)
	vsync := src.VSync

	dst := mp.Get()
	dst.CloneFrom(src, true)
	assert.Same(t, vsync, dst.VSync)
	assert.Equal(t, 1, vsync.RefCount())
	assert.Nil(t, src.VSync)

	src.Free()
	dst.Free()
	assert.False(t, mp.Leaked())
}

func TestCloneFromNoPayload(t *testing.T) {
	_, mp := newPool[int64, string](t, 16)
	src := mp.GetAllocated()
	src.Add(1, 2, 3, "x")

	dst := mp.Get()
	dst.CloneFromNoPayload(src)
	assert.Nil(t, dst.Payload)
	assert.Same(t, src.Key, dst.Key)
	assert.Equal(t, 1, src.Payload.RefCount())

	testutil.ExpectFault(t, trillerrors.ErrorTypePrecondition, func() { dst.CloneFrom(src, false) })

	src.Free()
	dst.Free()
	assert.False(t, mp.Leaked())
}

func TestDeflateInflate(t *testing.T) {
	_, mp := newPool[Empty, int64](t, 8)
	b := mp.GetAllocated()
	defer b.Free()
	b.Add(1, 2, Empty{}, 10)
	b.Add(2, 3, Empty{}, 20)
	b.Seal()

	b.Deflate()
	assert.True(t, b.IsDeflated())
	assert.Nil(t, b.Key)
	assert.Nil(t, b.Hash)
	b.Deflate()

	b.Inflate()
	assert.False(t, b.IsDeflated())
	require.NotNil(t, b.Key)
	require.NotNil(t, b.Hash)
	assert.Equal(t, 2, b.Key.UsedLength)
	assert.Equal(t, 2, b.Hash.UsedLength)
	assert.Equal(t, []uint32{0, 0}, b.Hash.Data[:2])
	assert.Equal(t, []int64{10, 20}, b.Payload.Data[:2])
}

func TestDeflateRealKeyIsFault(t *testing.T) {
	_, mp := newPool[string, int64](t, 8)
	b := mp.GetAllocated()
	defer b.Free()
	testutil.ExpectFault(t, trillerrors.ErrorTypePrecondition, b.Deflate)
}

func TestValidateReportsInvertedRows(t *testing.T) {
	_, mp := newPool[Empty, int](t, 8)
	b := mp.GetAllocated()
	defer b.Free()
	b.Add(5, 10, Empty{}, 0)
	b.Add(9, 4, Empty{}, 0)
	b.Add(7, 3, Empty{}, 0)
	b.SetFiltered(2)
	b.AddPunctuation(11)

	err := b.Validate()
	require.Error(t, err)
	assert.True(t, trillerrors.IsType(err, trillerrors.ErrorTypeValidation))
	var te *trillerrors.Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, []int{1}, te.Details["rows"])
}

func TestColumnarModeSkipsPayload(t *testing.T) {
	_, mp := newPool[Empty, int](t, 4, WithColumnar())
	b := mp.GetAllocated()
	defer b.Free()
	assert.True(t, mp.IsColumnar())
	assert.Nil(t, b.Payload)

	b.Add(1, 2, Empty{}, 99)
	b.AllocatePayload()
	require.NotNil(t, b.Payload)
	assert.Equal(t, 1, b.Payload.UsedLength)
	b.Add(2, 3, Empty{}, 7)
	assert.Equal(t, 7, b.Payload.Data[1])
	testutil.ExpectFault(t, trillerrors.ErrorTypePrecondition, b.AllocatePayload)
}

func TestReleaseReturnsEverything(t *testing.T) {
	reg, mp := newPool[int64, float64](t, 32)
	batches := make([]*Batch[int64, float64], 5)
	for i := range batches {
		batches[i] = mp.GetAllocated()
		batches[i].Add(1, 2, 3, 4)
	}
	assert.True(t, mp.Leaked())

	for _, b := range batches {
		b.Free()
	}
	assert.False(t, mp.Leaked())

	again := mp.Get()
	assert.Nil(t, again.VSync)
	assert.Zero(t, again.Count)
	assert.False(t, again.IsSealed())
	mp.Return(again)

	rep := reg.Report(context.Background())
	assert.Empty(t, rep.Leaked)
}

func TestGetMemoryPoolIsShared(t *testing.T) {
	reg := newRegistry()
	a := GetMemoryPool[int64, string](reg, WithBatchSize(16))
	b := GetMemoryPool[int64, string](reg, WithBatchSize(16))
	c := GetMemoryPool[int64, string](reg, WithBatchSize(16), WithPartitioned())
	d := GetMemoryPool[int64, int64](reg, WithBatchSize(16))

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Same(t, a.TimeColumns(), d.TimeColumns(), "time columns are shared across payload types")
	assert.Equal(t, "batch/int64,string/16", a.Name())
	assert.Equal(t, "batch+partitioned/int64,string/16", c.Name())
}

func TestMemoryPoolFreeDropsIdleStorage(t *testing.T) {
	_, mp := newPool[Empty, int64](t, 8)
	b := mp.GetAllocated()
	b.Free()
	require.Equal(t, 1, mp.Stats().Queued)

	mp.Free(true)
	s := mp.Stats()
	assert.Zero(t, s.Created)
	assert.Zero(t, s.Queued)
	assert.Equal(t, "batch", s.Kind)
	assert.Zero(t, mp.TimeColumns().Stats().Queued)
	assert.False(t, mp.Leaked())
}

func TestPoolingDisabled(t *testing.T) {
	_, mp := newPool[Empty, int64](t, 8, WithPoolingDisabled(true))
	a := mp.GetAllocated()
	a.Free()
	b := mp.Get()
	assert.NotSame(t, a, b)
	mp.Return(b)
	assert.Zero(t, mp.Stats().Created)
}

func TestCustomHasher(t *testing.T) {
	_, mp := newPool[string, int](t, 4, WithHasher(func(string) uint32 { return 77 }))
	b := mp.GetAllocated()
	defer b.Free()
	b.Add(1, 2, "k", 0)
	assert.Equal(t, uint32(77), b.Hash.Data[0])

	reg := newRegistry()
	assert.Panics(t, func() {
		NewMemoryPool[int64, int](reg, WithHasher(func(string) uint32 { return 0 }))
	})
	assert.Panics(t, func() {
		NewMemoryPool[int64, int](reg, WithBatchSize(0))
	})
}

func TestDefaultHasherFallbackLogged(t *testing.T) {
	type boxed struct{ V any }
	type named struct {
		Name string
		N    int
	}

	core, logs := observer.New(zapcore.DebugLevel)
	reg := newRegistry()
	NewMemoryPool[boxed, int](reg, WithBatchSize(4), WithLogger(zap.New(core)))
	NewMemoryPool[named, int](reg, WithBatchSize(4), WithLogger(zap.New(core)))
	NewMemoryPool[int64, int](reg, WithBatchSize(4), WithLogger(zap.New(core)))

	warned := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warned, 1)
	assert.Contains(t, warned[0].Message, "WithHasher")
	assert.Contains(t, warned[0].ContextMap()["key"], "boxed")
	assert.Equal(t, 1, logs.FilterMessage("key type hashes by reflection").Len())
}

func TestNewMemoryPoolUnregistered(t *testing.T) {
	reg := newRegistry()
	mp := NewMemoryPool[Empty, int](reg, WithBatchSize(4), WithLogger(zap.NewNop()))
	assert.Equal(t, 4, mp.BatchSize())
	assert.Equal(t, 5, reg.Len(), "only the column pools are registered")
}
