package columnar

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/microsoft/Trill-sub013/pkg/batch"
	"github.com/microsoft/Trill-sub013/pkg/compression"
	"github.com/microsoft/Trill-sub013/pkg/testutil"
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

func keyedBatch(t *testing.T) *batch.Batch[string, float64] {
	t.Helper()
	reg := testutil.NewRegistry(t)
	mp := batch.GetMemoryPool[string, float64](reg, batch.WithBatchSize(8), batch.WithPartitioned(), batch.WithLogger(zap.NewNop()))

	b := mp.GetAllocated()
	b.Add(1, 10, "a", 0.5)
	b.Add(2, 11, "b", 1.5)
	b.AddPartitionPunctuation(3, "a")
	b.Add(4, 12, "c", 2.5)
	b.SetFiltered(1)
	b.Seal()
	t.Cleanup(b.Free)
	return b
}

func TestExportSkipsFilteredAndControlRows(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer alloc.AssertSize(t, 0)

	exp := NewExporter[string, float64](Float64Payload("value"),
		WithAllocator[string](alloc), WithKey(StringPayload("key")))
	require.Equal(t, 4, exp.Schema().NumFields())

	rec, err := exp.Export(keyedBatch(t))
	require.NoError(t, err)
	defer rec.Release()

	require.Equal(t, int64(2), rec.NumRows())
	assert.Equal(t, []int64{1, 4}, rec.Column(0).(*array.Int64).Int64Values())
	assert.Equal(t, []int64{10, 12}, rec.Column(1).(*array.Int64).Int64Values())
	keys := rec.Column(2).(*array.String)
	assert.Equal(t, "a", keys.Value(0))
	assert.Equal(t, "c", keys.Value(1))
	assert.Equal(t, []float64{0.5, 2.5}, rec.Column(3).(*array.Float64).Float64Values())
}

func TestExportWithoutKey(t *testing.T) {
	exp := NewExporter[string, float64](Float64Payload("value"))
	rec, err := exp.Export(keyedBatch(t))
	require.NoError(t, err)
	defer rec.Release()

	assert.Equal(t, 3, int(rec.NumCols()))
	assert.Equal(t, "value", rec.ColumnName(2))
}

func TestExportRejectsIncompleteBatches(t *testing.T) {
	reg := testutil.NewRegistry(t)

	colPool := batch.GetMemoryPool[batch.Empty, int64](reg, batch.WithBatchSize(4), batch.WithColumnar(), batch.WithLogger(zap.NewNop()))
	b := colPool.GetAllocated()
	defer b.Free()
	b.Add(1, 2, batch.Empty{}, 0)

	exp := NewExporter[batch.Empty, int64](Int64Payload("v"))
	_, err := exp.Export(b)
	assert.True(t, trillerrors.IsType(err, trillerrors.ErrorTypeValidation))

	empty := colPool.Get()
	defer empty.Free()
	_, err = exp.Export(empty)
	assert.True(t, trillerrors.IsType(err, trillerrors.ErrorTypeValidation))

	rows := batch.GetMemoryPool[batch.Empty, int64](reg, batch.WithBatchSize(4), batch.WithLogger(zap.NewNop()))
	d := rows.GetAllocated()
	defer d.Free()
	d.Deflate()
	keyed := NewExporter[batch.Empty, int64](Int64Payload("v"), WithKey(PayloadField[batch.Empty]{}))
	_, err = keyed.Export(d)
	assert.True(t, trillerrors.IsType(err, trillerrors.ErrorTypeValidation))
}

func TestIPCRoundTrip(t *testing.T) {
	for _, algo := range []compression.Algorithm{compression.None, compression.LZ4, compression.Zstd} {
		t.Run(string(algo), func(t *testing.T) {
			alloc := memory.NewCheckedAllocator(memory.NewGoAllocator())
			defer alloc.AssertSize(t, 0)

			exp := NewExporter[string, float64](Float64Payload("value"), WithAllocator[string](alloc))
			rec, err := exp.Export(keyedBatch(t))
			require.NoError(t, err)
			defer rec.Release()

			var buf bytes.Buffer
			require.NoError(t, WriteIPC(&buf, algo, rec, rec))

			recs, err := ReadIPC(&buf, alloc)
			require.NoError(t, err)
			require.Len(t, recs, 2)
			for _, got := range recs {
				assert.True(t, array.RecordEqual(rec, got))
				got.Release()
			}
		})
	}
}

func TestWriteIPCErrors(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, trillerrors.IsType(WriteIPC(&buf, compression.None), trillerrors.ErrorTypeValidation))

	exp := NewExporter[string, float64](floatAsString())
	rec, err := exp.Export(keyedBatch(t))
	require.NoError(t, err)
	defer rec.Release()
	assert.True(t, trillerrors.IsType(WriteIPC(&buf, compression.Snappy, rec), trillerrors.ErrorTypeConfig))

	other := NewExporter[string, float64](Float64Payload("other"))
	rec2, err := other.Export(keyedBatch(t))
	require.NoError(t, err)
	defer rec2.Release()
	assert.True(t, trillerrors.IsType(WriteIPC(&buf, compression.None, rec, rec2), trillerrors.ErrorTypeValidation))

	_, err = ReadIPC(bytes.NewReader([]byte("nope")), nil)
	assert.True(t, trillerrors.IsType(err, trillerrors.ErrorTypeCodec))
}

// floatAsString renders float payloads as strings through a custom
// PayloadField.
func floatAsString() PayloadField[float64] {
	s := StringPayload("value")
	return PayloadField[float64]{
		Field: s.Field,
		Append: func(b array.Builder, v float64) {
			b.(*array.StringBuilder).Append(strconv.FormatFloat(v, 'g', -1, 64))
		},
	}
}
