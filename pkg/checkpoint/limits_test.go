package checkpoint

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/microsoft/Trill-sub013/pkg/batch"
	"github.com/microsoft/Trill-sub013/pkg/compression"
	"github.com/microsoft/Trill-sub013/pkg/testutil"
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// rawFrame builds an uncompressed frame by hand.
func rawFrame(hdr header, blocks ...block) []byte {
	var buf bytes.Buffer
	if _, err := writeBlocks(&buf, hdr, blocks); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func int64Block(vals ...int64) block {
	return block{used: len(vals), data: Int64Codec{}.Encode(nil, vals)}
}

func TestReaderBoundsBlockSize(t *testing.T) {
	reg := testutil.NewRegistry(t)
	mp := batch.GetMemoryPool[string, float64](reg, batch.WithBatchSize(8), batch.WithPartitioned(), batch.WithLogger(zap.NewNop()))

	// One row, vsync block claiming 1 GiB followed by a single row of data.
	frame := header{algo: compression.None, count: 1}.appendTo(nil)
	frame = binary.LittleEndian.AppendUint32(frame, 1)
	frame = binary.LittleEndian.AppendUint32(frame, 1<<30)
	frame = binary.LittleEndian.AppendUint64(frame, 42)

	r := NewReader[string, float64](bytes.NewReader(frame), mp, StringCodec{}, Float64Codec{})
	_, err := r.ReadBatch(context.Background())
	e := requireCodecError(t, err)
	assert.Equal(t, "vsync", e.Details["column"])
	assert.Contains(t, e.Message, "at most")
	assert.False(t, mp.Leaked())
}

func TestReaderBoundsStringBlocks(t *testing.T) {
	reg := testutil.NewRegistry(t)
	mp := batch.GetMemoryPool[string, float64](reg, batch.WithBatchSize(8), batch.WithPartitioned(), batch.WithLogger(zap.NewNop()))

	key := StringCodec{}.Encode(nil, []string{strings.Repeat("k", 100)})
	frame := rawFrame(header{algo: compression.None, count: 1},
		int64Block(1), int64Block(2), block{used: 1, data: key})

	r := NewReader[string, float64](bytes.NewReader(frame), mp, StringCodec{}, Float64Codec{}, WithMaxBlockSize(64))
	_, err := r.ReadBatch(context.Background())
	e := requireCodecError(t, err)
	assert.Equal(t, "key", e.Details["column"])
}

func TestReaderRejectsShortBlock(t *testing.T) {
	reg := testutil.NewRegistry(t)
	mp := batch.GetMemoryPool[string, float64](reg, batch.WithBatchSize(8), batch.WithPartitioned(), batch.WithLogger(zap.NewNop()))

	// Claims 16 bytes, within the bound, but the stream ends after 8.
	frame := header{algo: compression.None, count: 2}.appendTo(nil)
	frame = binary.LittleEndian.AppendUint32(frame, 2)
	frame = binary.LittleEndian.AppendUint32(frame, 16)
	frame = binary.LittleEndian.AppendUint64(frame, 42)

	r := NewReader[string, float64](bytes.NewReader(frame), mp, StringCodec{}, Float64Codec{})
	_, err := r.ReadBatch(context.Background())
	requireCodecError(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReaderRejectsUsedMismatch(t *testing.T) {
	reg := testutil.NewRegistry(t)
	mp := batch.GetMemoryPool[batch.Empty, int64](reg, batch.WithBatchSize(4), batch.WithLogger(zap.NewNop()))
	flags := byte(flagDeflated | flagPayload)

	tests := []struct {
		name   string
		column string
		blocks []block
	}{
		{
			name:   "vsync short",
			column: "vsync",
			blocks: []block{{used: 0}, int64Block(2, 2), int64Block(7, 8), int64Block(0)},
		},
		{
			name:   "payload short",
			column: "payload",
			blocks: []block{int64Block(1, 3), int64Block(2, 4), int64Block(7), int64Block(0)},
		},
		{
			name:   "bitvector words",
			column: "bitvector",
			blocks: []block{int64Block(1, 3), int64Block(2, 4), int64Block(7, 8), int64Block(0, 0)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := rawFrame(header{algo: compression.None, flags: flags, count: 2}, tt.blocks...)
			r := NewReader[batch.Empty, int64](bytes.NewReader(frame), mp, EmptyCodec{}, Int64Codec{})
			_, err := r.ReadBatch(context.Background())
			e := requireCodecError(t, err)
			assert.Equal(t, tt.column, e.Details["column"])
		})
	}

	good := rawFrame(header{algo: compression.None, flags: flags, count: 2},
		int64Block(1, 3), int64Block(2, 4), int64Block(7, 8), int64Block(0))
	r := NewReader[batch.Empty, int64](bytes.NewReader(good), mp, EmptyCodec{}, Int64Codec{})
	b, err := r.ReadBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, b.Count)
	assert.Equal(t, int64(8), b.Payload.Data[1])
	b.Free()
	assert.False(t, mp.Leaked())
}

func TestReaderNeedsKeyCodec(t *testing.T) {
	reg := testutil.NewRegistry(t)
	mp := batch.GetMemoryPool[string, float64](reg, batch.WithBatchSize(8), batch.WithPartitioned(), batch.WithLogger(zap.NewNop()))
	src := fillKeyed(mp)
	defer src.Free()

	var buf bytes.Buffer
	w, err := NewWriter[string, float64](&buf, StringCodec{}, Float64Codec{})
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch(context.Background(), src))

	r := NewReader[string, float64](&buf, mp, nil, Float64Codec{})
	_, err = r.ReadBatch(context.Background())
	assert.True(t, trillerrors.IsType(err, trillerrors.ErrorTypeConfig), "got %v", err)
}

func requireCodecError(t *testing.T, err error) *trillerrors.Error {
	t.Helper()
	require.Error(t, err)
	var e *trillerrors.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, trillerrors.ErrorTypeCodec, e.Type, "got %v", err)
	return e
}
