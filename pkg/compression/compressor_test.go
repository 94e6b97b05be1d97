package compression

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

func sampleBlock() []byte {
	var buf bytes.Buffer
	for i := 0; i < 2000; i++ {
		fmt.Fprintf(&buf, "%d,%d,key-%d;", i, i+10, i%17)
	}
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	original := sampleBlock()

	for _, algo := range Algorithms {
		for _, level := range []Level{Fastest, Default, Better, Best} {
			t.Run(fmt.Sprintf("%s/%s", algo, level), func(t *testing.T) {
				c, err := NewCompressor(&Config{Algorithm: algo, Level: level})
				require.NoError(t, err)
				assert.Equal(t, algo, c.Algorithm())
				assert.Equal(t, level, c.Level())

				compressed, err := c.Compress(original)
				require.NoError(t, err)
				if algo != None {
					assert.Less(t, len(compressed), len(original))
				}

				decompressed, err := c.Decompress(compressed)
				require.NoError(t, err)
				assert.Equal(t, original, decompressed)
			})
		}
	}
}

func TestEmptyBlock(t *testing.T) {
	for _, algo := range Algorithms {
		c, err := NewCompressor(&Config{Algorithm: algo})
		require.NoError(t, err)

		compressed, err := c.Compress(nil)
		require.NoError(t, err, algo)
		decompressed, err := c.Decompress(compressed)
		require.NoError(t, err, algo)
		assert.Empty(t, decompressed, algo)
	}
}

func TestStreamRoundTrip(t *testing.T) {
	original := sampleBlock()

	for _, algo := range Algorithms {
		t.Run(string(algo), func(t *testing.T) {
			c, err := NewCompressor(&Config{Algorithm: algo, Level: Default})
			require.NoError(t, err)

			var compressed bytes.Buffer
			require.NoError(t, c.CompressStream(&compressed, bytes.NewReader(original)))

			var decompressed bytes.Buffer
			require.NoError(t, c.DecompressStream(&decompressed, &compressed))
			assert.Equal(t, original, decompressed.Bytes())
		})
	}
}

func TestCorruptInput(t *testing.T) {
	garbage := []byte("definitely not a compressed block")
	for _, algo := range []Algorithm{Gzip, Snappy, Zstd, S2, LZ4} {
		c, err := NewCompressor(&Config{Algorithm: algo})
		require.NoError(t, err)

		_, err = c.Decompress(garbage)
		require.Error(t, err, algo)
		assert.True(t, trillerrors.IsType(err, trillerrors.ErrorTypeCodec), "%s: %v", algo, err)
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", None, false},
		{"zstd", Zstd, false},
		{"LZ4", LZ4, false},
		{"brotli", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.in)
		if tt.wantErr {
			require.Error(t, err)
			assert.True(t, trillerrors.IsType(err, trillerrors.ErrorTypeConfig))
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := NewCompressor(&Config{Algorithm: "brotli"})
	assert.Error(t, err)
}

func TestAlgorithmID(t *testing.T) {
	for _, algo := range Algorithms {
		got, err := AlgorithmByID(algo.ID())
		require.NoError(t, err)
		assert.Equal(t, algo, got)
	}
	_, err := AlgorithmByID(200)
	assert.True(t, trillerrors.IsType(err, trillerrors.ErrorTypeCodec))
}

func TestCompressorPool(t *testing.T) {
	cp := NewCompressorPool(&Config{Algorithm: Zstd, Level: Default})
	original := sampleBlock()

	for i := 0; i < 4; i++ {
		compressed, err := cp.Compress(original)
		require.NoError(t, err)
		decompressed, err := cp.Decompress(compressed)
		require.NoError(t, err)
		assert.Equal(t, original, decompressed)
	}
	assert.Equal(t, int64(1), cp.Created(), "sequential use reuses one compressor")

	bad := NewCompressorPool(&Config{Algorithm: "brotli"})
	_, err := bad.Compress(original)
	assert.Error(t, err)
}

func TestCompressBlocks(t *testing.T) {
	cp := NewCompressorPool(&Config{Algorithm: S2, Concurrency: 3})
	blocks := make([][]byte, 10)
	for i := range blocks {
		blocks[i] = bytes.Repeat([]byte{byte(i)}, 1000+i)
	}

	compressed, err := cp.CompressBlocks(context.Background(), blocks)
	require.NoError(t, err)
	require.Len(t, compressed, len(blocks))

	decompressed, err := cp.DecompressBlocks(context.Background(), compressed)
	require.NoError(t, err)
	assert.Equal(t, blocks, decompressed)

	compressed[4] = []byte("junk")
	_, err = cp.DecompressBlocks(context.Background(), compressed)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = cp.CompressBlocks(ctx, blocks)
	assert.ErrorIs(t, err, context.Canceled)
}
