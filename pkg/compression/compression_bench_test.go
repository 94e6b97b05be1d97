package compression

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"testing"
)

// Column generators shaped like checkpoint blocks for a batch of rows.

// timeColumn emits near-monotone sync times as little-endian int64s.
func timeColumn(rows int) []byte {
	out := make([]byte, 0, rows*8)
	t := int64(1_700_000_000_000)
	for i := 0; i < rows; i++ {
		t += int64(rand.Intn(5))
		out = binary.LittleEndian.AppendUint64(out, uint64(t))
	}
	return out
}

// hashColumn emits uint32 hashes drawn from a small key space.
func hashColumn(rows int) []byte {
	keys := make([]uint32, 64)
	for i := range keys {
		keys[i] = rand.Uint32()
	}
	out := make([]byte, 0, rows*4)
	for i := 0; i < rows; i++ {
		out = binary.LittleEndian.AppendUint32(out, keys[rand.Intn(len(keys))])
	}
	return out
}

// bitvectorColumn emits filter words with roughly one row in eight removed.
func bitvectorColumn(rows int) []byte {
	out := make([]byte, 0, (1+rows/64)*8)
	for i := 0; i <= rows/64; i++ {
		var w uint64
		for bit := 0; bit < 64; bit++ {
			if rand.Intn(8) == 0 {
				w |= 1 << bit
			}
		}
		out = binary.LittleEndian.AppendUint64(out, w)
	}
	return out
}

// payloadColumn emits random int64 payloads, the worst case for every codec.
func payloadColumn(rows int) []byte {
	out := make([]byte, rows*8)
	rand.Read(out)
	return out
}

var columns = map[string]func(int) []byte{
	"vsync":     timeColumn,
	"hash":      hashColumn,
	"bitvector": bitvectorColumn,
	"payload":   payloadColumn,
}

// frameBlocks returns the blocks of one checkpoint frame.
func frameBlocks(rows int) [][]byte {
	return [][]byte{timeColumn(rows), timeColumn(rows), payloadColumn(rows), hashColumn(rows), bitvectorColumn(rows)}
}

func BenchmarkCompress(b *testing.B) {
	for _, algo := range Algorithms {
		for _, rows := range []int{1024, 80000} {
			for name, gen := range columns {
				data := gen(rows)
				b.Run(fmt.Sprintf("%s/%s/%d", algo, name, rows), func(b *testing.B) {
					c, err := NewCompressor(&Config{Algorithm: algo, Level: Default})
					if err != nil {
						b.Fatal(err)
					}
					b.SetBytes(int64(len(data)))
					b.ResetTimer()
					for i := 0; i < b.N; i++ {
						if _, err := c.Compress(data); err != nil {
							b.Fatal(err)
						}
					}
				})
			}
		}
	}
}

func BenchmarkDecompress(b *testing.B) {
	data := timeColumn(80000)
	for _, algo := range Algorithms {
		c, err := NewCompressor(&Config{Algorithm: algo, Level: Default})
		if err != nil {
			b.Fatal(err)
		}
		compressed, err := c.Compress(data)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(string(algo), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := c.Decompress(compressed); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkCompressionRatio logs the compressed size of each column kind.
func BenchmarkCompressionRatio(b *testing.B) {
	const rows = 80000
	for name, gen := range columns {
		data := gen(rows)
		b.Logf("%s column, %d bytes:", name, len(data))
		for _, algo := range Algorithms {
			for _, level := range []Level{Fastest, Default, Better, Best} {
				c, err := NewCompressor(&Config{Algorithm: algo, Level: level})
				if err != nil {
					continue
				}
				out, err := c.Compress(data)
				if err != nil {
					b.Logf("  %-8s %-8s error: %v", algo, level, err)
					continue
				}
				b.Logf("  %-8s %-8s %9d %.2fx", algo, level, len(out), float64(len(data))/float64(max(len(out), 1)))
			}
		}
	}
}

func BenchmarkCompressBlocks(b *testing.B) {
	blocks := frameBlocks(80000)
	var total int64
	for _, blk := range blocks {
		total += int64(len(blk))
	}

	for _, concurrency := range []int{1, 0} {
		name := "serial"
		if concurrency == 0 {
			name = "parallel"
		}
		b.Run(name, func(b *testing.B) {
			cp := NewCompressorPool(&Config{Algorithm: Zstd, Level: Default, Concurrency: concurrency})
			ctx := context.Background()
			b.SetBytes(total)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := cp.CompressBlocks(ctx, blocks); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkCompressorPool(b *testing.B) {
	cfg := &Config{Algorithm: Snappy, Level: Default}
	data := timeColumn(10000)

	b.Run("pooled", func(b *testing.B) {
		cp := NewCompressorPool(cfg)
		b.SetBytes(int64(len(data)))
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if _, err := cp.Compress(data); err != nil {
					b.Fatal(err)
				}
			}
		})
	})

	b.Run("fresh", func(b *testing.B) {
		b.SetBytes(int64(len(data)))
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				c, err := NewCompressor(cfg)
				if err != nil {
					b.Fatal(err)
				}
				if _, err := c.Compress(data); err != nil {
					b.Fatal(err)
				}
			}
		})
	})
}
