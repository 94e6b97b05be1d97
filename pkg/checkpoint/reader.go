package checkpoint

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/microsoft/Trill-sub013/internal/bitvector"
	"github.com/microsoft/Trill-sub013/pkg/batch"
	"github.com/microsoft/Trill-sub013/pkg/compression"
	"github.com/microsoft/Trill-sub013/pkg/logger"
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// Reader decodes frames written by Writer into batches from a memory pool.
// A Reader is not safe for concurrent use.
type Reader[K comparable, P any] struct {
	r        io.Reader
	mp       *batch.MemoryPool[K, P]
	keys     Codec[K]
	payloads Codec[P]
	pools    map[compression.Algorithm]*compression.CompressorPool
	logger   *zap.Logger

	maxBlockSize int
}

// NewReader creates a reader that rebuilds batches from mp.
func NewReader[K comparable, P any](r io.Reader, mp *batch.MemoryPool[K, P], keys Codec[K], payloads Codec[P], opts ...Option) *Reader[K, P] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Reader[K, P]{
		r:        r,
		mp:       mp,
		keys:     keys,
		payloads: payloads,
		pools:    make(map[compression.Algorithm]*compression.CompressorPool),
		logger:   logger.Named(o.logger, "checkpoint"),

		maxBlockSize: o.maxBlockSize,
	}
}

func (r *Reader[K, P]) compressor(algo compression.Algorithm) *compression.CompressorPool {
	cp, ok := r.pools[algo]
	if !ok {
		cp = compression.NewCompressorPool(&compression.Config{Algorithm: algo})
		r.pools[algo] = cp
	}
	return cp
}

// ReadBatch reads the next frame. It returns io.EOF, unwrapped, when the
// stream ends cleanly between frames. The batch belongs to the caller, who
// frees it as usual.
func (r *Reader[K, P]) ReadBatch(ctx context.Context) (*batch.Batch[K, P], error) {
	hdr, err := readHeader(r.r)
	if err != nil {
		return nil, err
	}
	if hdr.count > r.mp.BatchSize() {
		return nil, trillerrors.Newf(trillerrors.ErrorTypeCodec,
			"frame holds %d rows, pool batch size is %d", hdr.count, r.mp.BatchSize())
	}

	cols, err := r.layout(hdr)
	if err != nil {
		return nil, err
	}
	blocks := make([]block, len(cols))
	for i, col := range cols {
		if blocks[i], err = readBlock(r.r, col.name, col.limit); err != nil {
			return nil, err
		}
		if blocks[i].used != col.used {
			return nil, trillerrors.Newf(trillerrors.ErrorTypeCodec,
				"%s column holds %d rows, frame count needs %d", col.name, blocks[i].used, col.used).
				WithDetail("column", col.name)
		}
	}
	if err := decompressAll(ctx, r.compressor(hdr.algo), blocks); err != nil {
		return nil, err
	}

	b := r.mp.GetAllocated()
	if err := r.fill(b, hdr, blocks); err != nil {
		b.Free()
		return nil, err
	}
	return b, nil
}

// column is one block of a frame as the reader expects it.
type column struct {
	name string
	// used is the row (or word) count the block must carry.
	used int
	// limit is the largest block accepted before reading it.
	limit int
}

// layout lists the blocks hdr announces, in frame order.
func (r *Reader[K, P]) layout(hdr header) ([]column, error) {
	n := hdr.count
	deflated := hdr.has(flagDeflated)
	if deflated && !r.mp.HasTrivialKey() {
		return nil, trillerrors.New(trillerrors.ErrorTypeCodec, "deflated frame for a keyed pool")
	}

	cols := make([]column, 0, columnCount(hdr))
	cols = append(cols,
		column{"vsync", n, compressedBound(8 * n)},
		column{"vother", n, compressedBound(8 * n)},
	)
	if !deflated {
		if r.keys == nil {
			return nil, trillerrors.New(trillerrors.ErrorTypeConfig, "keyed frame read without a key codec")
		}
		cols = append(cols, column{"key", n, r.blockLimit(r.keys, n)})
	}
	if hdr.has(flagPayload) {
		if r.payloads == nil {
			return nil, trillerrors.New(trillerrors.ErrorTypeConfig, "payload column read without a payload codec")
		}
		cols = append(cols, column{"payload", n, r.blockLimit(r.payloads, n)})
	}
	if !deflated {
		cols = append(cols, column{"hash", n, compressedBound(4 * n)})
	}
	words := bitvector.Words(n)
	cols = append(cols, column{"bitvector", words, compressedBound(8 * words)})
	return cols, nil
}

// blockLimit bounds a key or payload block: exact for fixed-width codecs,
// the configured maximum otherwise.
func (r *Reader[K, P]) blockLimit(codec any, n int) int {
	if fw, ok := codec.(FixedWidth); ok {
		return compressedBound(fw.ElementSize() * n)
	}
	return r.maxBlockSize
}

func (r *Reader[K, P]) fill(b *batch.Batch[K, P], hdr header, blocks []block) error {
	next := func() block {
		blk := blocks[0]
		blocks = blocks[1:]
		return blk
	}

	if err := decodeInto[int64](Int64Codec{}, next(), b.VSync.Data, "vsync"); err != nil {
		return err
	}
	if err := decodeInto[int64](Int64Codec{}, next(), b.VOther.Data, "vother"); err != nil {
		return err
	}

	deflated := hdr.has(flagDeflated)
	var keyBlock, hashBlock block
	if !deflated {
		keyBlock = next()
		if err := decodeInto(r.keys, keyBlock, b.Key.Data, "key"); err != nil {
			return err
		}
	}

	if hdr.has(flagPayload) {
		if b.Payload == nil {
			b.AllocatePayload()
		}
		payload := next()
		if err := decodeInto(r.payloads, payload, b.Payload.Data, "payload"); err != nil {
			return err
		}
		b.Payload.UsedLength = payload.used
	} else if b.Payload != nil {
		return trillerrors.New(trillerrors.ErrorTypeCodec, "frame has no payload column for a row-form pool")
	}

	if !deflated {
		hashBlock = next()
		if err := decodeInto[uint32](Uint32Codec{}, hashBlock, b.Hash.Data, "hash"); err != nil {
			return err
		}
	}

	bits := next()
	if err := decodeInto[uint64](Uint64Codec{}, bits, b.BitVector.Data, "bitvector"); err != nil {
		return err
	}

	b.Count = hdr.count
	b.EnsureConsistency()
	b.BitVector.UsedLength = bits.used
	if deflated {
		b.Deflate()
		b.Inflate()
	} else {
		b.Key.UsedLength = keyBlock.used
		b.Hash.UsedLength = hashBlock.used
	}
	if hdr.has(flagSealed) {
		b.Seal()
	}
	return nil
}

// ReadAll reads frames until the stream ends and passes each batch to fn.
// fn owns the batch.
func (r *Reader[K, P]) ReadAll(ctx context.Context, fn func(*batch.Batch[K, P]) error) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		b, err := r.ReadBatch(ctx)
		if err == io.EOF {
			r.logger.Debug("checkpoint read complete", zap.Int("batches", n))
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
		if err := fn(b); err != nil {
			return n, err
		}
	}
}
