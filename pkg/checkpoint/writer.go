package checkpoint

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/microsoft/Trill-sub013/pkg/batch"
	"github.com/microsoft/Trill-sub013/pkg/compression"
	"github.com/microsoft/Trill-sub013/pkg/logger"
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// Option configures a Writer or Reader.
type Option func(*options)

type options struct {
	compression  *compression.Config
	logger       *zap.Logger
	maxBlockSize int
}

// DefaultMaxBlockSize bounds key and payload blocks of variable-width codecs.
const DefaultMaxBlockSize = 64 << 20

func defaultOptions() options {
	return options{
		compression:  &compression.Config{Algorithm: compression.None},
		maxBlockSize: DefaultMaxBlockSize,
	}
}

// WithCompression sets the block compression. Readers ignore it: the
// algorithm is recorded per frame.
func WithCompression(cfg *compression.Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.compression = cfg
		}
	}
}

// WithMaxBlockSize sets the largest key or payload block a Reader accepts
// from a codec without a fixed element size. Writers ignore it.
func WithMaxBlockSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBlockSize = n
		}
	}
}

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WriterStats counts what a Writer has produced.
type WriterStats struct {
	Batches int
	Rows    int
	Bytes   int64
}

// Writer encodes batches of one key and payload type onto a stream.
// A Writer is not safe for concurrent use.
type Writer[K comparable, P any] struct {
	w        io.Writer
	keys     Codec[K]
	payloads Codec[P]
	algo     compression.Algorithm
	cp       *compression.CompressorPool
	stats    WriterStats
	logger   *zap.Logger
}

// NewWriter creates a writer. keys may be nil for trivially keyed batches,
// which are always written deflated.
func NewWriter[K comparable, P any](w io.Writer, keys Codec[K], payloads Codec[P], opts ...Option) (*Writer[K, P], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	algo, err := compression.ParseAlgorithm(string(o.compression.Algorithm))
	if err != nil {
		return nil, err
	}
	cfg := *o.compression
	cfg.Algorithm = algo
	return &Writer[K, P]{
		w:        w,
		keys:     keys,
		payloads: payloads,
		algo:     algo,
		cp:       compression.NewCompressorPool(&cfg),
		logger:   logger.Named(o.logger, "checkpoint"),
	}, nil
}

// Stats returns the running totals.
func (w *Writer[K, P]) Stats() WriterStats { return w.stats }

// WriteBatch writes one frame for b. Column used lengths are brought in
// line with Count first. A trivially keyed batch is deflated for the write
// and handed back inflated, so the caller sees zero keys and hashes either
// way.
func (w *Writer[K, P]) WriteBatch(ctx context.Context, b *batch.Batch[K, P]) error {
	b.EnsureConsistency()

	trivial := b.Pool().HasTrivialKey()
	if trivial && !b.IsDeflated() {
		b.Deflate()
		defer b.Inflate()
	}

	hdr := header{algo: w.algo, count: b.Count}
	if b.IsDeflated() {
		hdr.flags |= flagDeflated
	} else if w.keys == nil {
		return trillerrors.New(trillerrors.ErrorTypeConfig, "keyed batch written without a key codec")
	}
	if b.Payload != nil {
		if w.payloads == nil {
			return trillerrors.New(trillerrors.ErrorTypeConfig, "payload column written without a payload codec")
		}
		hdr.flags |= flagPayload
	}
	if b.IsSealed() {
		hdr.flags |= flagSealed
	}

	blocks := make([]block, 0, columnCount(hdr))
	blocks = append(blocks,
		block{b.VSync.UsedLength, Int64Codec{}.Encode(nil, b.VSync.Data[:b.VSync.UsedLength])},
		block{b.VOther.UsedLength, Int64Codec{}.Encode(nil, b.VOther.Data[:b.VOther.UsedLength])},
	)
	if !hdr.has(flagDeflated) {
		blocks = append(blocks, block{b.Key.UsedLength, w.keys.Encode(nil, b.Key.Data[:b.Key.UsedLength])})
	}
	if hdr.has(flagPayload) {
		blocks = append(blocks, block{b.Payload.UsedLength, w.payloads.Encode(nil, b.Payload.Data[:b.Payload.UsedLength])})
	}
	if !hdr.has(flagDeflated) {
		blocks = append(blocks, block{b.Hash.UsedLength, Uint32Codec{}.Encode(nil, b.Hash.Data[:b.Hash.UsedLength])})
	}
	blocks = append(blocks, block{b.BitVector.UsedLength, Uint64Codec{}.Encode(nil, b.BitVector.Data[:b.BitVector.UsedLength])})

	if err := compressAll(ctx, w.cp, blocks); err != nil {
		return err
	}
	n, err := writeBlocks(w.w, hdr, blocks)
	w.stats.Bytes += int64(n)
	if err != nil {
		return err
	}
	w.stats.Batches++
	w.stats.Rows += b.Count
	return nil
}

// Close logs the totals. It does not close the underlying stream.
func (w *Writer[K, P]) Close() error {
	w.logger.Debug("checkpoint writer closed",
		zap.Int("batches", w.stats.Batches),
		zap.Int("rows", w.stats.Rows),
		zap.Int64("bytes", w.stats.Bytes),
		zap.String("compression", string(w.algo)))
	return nil
}
