package batch

import (
	"go.uber.org/zap"

	"github.com/microsoft/Trill-sub013/internal/bitvector"
)

// DefaultBatchSize is the row capacity used when none is configured.
const DefaultBatchSize = 80000

// Option configures a MemoryPool.
type Option func(*memoryOptions)

type memoryOptions struct {
	size        int
	columnar    bool
	partitioned bool
	disabled    bool
	popcount    bitvector.Mode
	logger      *zap.Logger
	hasher      any
}

func defaultMemoryOptions() memoryOptions {
	return memoryOptions{size: DefaultBatchSize}
}

// WithBatchSize sets the row capacity of every batch.
func WithBatchSize(n int) Option {
	return func(o *memoryOptions) { o.size = n }
}

// WithColumnar selects columnar payload mode: Allocate does not take a
// payload column; payload storage is owned elsewhere or attached with
// AllocatePayload.
func WithColumnar() Option {
	return func(o *memoryOptions) { o.columnar = true }
}

// WithPartitioned marks the stream as partitioned by key. Timestamp scans
// then look at every live row and ingress order is tracked per key.
func WithPartitioned() Option {
	return func(o *memoryOptions) { o.partitioned = true }
}

// WithHasher sets the key hash function. It must be a func(K) uint32 for
// the pool's key type.
func WithHasher[K comparable](h func(K) uint32) Option {
	return func(o *memoryOptions) { o.hasher = h }
}

// WithPoolingDisabled makes the batch pool allocate on every Get and drop
// batches on Return.
func WithPoolingDisabled(disabled bool) Option {
	return func(o *memoryOptions) { o.disabled = disabled }
}

// WithPopcount selects the population-count strategy for ComputeCount.
func WithPopcount(m bitvector.Mode) Option {
	return func(o *memoryOptions) { o.popcount = m }
}

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *memoryOptions) { o.logger = l }
}
