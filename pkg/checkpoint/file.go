package checkpoint

import (
	"context"

	"go.uber.org/zap"

	"github.com/microsoft/Trill-sub013/pkg/batch"
	"github.com/microsoft/Trill-sub013/pkg/mmap"
)

// ReadFile maps the checkpoint file at path and passes every batch in it to
// fn, which owns the batch. It returns the number of batches read.
func ReadFile[K comparable, P any](ctx context.Context, path string, mp *batch.MemoryPool[K, P], keys Codec[K], payloads Codec[P], fn func(*batch.Batch[K, P]) error, opts ...Option) (n int, err error) {
	f, err := mmap.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	f.WillNeed(0, int64(f.Len()))

	r := NewReader(f, mp, keys, payloads, opts...)
	n, err = r.ReadAll(ctx, fn)
	if err != nil {
		r.logger.Warn("checkpoint file read failed",
			zap.String("file", path), zap.Int("batches", n), zap.Error(err))
	}
	return n, err
}
