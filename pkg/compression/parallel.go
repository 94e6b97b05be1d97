package compression

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// CompressBlocks compresses each block independently on up to
// Config.Concurrency goroutines and returns the results in input order.
// The first error cancels the remaining work.
func (cp *CompressorPool) CompressBlocks(ctx context.Context, blocks [][]byte) ([][]byte, error) {
	return cp.parallel(ctx, blocks, Compressor.Compress)
}

// DecompressBlocks is the inverse of CompressBlocks.
func (cp *CompressorPool) DecompressBlocks(ctx context.Context, blocks [][]byte) ([][]byte, error) {
	return cp.parallel(ctx, blocks, Compressor.Decompress)
}

func (cp *CompressorPool) parallel(ctx context.Context, blocks [][]byte, op func(Compressor, []byte) ([]byte, error)) ([][]byte, error) {
	if cp.err != nil {
		return nil, cp.err
	}
	out := make([][]byte, len(blocks))

	limit := cp.config.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, block := range blocks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := cp.Get()
			if err != nil {
				return err
			}
			defer cp.Put(c)

			res, err := op(c, block)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
