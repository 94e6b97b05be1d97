package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/microsoft/Trill-sub013/pkg/batch"
	"github.com/microsoft/Trill-sub013/pkg/checkpoint"
	"github.com/microsoft/Trill-sub013/pkg/compression"
	"github.com/microsoft/Trill-sub013/pkg/config"
	"github.com/microsoft/Trill-sub013/pkg/memwatch"
	"github.com/microsoft/Trill-sub013/pkg/metrics"
	"github.com/microsoft/Trill-sub013/pkg/observability"
	"github.com/microsoft/Trill-sub013/pkg/registry"
)

// benchOptions shapes the synthetic workload.
type benchOptions struct {
	Workers int
	// Batches is the number of batches each worker fills.
	Batches int
	// PunctuationEvery inserts a punctuation after that many data events;
	// zero disables punctuations.
	PunctuationEvery int
	// Compression, when set, checkpoints every sealed batch.
	Compression string
	// CheckpointDir, when set, keeps the checkpoints as one file per
	// producer instead of discarding them.
	CheckpointDir string
}

func defaultBenchOptions() benchOptions {
	return benchOptions{
		Workers:          runtime.GOMAXPROCS(0),
		Batches:          100,
		PunctuationEvery: 0,
	}
}

// benchResult summarizes a run.
type benchResult struct {
	Batches int64         `json:"batches"`
	Rows    int64         `json:"rows"`
	Elapsed time.Duration `json:"elapsed"`
}

func newBenchCommand(a *app) *cobra.Command {
	opts := defaultBenchOptions()
	var batchSize int
	var metricsAddr string
	var prof profiles

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the synthetic ingest workload and print the pool report",
		Long: `Run parallel producers that fill, share, filter, seal and free batches,
then print the registry report as JSON.

Examples:
  trillpool bench --workers 8 --batches 500
  trillpool bench --compression zstd --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("batch-size") {
				a.cfg.Memory.BatchSize = batchSize
				if err := a.cfg.Validate(); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("metrics-addr") {
				a.cfg.Observability.MetricsAddr = metricsAddr
			}
			ctx := cmd.Context()

			stopProfiles, err := prof.start(a.log)
			if err != nil {
				return err
			}
			defer stopProfiles()

			shutdown, err := startTracing(a.cfg)
			if err != nil {
				return err
			}
			defer shutdown()

			reg := newRegistry(a.cfg, a.log)
			defer reg.Close()

			stopMetrics := serveMetrics(a.cfg.Observability.MetricsAddr, reg, a.log)
			defer stopMetrics()

			res, err := runBench(ctx, reg, a.cfg, opts, a.log)
			if err != nil {
				return err
			}
			a.log.Info("bench completed",
				zap.Int64("batches", res.Batches),
				zap.Int64("rows", res.Rows),
				zap.Duration("elapsed", res.Elapsed),
				zap.Float64("rows_per_second", float64(res.Rows)/res.Elapsed.Seconds()))
			return reg.WriteReport(ctx, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.Workers, "workers", opts.Workers, "Number of parallel producers")
	cmd.Flags().IntVar(&opts.Batches, "batches", opts.Batches, "Batches filled by each producer")
	cmd.Flags().IntVar(&opts.PunctuationEvery, "punctuation-every", opts.PunctuationEvery, "Insert a punctuation after this many events (0 disables)")
	cmd.Flags().StringVar(&opts.Compression, "compression", "", "Checkpoint sealed batches with this compression (none, lz4, zstd, s2, snappy, gzip, deflate)")
	cmd.Flags().StringVar(&opts.CheckpointDir, "checkpoint-dir", "", "Write each producer's checkpoint to a file in this directory")
	cmd.Flags().IntVar(&batchSize, "batch-size", config.DefaultBatchSize, "Rows per batch (overrides memory.batch_size)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address while running (overrides observability.metrics_addr)")
	cmd.Flags().StringVar(&prof.CPU, "cpuprofile", "", "Write a CPU profile to this file")
	cmd.Flags().StringVar(&prof.Memory, "memprofile", "", "Write a heap profile to this file when the run ends")
	return cmd
}

func newRegistry(cfg *config.Config, log *zap.Logger) *registry.Registry {
	return registry.New(
		registry.WithLogger(log),
		registry.WithPoolOptions(cfg.Memory.PoolOptions()...),
	)
}

func startTracing(cfg *config.Config) (func(), error) {
	if !cfg.Observability.EnableTracing {
		return func() {}, nil
	}
	tc := observability.DefaultTracingConfig()
	tc.ServiceName = cfg.Observability.ServiceName
	tc.ServiceVersion = version
	tc.SamplingRate = cfg.Observability.TracingSampleRate
	tc.Writer = os.Stderr
	tp, err := observability.InitTracing(tc)
	if err != nil {
		return nil, fmt.Errorf("tracing error: %w", err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}, nil
}

// serveMetrics exposes the default prometheus registry plus a pool
// collector for reg. The returned func stops the listener.
func serveMetrics(addr string, reg *registry.Registry, log *zap.Logger) func() {
	if addr == "" {
		return func() {}
	}
	if err := prometheus.Register(metrics.NewPoolCollector(reg)); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			log.Warn("failed to register pool collector", zap.Error(err))
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// runBench runs opts.Workers producers against reg and, if configured, the
// memory-pressure watcher. Every batch is freed before it returns, so a
// clean run leaves no leaks in reg.
func runBench(ctx context.Context, reg *registry.Registry, cfg *config.Config, opts benchOptions, log *zap.Logger) (benchResult, error) {
	if opts.Workers < 1 || opts.Batches < 0 {
		return benchResult{}, fmt.Errorf("workers must be positive and batches non-negative")
	}
	var algo compression.Algorithm
	if opts.Compression == "" && opts.CheckpointDir != "" {
		algo = compression.None
	}
	if opts.Compression != "" {
		var err error
		if algo, err = compression.ParseAlgorithm(opts.Compression); err != nil {
			return benchResult{}, err
		}
	}

	mp := batch.GetMemoryPool[batch.Empty, int64](reg,
		batch.WithBatchSize(cfg.Memory.BatchSize),
		batch.WithPopcount(cfg.Memory.PopcountMode()),
		batch.WithPoolingDisabled(cfg.Memory.DisablePooling),
		batch.WithLogger(log))

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	watchDone := make(chan struct{})
	if cfg.Memory.WatcherEnabled() {
		w := memwatch.FromConfig(reg, cfg.Memory, log)
		go func() {
			defer close(watchDone)
			_ = w.Run(watchCtx)
		}()
	} else {
		close(watchDone)
	}

	var total benchResult
	timer := metrics.NewTimer("bench")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.Workers; i++ {
		g.Go(func() error {
			p := &producer{
				id:      i,
				mp:      mp,
				opts:    opts,
				algo:    algo,
				tracker: metrics.NewThroughputTracker(strconv.Itoa(i)),
			}
			batches, rows, err := p.run(gctx)
			atomic.AddInt64(&total.Batches, batches)
			atomic.AddInt64(&total.Rows, rows)
			p.tracker.GetAndReset()
			return err
		})
	}
	err := g.Wait()
	total.Elapsed = timer.Stop()

	stopWatch()
	<-watchDone
	return total, err
}

// producer fills batches from a generated event stream the way an ingress
// operator would, then hands each sealed batch to a simulated consumer.
type producer struct {
	id      int
	mp      *batch.MemoryPool[batch.Empty, int64]
	opts    benchOptions
	algo    compression.Algorithm
	tracker *metrics.ThroughputTracker
}

func (p *producer) events(n int, base int64) []batch.Event[batch.Empty, int64] {
	src := make([]batch.Event[batch.Empty, int64], 0, n+n/max(p.opts.PunctuationEvery, 1))
	t := base
	for i := 0; i < n; i++ {
		src = append(src, batch.DataEvent(t, t+100, batch.Empty{}, int64(i)))
		if p.opts.PunctuationEvery > 0 && (i+1)%p.opts.PunctuationEvery == 0 {
			src = append(src, batch.PunctuationEvent[batch.Empty, int64](t, batch.Empty{}))
		}
		t++
	}
	return src
}

func (p *producer) run(ctx context.Context) (batches, rows int64, err error) {
	var cw *checkpoint.Writer[batch.Empty, int64]
	if p.algo != "" {
		out := io.Writer(io.Discard)
		if p.opts.CheckpointDir != "" {
			f, err := os.Create(checkpointPath(p.opts.CheckpointDir, p.id))
			if err != nil {
				return 0, 0, fmt.Errorf("producer %d: %w", p.id, err)
			}
			defer f.Close()
			out = f
		}
		cw, err = checkpoint.NewWriter[batch.Empty, int64](out, nil, checkpoint.Int64Codec{},
			checkpoint.WithCompression(&compression.Config{Algorithm: p.algo}))
		if err != nil {
			return 0, 0, err
		}
		defer cw.Close()
	}

	tracker := batch.NewOrderTracker[batch.Empty](batch.DisorderThrow, false)
	size := p.mp.BatchSize()
	var clock int64

	for n := 0; n < p.opts.Batches; n++ {
		if err := ctx.Err(); err != nil {
			return batches, rows, err
		}
		src := p.events(size, clock)
		clock += int64(size)

		for len(src) > 0 {
			b := p.mp.GetAllocated()
			consumed, _, err := b.AddEvents(src, tracker)
			if err != nil {
				b.Free()
				return batches, rows, err
			}
			src = src[consumed:]

			b.Seal()
			if err := p.consume(ctx, b, cw); err != nil {
				b.Free()
				return batches, rows, err
			}
			batches++
			rows += int64(b.Count)
			p.tracker.Increment(1)
			b.Free()
		}
	}
	return batches, rows, nil
}

func checkpointPath(dir string, id int) string {
	return filepath.Join(dir, fmt.Sprintf("worker-%d.trlb", id))
}

// consume shares b with a filtering consumer, as a downstream where-clause
// would, and optionally checkpoints it.
func (p *producer) consume(ctx context.Context, b *batch.Batch[batch.Empty, int64], cw *checkpoint.Writer[batch.Empty, int64]) error {
	view := p.mp.Get()
	view.CloneFrom(b, false)
	for i := 0; i < view.Count; i += 2 {
		view.SetFiltered(i)
	}
	live := view.ComputeCount()
	view.Free()

	if live > b.ComputeCount() {
		return fmt.Errorf("producer %d: filtered view has more live rows than its source", p.id)
	}
	if cw != nil {
		return cw.WriteBatch(ctx, b)
	}
	return nil
}
