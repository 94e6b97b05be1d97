// Package memwatch frees idle pooled storage when the host runs short of
// memory.
//
// A Watcher samples system memory usage on an interval and, whenever usage
// is at or above its threshold, asks its Freer (normally a
// *registry.Registry) to drop every queued column and batch. Columns in use
// are unaffected and refill the pools when returned.
package memwatch

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/microsoft/Trill-sub013/pkg/config"
	"github.com/microsoft/Trill-sub013/pkg/logger"
	"github.com/microsoft/Trill-sub013/pkg/metrics"
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// Defaults used when a Watcher field is zero.
const (
	DefaultThreshold = 90.0
	DefaultInterval  = 5 * time.Second
)

// Freer drops pooled storage. *registry.Registry implements it.
type Freer interface {
	Free(ctx context.Context, reset bool)
}

// Sampler returns system memory usage as a percentage in [0, 100].
type Sampler func(ctx context.Context) (float64, error)

// SystemSampler reads virtual memory usage from the operating system.
func SystemSampler(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, trillerrors.Wrap(err, trillerrors.ErrorTypeInternal, "sample virtual memory")
	}
	return vm.UsedPercent, nil
}

// Watcher triggers Freer.Free under memory pressure.
type Watcher struct {
	Freer Freer
	// Threshold is the usage percent at or above which pools are swept.
	Threshold float64
	// Interval is the sampling period of Run.
	Interval time.Duration
	// Reset is passed to Free; it also zeroes pool creation counters.
	Reset bool
	// Sampler defaults to SystemSampler.
	Sampler Sampler
	Logger  *zap.Logger
}

// FromConfig builds a watcher from the memory section of the configuration.
func FromConfig(freer Freer, cfg config.MemoryConfig, l *zap.Logger) *Watcher {
	return &Watcher{
		Freer:     freer,
		Threshold: cfg.PressureThreshold,
		Interval:  cfg.PressureInterval,
		Reset:     cfg.ResetOnFree,
		Logger:    l,
	}
}

func (w *Watcher) threshold() float64 {
	if w.Threshold <= 0 {
		return DefaultThreshold
	}
	return w.Threshold
}

func (w *Watcher) interval() time.Duration {
	if w.Interval <= 0 {
		return DefaultInterval
	}
	return w.Interval
}

func (w *Watcher) sampler() Sampler {
	if w.Sampler == nil {
		return SystemSampler
	}
	return w.Sampler
}

func (w *Watcher) logger() *zap.Logger {
	return logger.Named(w.Logger, "memwatch")
}

// Check samples memory once and sweeps the pools if usage is at or above
// the threshold. It reports whether a sweep happened.
func (w *Watcher) Check(ctx context.Context) (bool, error) {
	used, err := w.sampler()(ctx)
	if err != nil {
		return false, err
	}
	metrics.MemoryPressure.Set(used)
	if used < w.threshold() {
		return false, nil
	}

	w.logger().Warn("memory pressure, freeing pooled storage",
		zap.Float64("used_percent", used),
		zap.Float64("threshold", w.threshold()),
		zap.Bool("reset", w.Reset))
	w.Freer.Free(ctx, w.Reset)
	metrics.MemoryPressureSweeps.Inc()
	return true, nil
}

// Run calls Check every Interval until ctx is done, then returns ctx.Err().
// Sampling errors are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	if w.Freer == nil {
		return trillerrors.New(trillerrors.ErrorTypeConfig, "memory watcher has no freer")
	}
	log := w.logger()
	log.Info("memory watcher started",
		zap.Float64("threshold", w.threshold()),
		zap.Duration("interval", w.interval()))

	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("memory watcher stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Check(ctx); err != nil {
				log.Warn("memory sample failed", zap.Error(err))
			}
		}
	}
}
