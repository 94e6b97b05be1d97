package registry

import (
	"context"
	"io"
	"sort"
	"strconv"
	"sync"

	gojson "github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/microsoft/Trill-sub013/pkg/logger"
	"github.com/microsoft/Trill-sub013/pkg/metrics"
	"github.com/microsoft/Trill-sub013/pkg/observability"
	"github.com/microsoft/Trill-sub013/pkg/pool"
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// Managed is what the registry needs from a pool.
type Managed interface {
	Free(reset bool)
	Leaked() bool
	Stats() pool.Stats
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithPoolOptions sets options applied to every column pool the registry
// creates, ahead of the pool's own name.
func WithPoolOptions(opts ...pool.Option) Option {
	return func(r *Registry) { r.poolOpts = append(r.poolOpts, opts...) }
}

// WithTracer sets the tracer used for sweep spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Registry) { r.tracer = t }
}

// WithMeter sets the meter used for the sweep counter.
func WithMeter(m metric.Meter) Option {
	return func(r *Registry) { r.meter = m }
}

// Registry is a concurrent keyed registry of pools.
type Registry struct {
	pools sync.Map // Key -> Managed
	group singleflight.Group

	mu   sync.Mutex
	keys []Key

	poolOpts []pool.Option
	logger   *zap.Logger
	tracer   trace.Tracer
	meter    metric.Meter
	sweeps   metric.Int64Counter
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logger.Named(r.logger, "registry")
	if r.tracer == nil {
		r.tracer = observability.Tracer()
	}
	if r.meter == nil {
		r.meter = observability.Meter()
	}

	sweeps, err := r.meter.Int64Counter("trill.registry.sweeps",
		metric.WithDescription("Number of registry Free sweeps"))
	if err != nil {
		r.logger.Warn("failed to create sweep counter", zap.Error(err))
	} else {
		r.sweeps = sweeps
	}
	return r
}

// Logger returns the registry logger.
func (r *Registry) Logger() *zap.Logger { return r.logger }

// PoolOptions returns the options applied to column pools.
func (r *Registry) PoolOptions() []pool.Option {
	return append([]pool.Option(nil), r.poolOpts...)
}

// Acquire returns the pool registered under key, creating it with factory
// on first use. factory runs at most once per key. Requesting a key that is
// registered with a different pool type is a precondition fault.
func Acquire[T Managed](r *Registry, key Key, factory func() T) T {
	v, ok := r.pools.Load(key)
	if !ok {
		v, _, _ = r.group.Do(key.String(), func() (interface{}, error) {
			if existing, ok := r.pools.Load(key); ok {
				return existing, nil
			}
			m := factory()
			r.pools.Store(key, m)

			r.mu.Lock()
			r.keys = append(r.keys, key)
			r.mu.Unlock()

			r.logger.Debug("pool registered", zap.Stringer("key", key))
			return m, nil
		})
	}

	p, ok := v.(T)
	if !ok {
		trillerrors.Fail(trillerrors.ErrorTypePrecondition,
			"pool %s is registered as %T", key, v)
	}
	return p
}

// ColumnPool returns the shared column pool for element type T and size.
func ColumnPool[T any](r *Registry, size int) *pool.ColumnPool[T] {
	key := ColumnKey[T](size)
	return Acquire(r, key, func() *pool.ColumnPool[T] {
		opts := append(r.PoolOptions(),
			pool.WithName(key.String()),
			pool.WithLogger(r.logger))
		return pool.NewColumnPool[T](size, opts...)
	})
}

// Len returns the number of registered pools.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

func (r *Registry) each(fn func(Key, Managed)) {
	r.mu.Lock()
	keys := append([]Key(nil), r.keys...)
	r.mu.Unlock()

	for _, k := range keys {
		if v, ok := r.pools.Load(k); ok {
			fn(k, v.(Managed))
		}
	}
}

// Free sweeps every registered pool, dropping idle storage. With reset the
// pools' created counts are zeroed too. In-flight objects are unaffected.
func (r *Registry) Free(ctx context.Context, reset bool) {
	ctx, span := observability.StartSpan(ctx, r.tracer, "registry.free")
	defer span.End()

	n := 0
	r.each(func(_ Key, m Managed) {
		m.Free(reset)
		n++
	})

	span.SetAttribute("pools", n)
	span.SetAttribute("reset", reset)
	metrics.RegistryFree.WithLabelValues(strconv.FormatBool(reset)).Inc()
	if r.sweeps != nil {
		r.sweeps.Add(ctx, 1, metric.WithAttributes(attribute.Bool("reset", reset)))
	}
	r.logger.Info("registry freed", zap.Int("pools", n), zap.Bool("reset", reset))
}

// Report is a point-in-time leak report over every registered pool.
type Report struct {
	Pools  []pool.Stats `json:"pools"`
	Leaked []string     `json:"leaked"`
}

// Report snapshots every pool, sorted by name. Leaks are data here, never
// errors; the report is only exact at a quiescent point.
func (r *Registry) Report(ctx context.Context) Report {
	_, span := observability.StartSpan(ctx, r.tracer, "registry.report")
	defer span.End()

	rep := Report{Pools: []pool.Stats{}, Leaked: []string{}}
	r.each(func(_ Key, m Managed) {
		s := m.Stats()
		rep.Pools = append(rep.Pools, s)
		if s.Leaked {
			rep.Leaked = append(rep.Leaked, s.Name)
		}
	})
	sort.Slice(rep.Pools, func(i, j int) bool { return rep.Pools[i].Name < rep.Pools[j].Name })
	sort.Strings(rep.Leaked)

	span.SetAttribute("pools", len(rep.Pools))
	span.SetAttribute("leaked", len(rep.Leaked))
	for _, name := range rep.Leaked {
		r.logger.Warn("pool leak detected", zap.String("pool", name))
	}
	return rep
}

// WriteReport writes Report as indented JSON.
func (r *Registry) WriteReport(ctx context.Context, w io.Writer) error {
	data, err := gojson.MarshalIndent(r.Report(ctx), "", "  ")
	if err != nil {
		return trillerrors.Wrap(err, trillerrors.ErrorTypeInternal, "failed to encode leak report")
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return trillerrors.Wrap(err, trillerrors.ErrorTypeInternal, "failed to write leak report")
	}
	return nil
}

// Samples implements metrics.SampleSource.
func (r *Registry) Samples() []metrics.Sample {
	var out []metrics.Sample
	r.each(func(_ Key, m Managed) {
		out = append(out, m.Stats().Sample())
	})
	return out
}

var _ metrics.SampleSource = (*Registry)(nil)

// Close frees every pool with reset and forgets them. Pools obtained before
// Close keep working but are no longer swept.
func (r *Registry) Close() {
	r.Free(context.Background(), true)

	r.mu.Lock()
	keys := r.keys
	r.keys = nil
	r.mu.Unlock()

	for _, k := range keys {
		r.pools.Delete(k)
	}
}
