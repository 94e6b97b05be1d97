// Package metrics provides Prometheus instrumentation for the pooled batch
// layer: counters on the pool and batch hot paths, and a collector that
// exports pool population gauges from any SampleSource.
//
// # Overview
//
// The metrics package provides:
//   - Package-level vectors registered with the default registry
//   - Per-pool pre-bound counters so hot paths avoid label lookups
//   - PoolCollector, exporting created/queued/leaked per pool at scrape time
//   - Timer and ThroughputTracker helpers used by the benchmark tooling
//
// # Basic Usage
//
//	prometheus.MustRegister(metrics.NewPoolCollector(reg))
//
//	c := metrics.ForPool("column/int64/80000")
//	c.Hit()
//
// # Performance
//
// Counter increments are atomic adds on pre-bound children. Gauges for pool
// populations are computed only when Prometheus scrapes.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ColumnPoolGets counts column pool Get calls.
	// Labels: pool (pool name), result (hit/miss)
	//
	// Example:
	//	metrics.ColumnPoolGets.WithLabelValues("column/int64/80000", "hit").Inc()
	ColumnPoolGets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trill_column_pool_gets_total",
			Help: "Total number of columns handed out by column pools",
		},
		[]string{"pool", "result"},
	)

	// ColumnPoolReturns counts columns handed back to their pool.
	ColumnPoolReturns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trill_column_pool_returns_total",
			Help: "Total number of columns returned to column pools",
		},
		[]string{"pool"},
	)

	// BatchesSealed counts sealed batches.
	BatchesSealed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trill_batches_sealed_total",
			Help: "Total number of batches sealed",
		},
	)

	// RegistryFree counts registry-wide Free sweeps.
	// Labels: reset (true/false)
	RegistryFree = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trill_registry_free_total",
			Help: "Total number of registry Free sweeps",
		},
		[]string{"reset"},
	)

	// IngressOrderFaults counts events rejected for arriving out of order.
	IngressOrderFaults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trill_ingress_order_faults_total",
			Help: "Total number of out-of-order ingress events detected",
		},
	)

	// MemoryPressure is the last system memory usage percent sampled by the
	// memory watcher.
	MemoryPressure = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trill_memory_pressure_percent",
			Help: "System memory usage percent at the last watcher sample",
		},
	)

	// MemoryPressureSweeps counts registry sweeps triggered by memory pressure.
	MemoryPressureSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trill_memory_pressure_sweeps_total",
			Help: "Total number of pool sweeps triggered by memory pressure",
		},
	)

	// BenchThroughput tracks batches per second reported by the bench tool.
	BenchThroughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trill_bench_throughput_batches_per_second",
			Help: "Batches processed per second by the bench workload",
		},
		[]string{"worker"},
	)
)

// PoolCounters holds counters pre-bound to one pool name.
type PoolCounters struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	returns prometheus.Counter
}

// ForPool binds the pool counters to name.
func ForPool(name string) *PoolCounters {
	return &PoolCounters{
		hits:    ColumnPoolGets.WithLabelValues(name, "hit"),
		misses:  ColumnPoolGets.WithLabelValues(name, "miss"),
		returns: ColumnPoolReturns.WithLabelValues(name),
	}
}

// Hit records a Get served from the queue.
func (c *PoolCounters) Hit() { c.hits.Inc() }

// Miss records a Get that allocated.
func (c *PoolCounters) Miss() { c.misses.Inc() }

// Returned records a column going back to its queue.
func (c *PoolCounters) Returned() { c.returns.Inc() }

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer name.
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. It can be called
// multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks batches per second over time windows.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	worker    string
}

// NewThroughputTracker creates a tracker labelled with worker.
func NewThroughputTracker(worker string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		worker:    worker,
	}
}

// Increment adds n to the count.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput, publishes it, resets the
// counter and returns it.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()

	BenchThroughput.WithLabelValues(t.worker).Set(throughput)

	return throughput
}
