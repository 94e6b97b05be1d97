package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sample is one pool's population at a point in time.
type Sample struct {
	Name    string
	Kind    string
	Created int64
	Queued  int
	Leaked  bool
}

// SampleSource produces pool samples on demand.
type SampleSource interface {
	Samples() []Sample
}

// SampleFunc adapts a function to SampleSource.
type SampleFunc func() []Sample

// Samples implements SampleSource.
func (f SampleFunc) Samples() []Sample { return f() }

// PoolCollector exports pool populations as gauges. It reads its source at
// scrape time, so registered pools appear without further wiring.
type PoolCollector struct {
	source  SampleSource
	created *prometheus.Desc
	queued  *prometheus.Desc
	leaked  *prometheus.Desc
}

var _ prometheus.Collector = (*PoolCollector)(nil)

// NewPoolCollector creates a collector over src.
func NewPoolCollector(src SampleSource) *PoolCollector {
	labels := []string{"pool", "kind"}
	return &PoolCollector{
		source: src,
		created: prometheus.NewDesc(
			"trill_pool_created_objects",
			"Objects created by the pool and not yet freed",
			labels, nil,
		),
		queued: prometheus.NewDesc(
			"trill_pool_queued_objects",
			"Objects waiting in the pool queue",
			labels, nil,
		),
		leaked: prometheus.NewDesc(
			"trill_pool_leaked",
			"1 when the pool's created and queued counts disagree",
			labels, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.created
	ch <- c.queued
	ch <- c.leaked
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.source.Samples() {
		leaked := 0.0
		if s.Leaked {
			leaked = 1
		}
		ch <- prometheus.MustNewConstMetric(c.created, prometheus.GaugeValue, float64(s.Created), s.Name, s.Kind)
		ch <- prometheus.MustNewConstMetric(c.queued, prometheus.GaugeValue, float64(s.Queued), s.Name, s.Kind)
		ch <- prometheus.MustNewConstMetric(c.leaked, prometheus.GaugeValue, leaked, s.Name, s.Kind)
	}
}
