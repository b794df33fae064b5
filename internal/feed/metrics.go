package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricImpressionsRecorded = "feed_impressions_recorded_total"
	MetricEngagementsRecorded = "feed_engagements_recorded_total"
	MetricCacheHits           = "feed_cache_hits_total"
	MetricCacheMisses         = "feed_cache_misses_total"
	MetricGenerationDuration  = "feed_generation_duration_seconds"
)

// Metrics contains Prometheus metrics for the feed engine.
// All operations are thread-safe.
type Metrics struct {
	impressionsRecorded prometheus.Counter
	engagementsRecorded *prometheus.CounterVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	generationDuration  prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		impressionsRecorded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricImpressionsRecorded,
				Help: "Total number of impressions recorded by the engine",
			},
		),
		engagementsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricEngagementsRecorded,
				Help: "Total number of engagements recorded by the engine, by type",
			},
			[]string{"type"},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricCacheHits,
				Help: "Total number of feed cache hits",
			},
		),
		cacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricCacheMisses,
				Help: "Total number of feed cache misses (including TTL expiries)",
			},
		),
		generationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricGenerationDuration,
				Help:    "Feed generation duration in seconds (cache misses only)",
				Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1.0},
			},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.impressionsRecorded,
		m.engagementsRecorded,
		m.cacheHits,
		m.cacheMisses,
		m.generationDuration,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
