package event

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricEventsDispatched    = "event_sink_dispatched_total"
	MetricEventsDropped       = "event_sink_dropped_total"
	MetricEventsFailed        = "event_sink_failures_total"
	MetricPersistDuration     = "event_sink_persist_duration_seconds"
)

// Metrics contains Prometheus metrics for sink dispatch operations.
// All operations are thread-safe.
type Metrics struct {
	dispatched      *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	failed          *prometheus.CounterVec
	persistDuration *prometheus.HistogramVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		dispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricEventsDispatched,
				Help: "Total number of records handed to the sink dispatcher",
			},
			[]string{"sink", "kind"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricEventsDropped,
				Help: "Total number of records dropped because the dispatch queue was full",
			},
			[]string{"sink", "kind"},
		),
		failed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricEventsFailed,
				Help: "Total number of sink persist failures (swallowed, best-effort contract)",
			},
			[]string{"sink", "kind"},
		),
		persistDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricPersistDuration,
				Help:    "Sink persist duration in seconds",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"sink"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.dispatched,
		m.dropped,
		m.failed,
		m.persistDuration,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncDispatched increments the dispatched counter.
func (m *Metrics) IncDispatched(sink string, kind Kind) {
	m.dispatched.WithLabelValues(sink, string(kind)).Inc()
}

// IncDropped increments the dropped counter.
func (m *Metrics) IncDropped(sink string, kind Kind) {
	m.dropped.WithLabelValues(sink, string(kind)).Inc()
}

// IncFailed increments the failure counter.
func (m *Metrics) IncFailed(sink string, kind Kind) {
	m.failed.WithLabelValues(sink, string(kind)).Inc()
}

// ObservePersistDuration records a persist call duration.
func (m *Metrics) ObservePersistDuration(sink string, seconds float64) {
	m.persistDuration.WithLabelValues(sink).Observe(seconds)
}
