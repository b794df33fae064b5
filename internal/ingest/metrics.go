package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricMessagesProcessed = "ingest_messages_processed_total"
	MetricMessagesError     = "ingest_messages_error_total"
	MetricMessagesSkipped   = "ingest_messages_skipped_total"
	MetricIngestLatency     = "ingest_latency_seconds"
)

// Metrics contains Prometheus metrics for the firehose consumer.
// All operations are thread-safe.
type Metrics struct {
	messagesProcessed *prometheus.CounterVec
	messagesError     prometheus.Counter
	messagesSkipped   prometheus.Counter
	ingestLatency     prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		messagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricMessagesProcessed,
			Help: "Total number of firehose messages processed, by event kind",
		}, []string{"kind"}),
		messagesError: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricMessagesError,
			Help: "Total number of firehose messages that failed processing",
		}),
		messagesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricMessagesSkipped,
			Help: "Total number of firehose messages skipped as undecodable",
		}),
		ingestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricIngestLatency,
			Help:    "Histogram of message ingestion latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.messagesProcessed,
		m.messagesError,
		m.messagesSkipped,
		m.ingestLatency,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncMessagesProcessed increments the processed counter for an event kind.
func (m *Metrics) IncMessagesProcessed(kind string) {
	m.messagesProcessed.WithLabelValues(kind).Inc()
}

// IncMessagesError increments the error counter.
func (m *Metrics) IncMessagesError() {
	m.messagesError.Inc()
}

// IncMessagesSkipped increments the skipped counter.
func (m *Metrics) IncMessagesSkipped() {
	m.messagesSkipped.Inc()
}

// ObserveIngestLatency records an ingestion latency sample.
func (m *Metrics) ObserveIngestLatency(seconds float64) {
	m.ingestLatency.Observe(seconds)
}
