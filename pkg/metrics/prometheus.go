package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetches      *prometheus.CounterVec
	fetchLatency *prometheus.HistogramVec
	skips        *prometheus.CounterVec
	enrichments  *prometheus.CounterVec
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder whose collectors live on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moexpull_fetch_total",
				Help: "Outbound market data fetches by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		fetchLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "moexpull_fetch_duration_seconds",
				Help:    "Duration of outbound market data fetches",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"endpoint"},
		),
		skips: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moexpull_bond_skips_total",
				Help: "Bonds excluded from the screener by skip reason",
			},
			[]string{"reason"},
		),
		enrichments: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moexpull_enrichments_total",
				Help: "Holding enrichments by asset class and result",
			},
			[]string{"class", "result"},
		),
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moexpull_messages_sent_total",
				Help: "Messages published to Kafka by topic",
			},
			[]string{"topic"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moexpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "moexpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetch records one outbound fetch. outcome is "ok" or a failure kind.
func (r *Recorder) RecordFetch(endpoint, outcome string, seconds float64) {
	r.fetches.WithLabelValues(endpoint, outcome).Inc()
	r.fetchLatency.WithLabelValues(endpoint).Observe(seconds)
}

// RecordSkip records one screener exclusion.
func (r *Recorder) RecordSkip(reason string) {
	r.skips.WithLabelValues(reason).Inc()
}

// RecordEnrichment records one settled holding.
func (r *Recorder) RecordEnrichment(class string, degraded bool) {
	result := "ok"
	if degraded {
		result = "degraded"
	}
	r.enrichments.WithLabelValues(class, result).Inc()
}

// RecordMessageSent records a message published to a topic.
func (r *Recorder) RecordMessageSent(topic string) {
	r.messagesSent.WithLabelValues(topic).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Noop discards every measurement.
type Noop struct{}

func (Noop) RecordFetch(string, string, float64) {}
func (Noop) RecordSkip(string)                   {}
func (Noop) RecordEnrichment(string, bool)       {}
func (Noop) RecordMessageSent(string)            {}
func (Noop) RecordError(string)                  {}
func (Noop) RecordLatency(string, float64)       {}
