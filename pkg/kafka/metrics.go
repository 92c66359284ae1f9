package kafka

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Handling outcomes reported by moexpull_kafka_consumer_messages_total.
const (
	outcomeOK           = "ok"
	outcomeDeadLettered = "dead_lettered"
	outcomeDropped      = "dropped"
	outcomeAborted      = "aborted"
)

type clientMetrics struct {
	published      *prometheus.CounterVec
	publishedBytes *prometheus.CounterVec
	publishLatency *prometheus.HistogramVec
	handled        *prometheus.CounterVec
	handleLatency  *prometheus.HistogramVec
	queueDepth     *prometheus.GaugeVec
}

var (
	metricsOnce       sync.Once
	sharedMetrics     *clientMetrics
	metricsRegisterer prometheus.Registerer = prometheus.DefaultRegisterer
)

// SetMetricsRegisterer routes client metrics to reg. It only has an effect
// before the first producer or consumer is built.
func SetMetricsRegisterer(reg prometheus.Registerer) {
	if reg != nil {
		metricsRegisterer = reg
	}
}

func loadMetrics() *clientMetrics {
	metricsOnce.Do(func() {
		f := promauto.With(metricsRegisterer)
		sharedMetrics = &clientMetrics{
			published: f.NewCounterVec(prometheus.CounterOpts{
				Name: "moexpull_kafka_producer_messages_total",
				Help: "Messages written to Kafka by topic and result",
			}, []string{"topic", "result"}),
			publishedBytes: f.NewCounterVec(prometheus.CounterOpts{
				Name: "moexpull_kafka_producer_bytes_total",
				Help: "Payload bytes written to Kafka",
			}, []string{"topic"}),
			publishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "moexpull_kafka_producer_publish_seconds",
				Help:    "Time spent in a single publish call",
				Buckets: prometheus.DefBuckets,
			}, []string{"topic"}),
			handled: f.NewCounterVec(prometheus.CounterOpts{
				Name: "moexpull_kafka_consumer_messages_total",
				Help: "Consumed messages by topic and outcome",
			}, []string{"topic", "outcome"}),
			handleLatency: f.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "moexpull_kafka_consumer_handle_seconds",
				Help:    "Handling time per message, retries included",
				Buckets: prometheus.DefBuckets,
			}, []string{"topic"}),
			queueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
				Name: "moexpull_kafka_consumer_queue_depth",
				Help: "Fetched messages waiting for a worker",
			}, []string{"topic"}),
		}
	})
	return sharedMetrics
}

func (m *clientMetrics) observePublish(topic string, size int, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.published.WithLabelValues(topic, result).Inc()
	if err == nil {
		m.publishedBytes.WithLabelValues(topic).Add(float64(size))
	}
	m.publishLatency.WithLabelValues(topic).Observe(dur.Seconds())
}

func (m *clientMetrics) observeHandle(topic, outcome string, dur time.Duration) {
	m.handled.WithLabelValues(topic, outcome).Inc()
	m.handleLatency.WithLabelValues(topic).Observe(dur.Seconds())
}
