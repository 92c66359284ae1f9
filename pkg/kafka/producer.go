package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MoexPull/pkg/logger"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes holding events, screen audits and collected logs.
// Messages are spread by key hash, so events sharing a key stay ordered.
type Producer struct {
	w       messageWriter
	log     *logger.Logger
	metrics *clientMetrics
	now     func() time.Time
}

// ProducerOption configures Producer.
type ProducerOption func(*Producer)

// WithProducerLogger sets the logger for publish failures.
func WithProducerLogger(l *logger.Logger) ProducerOption {
	return func(p *Producer) {
		if l != nil {
			p.log = l
		}
	}
}

func withMessageWriter(w messageWriter) ProducerOption {
	return func(p *Producer) { p.w = w }
}

// NewProducer builds a producer for cfg.
func NewProducer(cfg ProducerConfig, opts ...ProducerOption) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	cfg = cfg.withDefaults()
	codec, err := compressionCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}

	p := &Producer{log: logger.Nop(), metrics: loadMetrics(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(logger.String("component", "kafka_producer"))

	if p.w == nil {
		kw := &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
			Compression:  codec,
			MaxAttempts:  cfg.MaxAttempts,
			BatchSize:    cfg.BatchSize,
			BatchBytes:   int64(cfg.BatchBytes),
			BatchTimeout: cfg.Linger,
			WriteTimeout: cfg.WriteTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			Async:        cfg.Async,
		}
		if cfg.Async {
			kw.Completion = p.completion
		}
		p.w = kw
	}
	return p, nil
}

// Publish writes value under key. Byte slices and strings are sent as is,
// anything else as JSON. A trace id on ctx travels in the TraceHeader header.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	payload, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("kafka: encode %s message: %w", topic, err)
	}

	msg := kafka.Message{Topic: topic, Key: key, Value: payload, Time: p.now()}
	if id := TraceIDFrom(ctx); id != "" {
		msg.Headers = []kafka.Header{{Key: TraceHeader, Value: []byte(id)}}
	}

	start := time.Now()
	err = p.w.WriteMessages(ctx, msg)
	p.metrics.observePublish(topic, len(payload), time.Since(start), err)
	if err != nil {
		p.log.Warn("publish failed",
			logger.String("topic", topic),
			logger.String("key", string(key)),
			logger.Int("bytes", len(payload)),
			logger.Error(err),
		)
		return fmt.Errorf("kafka: publish to %s: %w", topic, err)
	}
	return nil
}

// completion reports failures of async batches, which Publish cannot see.
func (p *Producer) completion(msgs []kafka.Message, err error) {
	if err == nil || len(msgs) == 0 {
		return
	}
	p.log.Warn("async publish failed",
		logger.String("topic", msgs[0].Topic),
		logger.Int("messages", len(msgs)),
		logger.Error(err),
	)
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case nil:
		return nil, fmt.Errorf("nil value")
	default:
		return json.Marshal(v)
	}
}
