package kafka

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MoexPull/pkg/logger"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

var testBrokers = []string{"localhost:9092"}

func TestNewProducerValidatesConfig(t *testing.T) {
	_, err := NewProducer(ProducerConfig{})
	assert.ErrorIs(t, err, ErrNoBrokers)

	_, err = NewProducer(ProducerConfig{Brokers: testBrokers, Compression: "brotli"})
	assert.Error(t, err)

	p, err := NewProducer(ProducerConfig{Brokers: testBrokers, Compression: "snappy"})
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestPublishEncodesValue(t *testing.T) {
	w := &fakeWriter{}
	p, err := NewProducer(ProducerConfig{Brokers: testBrokers}, withMessageWriter(w))
	require.NoError(t, err)
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	require.NoError(t, p.Publish(context.Background(), "pub.json", []byte("u1/h1"), map[string]string{"op": "upsert"}))
	require.NoError(t, p.Publish(context.Background(), "pub.json", nil, []byte("raw")))
	require.NoError(t, p.Publish(context.Background(), "pub.json", nil, "text"))

	msgs := w.written()
	require.Len(t, msgs, 3)
	assert.Equal(t, "pub.json", msgs[0].Topic)
	assert.Equal(t, "u1/h1", string(msgs[0].Key))
	assert.JSONEq(t, `{"op":"upsert"}`, string(msgs[0].Value))
	assert.Equal(t, at, msgs[0].Time)
	assert.Empty(t, msgs[0].Headers)
	assert.Equal(t, "raw", string(msgs[1].Value))
	assert.Equal(t, "text", string(msgs[2].Value))

	assert.Equal(t, 3.0, testutil.ToFloat64(p.metrics.published.WithLabelValues("pub.json", "ok")))
}

func TestPublishCarriesTraceID(t *testing.T) {
	w := &fakeWriter{}
	p, err := NewProducer(ProducerConfig{Brokers: testBrokers}, withMessageWriter(w))
	require.NoError(t, err)

	ctx := ContextWithTraceID(context.Background(), "u1/h1")
	require.NoError(t, p.Publish(ctx, "pub.trace", nil, "x"))

	msgs := w.written()
	require.Len(t, msgs, 1)
	assert.Equal(t, "u1/h1", traceIDOf(msgs[0]))
}

func TestPublishFailureIsLoggedAndWrapped(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("leader not available")
	p, err := NewProducer(ProducerConfig{Brokers: testBrokers},
		withMessageWriter(&fakeWriter{err: boom}),
		WithProducerLogger(logger.NewWriter(&buf, "warn")),
	)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "pub.fail", []byte("k"), "x")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, buf.String(), "publish failed")
	assert.Contains(t, buf.String(), `"topic":"pub.fail"`)
	assert.Contains(t, buf.String(), `"component":"kafka_producer"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.published.WithLabelValues("pub.fail", "error")))
}

func TestPublishRejectsUnencodableValue(t *testing.T) {
	w := &fakeWriter{}
	p, err := NewProducer(ProducerConfig{Brokers: testBrokers}, withMessageWriter(w))
	require.NoError(t, err)

	assert.Error(t, p.Publish(context.Background(), "pub.bad", nil, nil))
	assert.Error(t, p.Publish(context.Background(), "pub.bad", nil, make(chan int)))
	assert.Empty(t, w.written())
}

func TestAsyncCompletionLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewProducer(ProducerConfig{Brokers: testBrokers}, WithProducerLogger(logger.NewWriter(&buf, "warn")))
	require.NoError(t, err)

	p.completion([]kafka.Message{{Topic: "pub.async"}}, nil)
	assert.Empty(t, buf.String())

	p.completion([]kafka.Message{{Topic: "pub.async"}, {Topic: "pub.async"}}, errors.New("timeout"))
	assert.Contains(t, buf.String(), "async publish failed")
	assert.Contains(t, buf.String(), `"messages":2`)
}

func TestProducerCloseNil(t *testing.T) {
	var p *Producer
	assert.NoError(t, p.Close())
}
