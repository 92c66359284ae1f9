package repository

import (
	"context"
	"errors"
	"testing"

	"MoexPull/internal/domain/models"
	pkgkafka "MoexPull/pkg/kafka"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	topic string
	key   string
	trace string
	value interface{}
}

type fakeProducer struct {
	msgs []sent
	err  error
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, sent{topic: topic, key: string(key), trace: pkgkafka.TraceIDFrom(ctx), value: value})
	return nil
}

func TestPublishHoldingKeysByUserAndID(t *testing.T) {
	p := &fakeProducer{}
	pub := NewKafkaPublisher(p, "holdings", "")

	ev := &models.HoldingEvent{Op: models.HoldingDelete, UserID: "u1", HoldingID: "h1"}
	require.NoError(t, pub.PublishHolding(context.Background(), ev))

	require.Len(t, p.msgs, 1)
	assert.Equal(t, "holdings", p.msgs[0].topic)
	assert.Equal(t, "u1/h1", p.msgs[0].key)
	assert.Equal(t, "u1/h1", p.msgs[0].trace)
	assert.Same(t, ev, p.msgs[0].value)
}

func TestPublishHoldingKeepsCallerTraceID(t *testing.T) {
	p := &fakeProducer{}
	ctx := pkgkafka.ContextWithTraceID(context.Background(), "req-9")
	require.NoError(t, NewKafkaPublisher(p, "holdings", "").PublishHolding(ctx, &models.HoldingEvent{UserID: "u1", HoldingID: "h1"}))

	require.Len(t, p.msgs, 1)
	assert.Equal(t, "req-9", p.msgs[0].trace)
}

func TestPublishAuditSkippedWithoutTopic(t *testing.T) {
	p := &fakeProducer{}
	require.NoError(t, NewKafkaPublisher(p, "holdings", "").PublishAudit(context.Background(), &models.ScreenAuditEvent{}))
	assert.Empty(t, p.msgs)

	require.NoError(t, NewKafkaPublisher(p, "holdings", "audit").PublishAudit(context.Background(), &models.ScreenAuditEvent{Total: 3}))
	require.Len(t, p.msgs, 1)
	assert.Equal(t, "audit", p.msgs[0].topic)
}

func TestPublishWrapsProducerError(t *testing.T) {
	boom := errors.New("broker down")
	pub := NewKafkaPublisher(&fakeProducer{err: boom}, "holdings", "")
	err := pub.PublishHolding(context.Background(), &models.HoldingEvent{})
	assert.ErrorIs(t, err, boom)
}
