package repository

import (
	"context"
	"fmt"

	"MoexPull/internal/domain/models"
	domrepo "MoexPull/internal/domain/repository"
	pkgkafka "MoexPull/pkg/kafka"
)

// Producer is the subset of *pkg/kafka.Producer used here.
type Producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaPublisher ships holding events and screen audits.
type KafkaPublisher struct {
	producer      Producer
	holdingsTopic string
	auditTopic    string
}

func NewKafkaPublisher(producer Producer, holdingsTopic, auditTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, holdingsTopic: holdingsTopic, auditTopic: auditTopic}
}

// PublishHolding keys by HoldingEvent.Key. Without a trace id on ctx the key
// doubles as one, so consumer failures can be tied back to the holding.
func (p *KafkaPublisher) PublishHolding(ctx context.Context, ev *models.HoldingEvent) error {
	key := ev.Key()
	if pkgkafka.TraceIDFrom(ctx) == "" {
		ctx = pkgkafka.ContextWithTraceID(ctx, key)
	}
	if err := p.producer.Publish(ctx, p.holdingsTopic, []byte(key), ev); err != nil {
		return fmt.Errorf("publish holding event: %w", err)
	}
	return nil
}

// PublishAudit is a no-op when no audit topic is configured.
func (p *KafkaPublisher) PublishAudit(ctx context.Context, ev *models.ScreenAuditEvent) error {
	if p.auditTopic == "" {
		return nil
	}
	if err := p.producer.Publish(ctx, p.auditTopic, []byte("bond_screen"), ev); err != nil {
		return fmt.Errorf("publish screen audit: %w", err)
	}
	return nil
}

var (
	_ domrepo.HoldingPublisher = (*KafkaPublisher)(nil)
	_ domrepo.AuditPublisher   = (*KafkaPublisher)(nil)
)
