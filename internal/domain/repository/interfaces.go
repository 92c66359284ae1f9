package repository

import (
	"context"
	"errors"

	"MoexPull/internal/domain/models"
)

// ErrHoldingNotFound is returned when a holding does not exist for the user.
var ErrHoldingNotFound = errors.New("holding not found")

// HoldingStore is the source and sink of holdings.
type HoldingStore interface {
	Init(ctx context.Context) error
	List(ctx context.Context, userID string) ([]models.Holding, error)
	Get(ctx context.Context, userID, id string) (*models.Holding, error)
	Save(ctx context.Context, h *models.Holding) error
	Delete(ctx context.Context, userID, id string) error
	Health(ctx context.Context) error
	Close() error
}

// HoldingPublisher ships holding writes to the event log.
type HoldingPublisher interface {
	PublishHolding(ctx context.Context, ev *models.HoldingEvent) error
}

// AuditPublisher ships screener audit summaries.
type AuditPublisher interface {
	PublishAudit(ctx context.Context, ev *models.ScreenAuditEvent) error
}

type Metrics interface {
	RecordFetch(endpoint, outcome string, seconds float64)
	RecordSkip(reason string)
	RecordEnrichment(class string, degraded bool)
	RecordMessageSent(topic string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
