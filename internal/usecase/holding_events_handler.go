package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"MoexPull/internal/domain/models"
	domrepo "MoexPull/internal/domain/repository"
	pkgkafka "MoexPull/pkg/kafka"
)

// HoldingEventsHandler consumes holding events and applies them to the store.
type HoldingEventsHandler struct {
	topic   string
	store   domrepo.HoldingStore
	metrics domrepo.Metrics
}

func NewHoldingEventsHandler(topic string, store domrepo.HoldingStore, metrics domrepo.Metrics) *HoldingEventsHandler {
	return &HoldingEventsHandler{topic: topic, store: store, metrics: metrics}
}

func (h *HoldingEventsHandler) Topic() string { return h.topic }

// Handle applies one HoldingEvent. Deleting an unknown holding is not an
// error so redelivered deletes settle.
func (h *HoldingEventsHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.HoldingEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if !ev.At.IsZero() {
		h.metrics.RecordLatency("holding_event_lag", time.Since(ev.At).Seconds())
	}

	start := time.Now()
	var err error
	switch ev.Op {
	case models.HoldingUpsert:
		if ev.Holding == nil {
			err = fmt.Errorf("upsert event %s without holding", ev.HoldingID)
			break
		}
		err = h.store.Save(ctx, ev.Holding)
	case models.HoldingDelete:
		err = h.store.Delete(ctx, ev.UserID, ev.HoldingID)
		if errors.Is(err, domrepo.ErrHoldingNotFound) {
			err = nil
		}
	default:
		err = fmt.Errorf("unknown holding op %q", ev.Op)
	}
	h.metrics.RecordLatency("holding_apply", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent(h.topic)
	return nil
}

var _ pkgkafka.MessageHandler = (*HoldingEventsHandler)(nil)
