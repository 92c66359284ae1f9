package usecase

import (
	"context"
	"fmt"
	"time"

	"MoexPull/internal/domain/models"
	domrepo "MoexPull/internal/domain/repository"
	"MoexPull/pkg/config"
)

// HoldingWriter routes holding writes to the configured backend.
// With the kafka backend writes become events that a consumer later applies
// to the store, so a read right after a write may not observe it yet.
type HoldingWriter struct {
	pub     domrepo.HoldingPublisher
	store   domrepo.HoldingStore
	metrics domrepo.Metrics
	backend string
	now     func() time.Time
}

func NewHoldingWriter(pub domrepo.HoldingPublisher, store domrepo.HoldingStore, metrics domrepo.Metrics, backend string) *HoldingWriter {
	return &HoldingWriter{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
		now:     time.Now,
	}
}

// Save inserts or replaces h.
func (w *HoldingWriter) Save(ctx context.Context, h *models.Holding) error {
	if h == nil {
		return fmt.Errorf("holding is nil")
	}
	return w.write(ctx, "save", func() error {
		if w.backend == config.BackendKafka {
			return w.pub.PublishHolding(ctx, &models.HoldingEvent{
				Op:        models.HoldingUpsert,
				UserID:    h.UserID,
				HoldingID: h.ID,
				Holding:   h,
				At:        w.now().UTC(),
			})
		}
		return w.store.Save(ctx, h)
	})
}

// Delete removes the holding id of userID.
func (w *HoldingWriter) Delete(ctx context.Context, userID, id string) error {
	return w.write(ctx, "delete", func() error {
		if w.backend == config.BackendKafka {
			return w.pub.PublishHolding(ctx, &models.HoldingEvent{
				Op:        models.HoldingDelete,
				UserID:    userID,
				HoldingID: id,
				At:        w.now().UTC(),
			})
		}
		return w.store.Delete(ctx, userID, id)
	})
}

func (w *HoldingWriter) write(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	if w.backend == config.BackendKafka && w.pub == nil {
		return fmt.Errorf("%s holding: kafka backend without publisher", op)
	}

	if err := fn(); err != nil {
		w.metrics.RecordError("holding_" + op)
		return fmt.Errorf("%s holding: %w", op, err)
	}

	w.metrics.RecordMessageSent(w.backend)
	w.metrics.RecordLatency("holding_"+op, time.Since(start).Seconds())
	return nil
}
