package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MoexPull/internal/domain/models"
	domrepo "MoexPull/internal/domain/repository"
	"MoexPull/internal/service/moex"
	"MoexPull/pkg/logger"
)

// ErrFeedUnavailable is returned when the bond reference feed cannot be fetched.
var ErrFeedUnavailable = errors.New("bond feed unavailable")

// QuoteFetcher is the subset of *moex.Client the pipelines depend on.
type QuoteFetcher interface {
	Fetch(ctx context.Context, ep moex.Endpoint, ticker string, opts ...moex.FetchOption) (*moex.Payload, error)
}

// BondScreener runs fetch, parse, normalize and value over the full bond board.
type BondScreener struct {
	fetcher QuoteFetcher
	audit   domrepo.AuditPublisher
	metrics domrepo.Metrics
	log     *logger.Logger
	now     func() time.Time
}

func NewBondScreener(fetcher QuoteFetcher, audit domrepo.AuditPublisher, metrics domrepo.Metrics, log *logger.Logger) *BondScreener {
	return &BondScreener{
		fetcher: fetcher,
		audit:   audit,
		metrics: metrics,
		log:     log.With(logger.String("component", "bond_screener")),
		now:     moscowNow,
	}
}

// Screen returns eligible bonds in feed order together with the skip audit.
// Only an unreachable feed is an error.
func (s *BondScreener) Screen(ctx context.Context) (*models.ScreenResult, error) {
	start := time.Now()

	payload, err := s.fetcher.Fetch(ctx, moex.EndpointBondBoard, "")
	if err != nil {
		s.metrics.RecordError("bond_feed")
		return nil, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}

	securities := moex.Parse(payload, "securities")
	quotes := moex.Parse(payload, "marketdata")
	now := s.now()

	candidates, skipped := NormalizeBonds(securities, quotes, now)

	bonds := make([]models.BondValuation, 0, len(candidates))
	for _, c := range candidates {
		v, ok := ValueBond(c)
		if !ok {
			skipped = append(skipped, models.SkipEntry{SecID: c.SecID, Reason: models.SkipNonFiniteResult})
			continue
		}
		bonds = append(bonds, v)
	}

	res := &models.ScreenResult{
		AsOf:    now,
		Total:   len(securities),
		Bonds:   bonds,
		Skipped: skipped,
	}

	counts := res.SkipCounts()
	for reason, n := range counts {
		for i := 0; i < n; i++ {
			s.metrics.RecordSkip(string(reason))
		}
	}
	s.metrics.RecordLatency("bond_screen", time.Since(start).Seconds())
	s.log.Info("bond screen finished",
		logger.Int("securities", len(securities)),
		logger.Int("quotes", len(quotes)),
		logger.Int("eligible", len(bonds)),
		logger.Int("skipped", len(skipped)),
		logger.Duration("duration_ms", time.Since(start)),
	)

	s.publishAudit(ctx, res, counts)
	return res, nil
}

func (s *BondScreener) publishAudit(ctx context.Context, res *models.ScreenResult, counts map[models.SkipReason]int) {
	if s.audit == nil {
		return
	}
	ev := &models.ScreenAuditEvent{
		At:       res.AsOf,
		Total:    res.Total,
		Eligible: len(res.Bonds),
		Skipped:  counts,
		Entries:  res.Skipped,
	}
	if err := s.audit.PublishAudit(ctx, ev); err != nil {
		s.metrics.RecordError("audit_publish")
		s.log.Warn("publish screen audit failed", logger.Error(err))
	}
}
