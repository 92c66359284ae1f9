package usecase

import (
	"context"
	"time"

	"MoexPull/internal/domain/models"
	domrepo "MoexPull/internal/domain/repository"
	"MoexPull/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// enrichResult is what one unit of work produces for one holding.
type enrichResult struct {
	ID            string
	CurrentPrice  float64
	AccruedIncome float64
	Degraded      bool
	Warnings      []string
}

// Enricher attaches live price and accrued income to holdings.
type Enricher struct {
	fetcher     QuoteFetcher
	metrics     domrepo.Metrics
	log         *logger.Logger
	concurrency int
	now         func() time.Time
}

func NewEnricher(fetcher QuoteFetcher, metrics domrepo.Metrics, log *logger.Logger, concurrency int) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Enricher{
		fetcher:     fetcher,
		metrics:     metrics,
		log:         log.With(logger.String("component", "enricher")),
		concurrency: concurrency,
		now:         moscowNow,
	}
}

// EnrichOption tunes a single Enrich call.
type EnrichOption func(*enrichRun)

type enrichRun struct {
	progress func(models.EnrichedHolding)
}

// WithProgress calls fn as each holding settles. fn may be called from
// several goroutines at once.
func WithProgress(fn func(models.EnrichedHolding)) EnrichOption {
	return func(r *enrichRun) { r.progress = fn }
}

// ProgressOf returns the callback set by WithProgress, or nil.
func ProgressOf(opts ...EnrichOption) func(models.EnrichedHolding) {
	run := &enrichRun{}
	for _, opt := range opts {
		opt(run)
	}
	return run.progress
}

// Enrich fetches every holding concurrently and returns the enriched set in
// input order. It never fails: a holding whose fetches fail keeps its
// purchase price and zero income and is marked degraded.
func (e *Enricher) Enrich(ctx context.Context, holdings []models.Holding, opts ...EnrichOption) []models.EnrichedHolding {
	progress := ProgressOf(opts...)
	now := e.now()

	results := make([]enrichResult, len(holdings))
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := range holdings {
		h := &holdings[i]
		g.Go(func() error {
			r := e.enrichOne(ctx, h, now)
			results[i] = r
			e.metrics.RecordEnrichment(string(h.Type), r.Degraded)
			if progress != nil {
				progress(apply(*h, r))
			}
			return nil
		})
	}
	_ = g.Wait()

	return MergeEnrichment(holdings, results)
}

// enrichOne runs the price and income lookups of one holding side by side.
func (e *Enricher) enrichOne(ctx context.Context, h *models.Holding, now time.Time) enrichResult {
	until := now
	if h.SaleDate != nil {
		until = *h.SaleDate
	}

	var (
		price, income       float64
		priceErr, incomeErr error
		g                   errgroup.Group
	)
	g.Go(func() error {
		price, priceErr = fetchPrice(ctx, e.fetcher, h)
		return nil
	})
	g.Go(func() error {
		income, incomeErr = fetchIncome(ctx, e.fetcher, h, until)
		return nil
	})
	_ = g.Wait()

	r := enrichResult{ID: h.ID, CurrentPrice: price, AccruedIncome: income}
	if priceErr != nil {
		r.CurrentPrice = h.PurchasePrice
		r.Degraded = true
		r.Warnings = append(r.Warnings, "price: "+priceErr.Error())
		e.log.Warn("price lookup failed, using purchase price",
			logger.String("holding_id", h.ID),
			logger.String("ticker", h.Ticker),
			logger.String("type", string(h.Type)),
			logger.Error(priceErr),
		)
	}
	if incomeErr != nil {
		r.AccruedIncome = 0
		r.Degraded = true
		r.Warnings = append(r.Warnings, "income: "+incomeErr.Error())
		e.log.Warn("income lookup failed, assuming zero",
			logger.String("holding_id", h.ID),
			logger.String("ticker", h.Ticker),
			logger.String("type", string(h.Type)),
			logger.Error(incomeErr),
		)
	}
	return r
}

// MergeEnrichment applies results to holdings in one pass, matching by id.
// A result only ever touches its own holding; holdings without a result keep
// their fallback values.
func MergeEnrichment(holdings []models.Holding, results []enrichResult) []models.EnrichedHolding {
	byID := make(map[string]enrichResult, len(results))
	for _, r := range results {
		if r.ID != "" {
			byID[r.ID] = r
		}
	}

	out := make([]models.EnrichedHolding, len(holdings))
	for i, h := range holdings {
		r, ok := byID[h.ID]
		if !ok {
			r = enrichResult{ID: h.ID, CurrentPrice: h.PurchasePrice, Degraded: true, Warnings: []string{"not enriched"}}
		}
		out[i] = apply(h, r)
	}
	return out
}

func apply(h models.Holding, r enrichResult) models.EnrichedHolding {
	eh := models.EnrichedHolding{
		Holding:       h,
		CurrentPrice:  r.CurrentPrice,
		AccruedIncome: r.AccruedIncome,
		Degraded:      r.Degraded,
		Warnings:      r.Warnings,
	}
	eh.Profit = HoldingProfit(&eh)
	return eh
}
