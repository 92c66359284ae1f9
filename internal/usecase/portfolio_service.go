package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"MoexPull/internal/domain/models"
	domrepo "MoexPull/internal/domain/repository"
	domsvc "MoexPull/internal/domain/service"
	"MoexPull/pkg/logger"
	"MoexPull/pkg/util"

	"github.com/google/uuid"
)

var (
	// ErrInvalidHolding wraps every business-rule violation on a write.
	ErrInvalidHolding = errors.New("invalid holding")
	// ErrAlreadySold is returned when selling a closed holding.
	ErrAlreadySold = errors.New("holding already sold")
)

// PortfolioService owns holding CRUD and the dashboard pipeline.
type PortfolioService struct {
	store    domrepo.HoldingStore
	writer   *HoldingWriter
	enricher *Enricher
	signals  domsvc.SignalProvider
	log      *logger.Logger
	now      func() time.Time
}

func NewPortfolioService(
	store domrepo.HoldingStore,
	writer *HoldingWriter,
	enricher *Enricher,
	signals domsvc.SignalProvider,
	log *logger.Logger,
) *PortfolioService {
	return &PortfolioService{
		store:    store,
		writer:   writer,
		enricher: enricher,
		signals:  signals,
		log:      log.With(logger.String("component", "portfolio")),
		now:      moscowNow,
	}
}

func (s *PortfolioService) List(ctx context.Context, userID string) ([]models.Holding, error) {
	hs, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	return hs, nil
}

func (s *PortfolioService) Create(ctx context.Context, userID string, req *models.CreateHoldingRequest) (*models.Holding, error) {
	purchased, err := s.purchaseDate(req.PurchaseDate)
	if err != nil {
		return nil, err
	}
	if err := checkPosition(req.Type, req.PurchasePrice, req.Quantity); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	h := &models.Holding{
		ID:            uuid.NewString(),
		UserID:        userID,
		Ticker:        normalizeTicker(req.Ticker),
		Name:          strings.TrimSpace(req.Name),
		Type:          req.Type,
		PurchasePrice: req.PurchasePrice,
		Quantity:      req.Quantity,
		PurchaseDate:  purchased,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.writer.Save(ctx, h); err != nil {
		return nil, err
	}
	s.log.Info("holding created",
		logger.String("user_id", userID),
		logger.String("holding_id", h.ID),
		logger.String("ticker", h.Ticker),
	)
	return h, nil
}

func (s *PortfolioService) Update(ctx context.Context, userID string, req *models.UpdateHoldingRequest) (*models.Holding, error) {
	h, err := s.store.Get(ctx, userID, req.ID)
	if err != nil {
		return nil, err
	}
	purchased, err := s.purchaseDate(req.PurchaseDate)
	if err != nil {
		return nil, err
	}
	if err := checkPosition(req.Type, req.PurchasePrice, req.Quantity); err != nil {
		return nil, err
	}
	if h.SaleDate != nil && h.SaleDate.Before(purchased) {
		return nil, fmt.Errorf("%w: purchase_date is after sale_date", ErrInvalidHolding)
	}

	h.Ticker = normalizeTicker(req.Ticker)
	h.Name = strings.TrimSpace(req.Name)
	h.Type = req.Type
	h.PurchasePrice = req.PurchasePrice
	h.Quantity = req.Quantity
	h.PurchaseDate = purchased
	h.UpdatedAt = time.Now().UTC()
	if err := s.writer.Save(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Sell closes out a holding at the given price and date.
func (s *PortfolioService) Sell(ctx context.Context, userID string, req *models.SellHoldingRequest) (*models.Holding, error) {
	h, err := s.store.Get(ctx, userID, req.ID)
	if err != nil {
		return nil, err
	}
	if h.Closed() {
		return nil, ErrAlreadySold
	}
	sold, ok := util.ParseDate(req.SaleDate)
	if !ok {
		return nil, fmt.Errorf("%w: sale_date %q", ErrInvalidHolding, req.SaleDate)
	}
	if sold.Before(h.PurchaseDate) {
		return nil, fmt.Errorf("%w: sale_date is before purchase_date", ErrInvalidHolding)
	}
	if req.SalePrice <= 0 {
		return nil, fmt.Errorf("%w: sale_price must be positive", ErrInvalidHolding)
	}

	price := req.SalePrice
	h.SalePrice = &price
	h.SaleDate = &sold
	h.UpdatedAt = time.Now().UTC()
	if err := s.writer.Save(ctx, h); err != nil {
		return nil, err
	}
	s.log.Info("holding sold",
		logger.String("user_id", userID),
		logger.String("holding_id", h.ID),
		logger.Float64("sale_price", price),
	)
	return h, nil
}

func (s *PortfolioService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.store.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.writer.Delete(ctx, userID, id)
}

// Dashboard enriches every holding of userID and aggregates the result.
// Signals are best effort: a provider failure leaves them empty.
func (s *PortfolioService) Dashboard(ctx context.Context, userID string, withSignals bool, opts ...EnrichOption) (*models.Dashboard, error) {
	hs, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	enriched := s.enricher.Enrich(ctx, hs, opts...)
	d := &models.Dashboard{
		AsOf:     s.now(),
		Holdings: enriched,
		Snapshot: Aggregate(enriched),
	}

	if withSignals && s.signals != nil {
		d.Signals = s.fetchSignals(ctx, hs)
	}
	return d, nil
}

// Recommendations labels the given tickers. Lookups use the normalized
// ticker while the result stays keyed by each ticker as the caller sent it.
func (s *PortfolioService) Recommendations(ctx context.Context, tickers []string) (map[string]string, error) {
	if s.signals == nil {
		return map[string]string{}, nil
	}
	norm := make([]string, 0, len(tickers))
	seen := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		n := normalizeTicker(t)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		norm = append(norm, n)
	}
	labels, err := s.signals.Signals(ctx, norm)
	if err != nil {
		return nil, fmt.Errorf("signals: %w", err)
	}

	out := make(map[string]string, len(tickers))
	for _, t := range tickers {
		if l, ok := labels[normalizeTicker(t)]; ok {
			out[t] = l
		}
	}
	return out, nil
}

func (s *PortfolioService) fetchSignals(ctx context.Context, hs []models.Holding) map[string]string {
	seen := make(map[string]struct{}, len(hs))
	tickers := make([]string, 0, len(hs))
	for i := range hs {
		if hs[i].Closed() || hs[i].Type == models.AssetBond {
			continue
		}
		if _, ok := seen[hs[i].Ticker]; ok {
			continue
		}
		seen[hs[i].Ticker] = struct{}{}
		tickers = append(tickers, hs[i].Ticker)
	}
	if len(tickers) == 0 {
		return nil
	}

	out, err := s.signals.Signals(ctx, tickers)
	if err != nil {
		s.log.Warn("signals unavailable", logger.Strings("tickers", tickers), logger.Error(err))
		return nil
	}
	return out
}

// Statistics summarises holdings per class from purchase data alone.
func (s *PortfolioService) Statistics(ctx context.Context, userID string) ([]models.ClassStatistics, error) {
	hs, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	byClass := make(map[models.AssetClass]*models.ClassStatistics)
	for i := range hs {
		h := &hs[i]
		st, ok := byClass[h.Type]
		if !ok {
			st = &models.ClassStatistics{Type: h.Type}
			byClass[h.Type] = st
		}
		st.Count++
		st.Quantity += h.Quantity
		st.Invested += h.Cost()
	}

	out := make([]models.ClassStatistics, 0, len(byClass))
	for _, st := range byClass {
		st.Invested = round2(st.Invested)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (s *PortfolioService) purchaseDate(raw string) (time.Time, error) {
	d, ok := util.ParseDate(raw)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: purchase_date %q", ErrInvalidHolding, raw)
	}
	if util.CalendarDaysBetween(s.now(), d) > 0 {
		return time.Time{}, fmt.Errorf("%w: purchase_date is in the future", ErrInvalidHolding)
	}
	return d, nil
}

func checkPosition(class models.AssetClass, price, qty float64) error {
	switch {
	case !class.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalidHolding, class)
	case price <= 0:
		return fmt.Errorf("%w: purchase_price must be positive", ErrInvalidHolding)
	case qty <= 0:
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidHolding)
	}
	return nil
}

func normalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}
