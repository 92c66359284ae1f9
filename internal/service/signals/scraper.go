package signals

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"MoexPull/internal/domain/models"
	"MoexPull/internal/domain/repository"
	"MoexPull/internal/service/ratelimit"
	xhttp "MoexPull/pkg/http"
	"MoexPull/pkg/logger"
	"MoexPull/pkg/metrics"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBaseURL = "https://ru.tradingview.com"
	limiterKey     = "tradingview"
	userAgent      = "Mozilla/5.0 (compatible; moexpull/1.0)"
)

// Counter blocks of the technicals summary. Class names carry build hashes,
// so matching is by substring.
const (
	summarySelector = `[class*="speedometerWrapper"][class*="summary"]`
	countersWrapper = `[class*="countersWrapper"]`
	counterItem     = `[class*="counterWrapper"]`
	counterTitle    = `[class*="counterTitle"]`
	counterNumber   = `[class*="counterNumber"]`
)

// Option configures Scraper.
type Option func(*Scraper)

// Scraper reads technicals summaries from TradingView symbol pages.
type Scraper struct {
	baseURL     string
	http        *xhttp.Client
	limiter     *ratelimit.Limiter
	timeout     time.Duration
	concurrency int
	metrics     repository.Metrics
	log         *logger.Logger
}

func NewScraper(opts ...Option) *Scraper {
	s := &Scraper{
		baseURL:     defaultBaseURL,
		timeout:     5 * time.Second,
		concurrency: 4,
		metrics:     metrics.Noop{},
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.http == nil {
		s.http = xhttp.NewClient(xhttp.WithTimeout(s.timeout), xhttp.WithUserAgent(userAgent))
	}
	s.log = s.log.With(logger.String("component", "signals"))
	return s
}

func WithBaseURL(u string) Option {
	return func(s *Scraper) {
		if u != "" {
			s.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(c *xhttp.Client) Option {
	return func(s *Scraper) { s.http = c }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Scraper) { s.limiter = l }
}

func WithConcurrency(n int) Option {
	return func(s *Scraper) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithMetrics(m repository.Metrics) Option {
	return func(s *Scraper) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Scraper) {
		if l != nil {
			s.log = l
		}
	}
}

// Symbol maps an exchange ticker to a TradingView symbol. Tickers already
// carrying an exchange prefix are kept.
func Symbol(ticker string) string {
	if strings.Contains(ticker, "-") {
		return ticker
	}
	return "RUS-" + ticker
}

// Signals labels each ticker. Tickers whose page fails or has no summary are
// left out; the call itself only fails when ctx is done.
func (s *Scraper) Signals(ctx context.Context, tickers []string) (map[string]string, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]string, len(tickers))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, ticker := range tickers {
		g.Go(func() error {
			counts, err := s.Counts(gctx, ticker)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.metrics.RecordError("signals_fetch")
				s.log.Warn("signal lookup failed", logger.String("ticker", ticker), logger.Error(err))
				return nil
			}
			if label := counts.Label(); label != "" {
				mu.Lock()
				out[ticker] = label
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Counts fetches and parses the summary tally for one ticker.
func (s *Scraper) Counts(ctx context.Context, ticker string) (models.SignalCounts, error) {
	if err := s.limiter.Wait(ctx, limiterKey); err != nil {
		return models.SignalCounts{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var body []byte
	err := s.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     fmt.Sprintf("%s/symbols/%s/technicals/", s.baseURL, Symbol(ticker)),
		Headers: map[string]string{"Accept": "text/html"},
	}, &body)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.RecordFetch("signals", outcome, time.Since(start).Seconds())
	if err != nil {
		return models.SignalCounts{}, err
	}

	return ParseCounts(body)
}

// ParseCounts extracts the sell/neutral/buy tally from a technicals page.
// Counter titles may be Russian or English.
func ParseCounts(page []byte) (models.SignalCounts, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return models.SignalCounts{}, fmt.Errorf("parse page: %w", err)
	}

	summary := doc.Find(summarySelector).First()
	if summary.Length() == 0 {
		return models.SignalCounts{}, fmt.Errorf("technicals summary not found")
	}

	var c models.SignalCounts
	summary.Find(countersWrapper).First().Find(counterItem).Each(func(_ int, item *goquery.Selection) {
		title := strings.TrimSpace(item.Find(counterTitle).First().Text())
		n, err := strconv.Atoi(strings.TrimSpace(item.Find(counterNumber).First().Text()))
		if err != nil {
			n = 0
		}
		switch strings.ToLower(title) {
		case strings.ToLower(models.SignalSell), "sell":
			c.Sell = n
		case strings.ToLower(models.SignalHold), "neutral":
			c.Neutral = n
		case strings.ToLower(models.SignalBuy), "buy":
			c.Buy = n
		}
	})
	return c, nil
}
