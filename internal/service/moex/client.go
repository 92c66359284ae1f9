package moex

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"MoexPull/internal/domain/repository"
	"MoexPull/internal/service/ratelimit"
	xhttp "MoexPull/pkg/http"
	"MoexPull/pkg/logger"
	"MoexPull/pkg/metrics"

	"github.com/sony/gobreaker"
)

const DefaultFetchTimeout = 5 * time.Second

// Payload is a raw ISS response plus where it came from.
type Payload struct {
	Endpoint Endpoint
	Ticker   string
	Format   Format
	Body     []byte
}

// Provenance tags the payload with its endpoint and instrument.
func (p *Payload) Provenance() string {
	if p.Ticker == "" {
		return string(p.Endpoint)
	}
	return string(p.Endpoint) + ":" + p.Ticker
}

// Option configures Client.
type Option func(*Client)

// Client fetches raw payloads from ISS. It never retries and never caches.
// Each Fetch is bounded by the fetch timeout.
type Client struct {
	baseURL string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics repository.Metrics
	log     *logger.Logger
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultFetchTimeout,
		metrics: metrics.Noop{},
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient(xhttp.WithTimeout(c.timeout), xhttp.WithUserAgent("moexpull/1.0"))
	}
	return c
}

// FetchOption customises a single request.
type FetchOption func(*xhttp.RequestOptions)

// WithHeader attaches a header to this request only.
func WithHeader(key, value string) FetchOption {
	return func(o *xhttp.RequestOptions) {
		if o.Headers == nil {
			o.Headers = make(map[string]string)
		}
		o.Headers[key] = value
	}
}

// Fetch retrieves one ISS resource. ticker is ignored for EndpointBondBoard.
// Failures are always *FetchError.
func (c *Client) Fetch(ctx context.Context, ep Endpoint, ticker string, opts ...FetchOption) (*Payload, error) {
	if !ep.PerInstrument() {
		ticker = ""
	}
	target, format, err := ep.resolve(c.baseURL, ticker)
	if err != nil {
		return nil, &FetchError{Kind: KindNotFound, Endpoint: ep, Ticker: ticker, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	body, err := c.do(ctx, target, opts)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		fe := &FetchError{Kind: classify(err), Endpoint: ep, Ticker: ticker, Err: err}
		c.metrics.RecordFetch(string(ep), string(fe.Kind), elapsed)
		c.log.Debug("moex fetch failed",
			logger.String("endpoint", string(ep)),
			logger.String("ticker", ticker),
			logger.String("kind", string(fe.Kind)),
			logger.Error(err),
		)
		return nil, fe
	}

	c.metrics.RecordFetch(string(ep), "ok", elapsed)
	return &Payload{Endpoint: ep, Ticker: ticker, Format: format, Body: body}, nil
}

func (c *Client) do(ctx context.Context, target string, opts []FetchOption) ([]byte, error) {
	if c.limiter != nil {
		host := target
		if u, err := url.Parse(target); err == nil {
			host = u.Host
		}
		if err := c.limiter.Wait(ctx, host); err != nil {
			return nil, err
		}
	}

	req := &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: target}
	for _, opt := range opts {
		opt(req)
	}

	send := func() ([]byte, error) {
		var body []byte
		err := c.http.SendAndParse(ctx, req, &body)
		return body, err
	}
	if c.breaker == nil {
		return send()
	}

	// A 404 is an answer, not an outage: keep it out of the breaker's counts.
	var notFound error
	out, err := c.breaker.Execute(func() (interface{}, error) {
		body, err := send()
		if isStatus(err, http.StatusNotFound) {
			notFound = err
			return nil, nil
		}
		return body, err
	})
	if notFound != nil {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	body, _ := out.([]byte)
	return body, nil
}

func classify(err error) Kind {
	if isStatus(err, http.StatusNotFound) {
		return KindNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

func isStatus(err error, code int) bool {
	var se *xhttp.StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *xhttp.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithFetchTimeout bounds every Fetch call.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLimiter throttles requests per upstream host.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithBreaker opens after maxFailures consecutive failures and stays open
// for openTimeout before probing again.
func WithBreaker(name string, maxFailures uint32, openTimeout time.Duration, log *logger.Logger) Option {
	return func(c *Client) {
		st := gobreaker.Settings{
			Name:    name,
			Timeout: openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
		}
		if log != nil {
			st.OnStateChange = func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state change",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()),
				)
			}
		}
		c.breaker = gobreaker.NewCircuitBreaker(st)
	}
}

// WithMetrics records fetch outcomes.
func WithMetrics(m repository.Metrics) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}
