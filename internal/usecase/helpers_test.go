package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"MoexPull/internal/domain/models"
	"MoexPull/internal/service/moex"
)

var errUpstream = errors.New("upstream down")

type fakeResponse struct {
	body  string
	err   error
	delay time.Duration
}

// fakeFetcher serves canned payloads keyed by endpoint and ticker.
type fakeFetcher struct {
	mu    sync.Mutex
	resp  map[string]fakeResponse
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{resp: make(map[string]fakeResponse), calls: make(map[string]int)}
}

func fetchKey(ep moex.Endpoint, ticker string) string {
	return string(ep) + ":" + ticker
}

func (f *fakeFetcher) on(ep moex.Endpoint, ticker, body string) *fakeFetcher {
	f.resp[fetchKey(ep, ticker)] = fakeResponse{body: body}
	return f
}

func (f *fakeFetcher) fail(ep moex.Endpoint, ticker string) *fakeFetcher {
	f.resp[fetchKey(ep, ticker)] = fakeResponse{err: errUpstream}
	return f
}

func (f *fakeFetcher) slow(ep moex.Endpoint, ticker string, d time.Duration) *fakeFetcher {
	r := f.resp[fetchKey(ep, ticker)]
	r.delay = d
	f.resp[fetchKey(ep, ticker)] = r
	return f
}

func (f *fakeFetcher) Fetch(ctx context.Context, ep moex.Endpoint, ticker string, _ ...moex.FetchOption) (*moex.Payload, error) {
	key := fetchKey(ep, ticker)
	f.mu.Lock()
	f.calls[key]++
	r, ok := f.resp[key]
	f.mu.Unlock()

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, &moex.FetchError{Kind: moex.KindNotFound, Endpoint: ep, Ticker: ticker, Err: fmt.Errorf("no fixture")}
	}
	if r.err != nil {
		return nil, &moex.FetchError{Kind: moex.KindNetwork, Endpoint: ep, Ticker: ticker, Err: r.err}
	}
	format := moex.FormatJSON
	if ep == moex.EndpointBondBoard {
		format = moex.FormatXML
	}
	return &moex.Payload{Endpoint: ep, Ticker: ticker, Format: format, Body: []byte(r.body)}, nil
}

func (f *fakeFetcher) callCount(ep moex.Endpoint, ticker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[fetchKey(ep, ticker)]
}

// recordingMetrics counts what the pipelines report.
type recordingMetrics struct {
	mu        sync.Mutex
	skips     map[string]int
	enriched  map[string]int
	degraded  int
	errors    map[string]int
	sent      map[string]int
	latencies map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		skips:     make(map[string]int),
		enriched:  make(map[string]int),
		errors:    make(map[string]int),
		sent:      make(map[string]int),
		latencies: make(map[string]int),
	}
}

func (m *recordingMetrics) RecordFetch(string, string, float64) {}

func (m *recordingMetrics) RecordSkip(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skips[reason]++
}

func (m *recordingMetrics) RecordEnrichment(class string, degraded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enriched[class]++
	if degraded {
		m.degraded++
	}
}

func (m *recordingMetrics) RecordMessageSent(topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[topic]++
}

func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *recordingMetrics) RecordLatency(op string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies[op]++
}

type capturedPublisher struct {
	mu      sync.Mutex
	events  []*models.HoldingEvent
	audits  []*models.ScreenAuditEvent
	failure error
}

func (p *capturedPublisher) PublishHolding(_ context.Context, ev *models.HoldingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failure != nil {
		return p.failure
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *capturedPublisher) PublishAudit(_ context.Context, ev *models.ScreenAuditEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failure != nil {
		return p.failure
	}
	p.audits = append(p.audits, ev)
	return nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fixedNow is a weekday noon on the Moscow calendar.
var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, moscow)
