package signals

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"MoexPull/internal/domain/models"
	"MoexPull/pkg/cache"
	"MoexPull/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func technicalsPage(sell, neutral, buy int) string {
	counter := func(title string, n int) string {
		return fmt.Sprintf(`<div class="counterWrapper-kg4MJrFB"><span class="counterTitle-kg4MJrFB">%s</span><span class="counterNumber-kg4MJrFB">%d</span></div>`, title, n)
	}
	return `<html><body>
<div class="speedometerWrapper-kg4MJrFB oscillators-kg4MJrFB"><div class="countersWrapper-kg4MJrFB">` +
		counter("Продавать", 9) + counter("Держать", 9) + counter("Покупать", 9) +
		`</div></div>
<div class="speedometerWrapper-kg4MJrFB summary-kg4MJrFB"><div class="countersWrapper-kg4MJrFB">` +
		counter("Продавать", sell) + counter("Держать", neutral) + counter("Покупать", buy) +
		`</div></div></body></html>`
}

func TestParseCountsReadsSummaryOnly(t *testing.T) {
	c, err := ParseCounts([]byte(technicalsPage(3, 8, 15)))
	require.NoError(t, err)
	assert.Equal(t, models.SignalCounts{Sell: 3, Neutral: 8, Buy: 15}, c)
	assert.Equal(t, models.SignalBuy, c.Label())
}

func TestParseCountsEnglishTitles(t *testing.T) {
	page := `<div class="speedometerWrapper-x summary-x"><div class="countersWrapper-x">
<div class="counterWrapper-x"><span class="counterTitle-x">Sell</span><span class="counterNumber-x">12</span></div>
<div class="counterWrapper-x"><span class="counterTitle-x">Buy</span><span class="counterNumber-x">n/a</span></div>
</div></div>`
	c, err := ParseCounts([]byte(page))
	require.NoError(t, err)
	assert.Equal(t, 12, c.Sell)
	assert.Equal(t, 0, c.Buy)
	assert.Equal(t, models.SignalSell, c.Label())
}

func TestParseCountsMissingSummary(t *testing.T) {
	_, err := ParseCounts([]byte("<html><body>captcha</body></html>"))
	assert.Error(t, err)
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, "RUS-SBER", Symbol("SBER"))
	assert.Equal(t, "MOEX-TMOS", Symbol("MOEX-TMOS"))
}

func newServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch {
		case strings.Contains(r.URL.Path, "/RUS-SBER/"):
			fmt.Fprint(w, technicalsPage(1, 4, 12))
		case strings.Contains(r.URL.Path, "/RUS-GAZP/"):
			fmt.Fprint(w, technicalsPage(14, 5, 2))
		case strings.Contains(r.URL.Path, "/RUS-EMPTY/"):
			fmt.Fprint(w, technicalsPage(0, 0, 0))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScraperSignalsIsolatesFailures(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	s := NewScraper(WithBaseURL(srv.URL), WithTimeout(time.Second))

	got, err := s.Signals(context.Background(), []string{"SBER", "GAZP", "NOPE", "EMPTY"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"SBER": models.SignalBuy,
		"GAZP": models.SignalSell,
	}, got)
}

func TestCachedServesHitsWithoutFetching(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	mc := cache.NewMemoryCache()
	defer mc.Close()

	c := NewCached(NewScraper(WithBaseURL(srv.URL)), mc, time.Minute, logger.Nop())

	first, err := c.Signals(context.Background(), []string{"SBER", "GAZP"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))

	second, err := c.Signals(context.Background(), []string{"SBER", "GAZP"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}
