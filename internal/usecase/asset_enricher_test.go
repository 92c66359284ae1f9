package usecase

import (
	"context"
	"testing"
	"time"

	"MoexPull/internal/domain/models"
	"MoexPull/internal/service/moex"
	"MoexPull/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sberQuote     = `{"marketdata":{"columns":["SECID","LAST"],"data":[["SBER",null],["SBER",300.5]]}}`
	sberDividends = `{"dividends":{"columns":["registryclosedate","value"],"data":[["2024-07-11",33.3],["2023-05-11",25]]}}`
	noDividends   = `{"dividends":{"columns":["registryclosedate","value"],"data":[]}}`
	su1Security   = `{"securities":{"columns":["SECID","PREVPRICE","FACEVALUE"],"data":[["SU1",95.5,1000]]}}`
	su1Coupons    = `{"securities":{"columns":["SECID","COUPONVALUE","COUPONPERIOD"],"data":[["SU1",35,182]]}}`
	tmosQuote     = `{"marketdata":{"columns":["SECID","MARKETPRICE"],"data":[["TMOS",6.5]]}}`
)

func portfolioFetcher() *fakeFetcher {
	return newFakeFetcher().
		on(moex.EndpointShareQuote, "SBER", sberQuote).
		on(moex.EndpointDividends, "SBER", sberDividends).
		on(moex.EndpointBondSecurity, "SU1", su1Security).
		on(moex.EndpointCoupons, "SU1", su1Coupons).
		on(moex.EndpointFundQuote, "TMOS", tmosQuote)
}

func portfolioHoldings() []models.Holding {
	return []models.Holding{
		{ID: "h-stock", UserID: "u", Ticker: "SBER", Type: models.AssetStock, PurchasePrice: 250, Quantity: 10, PurchaseDate: date(2024, 1, 10)},
		{ID: "h-bond", UserID: "u", Ticker: "SU1", Type: models.AssetBond, PurchasePrice: 940, Quantity: 5, PurchaseDate: date(2024, 3, 10)},
		{ID: "h-fund", UserID: "u", Ticker: "TMOS", Type: models.AssetFund, PurchasePrice: 6, Quantity: 1000, PurchaseDate: date(2024, 5, 1)},
	}
}

func newTestEnricher(f QuoteFetcher, concurrency int) *Enricher {
	e := NewEnricher(f, newRecordingMetrics(), logger.Nop(), concurrency)
	e.now = func() time.Time { return fixedNow }
	return e
}

func TestEnrichPerClassSources(t *testing.T) {
	out := newTestEnricher(portfolioFetcher(), 4).Enrich(context.Background(), portfolioHoldings())
	require.Len(t, out, 3)

	stock, bond, fund := out[0], out[1], out[2]
	assert.Equal(t, "h-stock", stock.ID)
	assert.Equal(t, 300.5, stock.CurrentPrice, "last marketdata row")
	assert.InDelta(t, 333.0, stock.AccruedIncome, 1e-9, "only dividends recorded after purchase")
	assert.False(t, stock.Degraded)

	assert.InDelta(t, 955.0, bond.CurrentPrice, 1e-9)
	assert.InDelta(t, 350.0, bond.AccruedIncome, 1e-9, "two whole coupon periods for five bonds")

	assert.Equal(t, 6.5, fund.CurrentPrice)
	assert.Zero(t, fund.AccruedIncome)
	assert.Equal(t, 500.0, fund.Profit)
}

func TestEnrichPriceFailureFallsBackToPurchasePrice(t *testing.T) {
	f := newFakeFetcher().
		fail(moex.EndpointShareQuote, "SBER").
		on(moex.EndpointDividends, "SBER", noDividends)
	h := []models.Holding{{ID: "h1", Ticker: "SBER", Type: models.AssetStock, PurchasePrice: 250, Quantity: 10, PurchaseDate: date(2024, 1, 10)}}

	out := newTestEnricher(f, 2).Enrich(context.Background(), h)
	require.Len(t, out, 1)
	assert.Equal(t, 250.0, out[0].CurrentPrice)
	assert.Zero(t, out[0].AccruedIncome)
	assert.Zero(t, out[0].Profit)
	assert.True(t, out[0].Degraded)
	require.Len(t, out[0].Warnings, 1)
	assert.Contains(t, out[0].Warnings[0], "price")
}

func TestEnrichIsolatesFailures(t *testing.T) {
	healthy := newTestEnricher(portfolioFetcher(), 4).Enrich(context.Background(), portfolioHoldings())

	broken := portfolioFetcher().fail(moex.EndpointBondSecurity, "SU1").fail(moex.EndpointCoupons, "SU1")
	out := newTestEnricher(broken, 4).Enrich(context.Background(), portfolioHoldings())

	require.Len(t, out, 3)
	assert.Equal(t, healthy[0], out[0])
	assert.Equal(t, healthy[2], out[2])

	assert.Equal(t, "h-bond", out[1].ID)
	assert.Equal(t, 940.0, out[1].CurrentPrice)
	assert.Zero(t, out[1].AccruedIncome)
	assert.True(t, out[1].Degraded)
	assert.Len(t, out[1].Warnings, 2)
}

func TestEnrichClosedHoldingStopsIncomeAtSale(t *testing.T) {
	sold := date(2024, 6, 1)
	price := 280.0
	h := []models.Holding{{
		ID: "h1", Ticker: "SBER", Type: models.AssetStock, PurchasePrice: 250, Quantity: 10,
		PurchaseDate: date(2024, 1, 10), SaleDate: &sold, SalePrice: &price,
	}}

	out := newTestEnricher(portfolioFetcher(), 1).Enrich(context.Background(), h)
	require.Len(t, out, 1)
	assert.Zero(t, out[0].AccruedIncome, "the July dividend was recorded after the sale")
	assert.Equal(t, 300.0, out[0].Profit, "realized gain only")
}

func TestEnrichOrderIndependence(t *testing.T) {
	slowFetcher := func() *fakeFetcher {
		return portfolioFetcher().slow(moex.EndpointShareQuote, "SBER", 30*time.Millisecond)
	}

	sequential := newTestEnricher(slowFetcher(), 1).Enrich(context.Background(), portfolioHoldings())
	concurrent := newTestEnricher(slowFetcher(), 8).Enrich(context.Background(), portfolioHoldings())

	assert.Equal(t, sequential, concurrent)
	assert.Equal(t, Aggregate(sequential), Aggregate(concurrent))
}

func TestEnrichReportsProgress(t *testing.T) {
	seen := make(chan string, 3)
	newTestEnricher(portfolioFetcher(), 3).Enrich(context.Background(), portfolioHoldings(),
		WithProgress(func(h models.EnrichedHolding) { seen <- h.ID }))
	close(seen)

	var ids []string
	for id := range seen {
		ids = append(ids, id)
	}
	assert.ElementsMatch(t, []string{"h-stock", "h-bond", "h-fund"}, ids)
}

func TestMergeEnrichmentMatchesByID(t *testing.T) {
	hs := portfolioHoldings()
	results := []enrichResult{
		{ID: "h-fund", CurrentPrice: 7},
		{ID: "h-stock", CurrentPrice: 260, AccruedIncome: 5},
	}

	out := MergeEnrichment(hs, results)
	require.Len(t, out, 3)
	assert.Equal(t, 260.0, out[0].CurrentPrice)
	assert.Equal(t, 105.0, out[0].Profit)
	assert.Equal(t, 940.0, out[1].CurrentPrice, "missing result keeps the fallback")
	assert.True(t, out[1].Degraded)
	assert.Equal(t, 7.0, out[2].CurrentPrice)
}
