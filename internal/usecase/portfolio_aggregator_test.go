package usecase

import (
	"testing"

	"MoexPull/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

func enriched(class models.AssetClass, buy, qty, cur, income float64) models.EnrichedHolding {
	eh := models.EnrichedHolding{
		Holding:       models.Holding{Type: class, PurchasePrice: buy, Quantity: qty},
		CurrentPrice:  cur,
		AccruedIncome: income,
	}
	eh.Profit = HoldingProfit(&eh)
	return eh
}

func closed(class models.AssetClass, buy, qty float64, sale *float64) models.EnrichedHolding {
	eh := enriched(class, buy, qty, buy, 0)
	d := date(2024, 6, 1)
	eh.SaleDate = &d
	eh.SalePrice = sale
	eh.Profit = HoldingProfit(&eh)
	return eh
}

func TestAggregateOpenAndClosed(t *testing.T) {
	sale := 300.0
	hs := []models.EnrichedHolding{
		enriched(models.AssetStock, 250, 10, 300.5, 333),
		enriched(models.AssetBond, 940, 5, 955, 350),
		enriched(models.AssetFund, 6, 1000, 6.5, 0),
		closed(models.AssetStock, 200, 2, &sale),
		closed(models.AssetFund, 10, 3, nil),
	}

	snap := Aggregate(hs)

	assert.Equal(t, 3, snap.OpenCount)
	assert.Equal(t, 2, snap.ClosedCount)
	assert.Equal(t, 3005.0+4775+6500, snap.TotalValue)
	assert.Equal(t, 683.0, snap.TotalIncome)
	assert.Equal(t, 2500.0+4700+6000+400+30, snap.TotalCost)
	// open: 838 + 425 + 500; closed: 200 + 0
	assert.Equal(t, 1963.0, snap.TotalProfit)
	assert.Equal(t, 14.4, snap.TotalReturnPct)
	assert.Equal(t, map[models.AssetClass]float64{
		models.AssetStock: 3005,
		models.AssetBond:  4775,
		models.AssetFund:  6500,
	}, snap.Allocation)
}

func TestAggregateValueMatchesIndependentSum(t *testing.T) {
	hs := []models.EnrichedHolding{
		enriched(models.AssetStock, 100.1, 3, 101.37, 0),
		enriched(models.AssetBond, 990.2, 7, 1001.15, 12.4),
		enriched(models.AssetFund, 1.11, 333, 1.23, 0),
	}

	var want float64
	for _, h := range hs {
		want += h.CurrentPrice * h.Quantity
	}
	assert.InDelta(t, want, Aggregate(hs).TotalValue, 0.005)
}

func TestAggregateEmpty(t *testing.T) {
	snap := Aggregate(nil)
	assert.Zero(t, snap.TotalValue)
	assert.Zero(t, snap.TotalReturnPct, "no cost means no return")
	assert.Empty(t, snap.Allocation)
}

func TestHoldingProfitClosedWithoutSalePrice(t *testing.T) {
	h := closed(models.AssetStock, 120, 4, nil)
	assert.Zero(t, h.Profit)
}
