package usecase

import (
	"MoexPull/internal/domain/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// HoldingProfit is market gain plus income for open positions and realized
// gain for closed ones. A closed holding without a sale price counts as sold
// at cost.
func HoldingProfit(h *models.EnrichedHolding) float64 {
	f, _ := holdingProfit(h).Round(2).Float64()
	return f
}

func holdingProfit(h *models.EnrichedHolding) decimal.Decimal {
	qty := decimal.NewFromFloat(h.Quantity)
	buy := decimal.NewFromFloat(h.PurchasePrice)
	if h.Closed() {
		sale := buy
		if h.SalePrice != nil {
			sale = decimal.NewFromFloat(*h.SalePrice)
		}
		return sale.Sub(buy).Mul(qty)
	}
	cur := decimal.NewFromFloat(h.CurrentPrice)
	return cur.Sub(buy).Mul(qty).Add(decimal.NewFromFloat(h.AccruedIncome))
}

// Aggregate folds enriched holdings into a snapshot. Value, income and
// allocation cover open holdings only; cost and profit cover all of them.
func Aggregate(holdings []models.EnrichedHolding) models.PortfolioSnapshot {
	var value, income, cost, profit decimal.Decimal
	alloc := make(map[models.AssetClass]decimal.Decimal)
	snap := models.PortfolioSnapshot{Allocation: make(map[models.AssetClass]float64)}

	for i := range holdings {
		h := &holdings[i]
		qty := decimal.NewFromFloat(h.Quantity)
		cost = cost.Add(decimal.NewFromFloat(h.PurchasePrice).Mul(qty))
		profit = profit.Add(holdingProfit(h))

		if h.Closed() {
			snap.ClosedCount++
			continue
		}
		snap.OpenCount++
		mv := decimal.NewFromFloat(h.CurrentPrice).Mul(qty)
		value = value.Add(mv)
		income = income.Add(decimal.NewFromFloat(h.AccruedIncome))
		alloc[h.Type] = alloc[h.Type].Add(mv)
	}

	snap.TotalValue = toFloat2(value)
	snap.TotalIncome = toFloat2(income)
	snap.TotalCost = toFloat2(cost)
	snap.TotalProfit = toFloat2(profit)
	if !cost.IsZero() {
		snap.TotalReturnPct = toFloat2(profit.Div(cost).Mul(hundred))
	}
	for class, v := range alloc {
		snap.Allocation[class] = toFloat2(v)
	}
	return snap
}

func toFloat2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
