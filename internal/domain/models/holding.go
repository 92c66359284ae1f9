package models

import "time"

// AssetClass is the instrument class of a holding. Values match the stored
// `type` column.
type AssetClass string

const (
	AssetStock AssetClass = "stock"
	AssetBond  AssetClass = "bond"
	AssetFund  AssetClass = "etf"
)

// Valid reports whether c is a known class.
func (c AssetClass) Valid() bool {
	switch c {
	case AssetStock, AssetBond, AssetFund:
		return true
	}
	return false
}

// Holding is a user's position in one instrument.
type Holding struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Ticker        string     `json:"ticker"`
	Name          string     `json:"name"`
	Type          AssetClass `json:"type"`
	PurchasePrice float64    `json:"purchase_price"`
	Quantity      float64    `json:"quantity"`
	PurchaseDate  time.Time  `json:"purchase_date"`
	SalePrice     *float64   `json:"sale_price,omitempty"`
	SaleDate      *time.Time `json:"sale_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Closed reports whether the position has been sold.
func (h *Holding) Closed() bool {
	return h.SaleDate != nil
}

// Cost is the amount paid for the position.
func (h *Holding) Cost() float64 {
	return h.PurchasePrice * h.Quantity
}

// EnrichedHolding is a holding with live price and income attached.
type EnrichedHolding struct {
	Holding
	CurrentPrice  float64  `json:"current_price"`
	AccruedIncome float64  `json:"accrued_income"`
	Profit        float64  `json:"profit"`
	Degraded      bool     `json:"degraded"`
	Warnings      []string `json:"warnings,omitempty"`
}

// PortfolioSnapshot aggregates a set of enriched holdings.
type PortfolioSnapshot struct {
	TotalValue     float64                `json:"total_value"`
	TotalIncome    float64                `json:"total_income"`
	TotalCost      float64                `json:"total_cost"`
	TotalProfit    float64                `json:"total_profit"`
	TotalReturnPct float64                `json:"total_return_pct"`
	Allocation     map[AssetClass]float64 `json:"allocation"`
	OpenCount      int                    `json:"open_count"`
	ClosedCount    int                    `json:"closed_count"`
}

// Dashboard is the payload of the portfolio page.
type Dashboard struct {
	AsOf     time.Time         `json:"as_of"`
	Holdings []EnrichedHolding `json:"holdings"`
	Snapshot PortfolioSnapshot `json:"snapshot"`
	Signals  map[string]string `json:"signals,omitempty"`
}

// ClassStatistics summarises holdings of one class from purchase data only.
type ClassStatistics struct {
	Type     AssetClass `json:"type"`
	Count    int        `json:"count"`
	Quantity float64    `json:"total_quantity"`
	Invested float64    `json:"total_invested"`
}
