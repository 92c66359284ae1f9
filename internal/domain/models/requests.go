package models

// Requests for portfolio HTTP endpoints.

type CreateHoldingRequest struct {
	Ticker        string     `json:"ticker" validate:"required,max=32"`
	Name          string     `json:"name" validate:"max=256"`
	Type          AssetClass `json:"type" default:"stock" validate:"oneof=stock bond etf"`
	PurchasePrice float64    `json:"purchase_price" validate:"gt=0"`
	Quantity      float64    `json:"quantity" validate:"gt=0"`
	PurchaseDate  string     `json:"purchase_date" validate:"required,datetime=2006-01-02"`
}

type UpdateHoldingRequest struct {
	ID            string     `param:"id" json:"-" validate:"required"`
	Ticker        string     `json:"ticker" validate:"required,max=32"`
	Name          string     `json:"name" validate:"max=256"`
	Type          AssetClass `json:"type" default:"stock" validate:"oneof=stock bond etf"`
	PurchasePrice float64    `json:"purchase_price" validate:"gt=0"`
	Quantity      float64    `json:"quantity" validate:"gt=0"`
	PurchaseDate  string     `json:"purchase_date" validate:"required,datetime=2006-01-02"`
}

type SellHoldingRequest struct {
	ID        string  `param:"id" json:"-" validate:"required"`
	SalePrice float64 `json:"sale_price" validate:"gt=0"`
	SaleDate  string  `json:"sale_date" validate:"required,datetime=2006-01-02"`
}

type HoldingIDRequest struct {
	ID string `param:"id" validate:"required"`
}

type DashboardRequest struct {
	Signals bool `query:"signals"`
}

type BondAuditRequest struct {
	Reason string `query:"reason" validate:"omitempty,oneof=no-quote missing-identity invalid-date unparseable-date matured non-positive-price accrued-interest-too-high invalid-coupon-period non-finite-result"`
}

type RecommendationsRequest struct {
	Tickers []string `json:"tickers" validate:"required,min=1,max=50,dive,required,max=32"`
}
