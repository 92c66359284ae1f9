package models

import "time"

// SkipReason names the eligibility rule a security failed.
type SkipReason string

const (
	SkipNoQuote             SkipReason = "no-quote"
	SkipMissingIdentity     SkipReason = "missing-identity"
	SkipInvalidDate         SkipReason = "invalid-date"
	SkipUnparseableDate     SkipReason = "unparseable-date"
	SkipMatured             SkipReason = "matured"
	SkipNonPositivePrice    SkipReason = "non-positive-price"
	SkipAccruedTooHigh      SkipReason = "accrued-interest-too-high"
	SkipInvalidCouponPeriod SkipReason = "invalid-coupon-period"
	SkipNonFiniteResult     SkipReason = "non-finite-result"
)

// SkipReasons lists every reason in evaluation order.
var SkipReasons = []SkipReason{
	SkipNoQuote,
	SkipMissingIdentity,
	SkipInvalidDate,
	SkipUnparseableDate,
	SkipMatured,
	SkipNonPositivePrice,
	SkipAccruedTooHigh,
	SkipInvalidCouponPeriod,
	SkipNonFiniteResult,
}

// SkipEntry records why a security is missing from the screener output.
type SkipEntry struct {
	SecID  string     `json:"secid"`
	Reason SkipReason `json:"reason"`
}

// BondCandidate is a security that passed every eligibility check, with its
// numeric fields already parsed.
type BondCandidate struct {
	SecID          string
	ISIN           string
	Name           string
	MaturityDate   time.Time
	DaysToMaturity int
	LastPct        float64 // last trade, percent of face
	FaceValue      float64
	Accrued        float64
	CouponPct      float64
	CouponValue    float64
	CouponPeriod   float64 // days
}

// BondValuation is one row of the bond screener.
type BondValuation struct {
	ISIN            string  `json:"isin"`
	Name            string  `json:"name"`
	CurrentPrice    float64 `json:"current_price"`
	AccruedInterest float64 `json:"nkd"`
	FaceValue       float64 `json:"face_value"`
	CouponYield     float64 `json:"coupon_profit"`
	MaturityDate    string  `json:"mat_date"`
	YTM             float64 `json:"ytm"`
	DaysToMaturity  int     `json:"days_to_maturity"`
}

// ScreenResult is the output of one screener run.
type ScreenResult struct {
	AsOf    time.Time       `json:"as_of"`
	Total   int             `json:"total"`
	Bonds   []BondValuation `json:"bonds"`
	Skipped []SkipEntry     `json:"skipped"`
}

// SkipCounts tallies skipped securities per reason.
func (r *ScreenResult) SkipCounts() map[SkipReason]int {
	out := make(map[SkipReason]int)
	for _, s := range r.Skipped {
		out[s.Reason]++
	}
	return out
}
