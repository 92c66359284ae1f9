package usecase

import (
	"math"

	"MoexPull/internal/domain/models"
	"MoexPull/pkg/util"

	"github.com/shopspring/decimal"
)

// ValueBond derives the screener metrics of one candidate. Yield to
// maturity is the linear, non-compounding approximation:
//
//	ytm = (face + summedCoupon - (price + accrued)) / (price + accrued) * 365/days * 100
//
// ok is false when any derived figure is not finite.
func ValueBond(c models.BondCandidate) (v models.BondValuation, ok bool) {
	days := float64(c.DaysToMaturity)
	price := c.LastPct / 100 * c.FaceValue
	couponYield := c.CouponPct * (c.FaceValue / price)
	summedCoupon := days/c.CouponPeriod*c.CouponValue + c.Accrued
	dirty := price + c.Accrued
	ytm := (c.FaceValue + summedCoupon - dirty) / dirty * (365 / days) * 100

	if !finite(price, couponYield, ytm, c.Accrued, c.FaceValue) {
		return v, false
	}

	return models.BondValuation{
		ISIN:            c.ISIN,
		Name:            c.Name,
		CurrentPrice:    round2(price),
		AccruedInterest: round2(c.Accrued),
		FaceValue:       c.FaceValue,
		CouponYield:     round2(couponYield),
		MaturityDate:    util.FormatDate(c.MaturityDate),
		YTM:             round2(ytm),
		DaysToMaturity:  c.DaysToMaturity,
	}, true
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// round2 rounds half away from zero to two places.
func round2(x float64) float64 {
	f, _ := decimal.NewFromFloat(x).Round(2).Float64()
	return f
}
