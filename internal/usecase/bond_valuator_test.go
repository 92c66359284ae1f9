package usecase

import (
	"math"
	"testing"

	"MoexPull/internal/domain/models"
	"MoexPull/internal/service/moex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueBondLinearYield(t *testing.T) {
	c := models.BondCandidate{
		SecID:          "X",
		ISIN:           "RUX",
		Name:           "X",
		MaturityDate:   date(2026, 3, 11),
		DaysToMaturity: 365,
		LastPct:        95,
		FaceValue:      1000,
		Accrued:        0,
		CouponPct:      8,
		CouponValue:    80,
		CouponPeriod:   365,
	}

	v, ok := ValueBond(c)
	require.True(t, ok)
	assert.Equal(t, 950.0, v.CurrentPrice)
	assert.Equal(t, 13.68, v.YTM)
	assert.Equal(t, 8.42, v.CouponYield)
	assert.Equal(t, 0.0, v.AccruedInterest)
	assert.Equal(t, "2026-03-11", v.MaturityDate)
	assert.Equal(t, 365, v.DaysToMaturity)
}

func TestValueBondIsIdempotent(t *testing.T) {
	secs := []moex.Record{security("A"), security("B", "ACCRUEDINT", "37.77"), security("C", "COUPONPERIOD", "91")}
	quotes := []moex.Record{quote("A", "99.13"), quote("B", "87.4"), quote("C", "101.05")}

	run := func() []models.BondValuation {
		candidates, _ := NormalizeBonds(secs, quotes, fixedNow)
		out := make([]models.BondValuation, 0, len(candidates))
		for _, c := range candidates {
			v, ok := ValueBond(c)
			require.True(t, ok)
			out = append(out, v)
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestValueBondRejectsNonFinite(t *testing.T) {
	v, ok := ValueBond(models.BondCandidate{
		DaysToMaturity: 10,
		LastPct:        math.SmallestNonzeroFloat64,
		FaceValue:      1000,
		CouponPct:      math.MaxFloat64,
		CouponPeriod:   1,
	})
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestValueBondOutputsAreFinite(t *testing.T) {
	for _, last := range []string{"0.01", "1", "50", "100", "250"} {
		candidates, _ := NormalizeBonds([]moex.Record{security("A")}, []moex.Record{quote("A", last)}, fixedNow)
		require.Len(t, candidates, 1)
		v, ok := ValueBond(candidates[0])
		require.True(t, ok)
		for _, x := range []float64{v.CurrentPrice, v.AccruedInterest, v.CouponYield, v.YTM, v.FaceValue} {
			assert.False(t, math.IsNaN(x) || math.IsInf(x, 0))
		}
		assert.GreaterOrEqual(t, v.DaysToMaturity, 1)
	}
}

func TestRound2HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 1.01, round2(1.005))
	assert.Equal(t, -1.01, round2(-1.005))
	assert.Equal(t, 2.5, round2(2.5))
}
