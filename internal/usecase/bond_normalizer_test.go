package usecase

import (
	"testing"

	"MoexPull/internal/domain/models"
	"MoexPull/internal/service/moex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func security(secid string, kv ...string) moex.Record {
	r := moex.Record{
		"SECID":         secid,
		"ISIN":          "RU" + secid,
		"SHORTNAME":     "Bond " + secid,
		"MATDATE":       "2026-03-10",
		"OFFERDATE":     "",
		"FACEVALUE":     "1000",
		"COUPONPERCENT": "8",
		"COUPONVALUE":   "40",
		"COUPONPERIOD":  "182",
		"ACCRUEDINT":    "10",
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "<nil>" {
			delete(r, kv[i])
			continue
		}
		r[kv[i]] = kv[i+1]
	}
	return r
}

func quote(secid, last string) moex.Record {
	return moex.Record{"SECID": secid, "LAST": last}
}

func reasonsBySecID(skipped []models.SkipEntry) map[string]models.SkipReason {
	out := make(map[string]models.SkipReason, len(skipped))
	for _, s := range skipped {
		out[s.SecID] = s.Reason
	}
	return out
}

func TestNormalizeBondsEverySkipReason(t *testing.T) {
	secs := []moex.Record{
		security("OK"),
		security("NOQ"),
		security("NOISIN", "ISIN", ""),
		security("ZERODATE", "MATDATE", "0000-00-00"),
		security("BADDATE", "MATDATE", "2025-02-30"),
		security("MATURED", "MATDATE", "2025-03-09"),
		security("NOPRICE"),
		security("NKD", "ACCRUEDINT", "500.01"),
		security("PERIOD", "COUPONPERIOD", "0"),
		security(""),
	}
	quotes := []moex.Record{
		quote("OK", "95"),
		quote("NOISIN", "95"),
		quote("ZERODATE", "95"),
		quote("BADDATE", "95"),
		quote("MATURED", "95"),
		quote("NOPRICE", ""),
		quote("NKD", "95"),
		quote("PERIOD", "95"),
	}

	candidates, skipped := NormalizeBonds(secs, quotes, fixedNow)
	require.Len(t, candidates, 1)
	assert.Equal(t, "OK", candidates[0].SecID)
	require.Len(t, skipped, len(secs)-1, "every excluded security is audited exactly once")

	assert.Equal(t, map[string]models.SkipReason{
		"":         models.SkipMissingIdentity,
		"NOQ":      models.SkipNoQuote,
		"NOISIN":   models.SkipMissingIdentity,
		"ZERODATE": models.SkipInvalidDate,
		"BADDATE":  models.SkipUnparseableDate,
		"MATURED":  models.SkipMatured,
		"NOPRICE":  models.SkipNonPositivePrice,
		"NKD":      models.SkipAccruedTooHigh,
		"PERIOD":   models.SkipInvalidCouponPeriod,
	}, reasonsBySecID(skipped))
}

func TestNormalizeBondsNumericDatesAreUnparseable(t *testing.T) {
	secs := []moex.Record{
		security("NUM", "MATDATE", "12345"),
		security("COMPACT", "MATDATE", "20271231"),
		security("UNIX", "MATDATE", "1798675200"),
		security("OFFER", "OFFERDATE", "20270101"),
	}
	quotes := []moex.Record{
		quote("NUM", "99"),
		quote("COMPACT", "99"),
		quote("UNIX", "99"),
		quote("OFFER", "99"),
	}

	candidates, skipped := NormalizeBonds(secs, quotes, fixedNow)
	assert.Empty(t, candidates)
	assert.Equal(t, map[string]models.SkipReason{
		"NUM":     models.SkipUnparseableDate,
		"COMPACT": models.SkipUnparseableDate,
		"UNIX":    models.SkipUnparseableDate,
		"OFFER":   models.SkipUnparseableDate,
	}, reasonsBySecID(skipped))
}

func TestNormalizeBondsMaturityBoundary(t *testing.T) {
	cases := map[string]struct {
		date     string
		days     int
		eligible bool
	}{
		"yesterday":      {"2025-03-09", 0, false},
		"today":          {"2025-03-10", 0, false},
		"tomorrow":       {"2025-03-11", 0, false},
		"in two days":    {"2025-03-12", 1, true},
		"in a year":      {"2026-03-10", 364, true},
		"offer wins":     {"2025-03-12", 1, true},
		"rfc3339 stamps": {"2025-03-12T00:00:00Z", 1, true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			sec := security("X", "MATDATE", tc.date)
			if name == "offer wins" {
				sec = security("X", "MATDATE", "2030-01-01", "OFFERDATE", tc.date)
			}
			candidates, skipped := NormalizeBonds([]moex.Record{sec}, []moex.Record{quote("X", "99")}, fixedNow)
			if !tc.eligible {
				require.Len(t, skipped, 1)
				assert.Equal(t, models.SkipMatured, skipped[0].Reason)
				return
			}
			require.Len(t, candidates, 1)
			assert.Equal(t, tc.days, candidates[0].DaysToMaturity)
		})
	}
}

func TestNormalizeBondsDefaults(t *testing.T) {
	secs := []moex.Record{
		security("A", "FACEVALUE", "<nil>", "COUPONPERIOD", "<nil>", "ACCRUEDINT", "<nil>"),
		security("B", "FACEVALUEONSETTLEDATE", "700", "COUPONPERIOD", "n/a"),
		security("C", "FACEVALUE", "-5"),
	}
	quotes := []moex.Record{quote("A", "90"), quote("B", "90"), quote("C", "90")}

	candidates, skipped := NormalizeBonds(secs, quotes, fixedNow)
	require.Empty(t, skipped)
	require.Len(t, candidates, 3)

	assert.Equal(t, DefaultFaceValue, candidates[0].FaceValue)
	assert.Equal(t, DefaultCouponPeriod, candidates[0].CouponPeriod)
	assert.Zero(t, candidates[0].Accrued)

	assert.Equal(t, 700.0, candidates[1].FaceValue)
	assert.Equal(t, DefaultCouponPeriod, candidates[1].CouponPeriod)

	assert.Equal(t, DefaultFaceValue, candidates[2].FaceValue)
}

func TestNormalizeBondsJoin(t *testing.T) {
	secs := []moex.Record{
		security("A", "SHORTNAME", "first"),
		security("B"),
		security("A", "SHORTNAME", "second"),
	}
	quotes := []moex.Record{
		quote("B", "101"),
		quote("A", "97"),
		quote("A", "12"),
		{"LAST": "50"},
	}

	candidates, skipped := NormalizeBonds(secs, quotes, fixedNow)
	require.Empty(t, skipped)
	require.Len(t, candidates, 2)

	assert.Equal(t, "A", candidates[0].SecID, "duplicate keeps its first position")
	assert.Equal(t, "second", candidates[0].Name, "and its last attributes")
	assert.Equal(t, 97.0, candidates[0].LastPct, "first quote wins")
	assert.Equal(t, "B", candidates[1].SecID)
}

func TestNormalizeBondsAccruedCapIsInclusive(t *testing.T) {
	candidates, skipped := NormalizeBonds(
		[]moex.Record{security("CAP", "ACCRUEDINT", "500")},
		[]moex.Record{quote("CAP", "95")},
		fixedNow,
	)
	assert.Empty(t, skipped)
	require.Len(t, candidates, 1)
	assert.Equal(t, MaxAccruedInterest, candidates[0].Accrued)
}
