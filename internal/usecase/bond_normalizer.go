package usecase

import (
	"time"

	"MoexPull/internal/domain/models"
	"MoexPull/internal/service/moex"
	"MoexPull/pkg/util"
)

// Screener policy.
const (
	// MaxAccruedInterest rejects quotes whose accrued interest is implausible.
	MaxAccruedInterest = 500.0
	// MaturityDayOffset excludes the maturity day itself from the tradeable days.
	MaturityDayOffset   = 1
	DefaultFaceValue    = 1000.0
	DefaultCouponPeriod = 1.0
)

// NormalizeBonds joins security records with quote records by SECID and
// keeps the securities that pass every eligibility check, in feed order.
// Every security left out gets exactly one SkipEntry.
func NormalizeBonds(securities, quotes []moex.Record, now time.Time) ([]models.BondCandidate, []models.SkipEntry) {
	quoteBySecID := make(map[string]moex.Record, len(quotes))
	for _, q := range quotes {
		id := q.String("SECID")
		if id == "" {
			continue
		}
		if _, dup := quoteBySecID[id]; !dup {
			quoteBySecID[id] = q
		}
	}

	// A repeated SECID keeps its first position and its last attributes.
	order := make([]string, 0, len(securities))
	latest := make(map[string]moex.Record, len(securities))
	var skipped []models.SkipEntry
	for _, s := range securities {
		id := s.String("SECID")
		if id == "" {
			skipped = append(skipped, models.SkipEntry{Reason: models.SkipMissingIdentity})
			continue
		}
		if _, seen := latest[id]; !seen {
			order = append(order, id)
		}
		latest[id] = s
	}

	candidates := make([]models.BondCandidate, 0, len(order))
	for _, id := range order {
		quote, ok := quoteBySecID[id]
		if !ok {
			skipped = append(skipped, models.SkipEntry{SecID: id, Reason: models.SkipNoQuote})
			continue
		}
		c, reason := evaluateBond(latest[id], quote, now)
		if reason != "" {
			skipped = append(skipped, models.SkipEntry{SecID: id, Reason: reason})
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, skipped
}

// evaluateBond applies the eligibility checks in order; the first failure
// decides the reason.
func evaluateBond(sec, quote moex.Record, now time.Time) (models.BondCandidate, models.SkipReason) {
	c := models.BondCandidate{
		SecID: sec.String("SECID"),
		ISIN:  sec.String("ISIN"),
		Name:  sec.String("SHORTNAME"),
	}
	if c.SecID == "" || c.ISIN == "" || c.Name == "" {
		return c, models.SkipMissingIdentity
	}

	rawDate := sec.String("OFFERDATE")
	if rawDate == "" {
		rawDate = sec.String("MATDATE")
	}
	if util.IsBlankDate(rawDate) {
		return c, models.SkipInvalidDate
	}

	date, ok := util.ParseDate(rawDate)
	if !ok {
		return c, models.SkipUnparseableDate
	}
	c.MaturityDate = date

	c.DaysToMaturity = util.CalendarDaysBetween(now, date) - MaturityDayOffset
	if c.DaysToMaturity <= 0 {
		return c, models.SkipMatured
	}

	c.LastPct = quote.FloatOr("LAST", 0)
	if c.LastPct <= 0 {
		return c, models.SkipNonPositivePrice
	}

	c.Accrued = sec.FloatOr("ACCRUEDINT", 0)
	if c.Accrued > MaxAccruedInterest {
		return c, models.SkipAccruedTooHigh
	}

	c.CouponPeriod = sec.FloatOr("COUPONPERIOD", DefaultCouponPeriod)
	if c.CouponPeriod <= 0 {
		return c, models.SkipInvalidCouponPeriod
	}

	c.FaceValue = faceValue(sec)
	c.CouponPct = sec.FloatOr("COUPONPERCENT", 0)
	c.CouponValue = sec.FloatOr("COUPONVALUE", 0)
	return c, ""
}

func faceValue(sec moex.Record) float64 {
	for _, key := range []string{"FACEVALUEONSETTLEDATE", "FACEVALUE"} {
		if v, ok := sec.Float(key); ok && v > 0 {
			return v
		}
	}
	return DefaultFaceValue
}
