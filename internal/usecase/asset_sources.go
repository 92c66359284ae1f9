package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"MoexPull/internal/domain/models"
	"MoexPull/internal/service/moex"
	"MoexPull/pkg/util"
)

// errFieldMissing marks a payload that arrived but lacks the expected value.
var errFieldMissing = errors.New("expected field absent or not numeric")

// fetchPrice resolves the current price of one holding from its
// class-specific source.
func fetchPrice(ctx context.Context, f QuoteFetcher, h *models.Holding) (float64, error) {
	switch h.Type {
	case models.AssetStock:
		p, err := f.Fetch(ctx, moex.EndpointShareQuote, h.Ticker)
		if err != nil {
			return 0, err
		}
		// The last marketdata row is the primary board.
		return positive(moex.Last(moex.Parse(p, "marketdata")), "LAST")

	case models.AssetBond:
		p, err := f.Fetch(ctx, moex.EndpointBondSecurity, h.Ticker)
		if err != nil {
			return 0, err
		}
		rec := moex.First(moex.Parse(p, "securities"))
		pct, err := positive(rec, "PREVPRICE")
		if err != nil {
			return 0, err
		}
		face, err := positive(rec, "FACEVALUE")
		if err != nil {
			return 0, err
		}
		return pct / 100 * face, nil

	case models.AssetFund:
		p, err := f.Fetch(ctx, moex.EndpointFundQuote, h.Ticker)
		if err != nil {
			return 0, err
		}
		return positive(moex.First(moex.Parse(p, "marketdata")), "MARKETPRICE")

	default:
		return 0, fmt.Errorf("unknown asset type %q", h.Type)
	}
}

// fetchIncome resolves dividends or coupons earned between the purchase date
// and until, already scaled by quantity.
func fetchIncome(ctx context.Context, f QuoteFetcher, h *models.Holding, until time.Time) (float64, error) {
	switch h.Type {
	case models.AssetStock:
		p, err := f.Fetch(ctx, moex.EndpointDividends, h.Ticker)
		if err != nil {
			return 0, err
		}
		return dividendIncome(moex.Parse(p, "dividends"), h, until), nil

	case models.AssetBond:
		p, err := f.Fetch(ctx, moex.EndpointCoupons, h.Ticker)
		if err != nil {
			return 0, err
		}
		return couponIncome(moex.First(moex.Parse(p, "securities")), h, until)

	default:
		return 0, nil
	}
}

// dividendIncome sums dividends whose record date falls in [purchase, until].
func dividendIncome(rows []moex.Record, h *models.Holding, until time.Time) float64 {
	var sum float64
	for _, r := range rows {
		d, ok := r.Date("registryclosedate")
		if !ok {
			continue
		}
		v, ok := r.Float("value")
		if !ok {
			continue
		}
		if util.CalendarDaysBetween(h.PurchaseDate, d) < 0 || util.CalendarDaysBetween(d, until) < 0 {
			continue
		}
		sum += v
	}
	return sum * h.Quantity
}

// couponIncome assumes a constant coupon period: every whole period elapsed
// since purchase paid one coupon.
func couponIncome(rec moex.Record, h *models.Holding, until time.Time) (float64, error) {
	if rec == nil {
		return 0, fmt.Errorf("coupon schedule: %w", errFieldMissing)
	}
	value, ok := rec.Float("COUPONVALUE")
	if !ok {
		return 0, fmt.Errorf("COUPONVALUE: %w", errFieldMissing)
	}
	periodDays, ok := rec.Float("COUPONPERIOD")
	if !ok || periodDays <= 0 {
		return 0, fmt.Errorf("COUPONPERIOD: %w", errFieldMissing)
	}

	periodLen := time.Duration(periodDays * float64(24*time.Hour))
	elapsed := until.Sub(h.PurchaseDate)
	if elapsed <= 0 {
		return 0, nil
	}
	periods := math.Floor(float64(elapsed) / float64(periodLen))
	return value * periods * h.Quantity, nil
}

func positive(rec moex.Record, key string) (float64, error) {
	if rec == nil {
		return 0, fmt.Errorf("%s: no rows: %w", key, errFieldMissing)
	}
	v, ok := rec.Float(key)
	if !ok || v <= 0 {
		return 0, fmt.Errorf("%s: %w", key, errFieldMissing)
	}
	return v, nil
}
