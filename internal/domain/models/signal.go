package models

// Signal labels as shown to the user. The technicals summary on the
// source page is reduced to one of these by majority vote.
const (
	SignalBuy  = "Покупать"
	SignalHold = "Держать"
	SignalSell = "Продавать"
)

// SignalCounts is the raw sell/neutral/buy tally for one symbol.
type SignalCounts struct {
	Sell    int `json:"sell"`
	Neutral int `json:"neutral"`
	Buy     int `json:"buy"`
}

// Label reduces counts to a label. Empty tallies have no label.
func (c SignalCounts) Label() string {
	if c.Sell+c.Neutral+c.Buy == 0 {
		return ""
	}
	switch {
	case c.Buy > c.Sell && c.Buy > c.Neutral:
		return SignalBuy
	case c.Sell > c.Buy && c.Sell > c.Neutral:
		return SignalSell
	default:
		return SignalHold
	}
}
