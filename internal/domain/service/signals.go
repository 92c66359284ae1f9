package service

import "context"

// SignalProvider maps tickers to buy/hold/sell labels. Tickers without a
// label are absent from the result.
type SignalProvider interface {
	Signals(ctx context.Context, tickers []string) (map[string]string, error)
}
