package signals

import (
	"context"
	"time"

	domsvc "MoexPull/internal/domain/service"
	"MoexPull/pkg/cache"
	"MoexPull/pkg/logger"
)

const keyPrefix = "signals"

// Cached serves labels from a cache and asks next only for the misses.
// Cache errors degrade to a plain pass-through.
type Cached struct {
	next  domsvc.SignalProvider
	cache cache.Service
	ttl   time.Duration
	log   *logger.Logger
}

func NewCached(next domsvc.SignalProvider, c cache.Service, ttl time.Duration, log *logger.Logger) *Cached {
	return &Cached{next: next, cache: c, ttl: ttl, log: log.With(logger.String("component", "signals_cache"))}
}

func (c *Cached) Signals(ctx context.Context, tickers []string) (map[string]string, error) {
	keys := make([]string, len(tickers))
	for i, t := range tickers {
		keys[i] = cache.Key(keyPrefix, Symbol(t))
	}

	hits, err := cache.MGetTyped[string](ctx, c.cache, keys...)
	if err != nil {
		c.log.Warn("cache read failed", logger.Error(err))
		hits = map[string]string{}
	}

	out := make(map[string]string, len(tickers))
	var missing []string
	for i, t := range tickers {
		if label, ok := hits[keys[i]]; ok {
			out[t] = label
			continue
		}
		missing = append(missing, t)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := c.next.Signals(ctx, missing)
	if err != nil {
		return nil, err
	}
	for t, label := range fresh {
		out[t] = label
		if err := c.cache.Set(ctx, cache.Key(keyPrefix, Symbol(t)), label, c.ttl); err != nil {
			c.log.Warn("cache write failed", logger.String("ticker", t), logger.Error(err))
		}
	}
	return out, nil
}

var (
	_ domsvc.SignalProvider = (*Cached)(nil)
	_ domsvc.SignalProvider = (*Scraper)(nil)
)
