package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key (usually the upstream host).
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

// New returns a limiter allowing rps requests per second per key with the
// given burst. rps <= 0 disables limiting.
func New(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{m: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.m[key]
	if !ok {
		b = rate.NewLimiter(rate.Limit(l.rps), l.burst)
		l.m[key] = b
	}
	return b
}

// Allow reports whether one request for key may go out now.
func (l *Limiter) Allow(key string) bool {
	if l == nil || l.rps <= 0 {
		return true
	}
	return l.bucket(key).Allow()
}

// Wait blocks until a request for key may go out or ctx ends.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l == nil || l.rps <= 0 {
		return nil
	}
	return l.bucket(key).Wait(ctx)
}
