package network

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket shared by all probe workers.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing r requests per second. Fractional
// rates are allowed; the burst is at least one request.
// A rate <= 0 returns nil, which never blocks.
func NewRateLimiter(r float64) *RateLimiter {
	if r <= 0 {
		return nil
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(r), max(1, int(r)))}
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return ctx.Err()
	}
	return rl.limiter.Wait(ctx)
}
