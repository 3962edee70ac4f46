package scraper

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter paces API attempts against the single upstream host. spec.md
// §5 notes "no additional per-endpoint limiter in the core" is required, but
// this guard composes with the adaptive page-size fallback as a courtesy
// throttle so a burst of worker attempts doesn't itself trigger upstream
// throttling. Adapted from the teacher's per-domain RateLimiter
// (internal/services/crawler/rate_limiter.go), simplified to a single
// token-bucket since there is exactly one upstream host.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing requestsPerSecond sustained,
// with a burst of the same size.
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Wait blocks until the next request is permitted or ctx is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}
