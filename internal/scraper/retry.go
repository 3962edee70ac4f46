package scraper

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryPolicy defines the API-attempt retry loop (spec.md §4.D.2: "default 3
// attempts, exponential backoff, base retryDelay, factor 2").
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
}

// NewRetryPolicy creates a retry policy from configured defaults.
func NewRetryPolicy(maxAttempts int, baseDelay time.Duration, factor float64) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       maxAttempts,
		InitialBackoff:    baseDelay,
		BackoffMultiplier: factor,
	}
}

// CalculateBackoff returns the exponential backoff for a zero-indexed
// attempt, with up to ±25% jitter to avoid synchronized retries across
// workers.
func (p *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff) * pow(p.BackoffMultiplier, float64(attempt))
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoff += jitter
	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}
	return time.Duration(backoff)
}

// maxParseAttempts bounds ErrorClassParse failures to spec.md §7's "retried
// once, then failed" — a smaller, fixed budget than ErrorClassTransport's
// full MaxAttempts-with-backoff loop (spec.md §7's transient-transport
// entry). 2 total attempts == 1 retry.
const maxParseAttempts = 2

// Run executes attempt against the configured retry loop. attempt returns
// (result, classified error). Non-retryable errors (per Error.Retryable)
// return immediately. Parse-classified errors are capped at maxParseAttempts
// regardless of p.MaxAttempts. Cancellation is observed between attempts.
func Run[T any](ctx context.Context, logger arbor.ILogger, p *RetryPolicy, attemptFn func(attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error
	parseAttempts := 0

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, classify("", ErrorClassCancelled, ctx.Err())
		default:
		}

		result, err := attemptFn(attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var scrapeErr *Error
		if errors.As(err, &scrapeErr) {
			if !scrapeErr.Retryable() {
				return zero, err
			}
			if scrapeErr.Class == ErrorClassParse {
				parseAttempts++
				if parseAttempts >= maxParseAttempts {
					logger.Debug().Int("parse_attempts", parseAttempts).Msg("Parse error retry budget exhausted")
					return zero, err
				}
			}
		}

		if attempt < p.MaxAttempts-1 {
			backoff := p.CalculateBackoff(attempt)
			logger.Debug().
				Int("attempt", attempt+1).
				Err(err).
				Dur("backoff", backoff).
				Msg("Scrape attempt failed, retrying after backoff")

			select {
			case <-ctx.Done():
				return zero, classify("", ErrorClassCancelled, ctx.Err())
			case <-time.After(backoff):
			}
		}
	}

	return zero, lastErr
}

// isRetryableNetErr reports whether a raw (unclassified) network error looks
// transient, used by the API client before wrapping it as ErrorClassTransport.
func isRetryableNetErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func pow(base, exp float64) float64 {
	result := 1.0
	for i := 0; i < int(exp); i++ {
		result *= base
	}
	return result
}
