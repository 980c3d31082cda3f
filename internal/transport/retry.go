package transport

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy bounds how a transport attempt is re-run after a retryable
// failure. Each attempt carries its own independent timeout, so total wall
// clock is up to (MaxRetries+1) x Config.Timeout plus the backoff sleeps.
type RetryPolicy struct {
	// MaxRetries is the number of re-attempts after the first try.
	MaxRetries int
	// BaseDelay is the backoff for attempt 0; each retry doubles it.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
	// JitterFraction applies a symmetric random adjustment of up to this
	// fraction of the delay, avoiding synchronized retry storms across
	// concurrent callers hitting the same rate limit.
	JitterFraction float64
	// OnRetry, when set, observes each backoff sleep before it happens.
	OnRetry func(attempt int, delay time.Duration, err error)

	rng *rand.Rand
}

// DefaultRetryPolicy returns the standard policy: 3 total attempts, 1s base
// delay, 30s cap, 25% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     2,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		JitterFraction: 0.25,
	}
}

// Seeded returns a copy of the policy with a deterministic jitter source.
func (p RetryPolicy) Seeded(seed int64) RetryPolicy {
	p.rng = rand.New(rand.NewSource(seed))
	return p
}

// Backoff computes the sleep before retrying after the given attempt:
// min(BaseDelay * 2^attempt, MaxDelay) adjusted by symmetric jitter,
// clamped to be non-negative.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && delay > max {
		delay = max
	}
	if p.JitterFraction > 0 {
		delay += delay * p.JitterFraction * (2*p.random() - 1)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

func (p RetryPolicy) random() float64 {
	if p.rng != nil {
		return p.rng.Float64()
	}
	return rand.Float64()
}

// Do runs fn until it succeeds, fails with a non-retryable kind, or the
// attempt budget is exhausted. The last classified failure is surfaced
// verbatim, never coerced into a generic "retries exhausted" error, so the
// root cause survives. Attempts within one call are strictly sequential.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) (*Outcome, error)) (*Outcome, error) {
	for attempt := 0; ; attempt++ {
		outcome, err := fn(ctx)
		if err == nil {
			return outcome, nil
		}
		te, ok := AsError(err)
		if !ok || !te.Kind.Retryable() || attempt >= p.MaxRetries {
			return nil, err
		}
		delay := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
