package service

import (
	"context"
	"time"
)

// RetryPolicy bounds how often an unavailable directory call is repeated.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// OnRetry is called before sleeping ahead of another attempt.
	OnRetry func(attempt int, err error)
}

// Delay returns the backoff before the given retry attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	delay := base << (attempt - 1)
	if delay <= 0 || delay > maxDelay {
		return maxDelay
	}
	return delay
}

// WithRetry runs fn until it succeeds, returns a non-retryable error, the
// attempts are exhausted, or ctx is done.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = fn(ctx)
		if err == nil || !IsRetryable(err) || attempt == attempts {
			return result, err
		}

		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err)
		}
		timer := time.NewTimer(policy.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, err
		case <-timer.C:
		}
	}
	return result, err
}
