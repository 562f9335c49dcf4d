package scheduler

import (
	"time"
)

const (
	defaultRetryBaseDelay = 2 * time.Second
	defaultRetryMaxDelay  = 5 * time.Minute
)

// Backoff doubles base for every attempt and caps the result at max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before retry number attempt (1 for the first retry).
func (b Backoff) Delay(attempt int) time.Duration {
	base, maxDelay := b.Base, b.Max
	if base <= 0 {
		base = defaultRetryBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 32 {
		return maxDelay
	}
	delay := base << (attempt - 1)
	if delay > maxDelay || delay <= 0 {
		return maxDelay
	}
	return delay
}
