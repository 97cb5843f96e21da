package fetch

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy decides whether a failed attempt is retried and how long to
// wait before the next one.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// LinearRetryPolicy retries transient failures with a linearly increasing
// delay: after attempt n the wait is n times the step.
type LinearRetryPolicy struct {
	maxAttempts int
	step        time.Duration
}

// NewLinearRetryPolicy builds the default policy: 3 attempts with 1s, 2s
// waits between them.
func NewLinearRetryPolicy() *LinearRetryPolicy {
	return &LinearRetryPolicy{
		maxAttempts: 3,
		step:        time.Second,
	}
}

// ShouldRetry reports whether another attempt is allowed after attempt
// failed with err. Context cancellation is never retried.
func (p *LinearRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Backoff returns the wait before the attempt following the given one.
func (p *LinearRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * p.step
}
