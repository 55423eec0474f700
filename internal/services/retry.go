package services

import (
	"context"
	"errors"
	"time"

	"finledger/internal/core"
)

// RetryPolicy bounds how often a conflicting unit of work is re-run. The
// retried function must re-read state on every attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 10 * time.Millisecond, MaxDelay: 500 * time.Millisecond}
}

// backoff doubles BaseDelay per attempt, capped at MaxDelay.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	return min(d, p.MaxDelay)
}

// Do runs fn until it succeeds, fails with something other than a conflict,
// or the attempts run out. Exhaustion is reported as *core.ConflictError.
func (p RetryPolicy) Do(ctx context.Context, resource, id string, fn func() error) error {
	attempts := max(p.MaxAttempts, 1)
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil || !errors.Is(err, core.ErrConflict) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}
	return &core.ConflictError{Resource: resource, ID: id, Attempts: attempts, Err: err}
}
