package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"finledger/internal/core"
)

func TestRetryPolicyBackoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond}
	want := []time.Duration{10, 20, 40, 50, 50}
	for attempt, w := range want {
		if got := p.backoff(attempt); got != w*time.Millisecond {
			t.Errorf("backoff(%d) = %v, want %v", attempt, got, w*time.Millisecond)
		}
	}
}

func TestRetryPolicyDo(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Microsecond, MaxDelay: time.Microsecond}
	ctx := context.Background()

	t.Run("stops on success", func(t *testing.T) {
		calls := 0
		err := p.Do(ctx, "goal", "g1", func() error {
			calls++
			if calls < 2 {
				return fmt.Errorf("save: %w", core.ErrConflict)
			}
			return nil
		})
		if err != nil || calls != 2 {
			t.Errorf("calls = %d err = %v", calls, err)
		}
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := p.Do(ctx, "goal", "g1", func() error {
			calls++
			return boom
		})
		if !errors.Is(err, boom) || calls != 1 {
			t.Errorf("calls = %d err = %v", calls, err)
		}
	})

	t.Run("exhaustion", func(t *testing.T) {
		calls := 0
		err := p.Do(ctx, "schedule", "s1", func() error {
			calls++
			return core.ErrConflict
		})
		var conflict *core.ConflictError
		if !errors.As(err, &conflict) || conflict.Resource != "schedule" || calls != 3 {
			t.Errorf("calls = %d err = %v", calls, err)
		}
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		slow := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}
		cctx, cancel := context.WithCancel(ctx)
		err := slow.Do(cctx, "goal", "g1", func() error {
			cancel()
			return core.ErrConflict
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}
