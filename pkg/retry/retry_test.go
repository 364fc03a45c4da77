package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastConfig(attempts int) Config {
	return Config{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	sentinel := errors.New("bad request")
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		return Permanent(sentinel)
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryablePredicate(t *testing.T) {
	cfg := fastConfig(5)
	cfg.Retryable = func(error) bool { return false }
	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return errors.New("nope")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var attempts []int
	err := DoWithLog(context.Background(), fastConfig(3), "svc", func() error {
		return errors.New("down")
	}, func(attempt int, err error, next time.Duration) {
		attempts = append(attempts, attempt)
	})
	assert.ErrorContains(t, err, "svc: max retry attempts (3) exceeded")
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, fastConfig(3), func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
