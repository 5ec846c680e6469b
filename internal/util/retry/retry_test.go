package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoll_SucceedsAfterSeveralAttempts(t *testing.T) {
	attempts := 0
	err := Poll(context.Background(), Config{Interval: time.Millisecond, MaxAttempts: 10}, func(_ context.Context) (bool, error) {
		attempts++
		return attempts == 3, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestPoll_FirstAttemptIsImmediate(t *testing.T) {
	start := time.Now()
	err := Poll(context.Background(), Config{Interval: time.Second, MaxAttempts: 5}, func(_ context.Context) (bool, error) {
		return true, nil
	})

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestPoll_AttemptCapExhausted(t *testing.T) {
	attempts := 0
	err := Poll(context.Background(), Config{Interval: time.Millisecond, MaxAttempts: 4}, func(_ context.Context) (bool, error) {
		attempts++
		return false, nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 4, attempts)
}

func TestPoll_TimeoutExhausted(t *testing.T) {
	err := Poll(context.Background(), Config{Interval: time.Millisecond, Timeout: 10 * time.Millisecond}, func(_ context.Context) (bool, error) {
		return false, nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestPoll_OperationErrorAbortsImmediately(t *testing.T) {
	boom := errors.New("terminal failure")
	attempts := 0
	err := Poll(context.Background(), Config{Interval: time.Millisecond, MaxAttempts: 10}, func(_ context.Context) (bool, error) {
		attempts++
		return false, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestPoll_RejectsUnboundedLoop(t *testing.T) {
	err := Poll(context.Background(), Config{Interval: time.Millisecond}, func(_ context.Context) (bool, error) {
		return true, nil
	})

	require.Error(t, err)
}

func TestPoll_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Poll(ctx, Config{Interval: time.Hour, Timeout: time.Hour}, func(_ context.Context) (bool, error) {
		return false, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}
