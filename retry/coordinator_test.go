package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/resilientcore/resilientcore/retry"
)

func TestRunSucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	ok, err := retry.Run(context.Background(), retry.Budget{TotalTime: time.Second, Interval: 10 * time.Millisecond},
		func(ctx context.Context) (bool, error) {
			calls++
			return true, nil
		}, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, calls)
}

func TestRunRetriesUntilSuccess(t *testing.T) {
	calls := 0
	var failedNotifications int
	ok, err := retry.Run(context.Background(), retry.Budget{TotalTime: time.Second, Interval: 5 * time.Millisecond},
		func(ctx context.Context) (bool, error) {
			calls++
			return calls >= 3, nil
		}, func() { failedNotifications++ })
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, calls)
	require.Equal(t, 2, failedNotifications)
}

func TestRunExhaustsBudget(t *testing.T) {
	calls := 0
	ok, err := retry.Run(context.Background(), retry.Budget{TotalTime: 40 * time.Millisecond, Interval: 10 * time.Millisecond},
		func(ctx context.Context) (bool, error) {
			calls++
			return false, nil
		}, nil)
	require.NoError(t, err)
	require.False(t, ok)
	require.Greater(t, calls, 1)
}

func TestRunPropagatesAttemptError(t *testing.T) {
	sentinel := errors.New("boom")
	ok, err := retry.Run(context.Background(), retry.Budget{TotalTime: time.Second, Interval: 10 * time.Millisecond},
		func(ctx context.Context) (bool, error) {
			return false, sentinel
		}, nil)
	require.ErrorIs(t, err, sentinel)
	require.False(t, ok)
}

func TestRunAlwaysAttemptsOnceEvenWithZeroBudget(t *testing.T) {
	calls := 0
	_, err := retry.Run(context.Background(), retry.Budget{TotalTime: 0, Interval: time.Millisecond},
		func(ctx context.Context) (bool, error) {
			calls++
			return false, nil
		}, nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, calls, 1, "at least one attempt must always be made regardless of budget")
}

func TestRunExitsPromptlyOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	ok, err := retry.Run(ctx, retry.Budget{TotalTime: time.Hour, Interval: 5 * time.Millisecond},
		func(ctx context.Context) (bool, error) {
			calls++
			return false, nil
		}, nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.False(t, ok)
	require.Less(t, elapsed, time.Second)
	require.Greater(t, calls, 1)
}
