// Package breakertest is a reusable conformance suite any breaker.Adapter
// implementation can run against (§8's breaker invariants and seed
// scenarios), mirrored on locktest's harness shape.
package breakertest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/resilientcore/resilientcore/breaker"
)

// RunAdapterConformance exercises newAdapter() (a fresh, empty adapter
// per call) against §3.2's invariants and §8's breaker scenarios.
func RunAdapterConformance(t *testing.T, newAdapter func(t *testing.T) breaker.Adapter) {
	t.Helper()

	t.Run("starts closed", func(t *testing.T) {
		a := newAdapter(t)
		state, err := a.GetState(context.Background(), "k")
		require.NoError(t, err)
		require.Equal(t, breaker.Closed, state)
	})

	t.Run("opens after failure threshold", func(t *testing.T) {
		a := newAdapter(t)
		ctx := context.Background()
		policy := breaker.Policy{FailureThreshold: 3, OpenDuration: time.Hour, HalfOpenProbes: 1, HalfOpenSuccessThreshold: 1}

		var lastTransition breaker.Transition
		for i := 0; i < 3; i++ {
			require.NoError(t, a.TrackFailure(ctx, "k", false))
			tr, err := a.UpdateState(ctx, "k", policy)
			require.NoError(t, err)
			lastTransition = tr
		}
		require.Equal(t, breaker.Open, lastTransition.To)

		state, err := a.GetState(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, breaker.Open, state)
	})

	t.Run("half-open recovers to closed on success", func(t *testing.T) {
		a := newAdapter(t)
		ctx := context.Background()
		policy := breaker.Policy{FailureThreshold: 1, OpenDuration: 10 * time.Millisecond, HalfOpenProbes: 1, HalfOpenSuccessThreshold: 1}

		require.NoError(t, a.TrackFailure(ctx, "k", false))
		tr, err := a.UpdateState(ctx, "k", policy)
		require.NoError(t, err)
		require.Equal(t, breaker.Open, tr.To)

		time.Sleep(20 * time.Millisecond)
		tr, err = a.UpdateState(ctx, "k", policy)
		require.NoError(t, err)
		require.Equal(t, breaker.HalfOpen, tr.To)

		require.NoError(t, a.TrackSuccess(ctx, "k", false))
		tr, err = a.UpdateState(ctx, "k", policy)
		require.NoError(t, err)
		require.Equal(t, breaker.Closed, tr.To)
	})

	t.Run("half-open reopens on failure", func(t *testing.T) {
		a := newAdapter(t)
		ctx := context.Background()
		policy := breaker.Policy{FailureThreshold: 1, OpenDuration: 10 * time.Millisecond, HalfOpenProbes: 1, HalfOpenSuccessThreshold: 1}

		require.NoError(t, a.TrackFailure(ctx, "k", false))
		_, err := a.UpdateState(ctx, "k", policy)
		require.NoError(t, err)

		time.Sleep(20 * time.Millisecond)
		_, err = a.UpdateState(ctx, "k", policy)
		require.NoError(t, err)

		require.NoError(t, a.TrackFailure(ctx, "k", false))
		tr, err := a.UpdateState(ctx, "k", policy)
		require.NoError(t, err)
		require.Equal(t, breaker.Open, tr.To)
	})

	t.Run("isolate is a sink regardless of counts", func(t *testing.T) {
		a := newAdapter(t)
		ctx := context.Background()
		policy := breaker.Policy{FailureThreshold: 100, OpenDuration: time.Hour, HalfOpenProbes: 1, HalfOpenSuccessThreshold: 1}

		require.NoError(t, a.Isolate(ctx, "k"))
		state, err := a.GetState(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, breaker.Isolated, state)

		require.NoError(t, a.TrackSuccess(ctx, "k", false))
		_, err = a.UpdateState(ctx, "k", policy)
		require.NoError(t, err)

		state, err = a.GetState(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, breaker.Isolated, state, "isolate must not be cleared by tracking or updateState")
	})

	t.Run("reset returns to closed with zeroed counts", func(t *testing.T) {
		a := newAdapter(t)
		ctx := context.Background()
		policy := breaker.Policy{FailureThreshold: 1, OpenDuration: time.Hour, HalfOpenProbes: 1, HalfOpenSuccessThreshold: 1}

		require.NoError(t, a.Isolate(ctx, "k"))
		require.NoError(t, a.Reset(ctx, "k"))

		state, err := a.GetState(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, breaker.Closed, state)

		require.NoError(t, a.TrackFailure(ctx, "k", false))
		tr, err := a.UpdateState(ctx, "k", policy)
		require.NoError(t, err)
		require.Equal(t, breaker.Open, tr.To, "reset must zero counters, not just the state field")
	})
}
