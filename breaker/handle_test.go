package breaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/resilientcore/resilientcore/adapters/memory"
	"github.com/resilientcore/resilientcore/breaker"
	"github.com/resilientcore/resilientcore/eventbus"
	"github.com/resilientcore/resilientcore/namespace"
	"github.com/resilientcore/resilientcore/serde"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newProvider(t *testing.T, opts ...breaker.Option) *breaker.Provider {
	t.Helper()
	adapter, err := memory.NewBreakerAdapter(0)
	require.NoError(t, err)
	p, err := breaker.NewProvider(adapter, eventbus.NewMemoryBus(eventbus.DefaultAsyncWorkers), serde.NewRegistry(), namespace.New("t"), breaker.WithDefaults(opts...))
	require.NoError(t, err)
	return p
}

func TestOpensOnErrors(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t, breaker.WithPolicy(breaker.Policy{
		Trigger:                  breaker.Both,
		FailureThreshold:         3,
		OpenDuration:             time.Hour,
		HalfOpenProbes:           1,
		HalfOpenSuccessThreshold: 1,
	}))
	h, err := p.Create("svc")
	require.NoError(t, err)

	sentinel := errors.New("boom")
	for i := 0; i < 3; i++ {
		_, err := breaker.RunOrFail(ctx, h, func(ctx context.Context) (int, error) {
			return 0, sentinel
		})
		require.ErrorIs(t, err, sentinel)
	}

	state, err := h.GetState(ctx)
	require.NoError(t, err)
	require.Equal(t, breaker.Open, state)

	_, err = breaker.RunOrFail(ctx, h, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	var openErr *breaker.OpenCircuitBreakerError
	require.True(t, errors.As(err, &openErr))
}

func TestSlowCallUnderOnlySlowCall(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t, breaker.WithPolicy(breaker.Policy{
		Trigger:                  breaker.OnlySlowCall,
		SlowCallTime:             50 * time.Millisecond,
		FailureThreshold:         1,
		OpenDuration:             time.Hour,
		HalfOpenProbes:           1,
		HalfOpenSuccessThreshold: 1,
	}))
	h, err := p.Create("svc")
	require.NoError(t, err)

	var transitioned int
	unsub := p.Subscribe(breaker.EventStateTransitioned, func(ev breaker.Event) { transitioned++ })
	defer unsub()

	_, err = breaker.RunOrFail(ctx, h, func(ctx context.Context) (int, error) {
		time.Sleep(70 * time.Millisecond)
		return 1, nil
	})
	require.NoError(t, err)

	state, err := h.GetState(ctx)
	require.NoError(t, err)
	require.Equal(t, breaker.Open, state, "a slow call must trip under ONLY_SLOW_CALL")
	require.Equal(t, 1, transitioned)
}

func TestUntrackedFailurePropagatesWithoutTripping(t *testing.T) {
	ctx := context.Background()
	var target *notMatched
	p := newProvider(t, breaker.WithPolicy(breaker.Policy{
		Trigger:          breaker.Both,
		ErrorPolicy:      func(err error) bool { return errors.As(err, &target) },
		FailureThreshold: 1,
		OpenDuration:     time.Hour,
	}))
	h, err := p.Create("svc")
	require.NoError(t, err)

	var gotUntracked bool
	unsub := p.Subscribe(breaker.EventUntrackedFailure, func(ev breaker.Event) { gotUntracked = true })
	defer unsub()

	unmatched := errors.New("unrelated")
	_, err = breaker.RunOrFail(ctx, h, func(ctx context.Context) (int, error) {
		return 0, unmatched
	})
	require.ErrorIs(t, err, unmatched)
	require.True(t, gotUntracked)

	state, err := h.GetState(ctx)
	require.NoError(t, err)
	require.Equal(t, breaker.Closed, state, "an unmatched error must not count toward the trip threshold")
}

type notMatched struct{}

func (e *notMatched) Error() string { return "not matched" }

func TestOnlySlowCallNeverTracksThrownErrors(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t, breaker.WithPolicy(breaker.Policy{
		Trigger:          breaker.OnlySlowCall,
		SlowCallTime:     time.Hour,
		FailureThreshold: 1,
		OpenDuration:     time.Hour,
	}))
	h, err := p.Create("svc")
	require.NoError(t, err)

	var anyEvent bool
	unsub := p.Subscribe(breaker.EventUntrackedFailure, func(ev breaker.Event) { anyEvent = true })
	defer unsub()

	sentinel := errors.New("boom")
	_, err = breaker.RunOrFail(ctx, h, func(ctx context.Context) (int, error) {
		return 0, sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.False(t, anyEvent, "ONLY_SLOW_CALL must not publish any event for thrown errors")

	state, err := h.GetState(ctx)
	require.NoError(t, err)
	require.Equal(t, breaker.Closed, state)
}

func TestIsolateAndReset(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)
	h, err := p.Create("svc")
	require.NoError(t, err)

	require.NoError(t, h.Isolate(ctx))
	state, err := h.GetState(ctx)
	require.NoError(t, err)
	require.Equal(t, breaker.Isolated, state)

	_, err = breaker.RunOrFail(ctx, h, func(ctx context.Context) (int, error) { return 1, nil })
	var isoErr *breaker.IsolatedCircuitBreakerError
	require.True(t, errors.As(err, &isoErr))

	require.NoError(t, h.Reset(ctx))
	state, err = h.GetState(ctx)
	require.NoError(t, err)
	require.Equal(t, breaker.Closed, state)
}
