package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/resilientcore/resilientcore/adapters/memory"
	"github.com/resilientcore/resilientcore/eventbus"
	"github.com/resilientcore/resilientcore/lock"
	"github.com/resilientcore/resilientcore/namespace"
	"github.com/resilientcore/resilientcore/serde"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newProvider(t *testing.T) *lock.Provider {
	t.Helper()
	p, err := lock.NewProvider(memory.NewLockAdapter(), eventbus.NewMemoryBus(eventbus.DefaultAsyncWorkers), serde.NewRegistry(), namespace.New("t"))
	require.NoError(t, err)
	return p
}

func TestAcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	h, err := p.Create("a", lock.WithOwner("b"))
	require.NoError(t, err)

	ok, err := h.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.Release(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRivalLockout(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	l1, err := p.Create("a", lock.WithOwner("b"))
	require.NoError(t, err)
	l2, err := p.Create("a", lock.WithOwner("c"))
	require.NoError(t, err)

	ok, err := l1.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l2.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = l2.Release(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = l1.Release(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l2.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAcquireOrFailRaisesFailedAcquire(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	l1, err := p.Create("a", lock.WithOwner("b"))
	require.NoError(t, err)
	require.NoError(t, l1.AcquireOrFail(ctx))

	l2, err := p.Create("a", lock.WithOwner("c"))
	require.NoError(t, err)

	err = l2.AcquireOrFail(ctx)
	require.Error(t, err)
	var faErr *lock.FailedAcquireError
	require.True(t, errors.As(err, &faErr))
}

func TestRunReleasesOnPanicFreeErrorPath(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	h, err := p.Create("a", lock.WithOwner("b"))
	require.NoError(t, err)

	sentinel := errors.New("boom")
	result := lock.Run(ctx, h, func(ctx context.Context) (int, error) {
		return 0, sentinel
	})
	require.ErrorIs(t, result.Err, sentinel)

	// Released: a fresh handle for the same key can now acquire.
	h2, err := p.Create("a", lock.WithOwner("c"))
	require.NoError(t, err)
	ok, err := h2.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRunOrFailPropagatesValue(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	h, err := p.Create("a", lock.WithOwner("b"))
	require.NoError(t, err)

	v, err := lock.RunOrFail(ctx, h, func(ctx context.Context) (string, error) {
		return "done", nil
	})
	require.NoError(t, err)
	require.Equal(t, "done", v)
}

func TestLeaseExpiry(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	h, err := p.Create("a", lock.WithOwner("b"), lock.WithTTL(lock.For(30*time.Millisecond)))
	require.NoError(t, err)
	ok, err := h.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)

	h2, err := p.Create("a", lock.WithOwner("c"))
	require.NoError(t, err)
	ok, err = h2.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRefreshExtendsLease(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	h, err := p.Create("a", lock.WithOwner("b"), lock.WithTTL(lock.For(50*time.Millisecond)))
	require.NoError(t, err)
	ok, err := h.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(25 * time.Millisecond)
	refreshed, err := h.Refresh(ctx, lock.For(100*time.Millisecond))
	require.NoError(t, err)
	require.True(t, refreshed)

	time.Sleep(60 * time.Millisecond)
	locked, err := h.IsLocked(ctx)
	require.NoError(t, err)
	require.True(t, locked)

	time.Sleep(60 * time.Millisecond)
	locked, err = h.IsLocked(ctx)
	require.NoError(t, err)
	require.False(t, locked)
}

func TestRefreshOnUnexpireableFails(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	h, err := p.Create("a", lock.WithOwner("b"))
	require.NoError(t, err)
	ok, err := h.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	refreshed, err := h.Refresh(ctx, lock.For(time.Second))
	require.NoError(t, err)
	require.False(t, refreshed)
}

func TestEventsArePublished(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	var gotAcquired, gotReleased bool
	unsub1 := p.Subscribe(lock.EventAcquired, func(ev lock.Event) { gotAcquired = true })
	unsub2 := p.Subscribe(lock.EventReleased, func(ev lock.Event) { gotReleased = true })
	defer unsub1()
	defer unsub2()

	h, err := p.Create("a", lock.WithOwner("b"))
	require.NoError(t, err)
	_, err = h.Acquire(ctx)
	require.NoError(t, err)
	_, err = h.Release(ctx)
	require.NoError(t, err)

	require.True(t, gotAcquired)
	require.True(t, gotReleased)
}

func TestHandleTransportRoundTrips(t *testing.T) {
	ctx := context.Background()
	reg := serde.NewRegistry()
	adapter := memory.NewLockAdapter()
	bus := eventbus.NewMemoryBus(eventbus.DefaultAsyncWorkers)
	p, err := lock.NewProvider(adapter, bus, reg, namespace.New("t"))
	require.NoError(t, err)

	h, err := p.Create("a", lock.WithOwner("b"), lock.WithTTL(lock.For(time.Minute)))
	require.NoError(t, err)
	ok, err := h.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	bytes, err := reg.Serialize(h)
	require.NoError(t, err)

	decoded, err := reg.Deserialize(bytes)
	require.NoError(t, err)
	h2, ok := decoded.(*lock.Handle)
	require.True(t, ok)

	locked1, err := h.IsLocked(ctx)
	require.NoError(t, err)
	locked2, err := h2.IsLocked(ctx)
	require.NoError(t, err)
	require.Equal(t, locked1, locked2)

	owner1, err := h.GetOwner(ctx)
	require.NoError(t, err)
	owner2, err := h2.GetOwner(ctx)
	require.NoError(t, err)
	require.Equal(t, owner1, owner2)
}
