package eventbus_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/resilientcore/resilientcore/eventbus"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDispatchFansOutToAllListeners(t *testing.T) {
	bus := eventbus.NewMemoryBus(eventbus.DefaultAsyncWorkers)

	var got1, got2 int32
	bus.AddListener("k", func(payload any) { atomic.AddInt32(&got1, 1) })
	bus.AddListener("k", func(payload any) { atomic.AddInt32(&got2, 1) })

	bus.Dispatch(context.Background(), "k", "payload")

	require.Equal(t, int32(1), atomic.LoadInt32(&got1))
	require.Equal(t, int32(1), atomic.LoadInt32(&got2))
}

func TestRemoveListenerStopsDelivery(t *testing.T) {
	bus := eventbus.NewMemoryBus(eventbus.DefaultAsyncWorkers)

	var got int32
	id := bus.AddListener("k", func(payload any) { atomic.AddInt32(&got, 1) })
	bus.RemoveListener("k", id)

	bus.Dispatch(context.Background(), "k", "payload")
	require.Equal(t, int32(0), atomic.LoadInt32(&got))
}

func TestSubscribeUnsubscribeIsIdempotent(t *testing.T) {
	bus := eventbus.NewMemoryBus(eventbus.DefaultAsyncWorkers)

	var got int32
	unsub := bus.Subscribe("k", func(payload any) { atomic.AddInt32(&got, 1) })
	unsub()
	unsub() // must not panic or double-remove something else

	bus.Dispatch(context.Background(), "k", "payload")
	require.Equal(t, int32(0), atomic.LoadInt32(&got))
}

func TestDispatchAsyncDeliversToAllListeners(t *testing.T) {
	bus := eventbus.NewMemoryBus(4)

	var wg sync.WaitGroup
	wg.Add(3)
	var count int32
	for i := 0; i < 3; i++ {
		bus.AddListener("k", func(payload any) {
			atomic.AddInt32(&count, 1)
			wg.Done()
		})
	}

	bus.DispatchAsync(context.Background(), "k", "payload")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for async listeners")
	}
	require.Equal(t, int32(3), atomic.LoadInt32(&count))
}

func TestListenerPanicDoesNotCrashDispatch(t *testing.T) {
	bus := eventbus.NewMemoryBus(eventbus.DefaultAsyncWorkers)

	var got int32
	bus.AddListener("k", func(payload any) { panic("boom") })
	bus.AddListener("k", func(payload any) { atomic.AddInt32(&got, 1) })

	require.NotPanics(t, func() {
		bus.Dispatch(context.Background(), "k", "payload")
	})
	require.Equal(t, int32(1), atomic.LoadInt32(&got))
}
