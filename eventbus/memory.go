package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// DefaultAsyncWorkers bounds the number of goroutines MemoryBus will run
// concurrently on behalf of DispatchAsync when no explicit limit is
// configured.
const DefaultAsyncWorkers = 32

// MemoryBus is the in-process Bus implementation: a synchronous
// fan-out to listeners registered for a Kind, plus a bounded worker pool
// (via golang.org/x/sync/semaphore) for DispatchAsync so an unbounded
// burst of async dispatches cannot spawn unbounded goroutines. When every
// worker is busy, DispatchAsync blocks until one frees up; if ctx is done
// first, the remaining listeners are skipped and a warning is logged.
type MemoryBus struct {
	mu        sync.RWMutex
	listeners map[Kind]map[ListenerID]Handler
	sem       *semaphore.Weighted
}

// NewMemoryBus constructs a MemoryBus. asyncWorkers bounds concurrent
// DispatchAsync deliveries; a non-positive value falls back to
// DefaultAsyncWorkers.
func NewMemoryBus(asyncWorkers int64) *MemoryBus {
	if asyncWorkers <= 0 {
		asyncWorkers = DefaultAsyncWorkers
	}
	return &MemoryBus{
		listeners: make(map[Kind]map[ListenerID]Handler),
		sem:       semaphore.NewWeighted(asyncWorkers),
	}
}

func (b *MemoryBus) AddListener(kind Kind, h Handler) ListenerID {
	id := ListenerID(uuid.NewString())
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners[kind] == nil {
		b.listeners[kind] = make(map[ListenerID]Handler)
	}
	b.listeners[kind][id] = h
	return id
}

func (b *MemoryBus) RemoveListener(kind Kind, id ListenerID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners[kind], id)
}

func (b *MemoryBus) Subscribe(kind Kind, h Handler) Unsubscribe {
	id := b.AddListener(kind, h)
	var once sync.Once
	return func() {
		once.Do(func() { b.RemoveListener(kind, id) })
	}
}

func (b *MemoryBus) snapshot(kind Kind) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	set := b.listeners[kind]
	if len(set) == 0 {
		return nil
	}
	out := make([]Handler, 0, len(set))
	for _, h := range set {
		out = append(out, h)
	}
	return out
}

func (b *MemoryBus) Dispatch(_ context.Context, kind Kind, payload any) {
	for _, h := range b.snapshot(kind) {
		invoke(kind, h, payload)
	}
}

func (b *MemoryBus) DispatchAsync(ctx context.Context, kind Kind, payload any) {
	for _, h := range b.snapshot(kind) {
		if err := b.sem.Acquire(ctx, 1); err != nil {
			slog.Warn("eventbus: dropped async dispatch, context done", "kind", kind, "error", err)
			continue
		}
		h := h
		go func() {
			defer b.sem.Release(1)
			invoke(kind, h, payload)
		}()
	}
}

func invoke(kind Kind, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("eventbus: listener panicked", "kind", kind, "recovered", r)
		}
	}()
	h(payload)
}
