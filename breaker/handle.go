package breaker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/resilientcore/resilientcore/eventbus"
)

// Handle is a per-key breaker value: "which decorated key, which trigger
// policy". It holds no counters itself — every decision is evaluated
// against the adapter's record (§4.2, §9 "handle identity vs remote
// state").
type Handle struct {
	key    string // already namespace-decorated
	policy Policy

	adapter Adapter
	bus     eventbus.Bus

	async    bool
	asyncSem *semaphore.Weighted

	serdeTag string
}

// newHandle is called by Provider.Create and by a serde Transformer's
// Decode.
func newHandle(decoratedKey string, policy Policy, adapter Adapter, bus eventbus.Bus, async bool, asyncSem *semaphore.Weighted, serdeTag string) *Handle {
	return &Handle{
		key:      decoratedKey,
		policy:   policy,
		adapter:  adapter,
		bus:      bus,
		async:    async,
		asyncSem: asyncSem,
		serdeTag: serdeTag,
	}
}

// Key returns the decorated key this handle guards.
func (h *Handle) Key() string { return h.key }

// Policy returns this handle's trigger configuration.
func (h *Handle) Policy() Policy { return h.policy }

// SerdeTag implements serde.Taggable.
func (h *Handle) SerdeTag() string { return h.serdeTag }

func (h *Handle) publish(ctx context.Context, ev Event) {
	ev.Key = h.key
	ev.Handle = h
	h.bus.Dispatch(ctx, eventbus.Kind(ev.Kind), ev)
}

// GetState reads the observed state (§4.2's ".getState()").
func (h *Handle) GetState(ctx context.Context) (State, error) {
	return h.adapter.GetState(ctx, h.key)
}

// Isolate forces ISOLATED, publishing ISOLATED.
func (h *Handle) Isolate(ctx context.Context) error {
	if err := h.adapter.Isolate(ctx, h.key); err != nil {
		return err
	}
	h.publish(ctx, Event{Kind: EventIsolated})
	return nil
}

// Reset returns to CLOSED with zeroed counts, publishing RESETED.
func (h *Handle) Reset(ctx context.Context) error {
	if err := h.adapter.Reset(ctx, h.key); err != nil {
		return err
	}
	h.publish(ctx, Event{Kind: EventReseted})
	return nil
}

// RunOrFail is the breaker's sole call-gating operation (§4.2). The
// observed state is sampled once per call entry (§3.2 invariant 2): OPEN
// and ISOLATED short-circuit without invoking f; otherwise f runs, its
// wall-clock duration and outcome are classified per the trigger table
// (policy.go), the decision is recorded via the adapter, and updateState
// is invoked to evaluate a possible transition.
//
// Go has no generic methods, so this is a free function taking *Handle
// explicitly rather than a Handle.RunOrFail[T] method.
func RunOrFail[T any](ctx context.Context, h *Handle, f func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	state, err := h.adapter.GetState(ctx, h.key)
	if err != nil {
		return zero, err
	}
	switch state {
	case Open:
		return zero, &OpenCircuitBreakerError{Key: h.key}
	case Isolated:
		return zero, &IsolatedCircuitBreakerError{Key: h.key}
	}

	start := time.Now()
	value, ferr := f(ctx)
	elapsed := time.Since(start)
	slow := h.policy.SlowCallTime > 0 && elapsed > h.policy.SlowCallTime

	decision := classify(h.policy, outcome{err: ferr, slow: slow})
	if trackErr := h.track(ctx, decision, slow, ferr); trackErr != nil && !h.async {
		return zero, trackErr
	}
	return value, ferr
}

// track records decision via the adapter and evaluates a transition.
// When async tracking is enabled it is scheduled on a bounded goroutine
// and any error is logged (§9: async implementations must surface
// adapter errors through the event bus or, here, structured logging,
// since they can no longer be raised to the caller) instead of returned.
func (h *Handle) track(ctx context.Context, decision trackDecision, slow bool, cause error) error {
	if decision == trackNone {
		return nil
	}
	if h.async {
		h.goAsync(func(ctx context.Context) {
			if err := h.applyTrack(ctx, decision, slow, cause); err != nil {
				slog.Error("breaker: async tracking failed", "key", h.key, "error", err)
			}
		})
		return nil
	}
	return h.applyTrack(ctx, decision, slow, cause)
}

func (h *Handle) applyTrack(ctx context.Context, decision trackDecision, slow bool, cause error) error {
	if decision == untrackedFailure {
		h.publish(ctx, Event{Kind: EventUntrackedFailure, Cause: cause})
		return nil
	}

	var trackErr error
	switch decision {
	case trackAsFailure:
		trackErr = h.adapter.TrackFailure(ctx, h.key, slow)
	case trackAsSuccess:
		trackErr = h.adapter.TrackSuccess(ctx, h.key, slow)
	}
	if trackErr != nil {
		return trackErr
	}

	tr, err := h.adapter.UpdateState(ctx, h.key, h.policy)
	if err != nil {
		return err
	}
	if tr.Changed() {
		h.publish(ctx, Event{Kind: EventStateTransitioned, From: tr.From, To: tr.To})
	}
	return nil
}

// goAsync runs fn on a goroutine bounded by h.asyncSem. When the
// semaphore is saturated it runs fn inline instead of dropping it, since
// §4.2 requires tracking to be issued exactly once per call regardless
// of async mode.
func (h *Handle) goAsync(fn func(ctx context.Context)) {
	if h.asyncSem == nil || !h.asyncSem.TryAcquire(1) {
		fn(context.Background())
		return
	}
	go func() {
		defer h.asyncSem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("breaker: async tracking panicked", "key", h.key, "panic", r)
			}
		}()
		fn(context.Background())
	}()
}
