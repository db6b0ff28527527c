package lock

import (
	"context"
	"time"

	"github.com/resilientcore/resilientcore/eventbus"
	"github.com/resilientcore/resilientcore/retry"
)

// Handle is a per-key ownership value: "which decorated key, which
// owner, which ttl". It holds no live remote state — every operation
// consults the Adapter. A Handle is safe for concurrent use; its own
// fields never mutate after construction (§5).
type Handle struct {
	key   string // already namespace-decorated
	owner string
	ttl   TTL

	adapter Adapter
	bus     eventbus.Bus

	serdeTag string
}

// newHandle is called by Provider.Create and by a serde Transformer's
// Decode; it is not exported because constructing a Handle requires the
// Provider's shared collaborators.
func newHandle(decoratedKey, owner string, ttl TTL, adapter Adapter, bus eventbus.Bus, serdeTag string) *Handle {
	return &Handle{
		key:      decoratedKey,
		owner:    owner,
		ttl:      ttl,
		adapter:  adapter,
		bus:      bus,
		serdeTag: serdeTag,
	}
}

// Key returns the decorated key this handle operates on.
func (h *Handle) Key() string { return h.key }

// Owner returns this handle's own owner/lock-id.
func (h *Handle) Owner() string { return h.owner }

// TTL returns this handle's configured TTL.
func (h *Handle) TTL() TTL { return h.ttl }

// SerdeTag implements serde.Taggable.
func (h *Handle) SerdeTag() string { return h.serdeTag }

func (h *Handle) publish(ctx context.Context, ev Event) {
	ev.Key = h.key
	ev.Owner = h.owner
	ev.TTL = h.ttl
	ev.Handle = h
	h.bus.Dispatch(ctx, eventbus.Kind(ev.Kind), ev)
}

// Acquire atomically inserts the record if absent, if present but
// expired, or if present with the same owner (a no-op returning true
// without extending expiry — see Adapter.TryInsert). Never raises a
// domain error; publishes ACQUIRED on success, UNAVAILABLE on failure.
func (h *Handle) Acquire(ctx context.Context) (bool, error) {
	ok, err := h.adapter.TryInsert(ctx, h.key, h.owner, h.ttl)
	if err != nil {
		return false, err
	}
	if ok {
		h.publish(ctx, Event{Kind: EventAcquired})
		return true, nil
	}
	owner := h.observedOwner(ctx)
	h.publish(ctx, Event{Kind: EventUnavailable, ObservedOwner: owner})
	return false, nil
}

// AcquireOrFail raises FailedAcquireError on failure instead of
// returning false.
func (h *Handle) AcquireOrFail(ctx context.Context) error {
	ok, err := h.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return newFailedAcquire(h.key)
	}
	return nil
}

// AcquireBlocking retries Acquire on interval until it succeeds or the
// budget is exhausted (§4.5). Publishes UNAVAILABLE once per failed
// attempt.
func (h *Handle) AcquireBlocking(ctx context.Context, totalTime, interval time.Duration) (bool, error) {
	ok, err := retry.Run(ctx, retry.Budget{TotalTime: totalTime, Interval: interval},
		func(ctx context.Context) (bool, error) {
			return h.adapter.TryInsert(ctx, h.key, h.owner, h.ttl)
		},
		func() {
			owner := h.observedOwner(ctx)
			h.publish(ctx, Event{Kind: EventUnavailable, ObservedOwner: owner})
		},
	)
	if err != nil {
		return false, err
	}
	if ok {
		h.publish(ctx, Event{Kind: EventAcquired})
	}
	return ok, nil
}

// AcquireBlockingOrFail raises FailedAcquireError if the retry budget is
// exhausted.
func (h *Handle) AcquireBlockingOrFail(ctx context.Context, totalTime, interval time.Duration) error {
	ok, err := h.AcquireBlocking(ctx, totalTime, interval)
	if err != nil {
		return err
	}
	if !ok {
		return newFailedAcquire(h.key)
	}
	return nil
}

// Release is owner-gated removal. Returns true iff the caller was the
// recorded owner and the record existed.
func (h *Handle) Release(ctx context.Context) (bool, error) {
	ok, err := h.adapter.Release(ctx, h.key, h.owner)
	if err != nil {
		return false, err
	}
	if ok {
		h.publish(ctx, Event{Kind: EventReleased})
		return true, nil
	}
	h.publish(ctx, Event{Kind: EventFailedRelease, Cause: ErrUnownedRelease})
	return false, nil
}

// ReleaseOrFail raises FailedReleaseError on false.
func (h *Handle) ReleaseOrFail(ctx context.Context) error {
	ok, err := h.Release(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return newFailedRelease(h.key)
	}
	return nil
}

// ForceRelease removes the record unconditionally. Returns whether a
// record existed before the call.
func (h *Handle) ForceRelease(ctx context.Context) (bool, error) {
	hadRecord, err := h.adapter.ForceRelease(ctx, h.key)
	if err != nil {
		return false, err
	}
	h.publish(ctx, Event{Kind: EventForceReleased, HasReleased: hadRecord})
	return hadRecord, nil
}

// Refresh is an owner-gated expiry update to now+newTTL. Returns false
// (and publishes FAILED_REFRESH) when the caller is not the recorded
// owner, no record exists, or the current record is Unexpireable.
func (h *Handle) Refresh(ctx context.Context, newTTL TTL) (bool, error) {
	ok, err := h.adapter.Refresh(ctx, h.key, h.owner, newTTL)
	if err != nil {
		return false, err
	}
	if ok {
		h.publish(ctx, Event{Kind: EventRefreshed})
		return true, nil
	}
	h.publish(ctx, Event{Kind: EventFailedRefresh, Cause: ErrUnownedRefresh})
	return false, nil
}

// RefreshOrFail raises FailedRefreshError on false.
func (h *Handle) RefreshOrFail(ctx context.Context, newTTL TTL) error {
	ok, err := h.Refresh(ctx, newTTL)
	if err != nil {
		return err
	}
	if !ok {
		return newFailedRefresh(h.key)
	}
	return nil
}

// Result is the two-case outcome of a scoped Run.
type Result[T any] struct {
	Value T
	Err   error
}

// Run performs a scoped acquisition: try-acquire, invoke f exactly once
// on success, guarantee Release on every exit path (even when f panics
// or returns an error), and propagate f's error after cleanup. If
// acquisition itself fails, f is never invoked and Err is a
// *FailedAcquireError.
func Run[T any](ctx context.Context, h *Handle, f func(ctx context.Context) (T, error)) Result[T] {
	return runScoped(ctx, h, func(ctx context.Context) (bool, error) { return h.Acquire(ctx) }, f)
}

// RunOrFail is Run using AcquireOrFail's semantics, returning T directly
// and an error instead of a Result.
func RunOrFail[T any](ctx context.Context, h *Handle, f func(ctx context.Context) (T, error)) (T, error) {
	r := Run(ctx, h, f)
	return r.Value, r.Err
}

// RunBlocking is Run using blocking acquisition.
func RunBlocking[T any](ctx context.Context, h *Handle, totalTime, interval time.Duration, f func(ctx context.Context) (T, error)) Result[T] {
	return runScoped(ctx, h, func(ctx context.Context) (bool, error) {
		return h.AcquireBlocking(ctx, totalTime, interval)
	}, f)
}

// RunBlockingOrFail is RunBlocking returning T and error directly.
func RunBlockingOrFail[T any](ctx context.Context, h *Handle, totalTime, interval time.Duration, f func(ctx context.Context) (T, error)) (T, error) {
	r := RunBlocking(ctx, h, totalTime, interval, f)
	return r.Value, r.Err
}

func runScoped[T any](ctx context.Context, h *Handle, acquire func(context.Context) (bool, error), f func(ctx context.Context) (T, error)) Result[T] {
	var zero T
	ok, err := acquire(ctx)
	if err != nil {
		return Result[T]{Value: zero, Err: err}
	}
	if !ok {
		return Result[T]{Value: zero, Err: newFailedAcquire(h.key)}
	}

	// Release on every exit path, including a panic from f. The
	// caller's error (or panic) dominates: a release failure is
	// swallowed, but Release still runs and still publishes its event.
	defer func() {
		_, _ = h.Release(ctx)
	}()

	value, ferr := f(ctx)
	return Result[T]{Value: value, Err: ferr}
}

// GetState returns the derived lock state (§3.1).
func (h *Handle) GetState(ctx context.Context) (State, error) {
	rec, found, err := h.adapter.GetRecord(ctx, h.key)
	if err != nil {
		return State{}, err
	}
	if !found {
		return State{Status: Expired}, nil
	}
	if rec.Owner != h.owner {
		return State{Status: Unavailable, Owner: rec.Owner}, nil
	}
	if rec.Unexpireable {
		return State{Status: Acquired, Unexpireable: true}, nil
	}
	return State{Status: Acquired, RemainingTime: time.Until(rec.ExpiresAt)}, nil
}

// IsExpired reports Status == Expired.
func (h *Handle) IsExpired(ctx context.Context) (bool, error) {
	st, err := h.GetState(ctx)
	if err != nil {
		return false, err
	}
	return st.Status == Expired, nil
}

// IsLocked reports Status == Acquired.
func (h *Handle) IsLocked(ctx context.Context) (bool, error) {
	st, err := h.GetState(ctx)
	if err != nil {
		return false, err
	}
	return st.Status == Acquired, nil
}

// GetRemainingTime returns the remaining lease duration, or nil when the
// lock is not held by this handle or is unexpireable.
func (h *Handle) GetRemainingTime(ctx context.Context) (*time.Duration, error) {
	st, err := h.GetState(ctx)
	if err != nil {
		return nil, err
	}
	if st.Status != Acquired || st.Unexpireable {
		return nil, nil
	}
	d := st.RemainingTime
	return &d, nil
}

// GetOwner returns the owner currently recorded for this key, or "" when
// no record exists.
func (h *Handle) GetOwner(ctx context.Context) (string, error) {
	rec, found, err := h.adapter.GetRecord(ctx, h.key)
	if err != nil || !found {
		return "", err
	}
	return rec.Owner, nil
}

func (h *Handle) observedOwner(ctx context.Context) string {
	owner, err := h.GetOwner(ctx)
	if err != nil {
		return ""
	}
	return owner
}
