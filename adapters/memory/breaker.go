package memory

import (
	"context"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/resilientcore/resilientcore/breaker"
)

// DefaultMaxKeys bounds the number of distinct breaker keys a
// BreakerAdapter tracks at once; least-recently-used keys are evicted
// beyond this, trading memory for unbounded key cardinality (e.g. one
// breaker per tenant or per remote host).
const DefaultMaxKeys = 4096

// breakerEntry wraps one key's underlying gobreaker.TwoStepCircuitBreaker
// engine plus the ISOLATED sink state gobreaker has no notion of.
// TrackFailure/TrackSuccess drive the engine's Allow/done pair directly
// (gobreaker performs the actual CLOSED/OPEN/HALF_OPEN transition as a
// side effect of that pair); UpdateState reports the delta against the
// last state it observed, satisfying the port's "updateState returns
// {from,to} atomically" contract (§3.2 invariant 1) without re-deriving
// the transition itself.
//
// The breaker.Adapter port's TrackFailure/TrackSuccess never carry a
// Policy — only UpdateState does — and a Handle always tracks an outcome
// before calling UpdateState for that same call (breaker/handle.go's
// applyTrack). So a fresh entry has no engine yet when its first outcome
// arrives: track buffers that outcome in pending instead of recording it
// against a throwaway engine, and configure replays the buffer once the
// real, policy-built engine exists, so no tracked outcome is ever
// silently discarded (§4.2 "tracking must be issued exactly once").
type breakerEntry struct {
	mu         sync.Mutex
	cb         *gobreaker.TwoStepCircuitBreaker[any]
	configured bool
	policy     breaker.Policy
	pending    []bool
	lastKnown  breaker.State

	isolated atomic.Bool
}

func newBreakerEntry() *breakerEntry {
	return &breakerEntry{lastKnown: breaker.Closed}
}

func buildCircuitBreaker(policy breaker.Policy) *gobreaker.TwoStepCircuitBreaker[any] {
	threshold := policy.FailureThreshold
	maxRequests := policy.HalfOpenProbes
	if maxRequests == 0 {
		maxRequests = 1
	}
	return gobreaker.NewTwoStepCircuitBreaker[any](gobreaker.Settings{
		MaxRequests: maxRequests,
		Timeout:     policy.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return threshold > 0 && counts.ConsecutiveFailures >= threshold
		},
	})
}

func mapGobreakerState(s gobreaker.State) breaker.State {
	switch s {
	case gobreaker.StateOpen:
		return breaker.Open
	case gobreaker.StateHalfOpen:
		return breaker.HalfOpen
	default:
		return breaker.Closed
	}
}

func (e *breakerEntry) observedState() breaker.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.observedStateLocked()
}

func (e *breakerEntry) observedStateLocked() breaker.State {
	if e.isolated.Load() {
		return breaker.Isolated
	}
	if e.cb == nil {
		return breaker.Closed
	}
	return mapGobreakerState(e.cb.State())
}

// configure builds the real engine from policy the first time it is
// seen, replaying any outcomes track buffered while the entry had no
// engine yet. Later calls keep the already-configured engine so
// in-flight counts survive (the Policy a Provider hands its handles is
// expected to be stable across calls).
func (e *breakerEntry) configure(policy breaker.Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.configured {
		return
	}
	e.configured = true
	e.policy = policy
	e.cb = buildCircuitBreaker(policy)
	e.replayPendingLocked()
}

func (e *breakerEntry) replayPendingLocked() {
	for _, success := range e.pending {
		if done, err := e.cb.Allow(); err == nil {
			done(success)
		}
	}
	e.pending = nil
}

func (e *breakerEntry) track(success bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cb == nil {
		// Not configured yet: this is the first outcome for a fresh key,
		// tracked ahead of the UpdateState call that will configure the
		// engine. Buffer it so configure can replay it instead of losing
		// it to a throwaway engine.
		e.pending = append(e.pending, success)
		return
	}
	done, err := e.cb.Allow()
	if err != nil {
		// Already OPEN or HALF_OPEN probe budget exhausted: the outer
		// Handle already decided to short-circuit or already invoked f;
		// there is nothing further to record against the engine.
		return
	}
	done(success)
}

func (e *breakerEntry) updateState(policy breaker.Policy) breaker.Transition {
	e.configure(policy)
	e.mu.Lock()
	defer e.mu.Unlock()
	before := e.lastKnown
	after := e.observedStateLocked()
	e.lastKnown = after
	return breaker.Transition{From: before, To: after}
}

func (e *breakerEntry) isolate() {
	e.isolated.Store(true)
}

// reset returns to CLOSED with zeroed counts. It must not disturb
// configured/policy bookkeeping: if the entry was never configured (no
// UpdateState has run yet), it stays unconfigured with no engine — the
// next track call buffers as usual and the next configure still builds
// from the real Policy it's given, rather than rebuilding from a zero
// Policy{} left over by a premature reset.
func (e *breakerEntry) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.isolated.Store(false)
	e.pending = nil
	if e.configured {
		e.cb = buildCircuitBreaker(e.policy)
	} else {
		e.cb = nil
	}
	e.lastKnown = breaker.Closed
}

// BreakerAdapter is an in-memory, single-process breaker.Adapter. Each
// key's counters live in a size-bounded LRU so a caller minting one
// breaker per tenant or per remote peer cannot grow this adapter's
// memory without limit.
type BreakerAdapter struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *breakerEntry]
}

// NewBreakerAdapter constructs a BreakerAdapter bounded to maxKeys
// distinct keys (DefaultMaxKeys if maxKeys <= 0).
func NewBreakerAdapter(maxKeys int) (*BreakerAdapter, error) {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	cache, err := lru.New[string, *breakerEntry](maxKeys)
	if err != nil {
		return nil, err
	}
	return &BreakerAdapter{cache: cache}, nil
}

func (a *BreakerAdapter) entryFor(key string) *breakerEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.cache.Get(key); ok {
		return e
	}
	e := newBreakerEntry()
	a.cache.Add(key, e)
	return e
}

func (a *BreakerAdapter) GetState(ctx context.Context, key string) (breaker.State, error) {
	return a.entryFor(key).observedState(), nil
}

func (a *BreakerAdapter) UpdateState(ctx context.Context, key string, policy breaker.Policy) (breaker.Transition, error) {
	return a.entryFor(key).updateState(policy), nil
}

func (a *BreakerAdapter) TrackFailure(ctx context.Context, key string, slow bool) error {
	a.entryFor(key).track(false)
	return nil
}

func (a *BreakerAdapter) TrackSuccess(ctx context.Context, key string, slow bool) error {
	a.entryFor(key).track(true)
	return nil
}

func (a *BreakerAdapter) Isolate(ctx context.Context, key string) error {
	a.entryFor(key).isolate()
	return nil
}

func (a *BreakerAdapter) Reset(ctx context.Context, key string) error {
	a.entryFor(key).reset()
	return nil
}

func (a *BreakerAdapter) Check(ctx context.Context) error { return nil }
