package retry

import (
	"context"
	"errors"
	"time"

	retrygo "github.com/avast/retry-go/v5"
)

// errNotYet marks an attempt that returned ok=false — a retryable "not
// yet acquired" outcome, as opposed to a genuine adapter error, which is
// always fatal to the loop (§7: adapter errors must surface to the
// caller, never be retried away).
var errNotYet = errors.New("retry: attempt not yet successful")

// Attempt is one try of the guarded action. ok=true means the action
// succeeded and the loop should stop. ok=false with a nil error means
// "try again after the interval". A non-nil error aborts the loop
// immediately and is returned to the caller.
type Attempt func(ctx context.Context) (ok bool, err error)

// Budget bounds a blocking retry loop.
type Budget struct {
	// TotalTime is the cumulative time budget across all attempts.
	TotalTime time.Duration
	// Interval is the sleep between attempts.
	Interval time.Duration
}

// Run drives attempt at least once, retrying on a fixed Interval until it
// succeeds, the ctx is cancelled, or cumulative elapsed time reaches
// TotalTime. onAttemptFailed is invoked once per failed attempt
// (ok=false, err=nil) so callers can publish a per-attempt "unavailable"
// event (§4.5).
//
// The first attempt always runs, even with a zero or already-elapsed
// budget, independent of github.com/avast/retry-go/v5's own first-call
// semantics — this keeps "at least one attempt is always made" exact
// rather than incidental.
func Run(ctx context.Context, budget Budget, attempt Attempt, onAttemptFailed func()) (bool, error) {
	deadline := time.Now().Add(budget.TotalTime)
	rctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	ok, err := attempt(rctx)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	if onAttemptFailed != nil {
		onAttemptFailed()
	}

	interval := budget.Interval
	if interval <= 0 {
		interval = time.Millisecond
	}

	var succeeded bool
	doErr := retrygo.Do(
		func() error {
			ok, err := attempt(rctx)
			if err != nil {
				return retrygo.Unrecoverable(err)
			}
			if ok {
				succeeded = true
				return nil
			}
			if onAttemptFailed != nil {
				onAttemptFailed()
			}
			return errNotYet
		},
		retrygo.Context(rctx),
		retrygo.Attempts(0),
		retrygo.Delay(interval),
		retrygo.DelayType(retrygo.FixedDelay),
		retrygo.LastErrorOnly(true),
	)

	if succeeded {
		return true, nil
	}
	if doErr == nil || errors.Is(doErr, errNotYet) || errors.Is(doErr, context.DeadlineExceeded) || errors.Is(doErr, context.Canceled) {
		return false, nil
	}
	return false, doErr
}
