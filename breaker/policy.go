package breaker

import "time"

// Trigger selects which call outcomes feed the breaker's failure metric
// (§3.2, §4.2).
type Trigger int

const (
	// Both counts thrown errors matching ErrorPolicy and slow calls as
	// failures.
	Both Trigger = iota
	// OnlyError counts only thrown errors matching ErrorPolicy as
	// failures; slow-but-successful calls still count as successes.
	OnlyError
	// OnlySlowCall counts only slow calls as failures; thrown errors are
	// never tracked at all (not even as an untracked-failure event).
	OnlySlowCall
)

// ErrorPolicy decides whether a raised error counts as a tracked failure.
// A nil ErrorPolicy matches every error.
type ErrorPolicy func(err error) bool

// Policy is the breaker's full trigger configuration, supplied by the
// Handle to UpdateState on every call (§9 Open Question (c): the adapter
// needs these parameters to evaluate transitions, so the handle passes
// them explicitly rather than the adapter caching them out-of-band).
type Policy struct {
	Trigger Trigger
	// ErrorPolicy classifies thrown errors; nil means "every error
	// matches".
	ErrorPolicy ErrorPolicy
	// SlowCallTime is the duration beyond which a successful call is
	// reclassified as a slow call for metric purposes.
	SlowCallTime time.Duration

	// FailureThreshold is the number of tracked failures that trips
	// CLOSED -> OPEN. The adapters in this module count consecutive
	// tracked failures: a tracked success resets the count, and no
	// time-based window is kept.
	FailureThreshold uint32
	// OpenDuration is the cool-down before OPEN -> HALF_OPEN is allowed.
	OpenDuration time.Duration
	// HalfOpenProbes is the number of trial outcomes evaluated in
	// HALF_OPEN before deciding CLOSED vs back to OPEN.
	HalfOpenProbes uint32
	// HalfOpenSuccessThreshold is the number of successful probes (out
	// of HalfOpenProbes) required to transition HALF_OPEN -> CLOSED.
	HalfOpenSuccessThreshold uint32
}

// outcome classifies a single call's raw result before it is mapped onto
// a tracking decision by classify.
type outcome struct {
	err  error
	slow bool
}

// trackDecision is what classify tells the Handle to do with one call's
// outcome.
type trackDecision int

const (
	trackNone trackDecision = iota
	trackAsFailure
	trackAsSuccess
	// untrackedFailure means: propagate the error, do not call
	// TrackFailure/TrackSuccess, but do publish an untracked-failure
	// event so observers can see it happened.
	untrackedFailure
)

// classify implements the §4.2 trigger semantics table exactly:
//
//	Trigger         | matched err        | unmatched err          | slow success   | fast success
//	BOTH            | trackAsFailure     | untrackedFailure       | trackAsFailure | trackAsSuccess
//	ONLY_ERROR      | trackAsFailure     | untrackedFailure       | trackAsSuccess | trackAsSuccess
//	ONLY_SLOW_CALL  | trackNone          | trackNone (no event)   | trackAsFailure | trackAsSuccess
func classify(p Policy, o outcome) trackDecision {
	if o.err != nil {
		if p.Trigger == OnlySlowCall {
			return trackNone
		}
		if errorMatches(p.ErrorPolicy, o.err) {
			return trackAsFailure
		}
		return untrackedFailure
	}
	if o.slow {
		if p.Trigger == OnlyError {
			return trackAsSuccess
		}
		return trackAsFailure
	}
	return trackAsSuccess
}

func errorMatches(policy ErrorPolicy, err error) bool {
	if policy == nil {
		return true
	}
	return policy(err)
}
