package breaker

// EventKind tags the events a breaker Handle publishes (§4.2, §9).
type EventKind string

const (
	EventStateTransitioned EventKind = "breaker.state_transitioned"
	EventIsolated          EventKind = "breaker.isolated"
	EventReseted           EventKind = "breaker.reseted"
	// EventUntrackedFailure is published whenever classify reports
	// untrackedFailure: a thrown error did not match ErrorPolicy (and
	// Trigger was not ONLY_SLOW_CALL), so it was propagated to the
	// caller without affecting the breaker's metrics. Observability for
	// this case has no other channel since the library never logs.
	EventUntrackedFailure EventKind = "breaker.untracked_failure"
)

// Event is the payload for every breaker event kind; unused fields are
// left zero.
type Event struct {
	Kind   EventKind
	Key    string
	Handle *Handle

	From State
	To   State

	Cause error
}
