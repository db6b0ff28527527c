package lock

import "time"

// Status is the derived, user-facing classification of a lock key (§3.1).
type Status int

const (
	// Expired means no record exists, or the record's ExpiresAt has
	// passed, or the last release removed it.
	Expired Status = iota
	// Acquired means a record exists and its owner is the handle's own
	// owner.
	Acquired
	// Unavailable means a record exists and belongs to a different
	// owner.
	Unavailable
)

func (s Status) String() string {
	switch s {
	case Expired:
		return "EXPIRED"
	case Acquired:
		return "ACQUIRED"
	case Unavailable:
		return "UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}

// State is the full derived state returned by Handle.GetState.
type State struct {
	Status Status

	// RemainingTime is populated when Status == Acquired and the lock is
	// expireable; Unexpireable is true when Status == Acquired and the
	// lock never expires.
	RemainingTime time.Duration
	Unexpireable  bool

	// Owner is populated when Status == Unavailable: the owner currently
	// holding the record.
	Owner string
}
