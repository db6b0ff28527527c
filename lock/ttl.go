package lock

import "time"

// TTL is either a positive duration or the Unexpireable sentinel. The zero
// value is NOT a valid TTL — use Unexpireable or For to construct one, the
// way the teacher's core.LockOptions requires an explicit, validated TTL
// rather than trusting a zero-value duration.
type TTL struct {
	d            time.Duration
	unexpireable bool
}

// Unexpireable is a lock with no TTL; it never auto-expires and must be
// released explicitly (by owner) or force-released.
var Unexpireable = TTL{unexpireable: true}

// For constructs a TTL from a positive duration. A non-positive duration
// is clamped to 1 nanosecond rather than silently treated as Unexpireable
// — callers that want an unexpireable lock must say so explicitly.
func For(d time.Duration) TTL {
	if d <= 0 {
		d = time.Nanosecond
	}
	return TTL{d: d}
}

// IsUnexpireable reports whether this TTL never auto-expires.
func (t TTL) IsUnexpireable() bool { return t.unexpireable }

// Duration returns the configured duration. It is meaningless when
// IsUnexpireable is true.
func (t TTL) Duration() time.Duration { return t.d }

// ExpiresAt returns the absolute expiry instant for a record created or
// refreshed "now" with this TTL. For an unexpireable TTL it returns the
// zero time, which callers must treat as "never" and guard with
// IsUnexpireable rather than comparing directly.
func (t TTL) ExpiresAt(now time.Time) time.Time {
	if t.unexpireable {
		return time.Time{}
	}
	return now.Add(t.d)
}
