// Package retry implements the blocking/retry coordinator shared by the
// lock and circuit-breaker subsystems' blocking-acquisition paths (§4.5).
// It is a thin wrapper over github.com/avast/retry-go/v5 — at-least-one
// attempt, fixed-interval sleep, cancellation-aware via retry-go's
// context-checked delay, stopping once the cumulative elapsed time
// reaches the caller's budget.
package retry
