// Package breaker provides a named, key-scoped circuit breaker primitive:
// CLOSED/OPEN/HALF_OPEN/ISOLATED state, driven by pluggable error and
// slow-call policies, with an adapter port so the underlying counters and
// state record can live in-process, in Redis, or anywhere else.
package breaker
