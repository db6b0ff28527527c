// Package eventbus is the typed, in-process publish/subscribe port both
// the lock and circuit-breaker subsystems dispatch their event taxonomies
// through (§6.3). It is deliberately payload-agnostic — callers pass an
// EventKind tag and an opaque payload; lock.Event and breaker.Event are
// the two concrete payload shapes in this module, but the bus itself
// knows nothing about them, the way github.com/.../ag-ui's EventBus
// carries an opaque BusEvent.Data field.
//
// Bus implementations are safe for concurrent Dispatch and
// Subscribe/Unsubscribe from any goroutine; no operation holds an
// exclusive lock across a listener invocation.
package eventbus
