// Package lock provides a named, owner-scoped, leased mutual-exclusion
// primitive safe across processes and machines.
//
// A Handle is a value, not a resource: all mutable state lives behind an
// Adapter (the storage port, §6.1 of the design). Handles are created
// through a Provider, which owns the shared collaborators (adapter, event
// bus, serde registry, namespace) and registers a serde transformer so
// handles it creates can round-trip through bytes and rebind to the same
// shared record in another process.
//
// Mutual exclusion correctness rests entirely on the Adapter's atomic
// primitives; the handle never attempts a read-then-write race to
// simulate atomicity above a non-atomic store.
package lock
