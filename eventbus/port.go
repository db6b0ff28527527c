package eventbus

import "context"

// Kind identifies an event taxonomy arm. Both lock.EventKind and
// breaker.EventKind convert to Kind at the call site.
type Kind string

// Handler processes one dispatched event. Handlers must not block
// indefinitely — a slow synchronous handler delays every other
// subscriber on a synchronous Dispatch call.
type Handler func(payload any)

// ListenerID identifies one AddListener registration so it can later be
// removed with RemoveListener, mirroring the SubscriptionID pattern used
// for bus unsubscription in the wider example pack (an opaque token,
// since Go func values are not comparable for map-keyed removal).
type ListenerID string

// Unsubscribe removes the listener it was returned for. Calling it more
// than once is a no-op.
type Unsubscribe func()

// Bus is the event-bus port (§6.3). A Provider obtains one from its
// caller and scopes dispatch/subscription to the kinds its subsystem
// defines; nothing about Bus itself is lock- or breaker-specific.
type Bus interface {
	// AddListener registers h for events of kind and returns a token for
	// later removal.
	AddListener(kind Kind, h Handler) ListenerID

	// RemoveListener unregisters the listener identified by id for kind.
	// Removing an id that was never registered, or was already removed,
	// is a no-op.
	RemoveListener(kind Kind, id ListenerID)

	// Subscribe is addListener/removeListener wrapped as a single
	// single-use convenience value.
	Subscribe(kind Kind, h Handler) Unsubscribe

	// Dispatch publishes payload to every current listener of kind,
	// synchronously. The order in which listeners are invoked is not
	// defined; MemoryBus does not follow registration order. A listener panic is
	// recovered and logged; it never aborts delivery to the remaining
	// listeners nor escapes to the caller.
	Dispatch(ctx context.Context, kind Kind, payload any)

	// DispatchAsync schedules payload for delivery to every current
	// listener of kind without waiting for the listeners to run. An
	// implementation with a bounded worker pool may wait for a free worker
	// before scheduling each listener (MemoryBus does). Ordering relative to
	// other DispatchAsync calls, or to synchronous Dispatch calls, is not
	// guaranteed.
	DispatchAsync(ctx context.Context, kind Kind, payload any)
}
