// Package serde lets a live Handle (lock or breaker) round-trip through
// bytes and rebind to the same shared adapter state in another process
// (§4.4, §6.5). The registry never serializes live remote state — only
// the minimal identity (decorated key, owner/id, ttl or policy) a
// transformer needs to reconstruct an equivalent handle against the
// *local* process's adapter.
package serde

import "fmt"

// Transformer registers how one handle type is (de)serialized. Tag
// disambiguates transformers sharing a Registry — a Provider can override
// its default tag via a "serdeTransformerName" option when two providers
// would otherwise collide.
type Transformer interface {
	// Tag names this transformer uniquely within a Registry.
	Tag() string

	// Encode reduces v (a *lock.Handle or *breaker.Handle produced by the
	// Provider that registered this transformer) to a plain map suitable
	// for JSON encoding.
	Encode(v any) (map[string]any, error)

	// Decode reconstructs a handle from a previously Encoded map, against
	// this process's local collaborators (the closure captured at
	// registration time supplies the adapter, event bus, and namespace).
	Decode(data map[string]any) (any, error)
}

// Taggable is implemented by values a Registry can Serialize: the value
// names which registered Transformer handles it.
type Taggable interface {
	SerdeTag() string
}

// Registry is the serde registry port (§6.5).
type Registry interface {
	// RegisterCustom adds t. It is an error to register two transformers
	// under the same Tag.
	RegisterCustom(t Transformer) error

	// Serialize encodes v using the Transformer named by v.SerdeTag().
	Serialize(v Taggable) ([]byte, error)

	// Deserialize decodes data using the Transformer named in its
	// envelope, reconstructing a value against this registry's local
	// collaborators.
	Deserialize(data []byte) (any, error)
}

// ErrTagCollision is returned by RegisterCustom when Tag is already in
// use on this Registry.
type ErrTagCollision struct{ Tag string }

func (e *ErrTagCollision) Error() string {
	return fmt.Sprintf("serde: transformer tag %q already registered", e.Tag)
}

// ErrUnknownTag is returned by Deserialize when no Transformer is
// registered for the envelope's tag.
type ErrUnknownTag struct{ Tag string }

func (e *ErrUnknownTag) Error() string {
	return fmt.Sprintf("serde: no transformer registered for tag %q", e.Tag)
}
