// Package namespace provides deterministic key-prefixing so independent
// lock/breaker use cases can share a single backing store without
// colliding (§6.4). It is the generalized, package-level form of the
// teacher's core.ValidateKey check: key validation now happens once, at
// decoration time, rather than being duplicated by every adapter.
package namespace

import (
	"fmt"
	"strings"
)

// MaxKeyLength bounds a user-supplied key before decoration, mirroring
// the teacher's core.MaxKeyLength.
const MaxKeyLength = 256

// Namespace deterministically decorates user keys with a fixed prefix.
// The zero value is a valid, empty-prefix Namespace.
type Namespace struct {
	prefix string
}

// New constructs a Namespace whose Decorate prepends prefix + ":" to
// every key. An empty prefix decorates keys unchanged.
func New(prefix string) *Namespace {
	return &Namespace{prefix: prefix}
}

// WithGroup returns a sibling Namespace with an additional path segment,
// so handles from different groups on the same adapter never collide
// (§4.3's withGroup). Each call appends one more deterministic segment,
// so applying WithGroup repeatedly nests the groups.
func (n *Namespace) WithGroup(group string) *Namespace {
	if n == nil || n.prefix == "" {
		return &Namespace{prefix: group}
	}
	return &Namespace{prefix: n.prefix + ":" + group}
}

// Decorate validates and prefixes key. It is deterministic: the same key
// always yields the same result. It is not idempotent: decorating an
// already-decorated key adds the prefix a second time. Callers decorate
// exactly once per Handle.
func (n *Namespace) Decorate(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("namespace: key must not be empty")
	}
	if len(key) > MaxKeyLength {
		return "", fmt.Errorf("namespace: key exceeds maximum length of %d bytes", MaxKeyLength)
	}
	if n == nil || n.prefix == "" {
		return key, nil
	}
	return n.prefix + ":" + key, nil
}
