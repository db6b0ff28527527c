package lock

import (
	"fmt"
	"time"

	"github.com/resilientcore/resilientcore/serde"
)

// identity is the minimal, non-live state a lock Handle serializes:
// enough to rebuild an equivalent Handle against a local Provider's
// adapter, never the remote record itself (§4.4).
type identity struct {
	DecoratedKey string `mapstructure:"decorated_key"`
	Owner        string `mapstructure:"owner"`
	TTLNanos     int64  `mapstructure:"ttl_nanos"`
	Unexpireable bool   `mapstructure:"unexpireable"`
}

// transformer implements serde.Transformer for Handles produced by one
// Provider. It is constructed with a closure over that Provider so
// Decode rebuilds handles against the *local* process's adapter and bus,
// per §4.4's "deserialization is contextual" rule.
type transformer struct {
	provider *Provider
}

func newTransformer(p *Provider) *transformer {
	return &transformer{provider: p}
}

func (t *transformer) Tag() string { return t.provider.serdeTag }

func (t *transformer) Encode(v any) (map[string]any, error) {
	h, ok := v.(*Handle)
	if !ok {
		return nil, fmt.Errorf("lock: transformer %q cannot encode %T", t.Tag(), v)
	}
	return map[string]any{
		"decorated_key": h.key,
		"owner":         h.owner,
		"ttl_nanos":     int64(h.ttl.d),
		"unexpireable":  h.ttl.unexpireable,
	}, nil
}

func (t *transformer) Decode(data map[string]any) (any, error) {
	var id identity
	if err := serde.DecodeInto(data, &id); err != nil {
		return nil, err
	}
	ttl := Unexpireable
	if !id.Unexpireable {
		ttl = For(time.Duration(id.TTLNanos))
	}
	return newHandle(id.DecoratedKey, id.Owner, ttl, t.provider.adapter, t.provider.bus, t.Tag()), nil
}
