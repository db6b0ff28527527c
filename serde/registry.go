package serde

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// envelope is the wire representation: a transformer tag plus its
// Encode()-produced map, carried as raw JSON so Decode can re-derive a
// typed struct from the generic map via mapstructure without the
// Registry needing to know any transformer's concrete Go type.
type envelope struct {
	Tag     string          `json:"tag"`
	Payload json.RawMessage `json:"payload"`
}

// Registry is the default in-process serde.Registry: a JSON-with-types
// envelope around each transformer's own map encoding.
type Registry struct {
	mu           sync.RWMutex
	transformers map[string]Transformer
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{transformers: make(map[string]Transformer)}
}

func (r *Registry) RegisterCustom(t Transformer) error {
	if t == nil {
		return fmt.Errorf("serde: nil transformer")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.transformers[t.Tag()]; exists {
		return &ErrTagCollision{Tag: t.Tag()}
	}
	r.transformers[t.Tag()] = t
	return nil
}

func (r *Registry) transformerFor(tag string) (Transformer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transformers[tag]
	return t, ok
}

func (r *Registry) Serialize(v Taggable) ([]byte, error) {
	tag := v.SerdeTag()
	t, ok := r.transformerFor(tag)
	if !ok {
		return nil, &ErrUnknownTag{Tag: tag}
	}
	encoded, err := t.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("serde: encode %q: %w", tag, err)
	}
	payload, err := json.Marshal(encoded)
	if err != nil {
		return nil, fmt.Errorf("serde: marshal %q payload: %w", tag, err)
	}
	return json.Marshal(envelope{Tag: tag, Payload: payload})
}

func (r *Registry) Deserialize(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("serde: unmarshal envelope: %w", err)
	}
	t, ok := r.transformerFor(env.Tag)
	if !ok {
		return nil, &ErrUnknownTag{Tag: env.Tag}
	}
	var raw map[string]any
	if err := json.Unmarshal(env.Payload, &raw); err != nil {
		return nil, fmt.Errorf("serde: unmarshal %q payload: %w", env.Tag, err)
	}
	v, err := t.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("serde: decode %q: %w", env.Tag, err)
	}
	return v, nil
}

// DecodeInto is a helper transformers use inside Decode to populate a
// typed identity struct from the generic map Registry hands them,
// grounded on mitchellh/mapstructure rather than a second hand-rolled
// map-to-struct walk.
func DecodeInto(data map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}
