package breaker

import (
	"fmt"
	"time"

	"github.com/resilientcore/resilientcore/serde"
)

func nsToDuration(ns int64) time.Duration { return time.Duration(ns) }

// identity is the minimal, non-live state a breaker Handle serializes:
// enough to rebuild an equivalent Handle against a local Provider's
// adapter, never the remote record itself (§4.4).
type identity struct {
	DecoratedKey string `mapstructure:"decorated_key"`

	Trigger                  int    `mapstructure:"trigger"`
	SlowCallTimeNanos        int64  `mapstructure:"slow_call_time_nanos"`
	FailureThreshold         uint32 `mapstructure:"failure_threshold"`
	OpenDurationNanos        int64  `mapstructure:"open_duration_nanos"`
	HalfOpenProbes           uint32 `mapstructure:"half_open_probes"`
	HalfOpenSuccessThreshold uint32 `mapstructure:"half_open_success_threshold"`

	AsyncTracking bool `mapstructure:"async_tracking"`
}

// transformer implements serde.Transformer for Handles produced by one
// Provider. Decode rebuilds handles against the *local* process's
// adapter and bus (§4.4's "deserialization is contextual" rule). The
// ErrorPolicy predicate is not part of the wire identity — it is a Go
// closure and cannot round-trip through bytes, so a deserialized handle
// always carries a nil (match-all) ErrorPolicy; callers that need a
// specific predicate must re-attach it via Provider.Create defaults on
// the receiving process instead.
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
		return nil, fmt.Errorf("breaker: transformer %q cannot encode %T", t.Tag(), v)
	}
	return map[string]any{
		"decorated_key":               h.key,
		"trigger":                     int(h.policy.Trigger),
		"slow_call_time_nanos":        int64(h.policy.SlowCallTime),
		"failure_threshold":           h.policy.FailureThreshold,
		"open_duration_nanos":         int64(h.policy.OpenDuration),
		"half_open_probes":            h.policy.HalfOpenProbes,
		"half_open_success_threshold": h.policy.HalfOpenSuccessThreshold,
		"async_tracking":              h.async,
	}, nil
}

func (t *transformer) Decode(data map[string]any) (any, error) {
	var id identity
	if err := serde.DecodeInto(data, &id); err != nil {
		return nil, err
	}
	policy := Policy{
		Trigger:                  Trigger(id.Trigger),
		SlowCallTime:             nsToDuration(id.SlowCallTimeNanos),
		FailureThreshold:         id.FailureThreshold,
		OpenDuration:             nsToDuration(id.OpenDurationNanos),
		HalfOpenProbes:           id.HalfOpenProbes,
		HalfOpenSuccessThreshold: id.HalfOpenSuccessThreshold,
	}
	return newHandle(id.DecoratedKey, policy, t.provider.adapter, t.provider.bus, id.AsyncTracking, t.provider.asyncSem, t.Tag()), nil
}
