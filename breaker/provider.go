package breaker

import (
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/resilientcore/resilientcore/eventbus"
	"github.com/resilientcore/resilientcore/namespace"
	"github.com/resilientcore/resilientcore/serde"
)

// DefaultAsyncTrackers bounds how many async tracking goroutines a
// Provider's handles may run concurrently.
const DefaultAsyncTrackers = 32

// Config is the effective per-handle configuration a Provider applies,
// with Create's overrides winning over the Provider's defaults (§4.3).
type Config struct {
	Policy        Policy
	AsyncTracking bool
}

// Option customizes a Config, functional-options style.
type Option func(*Config)

// WithPolicy sets the handle's trigger policy.
func WithPolicy(p Policy) Option {
	return func(c *Config) { c.Policy = p }
}

// WithAsyncTracking toggles §4.2's enableAsyncTracking behavior.
func WithAsyncTracking(enabled bool) Option {
	return func(c *Config) { c.AsyncTracking = enabled }
}

func defaultConfig() Config {
	return Config{
		Policy: Policy{
			Trigger:                  Both,
			FailureThreshold:         5,
			OpenDuration:             0,
			HalfOpenProbes:           1,
			HalfOpenSuccessThreshold: 1,
		},
	}
}

// Provider is a thin factory: it owns the shared collaborators (adapter,
// event bus, serde registry, namespace) and a default Config, and
// produces Handles scoped to its namespace (§4.3).
type Provider struct {
	adapter  Adapter
	bus      eventbus.Bus
	ns       *namespace.Namespace
	defaults Config
	asyncSem *semaphore.Weighted
	serdeTag string
}

// ProviderOption customizes a Provider at construction time.
type ProviderOption func(*providerConfig)

type providerConfig struct {
	defaults         Config
	serdeTransformer string
	asyncTrackers    int64
}

// WithDefaults sets the Provider's default Config, applied to every
// Create call before its own overrides.
func WithDefaults(opts ...Option) ProviderOption {
	return func(pc *providerConfig) {
		for _, opt := range opts {
			opt(&pc.defaults)
		}
	}
}

// WithSerdeTransformerName overrides the default transformer tag this
// Provider registers, disambiguating a tag collision when two Providers
// share a Registry (§4.4).
func WithSerdeTransformerName(name string) ProviderOption {
	return func(pc *providerConfig) { pc.serdeTransformer = name }
}

// WithAsyncTrackerLimit bounds concurrent async-tracking goroutines for
// handles this Provider creates (default DefaultAsyncTrackers).
func WithAsyncTrackerLimit(n int64) ProviderOption {
	return func(pc *providerConfig) { pc.asyncTrackers = n }
}

// NewProvider constructs a Provider over adapter, scoped to ns, dispatching
// through bus, and registers a Handle transformer on registry.
func NewProvider(adapter Adapter, bus eventbus.Bus, registry serde.Registry, ns *namespace.Namespace, opts ...ProviderOption) (*Provider, error) {
	pc := providerConfig{defaults: defaultConfig(), serdeTransformer: "breaker.handle", asyncTrackers: DefaultAsyncTrackers}
	for _, opt := range opts {
		opt(&pc)
	}

	p := &Provider{
		adapter:  adapter,
		bus:      bus,
		ns:       ns,
		defaults: pc.defaults,
		asyncSem: semaphore.NewWeighted(pc.asyncTrackers),
		serdeTag: pc.serdeTransformer,
	}

	if err := registry.RegisterCustom(newTransformer(p)); err != nil {
		return nil, fmt.Errorf("breaker: registering provider transformer: %w", err)
	}
	return p, nil
}

// WithGroup returns a sibling Provider sharing this Provider's adapter
// and bus but scoped to an additional namespace segment (§4.3).
func (p *Provider) WithGroup(registry serde.Registry, group string) (*Provider, error) {
	return NewProvider(p.adapter, p.bus, registry, p.ns.WithGroup(group),
		WithDefaults(func(c *Config) { *c = p.defaults }),
		WithSerdeTransformerName(p.serdeTag+"."+group),
	)
}

// Create constructs a Handle for key with the Provider's defaults,
// overridden by opts.
func (p *Provider) Create(key string, opts ...Option) (*Handle, error) {
	cfg := p.defaults
	for _, opt := range opts {
		opt(&cfg)
	}
	decorated, err := p.ns.Decorate(key)
	if err != nil {
		return nil, err
	}
	return newHandle(decorated, cfg.Policy, p.adapter, p.bus, cfg.AsyncTracking, p.asyncSem, p.serdeTag), nil
}

// AddListener delegates to the Provider's event bus.
func (p *Provider) AddListener(kind EventKind, h func(Event)) eventbus.ListenerID {
	return p.bus.AddListener(eventbus.Kind(kind), func(payload any) {
		if ev, ok := payload.(Event); ok {
			h(ev)
		}
	})
}

// RemoveListener delegates to the Provider's event bus.
func (p *Provider) RemoveListener(kind EventKind, id eventbus.ListenerID) {
	p.bus.RemoveListener(eventbus.Kind(kind), id)
}

// Subscribe delegates to the Provider's event bus.
func (p *Provider) Subscribe(kind EventKind, h func(Event)) eventbus.Unsubscribe {
	return p.bus.Subscribe(eventbus.Kind(kind), func(payload any) {
		if ev, ok := payload.(Event); ok {
			h(ev)
		}
	})
}
