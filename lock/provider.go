package lock

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/resilientcore/resilientcore/eventbus"
	"github.com/resilientcore/resilientcore/namespace"
	"github.com/resilientcore/resilientcore/serde"
)

// Config is the effective per-handle configuration a Provider applies,
// with Create's overrides winning over the Provider's defaults (§4.3).
type Config struct {
	Owner string // empty means "generate one"
	TTL   TTL
}

// Option customizes a Config, functional-options style (matching the
// teacher's fluent PostgresLockerConfig setters and the pack's
// xdlock.MutexOption convention).
type Option func(*Config)

// WithOwner pins the handle's owner/lock-id instead of generating one.
func WithOwner(owner string) Option {
	return func(c *Config) { c.Owner = owner }
}

// WithTTL sets the handle's TTL (default: Unexpireable).
func WithTTL(ttl TTL) Option {
	return func(c *Config) { c.TTL = ttl }
}

func defaultConfig() Config {
	return Config{TTL: Unexpireable}
}

// Provider is a thin factory: it owns the shared collaborators (adapter,
// event bus, serde registry, namespace) and a default Config, and
// produces Handles scoped to its namespace. On construction it registers
// a serde Transformer so Handles it creates can round-trip through
// bytes (§4.3, §4.4).
type Provider struct {
	adapter  Adapter
	bus      eventbus.Bus
	ns       *namespace.Namespace
	defaults Config
	serdeTag string
}

// ProviderOption customizes a Provider at construction time.
type ProviderOption func(*providerConfig)

type providerConfig struct {
	defaults         Config
	serdeTransformer string
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

// NewProvider constructs a Provider over adapter, scoped to ns, dispatching
// through bus, and registers a Handle transformer on registry.
func NewProvider(adapter Adapter, bus eventbus.Bus, registry serde.Registry, ns *namespace.Namespace, opts ...ProviderOption) (*Provider, error) {
	pc := providerConfig{defaults: defaultConfig(), serdeTransformer: "lock.handle"}
	for _, opt := range opts {
		opt(&pc)
	}

	p := &Provider{
		adapter:  adapter,
		bus:      bus,
		ns:       ns,
		defaults: pc.defaults,
		serdeTag: pc.serdeTransformer,
	}

	if err := registry.RegisterCustom(newTransformer(p)); err != nil {
		var collision *serde.ErrTagCollision
		if errors.As(err, &collision) {
			return nil, fmt.Errorf("%w: %w", ErrTransformerNameCollision, err)
		}
		return nil, fmt.Errorf("lock: registering provider transformer: %w", err)
	}
	return p, nil
}

// WithGroup returns a sibling Provider sharing this Provider's adapter
// and bus but scoped to an additional namespace segment, so handles from
// different groups on the same backing store never collide. The sibling
// registers its own transformer tag (group-suffixed by default) to avoid
// colliding with the parent's.
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
	owner := cfg.Owner
	if owner == "" {
		owner = uuid.NewString()
	}
	decorated, err := p.ns.Decorate(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return newHandle(decorated, owner, cfg.TTL, p.adapter, p.bus, p.serdeTag), nil
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
