package identity

import (
	"sort"

	"github.com/goliatone/go-sentinel"
)

// Registry holds the configured identity providers keyed by name.
type Registry struct {
	providers map[sentinel.ProviderName]Provider
	logger    sentinel.Logger
}

type RegistryOption func(*Registry)

func WithRegistryLogger(logger sentinel.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry builds a registry from the given providers. Providers that
// fail credential validation are registered but reported as not configured
// by ConfiguredProviders and Get.
func NewRegistry(providers []Provider, opts ...RegistryOption) *Registry {
	r := &Registry{
		providers: make(map[sentinel.ProviderName]Provider, len(providers)),
		logger:    sentinel.DefaultLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	for _, p := range providers {
		if p == nil {
			continue
		}
		r.providers[p.Name()] = p
	}

	return r
}

// Get returns the provider for name. Unknown names return
// ErrProviderNotFound; known providers with invalid credentials return
// ErrProviderNotConfigured.
func (r *Registry) Get(name sentinel.ProviderName) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrProviderNotFound
	}

	if check := p.ValidateConfig(); !check.Valid {
		r.logger.Warn("provider %s has invalid configuration: %v", name, check.Errors)
		return nil, ErrProviderNotConfigured
	}

	return p, nil
}

// ConfiguredProviders returns the names of providers whose credentials
// validate, sorted for stable output.
func (r *Registry) ConfiguredProviders() []sentinel.ProviderName {
	names := make([]sentinel.ProviderName, 0, len(r.providers))
	for name, p := range r.providers {
		if check := p.ValidateConfig(); check.Valid {
			names = append(names, name)
		}
	}

	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	return names
}
