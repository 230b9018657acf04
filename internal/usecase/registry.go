package usecase

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/giftfinder/scraper/internal/domain"
)

// Registry holds the set of providers enabled for this process. It is built
// once at startup and read-only afterward, so concurrent requests can list
// providers without synchronization.
type Registry struct {
	providers map[string]domain.Provider
	order     []string
}

// NewRegistry builds a registry from the configured list of enabled provider
// names. Unknown names are logged and skipped. If nothing loads, the fallback
// provider is force-registered so the system is never providerless.
func NewRegistry(enabled []string, candidates []domain.Provider, fallback domain.Provider, log *logrus.Logger) *Registry {
	available := make(map[string]domain.Provider, len(candidates))
	for _, p := range candidates {
		available[p.Name()] = p
	}

	r := &Registry{providers: make(map[string]domain.Provider)}
	for _, name := range enabled {
		p, ok := available[name]
		if !ok {
			log.WithField("provider", name).Warn("Unknown provider, skipping")
			continue
		}
		if _, dup := r.providers[name]; dup {
			continue
		}
		r.providers[name] = p
		r.order = append(r.order, name)
		log.WithField("provider", name).Info("Loaded provider")
	}

	if len(r.providers) == 0 {
		log.Warn("No providers loaded, registering fallback provider")
		r.providers[fallback.Name()] = fallback
		r.order = append(r.order, fallback.Name())
	}

	return r
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (domain.Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, name)
	}
	return p, nil
}

// All returns every loaded provider in registration order.
func (r *Registry) All() []domain.Provider {
	out := make([]domain.Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// Has reports whether a provider is loaded.
func (r *Registry) Has(name string) bool {
	_, ok := r.providers[name]
	return ok
}

// Names returns the names of all loaded providers in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
