package providers

import (
	"fmt"
	"strings"

	"github.com/Adda-Baaj/berita-emiten/internal/domain"
)

// Registry resolves providers by source id. It is read-only once built.
type Registry struct {
	providers map[domain.Source]Provider
	order     []domain.Source
}

// NewRegistry builds a registry for the provided definitions.
func NewRegistry(defs ...Provider) (*Registry, error) {
	reg := &Registry{
		providers: make(map[domain.Source]Provider, len(defs)),
	}

	for _, p := range defs {
		p.ID = domain.Source(strings.ToLower(strings.TrimSpace(string(p.ID))))
		if p.ID == "" {
			return nil, fmt.Errorf("provider id is empty")
		}
		if _, exists := reg.providers[p.ID]; exists {
			return nil, fmt.Errorf("duplicate provider id %q", p.ID)
		}
		reg.providers[p.ID] = p
		reg.order = append(reg.order, p.ID)
	}

	return reg, nil
}

// DefaultRegistry wires up the known IDX news providers.
func DefaultRegistry() *Registry {
	reg, err := NewRegistry(defaultProviders()...)
	if err != nil {
		panic(err) // static definitions
	}
	return reg
}

// Lookup returns the provider for the given source.
func (r *Registry) Lookup(id domain.Source) (Provider, bool) {
	if r == nil {
		return Provider{}, false
	}
	p, ok := r.providers[domain.Source(strings.ToLower(string(id)))]
	return p, ok
}

// All returns the providers in registration order.
func (r *Registry) All() []Provider {
	if r == nil {
		return nil
	}
	out := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id])
	}
	return out
}
