package embedding

import (
	"fmt"
	"sort"
	"sync"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
)

// Registry holds the configured embedding providers by name.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]ports.EmbeddingProvider
	defaultName string
}

// NewRegistry creates a registry whose default provider is defaultName.
func NewRegistry(defaultName string, providers ...ports.EmbeddingProvider) *Registry {
	r := &Registry{providers: make(map[string]ports.EmbeddingProvider), defaultName: defaultName}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider.
func (r *Registry) Register(p ports.EmbeddingProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the first provider that supports name.
func (r *Registry) Get(name string) (ports.EmbeddingProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	for _, n := range r.namesLocked() {
		if p := r.providers[n]; p.Supports(name) {
			return p, nil
		}
	}
	return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("embedding provider %q", name))
}

// Default returns the configured default provider.
func (r *Registry) Default() (ports.EmbeddingProvider, error) {
	return r.Get(r.defaultName)
}

// Names lists registered providers in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
