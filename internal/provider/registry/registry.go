// Package registry implements the provider factory table. Providers register
// a constructor under a logical name at startup; callers resolve names into
// live provider instances.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/davidbz/howl/internal/domain"
)

// Registry implements the domain.ProviderRegistry interface.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]domain.ProviderFactory
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:        sync.RWMutex{},
		factories: make(map[string]domain.ProviderFactory),
	}
}

// Register stores a factory under name. Re-registering a name overwrites the
// previous factory (last write wins); registration never fails.
func (r *Registry) Register(name string, factory domain.ProviderFactory) {
	if name == "" || factory == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[name] = factory
}

// Resolve looks up the factory for name and invokes it with settings.
// An unregistered name yields an *domain.UnknownProviderError whose message
// enumerates every registered name in sorted order.
func (r *Registry) Resolve(ctx context.Context, name string, settings domain.Settings) (domain.Provider, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, &domain.UnknownProviderError{Name: name, Available: r.List(ctx)}
	}

	provider, err := factory(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to construct provider %s: %w", name, err)
	}

	return provider, nil
}

// List returns all registered names, sorted lexicographically regardless of
// registration order.
func (r *Registry) List(_ context.Context) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
