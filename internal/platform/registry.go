package platform

import (
	"sync"

	"go-stocksync/internal/apperr"
)

// Registry holds the adapters known to this deployment. A store is bound to
// its adapter once, when the sync service resolves the store; there is no
// per-call dispatch on the platform name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Register adds or replaces an adapter.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Resolve returns the adapter for a platform key.
func (r *Registry) Resolve(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, apperr.NotFound("platform adapter", name)
	}
	return a, nil
}
