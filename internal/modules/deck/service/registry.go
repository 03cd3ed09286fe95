package service

import (
	"sync"

	"focusdeck/internal/modules/deck/port/out"
)

// Registry holds the site adapters the app knows about.
type Registry struct {
	mu       sync.RWMutex
	adapters []out.Adapter
}

func NewRegistry(adapters ...out.Adapter) *Registry {
	r := &Registry{}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds adapter, replacing any adapter with the same ID in place.
func (r *Registry) Register(adapter out.Adapter) {
	if adapter == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.adapters {
		if existing.ID() == adapter.ID() {
			r.adapters[i] = adapter
			return
		}
	}
	r.adapters = append(r.adapters, adapter)
}

// Resolve returns the first adapter, in registration order, that supports url.
func (r *Registry) Resolve(url string) (out.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.adapters {
		if a.SupportsURL(url) {
			return a, true
		}
	}
	return nil, false
}

func (r *Registry) Get(id string) (out.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.adapters {
		if a.ID() == id {
			return a, true
		}
	}
	return nil, false
}

func (r *Registry) List() []out.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]out.Adapter(nil), r.adapters...)
}
