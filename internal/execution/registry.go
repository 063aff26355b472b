package execution

import (
	"fmt"
	"sync"
)

// Registry maps function ids to their invokers.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]Invoker
}

func NewRegistry() *Registry {
	return &Registry{
		functions: make(map[string]Invoker),
	}
}

// Register adds invoker under id.
func (r *Registry) Register(id string, invoker Invoker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.functions[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFunction, id)
	}

	r.functions[id] = invoker
	return nil
}

// Lookup returns the invoker registered under id.
func (r *Registry) Lookup(id string) (Invoker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	invoker, ok := r.functions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, id)
	}

	return invoker, nil
}

// IDs returns the ids of all registered functions.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.functions))
	for id := range r.functions {
		ids = append(ids, id)
	}
	return ids
}
