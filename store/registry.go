package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory creates a Store from backend options.
type Factory func(ctx context.Context, opts Options) (Store, error)

// Registry maps backend names to store factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name.
func (r *Registry) Register(name string, factory Factory) error {
	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		return errors.New("store: invalid backend registration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("store: backend %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister is Register for package init functions; it panics on error.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Create builds a store with the named backend.
func (r *Registry) Create(ctx context.Context, name string, opts Options) (Store, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("store: backend name is required")
	}

	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownBackend, name, strings.Join(r.List(), ", "))
	}

	s, err := factory(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("store: create %s backend: %w", name, err)
	}
	return s, nil
}

// List returns registered backend names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in memory backend and every backend
// package that has been imported.
var DefaultRegistry = func() *Registry {
	r := NewRegistry()
	r.MustRegister("memory", memoryFactory)
	return r
}()

// memoryFactory reads initial contents from the "values" option.
func memoryFactory(_ context.Context, opts Options) (Store, error) {
	values, err := opts.StringMap("values")
	if err != nil {
		return nil, err
	}
	return NewMemoryStore(values), nil
}
