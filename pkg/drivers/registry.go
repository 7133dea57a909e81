package drivers

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs a driver instance from driver-specific configuration.
type Factory func(config map[string]string) (AmphoraDriver, error)

// Registry maps configured driver names to factories. Resolve constructs a
// driver once per name and reuses the same instance for the registry's
// lifetime, so every task sharing a registry talks to the same driver.
type Registry struct {
	// mu protects the registry state.
	mu sync.Mutex

	// factories maps driver name to factory.
	factories map[string]Factory

	// drivers caches resolved driver instances by name.
	drivers map[string]AmphoraDriver
}

// NewRegistry creates an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		drivers:   make(map[string]AmphoraDriver),
	}
}

// Register registers a driver factory under a name.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return fmt.Errorf("driver name is required")
	}
	if factory == nil {
		return fmt.Errorf("driver factory for %s is nil", name)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("driver %s already registered", name)
	}

	r.factories[name] = factory
	return nil
}

// Resolve returns the driver registered under name, constructing it on first
// use and caching the instance afterwards.
func (r *Registry) Resolve(name string, config map[string]string) (AmphoraDriver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if driver, exists := r.drivers[name]; exists {
		return driver, nil
	}

	factory, exists := r.factories[name]
	if !exists {
		return nil, fmt.Errorf("driver %s not found (registered: %v)", name, r.namesLocked())
	}

	driver, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver %s: %w", name, err)
	}

	r.drivers[name] = driver
	return driver, nil
}

// Names lists the registered driver names.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// defaultRegistry holds the drivers compiled into this binary.
var defaultRegistry = NewRegistry()

// Register registers a driver factory in the default registry. Driver
// packages call this from init.
func Register(name string, factory Factory) {
	if err := defaultRegistry.Register(name, factory); err != nil {
		panic(err)
	}
}

// Default returns the process-wide driver registry.
func Default() *Registry {
	return defaultRegistry
}
