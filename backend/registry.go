package backend

import (
	"fmt"
	"sync"

	"github.com/gogpu/termgrid"
)

// Factory creates a rasterizer for the given config. Creation may fail,
// for example when no GPU adapter is present.
type Factory func(cfg Config) (Rasterizer, error)

// registry holds registered rasterizer factories.
var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for backend selection (first that initializes wins).
	priority = []string{BackendGPU, BackendSoftware}
)

// Register registers a rasterizer factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it is replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns a list of registered backend names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// New creates a rasterizer by name.
func New(name string, cfg Config) (Rasterizer, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q not registered", ErrBackendNotAvailable, name)
	}
	return factory(cfg)
}

// NewDefault creates the best available rasterizer for the config.
// Backends are tried in priority order (GPU first); a backend whose
// factory fails is skipped with a log line rather than aborting, so a
// machine without a usable GPU silently falls back to software.
func NewDefault(cfg Config) (Rasterizer, error) {
	registryMu.RLock()
	ordered := make([]Factory, 0, len(priority))
	names := make([]string, 0, len(priority))
	for _, name := range priority {
		if factory, ok := factories[name]; ok {
			ordered = append(ordered, factory)
			names = append(names, name)
		}
	}
	registryMu.RUnlock()

	for i, factory := range ordered {
		r, err := factory(cfg)
		if err != nil {
			termgrid.Logger().Warn("backend: unavailable, trying next",
				"backend", names[i], "error", err)
			continue
		}
		return r, nil
	}
	return nil, ErrBackendNotAvailable
}
