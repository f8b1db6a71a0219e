package provider

import (
	"fmt"
	"sort"
	"sync"

	"conductor/internal/config"
)

// Factory builds a backend from configuration.
type Factory func(cfg *config.Config) (Backend, error)

var (
	factories = make(map[string]Factory)
	mu        sync.RWMutex
)

// Register registers a backend factory under name.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// List returns the names of all registered backends.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset clears all registered factories (for testing).
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	factories = make(map[string]Factory)
}

// New builds the backend named by cfg.Provider.Default, wrapped with
// retries and metrics.
func New(cfg *config.Config) (Backend, error) {
	name := cfg.Provider.Default
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (registered: %v)", name, List())
	}

	b, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("create provider %s: %w", name, err)
	}
	return WithRetry(Instrument(b), cfg.Provider.Retries, cfg.Provider.RetryDelay), nil
}
