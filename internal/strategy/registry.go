package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kimrejstrom/alpacalyzer-algo-trader/internal/types"
)

// Factory builds a strategy instance from a config. A nil config means
// the strategy's defaults.
type Factory func(cfg *Config) Strategy

// Registry maps strategy names to factories. It is injected into the
// engine at construction; there is no package-level instance.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Strategy),
	}
}

// NewDefaultRegistry returns a registry with the built-in strategies.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("momentum", func(cfg *Config) Strategy { return NewMomentum(cfg) })
	r.Register("breakout", func(cfg *Config) Strategy { return NewBreakout(cfg) })
	r.Register("mean_reversion", func(cfg *Config) Strategy { return NewMeanReversion(cfg) })
	return r
}

// Register adds a strategy factory under name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a strategy instance. With a nil config the instance is
// cached and shared; a custom config always builds a fresh instance.
func (r *Registry) Get(name string, cfg *Config) (Strategy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %v)", types.ErrUnknownStrategy, name, r.listLocked())
	}

	if cfg == nil {
		if inst, ok := r.instances[name]; ok {
			return inst, nil
		}
		inst := factory(nil)
		r.instances[name] = inst
		return inst, nil
	}
	return factory(cfg), nil
}

// List returns registered strategy names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked()
}

func (r *Registry) listLocked() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
