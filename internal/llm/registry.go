package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

type ProviderFactory func(ctx context.Context, model string) (Provider, error)

// Registry maps provider names to factories. The first provider registered
// becomes the default, so a lookup with an empty name resolves to it.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
	def       string
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.factories) == 0 {
		r.def = name
	}
	r.factories[name] = f
}

// Get builds a provider for model. An empty name selects the default
// provider.
func (r *Registry) Get(ctx context.Context, name string, model string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	if name == "" {
		name = r.def
	}
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		if name == "" {
			return nil, errors.New("no llm providers registered")
		}
		return nil, fmt.Errorf("unknown llm provider: %s", name)
	}
	return f(ctx, model)
}
