package connector

import (
	"sort"
	"sync"
)

// Factory builds a connector instance for one platform from its config.
type Factory func(cfg Config) Connector

// Registry holds the closed set of supported platforms.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry with every supported platform registered.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
	}

	r.Register("jumpcloud", func(cfg Config) Connector { return NewJumpCloud(cfg) })
	r.Register("okta", func(cfg Config) Connector { return NewOkta(cfg) })
	r.Register("googleworkspace", func(cfg Config) Connector { return NewGoogleWorkspace(cfg) })
	r.Register("azuread", func(cfg Config) Connector { return NewAzureAD(cfg) })
	r.Register("slack", func(cfg Config) Connector { return NewSlack(cfg) })
	r.Register("github", func(cfg Config) Connector { return NewGitHub(cfg) })
	r.Register("zendesk", func(cfg Config) Connector { return NewZendesk(cfg) })

	return r
}

// Register adds a platform factory to the registry.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New builds a connector for the named platform.
func (r *Registry) New(name string, cfg Config) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[name]
	if !ok {
		return nil, ErrNotRegistered
	}
	return f(cfg), nil
}

// Names returns the registered platform names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
