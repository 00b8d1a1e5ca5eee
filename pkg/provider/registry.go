package provider

import (
	"fmt"
	"sync"
)

var (
	registryMu sync.Mutex
	registry   = map[string]Factory{}
)

// Register adds a named Factory to the process-wide registry. Intended
// to be called from package init() functions only, at program start;
// re-registering an existing name panics, mirroring a one-shot
// initializer rather than a runtime-mutable table.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("provider: factory %q already registered", name))
	}
	registry[name] = f
}

// New constructs a Provider by looking up name in the registry and
// invoking its Factory with cfg.
func New(name string, cfg map[string]interface{}) (Provider, error) {
	registryMu.Lock()
	f, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("provider: no factory registered for %q", name)
	}
	return f(cfg)
}

// Registered returns the names currently registered, for diagnostics.
func Registered() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
