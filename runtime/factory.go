package runtime

import (
	"fmt"
	"sort"
)

// Factory is a function that creates a new Runtime
type Factory func(config *Config) (Runtime, error)

var runtimeFactories = make(map[string]Factory)

// Register registers a runtime factory. Backends call it from init.
func Register(name string, factory Factory) {
	if _, exists := runtimeFactories[name]; exists {
		panic(fmt.Sprintf("runtime %s already registered", name))
	}
	runtimeFactories[name] = factory
}

// NewRuntime creates a new Runtime from config. A nil config selects the
// default backend.
func NewRuntime(config *Config) (Runtime, error) {
	if config == nil {
		config = &Config{}
	}
	cfg := *config
	cfg.Default()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	factory, ok := runtimeFactories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown runtime type: %s: %w", cfg.Type, ErrRuntimeNotFound)
	}

	return factory(&cfg)
}

// List returns all registered runtime types in lexical order
func List() []string {
	types := make([]string, 0, len(runtimeFactories))
	for t := range runtimeFactories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
