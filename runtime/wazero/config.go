package wazero

import (
	"context"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"

	"github.com/cbrownsey/wrenlet/runtime"
)

// newWazeroRuntime creates a new Wazero runtime hosting the guest at
// config.Path
func newWazeroRuntime(config *runtime.Config) (runtime.Runtime, error) {
	if config == nil || config.Path == "" {
		return nil, fmt.Errorf("wasm: guest path is required: %w", runtime.ErrInvalidConfiguration)
	}
	binary, err := os.ReadFile(config.Path)
	if err != nil {
		return nil, fmt.Errorf("wasm: read guest %s: %w", config.Path, err)
	}
	return NewRuntime(context.Background(), binary, config.Mode)
}

// runtimeConfig returns the wazero runtime config for mode
func runtimeConfig(mode string) wazero.RuntimeConfig {
	switch mode {
	case runtime.RuntimeModeCompiled:
		return wazero.NewRuntimeConfigCompiler()
	default:
		return wazero.NewRuntimeConfigInterpreter()
	}
}
