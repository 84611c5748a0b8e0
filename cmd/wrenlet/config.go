package main

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/cbrownsey/wrenlet"
)

const envPrefix = "WRENLET_"

// options are the settings of the CLI itself. The vm section of the
// configuration is decoded separately by wrenlet.DecodeConfig.
type options struct {
	LogLevel string `koanf:"log_level"`
	// Output is stdout, stderr or log.
	Output string `koanf:"output"`
	// Module is the name the script is interpreted as.
	Module string `koanf:"module"`
	// ModulesDir is the root imports are loaded from. Defaults to the
	// script's directory.
	ModulesDir string `koanf:"modules_dir"`

	VM wrenlet.Config `koanf:"-"`
}

func defaultOptions() options {
	return options{
		LogLevel: "info",
		Output:   "stdout",
		Module:   "main",
	}
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"runtime":     "vm.runtime.type",
	"guest":       "vm.runtime.path",
	"mode":        "vm.runtime.mode",
	"log-level":   "log_level",
	"output":      "output",
	"module":      "module",
	"modules-dir": "modules_dir",
}

// envKey turns WRENLET_VM__RUNTIME__TYPE into vm.runtime.type.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

// loadOptions layers the configuration file, the environment and the flags
// that were set, in increasing precedence.
func loadOptions(path string, flags *pflag.FlagSet) (options, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return options{}, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return options{}, fmt.Errorf("failed to load environment: %w", err)
	}
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := k.Set(key, f.Value.String()); err != nil {
			return options{}, fmt.Errorf("failed to apply --%s: %w", name, err)
		}
	}

	opts := defaultOptions()
	if err := k.Unmarshal("", &opts); err != nil {
		return options{}, fmt.Errorf("failed to decode config: %w", err)
	}
	vm, err := wrenlet.DecodeConfig(k.Cut("vm").Raw())
	if err != nil {
		return options{}, err
	}
	opts.VM = vm

	switch opts.Output {
	case "stdout", "stderr", "log":
	default:
		return options{}, fmt.Errorf("invalid output %q, expected stdout, stderr or log: %w", opts.Output, wrenlet.ErrInvalidConfiguration)
	}
	return opts, nil
}
