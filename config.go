package wrenlet

import (
	"fmt"
	"io"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"

	"github.com/cbrownsey/wrenlet/runtime"
)

// HeapConfig tunes the VM's garbage collector. Zero keeps Wren's defaults.
type HeapConfig struct {
	// InitialHeapSize is the number of bytes allocated before the first
	// collection.
	InitialHeapSize int `mapstructure:"initial_heap_size"`
	// MinHeapSize is the lower bound of the heap size that triggers a
	// collection.
	MinHeapSize int `mapstructure:"min_heap_size"`
	// HeapGrowthPercent is how much the heap may grow past the live size
	// before the next collection.
	HeapGrowthPercent int `mapstructure:"heap_growth_percent"`
}

// Validate validates the heap configuration
func (cfg *HeapConfig) Validate() error {
	if cfg.InitialHeapSize < 0 || cfg.MinHeapSize < 0 || cfg.HeapGrowthPercent < 0 {
		return fmt.Errorf("heap sizes must not be negative: %w", ErrInvalidConfiguration)
	}
	if cfg.InitialHeapSize > 0 && cfg.MinHeapSize > cfg.InitialHeapSize {
		return fmt.Errorf("min_heap_size %d exceeds initial_heap_size %d: %w", cfg.MinHeapSize, cfg.InitialHeapSize, ErrInvalidConfiguration)
	}
	return nil
}

// Config is the configuration of a VM.
type Config struct {
	// Runtime selects the backend when Backend is nil.
	Runtime runtime.Config `mapstructure:"runtime"`
	Heap    HeapConfig     `mapstructure:"heap"`

	// UserData is the embedder's payload, returned by VM.UserData.
	UserData any `mapstructure:"-"`
	// Loader serves imports. Defaults to EmptyLoader.
	Loader ModuleLoader `mapstructure:"-"`
	// Output receives System.print output. Defaults to os.Stdout.
	Output io.Writer `mapstructure:"-"`
	// Logger defaults to a no-op logger.
	Logger *zap.Logger `mapstructure:"-"`
	// Foreign lists the foreign classes scripts may declare.
	Foreign []*ForeignClass `mapstructure:"-"`
	// Backend, when set, is used instead of creating a runtime from Runtime.
	// It is not closed with the VM.
	Backend runtime.Runtime `mapstructure:"-"`
}

// Default fills unset fields
func (cfg *Config) Default() {
	if cfg.Backend == nil {
		cfg.Runtime.Default()
	}
	if cfg.Loader == nil {
		cfg.Loader = EmptyLoader{}
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
}

// Validate validates the configuration
func (cfg *Config) Validate() error {
	if cfg.Backend == nil {
		if err := cfg.Runtime.Validate(); err != nil {
			return err
		}
	}
	if err := cfg.Heap.Validate(); err != nil {
		return err
	}
	seen := make(map[[2]string]bool, len(cfg.Foreign))
	for _, fc := range cfg.Foreign {
		if fc == nil {
			return fmt.Errorf("nil foreign class: %w", ErrInvalidConfiguration)
		}
		key := [2]string{fc.module, fc.name}
		if seen[key] {
			return fmt.Errorf("%s: %w", fc, ErrDuplicateForeignClass)
		}
		seen[key] = true
	}
	return nil
}

// DecodeConfig decodes the runtime and heap settings of a Config from a
// generic map, such as one read from a configuration file. Unknown keys are
// rejected.
func DecodeConfig(input map[string]any) (Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(input); err != nil {
		return Config{}, fmt.Errorf("wrenlet: decode config: %w", err)
	}
	return cfg, nil
}
