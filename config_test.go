package wrenlet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbrownsey/wrenlet/runtime"
)

func TestConfigDefault(t *testing.T) {
	var cfg Config
	cfg.Default()
	assert.Equal(t, runtime.RuntimeTypeCWren, cfg.Runtime.Type)
	assert.Equal(t, EmptyLoader{}, cfg.Loader)
	assert.NotNil(t, cfg.Output)
	assert.NotNil(t, cfg.Logger)
	require.NoError(t, cfg.Validate())

	withBackend := Config{Backend: newTestRuntime()}
	withBackend.Default()
	assert.Empty(t, withBackend.Runtime.Type)
}

func TestConfigValidate(t *testing.T) {
	var destroyed []float64
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{name: "zero", cfg: Config{}},
		{name: "heap", cfg: Config{Heap: HeapConfig{InitialHeapSize: 1 << 20, MinHeapSize: 1 << 16, HeapGrowthPercent: 50}}},
		{name: "negative growth", cfg: Config{Heap: HeapConfig{HeapGrowthPercent: -1}}, want: ErrInvalidConfiguration},
		{name: "min above initial", cfg: Config{Heap: HeapConfig{InitialHeapSize: 10, MinHeapSize: 20}}, want: ErrInvalidConfiguration},
		{name: "bad mode", cfg: Config{Runtime: runtime.Config{Type: runtime.RuntimeTypeWazero, Path: "wren.wasm", Mode: "jit"}}, want: ErrInvalidConfiguration},
		{name: "wazero without path", cfg: Config{Runtime: runtime.Config{Type: runtime.RuntimeTypeWazero}}, want: ErrInvalidConfiguration},
		{name: "backend skips runtime", cfg: Config{Backend: newTestRuntime(), Runtime: runtime.Config{Mode: "jit"}}},
		{name: "nil foreign class", cfg: Config{Foreign: []*ForeignClass{nil}}, want: ErrInvalidConfiguration},
		{
			name: "duplicate foreign class",
			cfg:  Config{Foreign: []*ForeignClass{counterClass(&destroyed), counterClass(&destroyed)}},
			want: ErrDuplicateForeignClass,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(map[string]any{
		"runtime": map[string]any{
			"type": "wazero",
			"path": "build/wren.wasm",
			"mode": "compiled",
		},
		"heap": map[string]any{
			"initial_heap_size":   "1048576",
			"heap_growth_percent": 25,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, runtime.Config{Type: "wazero", Path: "build/wren.wasm", Mode: "compiled"}, cfg.Runtime)
	assert.Equal(t, HeapConfig{InitialHeapSize: 1 << 20, HeapGrowthPercent: 25}, cfg.Heap)

	_, err = DecodeConfig(map[string]any{"runtime": map[string]any{"tpye": "cwren"}})
	assert.ErrorContains(t, err, "tpye")
}
