package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "default cwren",
			config:  Config{Type: RuntimeTypeCWren},
			wantErr: false,
		},
		{
			name:    "valid interpreter mode",
			config:  Config{Type: RuntimeTypeWazero, Path: "wren.wasm", Mode: RuntimeModeInterpreter},
			wantErr: false,
		},
		{
			name:    "valid compiled mode",
			config:  Config{Type: RuntimeTypeWazero, Path: "wren.wasm", Mode: RuntimeModeCompiled},
			wantErr: false,
		},
		{
			name:    "invalid mode",
			config:  Config{Type: RuntimeTypeWazero, Path: "wren.wasm", Mode: "invalid"},
			wantErr: true,
		},
		{
			name:    "wazero without path",
			config:  Config{Type: RuntimeTypeWazero},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("Config.Validate() error = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestConfigDefault(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected Config
	}{
		{
			name:     "empty",
			config:   Config{},
			expected: Config{Type: RuntimeTypeCWren},
		},
		{
			name:     "wazero empty mode",
			config:   Config{Type: RuntimeTypeWazero, Path: "wren.wasm"},
			expected: Config{Type: RuntimeTypeWazero, Path: "wren.wasm", Mode: RuntimeModeInterpreter},
		},
		{
			name:     "wazero compiled mode",
			config:   Config{Type: RuntimeTypeWazero, Mode: RuntimeModeCompiled},
			expected: Config{Type: RuntimeTypeWazero, Mode: RuntimeModeCompiled},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Default()
			assert.Equal(t, tt.expected, tt.config)
		})
	}
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "Bool", SlotTypeBool.String())
	assert.Equal(t, "Num", SlotTypeNum.String())
	assert.Equal(t, "Null", SlotTypeNull.String())
	assert.Equal(t, "Unknown", SlotTypeUnknown.String())
	assert.Equal(t, "SlotType(42)", SlotType(42).String())

	assert.Equal(t, "stack trace", ErrorStackTrace.String())
	assert.Equal(t, "compile error", ResultCompileError.String())
	assert.Equal(t, "InterpretResult(7)", InterpretResult(7).String())
}

func TestSlotTypeMatchesWrenOrder(t *testing.T) {
	// WrenType ordering from wren.h.
	assert.EqualValues(t, 0, SlotTypeBool)
	assert.EqualValues(t, 1, SlotTypeNum)
	assert.EqualValues(t, 2, SlotTypeForeign)
	assert.EqualValues(t, 3, SlotTypeList)
	assert.EqualValues(t, 4, SlotTypeMap)
	assert.EqualValues(t, 5, SlotTypeNull)
	assert.EqualValues(t, 6, SlotTypeString)
	assert.EqualValues(t, 7, SlotTypeUnknown)
}
