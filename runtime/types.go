package runtime

import "fmt"

// SlotType is the type tag of a value stored in a slot. The numeric values
// match WrenType in wren.h.
type SlotType int32

const (
	SlotTypeBool SlotType = iota
	SlotTypeNum
	SlotTypeForeign
	SlotTypeList
	SlotTypeMap
	SlotTypeNull
	SlotTypeString
	SlotTypeUnknown
)

// String returns the string representation of the slot type
func (t SlotType) String() string {
	switch t {
	case SlotTypeBool:
		return "Bool"
	case SlotTypeNum:
		return "Num"
	case SlotTypeForeign:
		return "Foreign"
	case SlotTypeList:
		return "List"
	case SlotTypeMap:
		return "Map"
	case SlotTypeNull:
		return "Null"
	case SlotTypeString:
		return "String"
	case SlotTypeUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("SlotType(%d)", int32(t))
	}
}

// ErrorType is the kind of diagnostic reported through Host.Error. The numeric
// values match WrenErrorType.
type ErrorType int32

const (
	ErrorCompile ErrorType = iota
	ErrorRuntime
	ErrorStackTrace
)

func (t ErrorType) String() string {
	switch t {
	case ErrorCompile:
		return "compile"
	case ErrorRuntime:
		return "runtime"
	case ErrorStackTrace:
		return "stack trace"
	default:
		return fmt.Sprintf("ErrorType(%d)", int32(t))
	}
}

// InterpretResult is the tri-state outcome of Interpret and Call. The numeric
// values match WrenInterpretResult.
type InterpretResult int32

const (
	ResultSuccess InterpretResult = iota
	ResultCompileError
	ResultRuntimeError
)

func (r InterpretResult) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultCompileError:
		return "compile error"
	case ResultRuntimeError:
		return "runtime error"
	default:
		return fmt.Sprintf("InterpretResult(%d)", int32(r))
	}
}

// Handle is an opaque reference to a compiled call signature or a live VM
// value. The zero Handle is never valid.
type Handle uintptr

// ForeignMethodFn implements a foreign method. Arguments are read from the
// VM's slots and the result is written to slot 0.
type ForeignMethodFn func(vm VM)

// ForeignClassMethods are the allocator and finalizer of a foreign class. A
// nil Allocate makes the VM raise a runtime error when the class is
// instantiated.
type ForeignClassMethods struct {
	// Allocate is called with the class in slot 0 and the constructor
	// arguments in the following slots. It must call SetSlotNewForeign on
	// slot 0.
	Allocate func(vm VM)
	// Finalize receives the host value of a collected foreign object. It
	// must not call back into the VM.
	Finalize func(value any)
}

// VMConfig holds the parameters applied when a VM is created
type VMConfig struct {
	// UserData is installed as the VM's user data before any callback runs.
	// Callbacks are only delivered when it implements Host.
	UserData any

	// Heap tuning, zero keeps the VM defaults.
	InitialHeapSize   int
	MinHeapSize       int
	HeapGrowthPercent int
}

const (
	// RuntimeTypeCWren is the cgo backend linking libwren.
	RuntimeTypeCWren = "cwren"
	// RuntimeTypeWazero is the backend running a Wren guest compiled to wasm.
	RuntimeTypeWazero = "wazero"

	RuntimeModeInterpreter = "interpreter"
	RuntimeModeCompiled    = "compiled"
)

// Config selects and configures a backend
type Config struct {
	// Type is the registered name of the backend.
	Type string `mapstructure:"type"`

	// Path to the Wren guest module, only used by the wazero backend.
	Path string `mapstructure:"path"`

	// Mode is the wazero execution mode: interpreter or compiled.
	Mode string `mapstructure:"mode"`
}

// Default fills unset fields
func (cfg *Config) Default() {
	if cfg.Type == "" {
		cfg.Type = RuntimeTypeCWren
	}
	if cfg.Type == RuntimeTypeWazero && cfg.Mode == "" {
		cfg.Mode = RuntimeModeInterpreter
	}
}

// Validate validates the configuration
func (cfg *Config) Validate() error {
	switch cfg.Mode {
	case "", RuntimeModeInterpreter, RuntimeModeCompiled:
	default:
		return fmt.Errorf("invalid runtime mode %q: %w", cfg.Mode, ErrInvalidConfiguration)
	}
	if cfg.Type == RuntimeTypeWazero && cfg.Path == "" {
		return fmt.Errorf("path is required for the %s runtime: %w", RuntimeTypeWazero, ErrInvalidConfiguration)
	}
	return nil
}
