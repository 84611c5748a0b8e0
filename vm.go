// Package wrenlet is a host facade over the embeddable Wren virtual machine.
//
// A VM owns one native Wren VM. Values cross the boundary through checked
// slots (Slots, Get, Call), diagnostics reported by the VM are returned as
// *CompileError and *RuntimeError, and the native VM lives until the VM and
// every CallHandle and Handle made from it are released. Misuse of the API
// panics with a *ContractViolation.
//
// A VM is not safe for concurrent use.
package wrenlet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cbrownsey/wrenlet/runtime"
	_ "github.com/cbrownsey/wrenlet/runtime/cwren"  // Register libwren runtime
	_ "github.com/cbrownsey/wrenlet/runtime/wazero" // Register Wazero runtime
)

// VM is a Wren virtual machine.
type VM struct {
	share  share
	closed bool
}

// Stats describes the bookkeeping of a VM.
type Stats struct {
	// References counts the VM itself, while open, plus the live CallHandles
	// and Handles.
	References int
	// SlotsAllocated is the largest slot count requested through the VM.
	SlotsAllocated int
	ForeignClasses int
}

// New creates a VM.
func New(ctx context.Context, cfg Config) (*VM, error) {
	cfg.Default()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend, owned := cfg.Backend, false
	if backend == nil {
		rt, err := runtime.NewRuntime(&cfg.Runtime)
		if err != nil {
			return nil, fmt.Errorf("wrenlet: %w", err)
		}
		backend, owned = rt, true
	}

	id := uuid.New()
	h := &header{
		payload: payload{
			userData: cfg.UserData,
			loader:   cfg.Loader,
			output:   cfg.Output,
		},
		id:      id,
		logger:  cfg.Logger.Named("wrenlet").With(zap.Stringer("vm", id)),
		refs:    1,
		foreign: append([]*ForeignClass(nil), cfg.Foreign...),
	}
	native, err := backend.NewVM(ctx, runtime.VMConfig{
		UserData:          h,
		InitialHeapSize:   cfg.Heap.InitialHeapSize,
		MinHeapSize:       cfg.Heap.MinHeapSize,
		HeapGrowthPercent: cfg.Heap.HeapGrowthPercent,
	})
	if err != nil {
		if owned {
			_ = backend.Close(ctx)
		}
		return nil, fmt.Errorf("wrenlet: %w", err)
	}
	h.native = native
	if owned {
		h.backend = backend
	}
	h.logger.Debug("vm created", zap.Int("foreign_classes", len(h.foreign)))

	return &VM{share: share{h: h}}, nil
}

// header returns the live header, panicking after Close.
func (vm *VM) header(op string) *header {
	if vm.closed {
		panic(violation(vm.share.h, op, "vm used after Close"))
	}
	return vm.share.h
}

// enter prepares the VM for Interpret or Call: previous Slots are
// invalidated and the pending error is cleared.
func (vm *VM) enter(op string) *Slots {
	h := vm.header(op)
	if h.foreignDepth > 0 {
		panic(violation(h, op, "cannot reenter the vm from a foreign method"))
	}
	h.checkRunning(op)
	h.pending = nil
	return newSlots(h)
}

// ID returns the identifier the VM is logged with.
func (vm *VM) ID() uuid.UUID { return vm.share.h.id }

// UserData returns Config.UserData.
func (vm *VM) UserData() any { return vm.header("UserData").userData }

// Logger returns the VM's logger.
func (vm *VM) Logger() *zap.Logger { return vm.share.h.logger }

// Close releases the VM's own claim. The native VM is freed once every
// CallHandle and Handle is released too; errors from closing the payload
// are returned when that happens here. Closing twice returns ErrClosed.
func (vm *VM) Close() error {
	if vm.closed {
		return ErrClosed
	}
	vm.share.h.checkRunning("Close")
	vm.closed = true
	h := vm.share.h
	vm.share.release("Close")
	if h.refs == 0 {
		return h.teardownErr
	}
	h.logger.Debug("vm closed with live handles", zap.Int("handles", h.refs))
	return nil
}

// Stats returns the VM's bookkeeping counters.
func (vm *VM) Stats() Stats {
	h := vm.share.h
	return Stats{
		References:     h.refs,
		SlotsAllocated: h.slotsAllocated,
		ForeignClasses: len(h.foreign),
	}
}

// Slots returns access to the slot array, valid until the next Interpret,
// Call or Close.
func (vm *VM) Slots() *Slots {
	h := vm.header("Slots")
	if h.foreignDepth > 0 {
		panic(violation(h, "Slots", "use the Slots passed to the foreign method"))
	}
	h.checkRunning("Slots")
	return newSlots(h)
}

// Interpret runs source as module. Compile and runtime errors are returned as
// *CompileError and *RuntimeError.
func (vm *VM) Interpret(ctx context.Context, module, source string) error {
	vm.enter("Interpret")
	h := vm.share.h
	result := h.run(func() runtime.InterpretResult {
		return h.native.Interpret(ctx, module, source)
	})
	h.slotGen++
	return h.drain(result, module)
}

// HasModule reports whether module has been loaded.
func (vm *VM) HasModule(module string) bool {
	return vm.header("HasModule").native.HasModule(module)
}

// HasVariable reports whether module defines a top level variable name. It
// is false when module is not loaded.
func (vm *VM) HasVariable(module, name string) bool {
	h := vm.header("HasVariable")
	return h.native.HasModule(module) && h.native.HasVariable(module, name)
}

// GetVariable reads a top level variable of module as T. It returns
// ErrUnknownVariable when the module is not loaded or has no such variable.
func GetVariable[T Decodable](vm *VM, module, name string) (T, error) {
	var zero T
	if !vm.HasVariable(module, name) {
		return zero, fmt.Errorf("wrenlet: %s.%s: %w", module, name, ErrUnknownVariable)
	}
	slots := vm.Slots()
	slots.Ensure(1)
	slots.h.native.GetVariable(module, name, 0)
	return Get[T](slots, 0)
}

// CollectGarbage runs a full garbage collection.
func (vm *VM) CollectGarbage() {
	vm.header("CollectGarbage").native.CollectGarbage()
}
