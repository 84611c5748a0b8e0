// Package wazero implements runtime.Runtime on top of a Wren guest compiled to
// WebAssembly. The guest is built from the sources under guest/ and exports
// the Wren C API together with malloc, free and its memory. Callbacks reach
// the host through the imported "wrenlet" module.
package wazero

import (
	"context"
	"fmt"
	"os"

	"github.com/stealthrocket/wasi-go"
	wasigo "github.com/stealthrocket/wasi-go/imports"
	"github.com/stealthrocket/wasi-go/imports/wasi_snapshot_preview1"
	"github.com/stealthrocket/wazergo"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/cbrownsey/wrenlet/runtime"
)

const (
	// guestExportMemory is the name of the memory export in the guest module
	guestExportMemory = "memory"
)

// wazeroRuntime implements runtime.Runtime using Wazero. Every VM gets its
// own instance of the compiled guest, so guest memory is never shared.
type wazeroRuntime struct {
	runtime          wazero.Runtime
	module           wazero.CompiledModule
	sys              wasi.System
	wasiP1HostModule *wasi_snapshot_preview1.Module

	vms    map[string]*vm
	nextID int
	closed bool
}

var _ runtime.Runtime = (*wazeroRuntime)(nil)

// NewRuntime compiles the guest binary and prepares the WASI and wrenlet host
// modules it imports.
func NewRuntime(ctx context.Context, binary []byte, mode string) (runtime.Runtime, error) {
	r := &wazeroRuntime{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeConfig(mode)),
		vms:     map[string]*vm{},
	}

	compiled, err := r.runtime.CompileModule(ctx, binary)
	if err != nil {
		r.runtime.Close(ctx)
		return nil, fmt.Errorf("wazero compile error: %v: %w", err, runtime.ErrModuleCompileFailed)
	}
	if err := validateGuest(compiled); err != nil {
		r.runtime.Close(ctx)
		return nil, err
	}
	r.module = compiled

	// Setup WASI
	ctx, sys, err := wasigo.NewBuilder().
		WithEnv(os.Environ()...).
		Instantiate(ctx, r.runtime)
	if err != nil {
		r.runtime.Close(ctx)
		return nil, fmt.Errorf("wasi instantiation failed: %w", err)
	}
	r.sys = sys

	// Extract the wasi host module instance from the context as a workaround
	// to avoid panic when calling wasi functions with different context than the one used to instantiate the host module.
	wasiP1HostModule, ok := moduleInstanceFor[*wasi_snapshot_preview1.Module](ctx)
	if !ok {
		r.close(ctx)
		return nil, fmt.Errorf("failed to retrieve wasi host module instance: %w", runtime.ErrInvalidConfiguration)
	}
	r.wasiP1HostModule = wasiP1HostModule

	if _, err := r.instantiateHostModule(ctx); err != nil {
		r.close(ctx)
		return nil, fmt.Errorf("host module instantiation failed: %w", err)
	}
	return r, nil
}

// validateGuest checks the exports the backend relies on
func validateGuest(compiled wazero.CompiledModule) error {
	if _, ok := compiled.ExportedMemories()[guestExportMemory]; !ok {
		return fmt.Errorf("wasm: guest doesn't export memory[%s]: %w", guestExportMemory, runtime.ErrMemoryExportNotFound)
	}
	exported := compiled.ExportedFunctions()
	for _, name := range guestExports {
		if _, ok := exported[name]; !ok {
			return fmt.Errorf("wasm: guest doesn't export %s: %w", name, runtime.ErrFunctionNotExported)
		}
	}
	return nil
}

// NewVM instantiates the guest and creates a Wren VM inside it
func (r *wazeroRuntime) NewVM(ctx context.Context, cfg runtime.VMConfig) (runtime.VM, error) {
	if r.closed {
		return nil, runtime.ErrRuntimeClosed
	}
	r.nextID++
	name := fmt.Sprintf("wren-%d", r.nextID)

	ctx = r.withRuntimeContext(ctx)
	config := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions("_initialize"). // reactor module
		WithStdout(os.Stdout).
		WithStderr(os.Stderr)

	instance, err := r.runtime.InstantiateModule(ctx, r.module, config)
	if err != nil {
		return nil, fmt.Errorf("guest module instantiation failed: %v: %w", err, runtime.ErrModuleInstantiateFailed)
	}

	v := newVM(r, name, instance, cfg.UserData)
	v.ctx = ctx
	r.vms[name] = v

	res, err := instance.ExportedFunction(guestNewVM).Call(ctx,
		uint64(cfg.InitialHeapSize), uint64(cfg.MinHeapSize), uint64(cfg.HeapGrowthPercent))
	if err != nil || uint32(res[0]) == 0 {
		delete(r.vms, name)
		instance.Close(ctx)
		return nil, fmt.Errorf("wasm: %s failed: %v: %w", guestNewVM, err, runtime.ErrVMCreateFailed)
	}
	v.ptr = uint32(res[0])
	return v, nil
}

// Close closes the runtime and releases all resources
func (r *wazeroRuntime) Close(ctx context.Context) error {
	if r.closed {
		return nil
	}
	return r.close(ctx)
}

func (r *wazeroRuntime) close(ctx context.Context) error {
	r.closed = true
	var sysErr error
	if r.sys != nil {
		sysErr = r.sys.Close(ctx)
	}
	if err := r.runtime.Close(ctx); err != nil {
		return err
	}
	return sysErr
}

// withRuntimeContext returns a context configured for calls into the guest
func (r *wazeroRuntime) withRuntimeContext(ctx context.Context) context.Context {
	if r.wasiP1HostModule == nil {
		return ctx
	}
	return withModuleInstance(ctx, r.wasiP1HostModule)
}

// vmFor returns the VM hosted by the calling guest instance
func (r *wazeroRuntime) vmFor(mod api.Module) *vm {
	v, ok := r.vms[mod.Name()]
	if !ok {
		panic(fmt.Sprintf("Bug: host call from unknown guest instance %q", mod.Name()))
	}
	return v
}

// moduleInstanceFor returns the module instance from the context that contains the internal
// state required for WASI host functions.
// NOTE: wasi-go returns context containing internal state when initializing the host module,
// and the same context is required when calling wasi functions exposed by wasi-go.
// This is a kind of workaround to avoid panic when calling
// wasi functions with different context than the one used to instantiate the host module.
func moduleInstanceFor[T wazergo.Module](ctx context.Context) (res T, ok bool) {
	res, ok = ctx.Value((*wazergo.ModuleInstance[T])(nil)).(T)
	return
}

// withModuleInstance returns a Go context inheriting from ctx and containing the
// state needed for module instantiated from wazero host module to properly bind
// their methods to their receiver (e.g. the module instance).
func withModuleInstance[T wazergo.Module](ctx context.Context, instance T) context.Context {
	return context.WithValue(ctx, (*wazergo.ModuleInstance[T])(nil), instance)
}
