package wazero

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/cbrownsey/wrenlet/runtime"
)

// hostFunction is one function of the "wrenlet" host module
type hostFunction struct {
	name    string
	fn      api.GoModuleFunc
	params  []api.ValueType
	results []api.ValueType
}

func i32s(n int) []api.ValueType {
	types := make([]api.ValueType, n)
	for i := range types {
		types[i] = api.ValueTypeI32
	}
	return types
}

func (r *wazeroRuntime) hostFunctions() []hostFunction {
	return []hostFunction{
		{hostWrite, r.write, i32s(2), nil},
		{hostError, r.reportError, i32s(5), nil},
		{hostResolveModule, r.resolveModule, i32s(3), i32s(1)},
		{hostLoadModule, r.loadModule, i32s(2), i32s(1)},
		{hostBindForeignClass, r.bindForeignClass, i32s(3), i32s(1)},
		{hostBindForeignMethod, r.bindForeignMethod, i32s(5), i32s(1)},
		{hostForeignMethod, r.foreignMethod, i32s(2), nil},
		{hostForeignAllocate, r.foreignAllocate, i32s(2), nil},
		{hostForeignFinalize, r.foreignFinalize, i32s(1), nil},
	}
}

// instantiateHostModule creates and instantiates the host module with exported functions
func (r *wazeroRuntime) instantiateHostModule(ctx context.Context) (api.Module, error) {
	builder := r.runtime.NewHostModuleBuilder(hostModuleName)
	for _, hf := range r.hostFunctions() {
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(hf.fn, hf.params, hf.results).
			Export(hf.name)
	}
	return builder.Instantiate(ctx)
}

// enterHost binds the calling instance's VM to ctx for nested guest calls
func (r *wazeroRuntime) enterHost(ctx context.Context, mod api.Module) (*vm, func()) {
	v := r.vmFor(mod)
	prev := v.ctx
	v.ctx = ctx
	return v, func() { v.ctx = prev }
}

func mustReadString(mod api.Module, ptr uint64) string {
	s, err := readCString(mod.Memory(), uint32(ptr))
	if err != nil {
		panic(err)
	}
	return s
}

// write(vm, text)
func (r *wazeroRuntime) write(ctx context.Context, mod api.Module, stack []uint64) {
	v, leave := r.enterHost(ctx, mod)
	defer leave()
	runtime.HostOf(v).Write(v, mustReadString(mod, stack[1]))
}

// error(vm, kind, module, line, message)
func (r *wazeroRuntime) reportError(ctx context.Context, mod api.Module, stack []uint64) {
	v, leave := r.enterHost(ctx, mod)
	defer leave()
	kind := runtime.ErrorType(int32(stack[1]))
	line := int(int32(stack[3]))
	runtime.HostOf(v).Error(v, kind, mustReadString(mod, stack[2]), line, mustReadString(mod, stack[4]))
}

// resolve_module(vm, importer, name) -> malloc'd name or NULL, freed by Wren
func (r *wazeroRuntime) resolveModule(ctx context.Context, mod api.Module, stack []uint64) {
	v, leave := r.enterHost(ctx, mod)
	defer leave()
	resolved, ok := runtime.HostOf(v).ResolveModule(v, mustReadString(mod, stack[1]), mustReadString(mod, stack[2]))
	stack[0] = 0
	if ok {
		stack[0] = uint64(v.cstring(resolved))
	}
}

// load_module(vm, name) -> malloc'd source or NULL, freed by the guest
func (r *wazeroRuntime) loadModule(ctx context.Context, mod api.Module, stack []uint64) {
	v, leave := r.enterHost(ctx, mod)
	defer leave()
	source, ok := runtime.HostOf(v).LoadModule(v, mustReadString(mod, stack[1]))
	stack[0] = 0
	if ok {
		stack[0] = uint64(v.cstring(source))
	}
}

// bind_foreign_class(vm, module, className) -> allocator index or -1
func (r *wazeroRuntime) bindForeignClass(ctx context.Context, mod api.Module, stack []uint64) {
	v, leave := r.enterHost(ctx, mod)
	defer leave()
	methods := runtime.HostOf(v).BindForeignClass(v, mustReadString(mod, stack[1]), mustReadString(mod, stack[2]))
	index := int32(-1)
	if methods.Allocate != nil && len(v.classes) < Trampolines {
		v.classes = append(v.classes, methods)
		index = int32(len(v.classes) - 1)
	}
	stack[0] = api.EncodeI32(index)
}

// bind_foreign_method(vm, module, className, isStatic, signature) -> method index or -1
func (r *wazeroRuntime) bindForeignMethod(ctx context.Context, mod api.Module, stack []uint64) {
	v, leave := r.enterHost(ctx, mod)
	defer leave()
	fn := runtime.HostOf(v).BindForeignMethod(v,
		mustReadString(mod, stack[1]), mustReadString(mod, stack[2]), uint32(stack[3]) != 0, mustReadString(mod, stack[4]))
	index := int32(-1)
	if fn != nil && len(v.methods) < Trampolines {
		v.methods = append(v.methods, fn)
		index = int32(len(v.methods) - 1)
	}
	stack[0] = api.EncodeI32(index)
}

// foreign_method(vm, index)
func (r *wazeroRuntime) foreignMethod(ctx context.Context, mod api.Module, stack []uint64) {
	v, leave := r.enterHost(ctx, mod)
	defer leave()
	index := int(int32(stack[1]))
	if index < 0 || index >= len(v.methods) {
		panic(fmt.Sprintf("Bug: foreign method index %d out of range", index))
	}
	v.methods[index](v)
}

// foreign_allocate(vm, index)
func (r *wazeroRuntime) foreignAllocate(ctx context.Context, mod api.Module, stack []uint64) {
	v, leave := r.enterHost(ctx, mod)
	defer leave()
	index := int(int32(stack[1]))
	if index < 0 || index >= len(v.classes) {
		panic(fmt.Sprintf("Bug: foreign class index %d out of range", index))
	}
	class := &v.classes[index]
	prev := v.allocating
	v.allocating = class
	defer func() { v.allocating = prev }()
	class.Allocate(v)
}

// foreign_finalize(object)
func (r *wazeroRuntime) foreignFinalize(_ context.Context, mod api.Module, stack []uint64) {
	v := r.vmFor(mod)
	id := uint32(stack[0])
	obj, ok := v.foreign[id]
	if !ok {
		return
	}
	delete(v.foreign, id)
	if obj.finalize != nil {
		obj.finalize(obj.value)
	}
}
