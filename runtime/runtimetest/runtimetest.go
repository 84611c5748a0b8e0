// Package runtimetest provides an in-memory runtime.Runtime for tests.
//
// The VM keeps a real slot array, handle table, module variables and foreign
// objects, and delivers callbacks through runtime.HostOf like the native
// backends. It cannot run Wren source: Interpret and Call are scripted with
// Go functions. Misuse of the ABI (reading past the slot count, a wrong typed
// accessor, releasing a handle twice, freeing twice) panics so tests catch
// callers that break the contract.
package runtimetest

import (
	"context"
	"fmt"
	"math"

	"github.com/cbrownsey/wrenlet/runtime"
)

// InterpretFunc scripts VM.Interpret.
type InterpretFunc func(vm *VM, module, source string) runtime.InterpretResult

// MethodFunc scripts a method invoked through Call. The receiver is in slot 0
// and the arguments follow; the result must be left in slot 0.
type MethodFunc func(vm *VM) runtime.InterpretResult

// Runtime creates in-memory VMs.
type Runtime struct {
	// Interpreter and Methods are copied into every new VM.
	Interpreter InterpretFunc
	Methods     map[string]MethodFunc

	VMs    []*VM
	closed int
}

var _ runtime.Runtime = (*Runtime)(nil)

// NewRuntime returns an empty runtime.
func NewRuntime() *Runtime {
	return &Runtime{Methods: map[string]MethodFunc{}}
}

// NewVM implements runtime.Runtime.
func (r *Runtime) NewVM(_ context.Context, cfg runtime.VMConfig) (runtime.VM, error) {
	if r.closed > 0 {
		return nil, runtime.ErrRuntimeClosed
	}
	vm := &VM{
		Config:      cfg,
		Interpreter: r.Interpreter,
		Methods:     map[string]MethodFunc{},
		userData:    cfg.UserData,
		modules:     map[string]map[string]Value{},
		handles:     map[runtime.Handle]*handleEntry{},
	}
	for sig, fn := range r.Methods {
		vm.Methods[sig] = fn
	}
	r.VMs = append(r.VMs, vm)
	return vm, nil
}

// Close implements runtime.Runtime.
func (r *Runtime) Close(context.Context) error {
	r.closed++
	return nil
}

// Closed returns how many times Close was called.
func (r *Runtime) Closed() int { return r.closed }

type handleEntry struct {
	signature string
	value     Value
}

// VM is an in-memory implementation of runtime.VM.
type VM struct {
	Config      runtime.VMConfig
	Interpreter InterpretFunc
	Methods     map[string]MethodFunc

	userData any
	slots    []Value
	modules  map[string]map[string]Value
	handles  map[runtime.Handle]*handleEntry
	nextID   runtime.Handle
	live     []*Object
	aborted  *Value

	freed     int
	gcRuns    int
	finalized int
}

var _ runtime.VM = (*VM)(nil)

// Freed returns how many times Free was called.
func (vm *VM) Freed() int { return vm.freed }

// GCRuns returns how many times CollectGarbage was called.
func (vm *VM) GCRuns() int { return vm.gcRuns }

// Finalized returns how many foreign objects were finalized.
func (vm *VM) Finalized() int { return vm.finalized }

// LiveHandles returns the number of handles not yet released.
func (vm *VM) LiveHandles() int { return len(vm.handles) }

// Free implements runtime.VM. Live foreign objects are finalized.
func (vm *VM) Free() {
	if vm.freed > 0 {
		panic("runtimetest: vm freed twice")
	}
	vm.freed++
	for _, obj := range vm.live {
		vm.finalizeObject(obj)
	}
	vm.live = nil
	vm.slots = nil
}

func (vm *VM) checkAlive() {
	if vm.freed > 0 {
		panic("runtimetest: vm used after free")
	}
}

// Interpret implements runtime.VM.
func (vm *VM) Interpret(_ context.Context, module, source string) runtime.InterpretResult {
	vm.checkAlive()
	vm.slots = nil
	result := runtime.ResultSuccess
	if vm.Interpreter != nil {
		result = vm.Interpreter(vm, module, source)
	}
	if result == runtime.ResultSuccess {
		vm.DefineModule(module)
	}
	vm.slots = nil
	return result
}

// MakeCallHandle implements runtime.VM.
func (vm *VM) MakeCallHandle(signature string) runtime.Handle {
	vm.checkAlive()
	return vm.newHandle(&handleEntry{signature: signature})
}

// Call implements runtime.VM. The method is looked up by the handle's
// signature in Methods; an unknown method is reported as a runtime error the
// way Wren reports a receiver that does not implement it.
func (vm *VM) Call(_ context.Context, method runtime.Handle) runtime.InterpretResult {
	vm.checkAlive()
	entry := vm.handle(method)
	if entry.signature == "" {
		panic("runtimetest: call with a value handle")
	}
	arity, err := runtime.SignatureArity(entry.signature)
	if err != nil {
		panic("runtimetest: " + err.Error())
	}
	if len(vm.slots) < arity+1 {
		panic(fmt.Sprintf("runtimetest: call of %s with %d slots", entry.signature, len(vm.slots)))
	}
	fn, ok := vm.Methods[entry.signature]
	if !ok {
		vm.ReportRuntimeError(fmt.Sprintf("%s does not implement '%s'.", describe(vm.slots[0]), entry.signature))
		vm.slots = vm.slots[:1]
		return runtime.ResultRuntimeError
	}
	result := fn(vm)
	if len(vm.slots) > 1 {
		vm.slots = vm.slots[:1]
	}
	return result
}

// ReleaseHandle implements runtime.VM.
func (vm *VM) ReleaseHandle(h runtime.Handle) {
	vm.handle(h)
	delete(vm.handles, h)
}

// CollectGarbage implements runtime.VM.
func (vm *VM) CollectGarbage() {
	vm.checkAlive()
	vm.gcRuns++
}

// EnsureSlots implements runtime.VM. New slots hold Garbage, as libwren
// leaves whatever was on its stack.
func (vm *VM) EnsureSlots(n int) {
	vm.checkAlive()
	for len(vm.slots) < n {
		vm.slots = append(vm.slots, Garbage())
	}
}

// SlotCount implements runtime.VM.
func (vm *VM) SlotCount() int { return len(vm.slots) }

// SlotType implements runtime.VM.
func (vm *VM) SlotType(slot int) runtime.SlotType { return vm.Slot(slot).Type }

// SlotBool implements runtime.VM.
func (vm *VM) SlotBool(slot int) bool { return vm.typed(slot, runtime.SlotTypeBool).Bool }

// SlotDouble implements runtime.VM.
func (vm *VM) SlotDouble(slot int) float64 { return vm.typed(slot, runtime.SlotTypeNum).Num }

// SlotBytes implements runtime.VM. The returned slice aliases VM memory.
func (vm *VM) SlotBytes(slot int) []byte { return vm.typed(slot, runtime.SlotTypeString).Bytes }

// SlotHandle implements runtime.VM.
func (vm *VM) SlotHandle(slot int) runtime.Handle {
	return vm.newHandle(&handleEntry{value: vm.Slot(slot)})
}

// SlotForeign implements runtime.VM.
func (vm *VM) SlotForeign(slot int) any {
	return vm.typed(slot, runtime.SlotTypeForeign).Ref.Foreign
}

// SetSlotNull implements runtime.VM.
func (vm *VM) SetSlotNull(slot int) { vm.SetSlot(slot, Null()) }

// SetSlotBool implements runtime.VM.
func (vm *VM) SetSlotBool(slot int, value bool) { vm.SetSlot(slot, Bool(value)) }

// SetSlotDouble implements runtime.VM.
func (vm *VM) SetSlotDouble(slot int, value float64) { vm.SetSlot(slot, Num(value)) }

// SetSlotBytes implements runtime.VM. The bytes are copied.
func (vm *VM) SetSlotBytes(slot int, value []byte) {
	vm.SetSlot(slot, Value{Type: runtime.SlotTypeString, Bytes: append([]byte{}, value...)})
}

// SetSlotHandle implements runtime.VM.
func (vm *VM) SetSlotHandle(slot int, h runtime.Handle) {
	entry := vm.handle(h)
	if entry.signature != "" {
		panic("runtimetest: call handle stored in a slot")
	}
	vm.SetSlot(slot, entry.value)
}

// SetSlotNewForeign implements runtime.VM.
func (vm *VM) SetSlotNewForeign(slot, classSlot int, value any) {
	class := vm.Slot(classSlot)
	if class.Ref == nil || !class.Ref.Static {
		panic(fmt.Sprintf("runtimetest: slot %d does not hold a class", classSlot))
	}
	obj := &Object{Class: class.Ref.Class, Foreign: value, finalize: class.Ref.finalize}
	vm.live = append(vm.live, obj)
	vm.SetSlot(slot, Value{Type: runtime.SlotTypeForeign, Ref: obj})
}

// SetSlotNewList implements runtime.VM.
func (vm *VM) SetSlotNewList(slot int) { vm.SetSlot(slot, List()) }

// SetSlotNewMap implements runtime.VM.
func (vm *VM) SetSlotNewMap(slot int) { vm.SetSlot(slot, Map()) }

// ListCount implements runtime.VM.
func (vm *VM) ListCount(slot int) int { return len(vm.typed(slot, runtime.SlotTypeList).Ref.List) }

// ListElement implements runtime.VM.
func (vm *VM) ListElement(listSlot, index, elementSlot int) {
	list := vm.typed(listSlot, runtime.SlotTypeList).Ref
	vm.SetSlot(elementSlot, list.List[listIndex(list, index, false)])
}

// SetListElement implements runtime.VM.
func (vm *VM) SetListElement(listSlot, index, elementSlot int) {
	list := vm.typed(listSlot, runtime.SlotTypeList).Ref
	list.List[listIndex(list, index, false)] = vm.Slot(elementSlot)
}

// InsertInList implements runtime.VM.
func (vm *VM) InsertInList(listSlot, index, elementSlot int) {
	list := vm.typed(listSlot, runtime.SlotTypeList).Ref
	i := listIndex(list, index, true)
	elem := vm.Slot(elementSlot)
	list.List = append(list.List, Value{})
	copy(list.List[i+1:], list.List[i:])
	list.List[i] = elem
}

func listIndex(list *Object, index int, insert bool) int {
	n := len(list.List)
	if insert {
		n++
	}
	if index < 0 {
		index += n
	}
	if index < 0 || index >= n {
		panic(fmt.Sprintf("runtimetest: list index %d out of bounds", index))
	}
	return index
}

// MapCount implements runtime.VM.
func (vm *VM) MapCount(slot int) int { return len(vm.typed(slot, runtime.SlotTypeMap).Ref.Keys) }

// MapContainsKey implements runtime.VM.
func (vm *VM) MapContainsKey(mapSlot, keySlot int) bool {
	return vm.typed(mapSlot, runtime.SlotTypeMap).Ref.indexOfKey(vm.Slot(keySlot)) >= 0
}

// MapValue implements runtime.VM. A missing key yields null.
func (vm *VM) MapValue(mapSlot, keySlot, valueSlot int) {
	m := vm.typed(mapSlot, runtime.SlotTypeMap).Ref
	if i := m.indexOfKey(vm.Slot(keySlot)); i >= 0 {
		vm.SetSlot(valueSlot, m.Values[i])
		return
	}
	vm.SetSlot(valueSlot, Null())
}

// SetMapValue implements runtime.VM.
func (vm *VM) SetMapValue(mapSlot, keySlot, valueSlot int) {
	m := vm.typed(mapSlot, runtime.SlotTypeMap).Ref
	key, value := vm.Slot(keySlot), vm.Slot(valueSlot)
	if i := m.indexOfKey(key); i >= 0 {
		m.Values[i] = value
		return
	}
	m.Keys = append(m.Keys, key)
	m.Values = append(m.Values, value)
}

// RemoveMapValue implements runtime.VM.
func (vm *VM) RemoveMapValue(mapSlot, keySlot, removedValueSlot int) {
	m := vm.typed(mapSlot, runtime.SlotTypeMap).Ref
	i := m.indexOfKey(vm.Slot(keySlot))
	if i < 0 {
		vm.SetSlot(removedValueSlot, Null())
		return
	}
	removed := m.Values[i]
	m.Keys = append(m.Keys[:i], m.Keys[i+1:]...)
	m.Values = append(m.Values[:i], m.Values[i+1:]...)
	vm.SetSlot(removedValueSlot, removed)
}

// GetVariable implements runtime.VM.
func (vm *VM) GetVariable(module, name string, slot int) {
	vars, ok := vm.modules[module]
	if !ok {
		panic(fmt.Sprintf("runtimetest: module %q is not loaded", module))
	}
	v, ok := vars[name]
	if !ok {
		panic(fmt.Sprintf("runtimetest: module %q has no variable %q", module, name))
	}
	vm.SetSlot(slot, v)
}

// HasVariable implements runtime.VM. Like Wren it requires the module to be
// loaded.
func (vm *VM) HasVariable(module, name string) bool {
	vars, ok := vm.modules[module]
	if !ok {
		panic(fmt.Sprintf("runtimetest: module %q is not loaded", module))
	}
	_, ok = vars[name]
	return ok
}

// HasModule implements runtime.VM.
func (vm *VM) HasModule(module string) bool {
	_, ok := vm.modules[module]
	return ok
}

// AbortFiber implements runtime.VM.
func (vm *VM) AbortFiber(slot int) {
	v := vm.Slot(slot)
	vm.aborted = &v
}

// SetUserData implements runtime.VM.
func (vm *VM) SetUserData(data any) { vm.userData = data }

// UserData implements runtime.VM.
func (vm *VM) UserData() any { return vm.userData }

// Slot returns the value in slot, panicking past the slot count.
func (vm *VM) Slot(slot int) Value {
	vm.checkAlive()
	if slot < 0 || slot >= len(vm.slots) {
		panic(fmt.Sprintf("runtimetest: slot %d out of range (%d slots)", slot, len(vm.slots)))
	}
	return vm.slots[slot]
}

// SetSlot stores v in slot, panicking past the slot count.
func (vm *VM) SetSlot(slot int, v Value) {
	vm.Slot(slot)
	vm.slots[slot] = v
}

func (vm *VM) typed(slot int, want runtime.SlotType) Value {
	v := vm.Slot(slot)
	if v.Type != want {
		panic(fmt.Sprintf("runtimetest: slot %d holds %s, read as %s", slot, v.Type, want))
	}
	return v
}

func (vm *VM) newHandle(entry *handleEntry) runtime.Handle {
	vm.nextID++
	vm.handles[vm.nextID] = entry
	return vm.nextID
}

func (vm *VM) handle(h runtime.Handle) *handleEntry {
	entry, ok := vm.handles[h]
	if !ok {
		panic(fmt.Sprintf("runtimetest: unknown or released handle %d", h))
	}
	return entry
}

// DefineModule marks module as loaded.
func (vm *VM) DefineModule(module string) {
	if _, ok := vm.modules[module]; !ok {
		vm.modules[module] = map[string]Value{}
	}
}

// Define sets a top level variable, loading the module if needed.
func (vm *VM) Define(module, name string, v Value) {
	vm.DefineModule(module)
	vm.modules[module][name] = v
}

// Variable returns a top level variable.
func (vm *VM) Variable(module, name string) (Value, bool) {
	v, ok := vm.modules[module][name]
	return v, ok
}

// Print delivers text to the host's Write callback.
func (vm *VM) Print(text string) {
	runtime.HostOf(vm).Write(vm, text)
}

// ReportCompileError delivers a compile error to the host.
func (vm *VM) ReportCompileError(module string, line int, message string) {
	runtime.HostOf(vm).Error(vm, runtime.ErrorCompile, module, line, message)
}

// Frame is one stack trace entry reported after a runtime error.
type Frame struct {
	Module string
	Line   int
	Method string
}

// ReportRuntimeError delivers a runtime error followed by its stack trace
// frames, in order.
func (vm *VM) ReportRuntimeError(message string, frames ...Frame) {
	host := runtime.HostOf(vm)
	host.Error(vm, runtime.ErrorRuntime, "", -1, message)
	for _, f := range frames {
		host.Error(vm, runtime.ErrorStackTrace, f.Module, f.Line, f.Method)
	}
}

// Import resolves and loads a module through the host the way an import
// statement does. It returns false, after reporting a runtime error, when the
// module cannot be resolved or loaded.
func (vm *VM) Import(importer, name string) (string, string, bool) {
	host := runtime.HostOf(vm)
	resolved, ok := host.ResolveModule(vm, importer, name)
	if !ok {
		vm.ReportRuntimeError(fmt.Sprintf("Could not resolve module '%s' imported from '%s'.", name, importer))
		return "", "", false
	}
	source, ok := host.LoadModule(vm, resolved)
	if !ok {
		vm.ReportRuntimeError(fmt.Sprintf("Could not load module '%s'.", resolved))
		return resolved, "", false
	}
	return resolved, source, true
}

// NewForeign instantiates a foreign class the way a constructor call does:
// the class is bound through the host, its allocator runs with the class in
// slot 0 and args in the following slots, and the new object is returned.
func (vm *VM) NewForeign(module, class string, args ...Value) (Value, runtime.InterpretResult) {
	methods := runtime.HostOf(vm).BindForeignClass(vm, module, class)
	if methods.Allocate == nil {
		vm.ReportRuntimeError(fmt.Sprintf("Class '%s' does not have an allocator.", class))
		return Null(), runtime.ResultRuntimeError
	}
	classValue := Class(class)
	classValue.Ref.finalize = methods.Finalize
	vm.slots = nil
	vm.EnsureSlots(len(args) + 1)
	vm.slots[0] = classValue
	copy(vm.slots[1:], args)
	vm.aborted = nil
	methods.Allocate(vm)
	if result := vm.checkAbort(); result != runtime.ResultSuccess {
		return Null(), result
	}
	obj := vm.Slot(0)
	if obj.Type != runtime.SlotTypeForeign {
		panic("runtimetest: allocator did not create a foreign object")
	}
	return obj, runtime.ResultSuccess
}

// CallForeign invokes a foreign method bound through the host with receiver
// in slot 0 and args in the following slots, and returns slot 0.
func (vm *VM) CallForeign(module, class string, isStatic bool, signature string, receiver Value, args ...Value) (Value, runtime.InterpretResult) {
	fn := runtime.HostOf(vm).BindForeignMethod(vm, module, class, isStatic, signature)
	if fn == nil {
		vm.ReportRuntimeError(fmt.Sprintf("Could not find foreign method '%s' for class %s in module '%s'.", signature, class, module))
		return Null(), runtime.ResultRuntimeError
	}
	vm.slots = nil
	vm.EnsureSlots(len(args) + 1)
	vm.slots[0] = receiver
	copy(vm.slots[1:], args)
	vm.aborted = nil
	fn(vm)
	if result := vm.checkAbort(); result != runtime.ResultSuccess {
		return Null(), result
	}
	return vm.Slot(0), runtime.ResultSuccess
}

func (vm *VM) checkAbort() runtime.InterpretResult {
	if vm.aborted == nil {
		return runtime.ResultSuccess
	}
	v := *vm.aborted
	vm.aborted = nil
	msg := describe(v)
	if v.Type == runtime.SlotTypeString {
		msg = string(v.Bytes)
	}
	vm.ReportRuntimeError(msg)
	return runtime.ResultRuntimeError
}

// Collect finalizes the foreign object v as if the collector reclaimed it.
func (vm *VM) Collect(v Value) {
	if v.Type != runtime.SlotTypeForeign {
		panic("runtimetest: only foreign objects can be collected")
	}
	for i, obj := range vm.live {
		if obj == v.Ref {
			vm.live = append(vm.live[:i], vm.live[i+1:]...)
			vm.finalizeObject(obj)
			return
		}
	}
	panic("runtimetest: foreign object already collected")
}

func (vm *VM) finalizeObject(obj *Object) {
	vm.finalized++
	if obj.finalize != nil {
		obj.finalize(obj.Foreign)
	}
}

func describe(v Value) string {
	switch v.Type {
	case runtime.SlotTypeNull:
		return "null"
	case runtime.SlotTypeBool:
		return fmt.Sprint(v.Bool)
	case runtime.SlotTypeNum:
		if v.Num == math.Trunc(v.Num) && math.Abs(v.Num) < 1e15 {
			return fmt.Sprintf("%d", int64(v.Num))
		}
		return fmt.Sprint(v.Num)
	case runtime.SlotTypeString:
		return string(v.Bytes)
	}
	if v.Ref != nil && v.Ref.Static {
		return v.Ref.Class + " metaclass"
	}
	if v.Ref != nil {
		return "instance of " + v.Ref.Class
	}
	return v.Type.String()
}
