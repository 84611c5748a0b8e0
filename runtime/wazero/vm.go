package wazero

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/cbrownsey/wrenlet/runtime"
)

// vm is a Wren VM living inside its own guest instance.
type vm struct {
	rt       *wazeroRuntime
	name     string
	instance api.Module
	ptr      uint32
	// ctx is the context of the innermost Interpret or Call, used by the
	// slot accessors invoked from foreign methods.
	ctx      context.Context
	userData any
	fns      map[string]api.Function
	// scratch holds the int out-parameter of wrenGetSlotBytes.
	scratch uint32

	handles map[runtime.Handle]uint32
	nextID  runtime.Handle

	methods     []runtime.ForeignMethodFn
	classes     []runtime.ForeignClassMethods
	allocating  *runtime.ForeignClassMethods
	foreign     map[uint32]*foreignObject
	nextForeign uint32
}

var _ runtime.VM = (*vm)(nil)

// foreignObject is the host side of a foreign instance. The instance's bytes
// hold its id in vm.foreign.
type foreignObject struct {
	value    any
	finalize func(any)
}

func newVM(r *wazeroRuntime, name string, instance api.Module, userData any) *vm {
	fns := make(map[string]api.Function, len(guestExports))
	for _, name := range guestExports {
		fns[name] = instance.ExportedFunction(name)
	}
	return &vm{
		rt:       r,
		name:     name,
		instance: instance,
		ctx:      context.Background(),
		userData: userData,
		fns:      fns,
		handles:  map[runtime.Handle]uint32{},
		foreign:  map[uint32]*foreignObject{},
	}
}

// call invokes a guest export. A trap leaves the guest in an unknown state,
// so it is not recoverable.
func (v *vm) call(name string, params ...uint64) uint64 {
	res, err := v.fns[name].Call(v.ctx, params...)
	if err != nil {
		panic(fmt.Errorf("wasm: %s: %w", name, err))
	}
	if len(res) == 0 {
		return 0
	}
	return res[0]
}

func (v *vm) cstring(s string) uint32 {
	ptr, err := copyStringToWasm(v.ctx, v.instance, s)
	if err != nil {
		panic(err)
	}
	return ptr
}

func (v *vm) free(ptr uint32) {
	freeWasm(v.ctx, v.instance, ptr)
}

// enter switches the context used by nested guest calls for the duration of
// an Interpret or Call.
func (v *vm) enter(ctx context.Context) func() {
	prev := v.ctx
	v.ctx = v.rt.withRuntimeContext(ctx)
	return func() { v.ctx = prev }
}

// guestFailure reports a trap during Interpret or Call as a runtime error
func (v *vm) guestFailure(err error) runtime.InterpretResult {
	runtime.HostOf(v).Error(v, runtime.ErrorRuntime, "", -1, fmt.Sprintf("wasm: %v", err))
	return runtime.ResultRuntimeError
}

func (v *vm) Free() {
	v.call(guestFreeVM, uint64(v.ptr))
	if v.scratch != 0 {
		v.free(v.scratch)
	}
	delete(v.rt.vms, v.name)
	_ = v.instance.Close(v.ctx)
	v.handles = nil
}

func (v *vm) Interpret(ctx context.Context, module, source string) runtime.InterpretResult {
	defer v.enter(ctx)()
	cModule := v.cstring(module)
	defer v.free(cModule)
	cSource := v.cstring(source)
	defer v.free(cSource)

	res, err := v.fns[guestInterpret].Call(v.ctx, uint64(v.ptr), uint64(cModule), uint64(cSource))
	if err != nil {
		return v.guestFailure(err)
	}
	return runtime.InterpretResult(int32(res[0]))
}

func (v *vm) MakeCallHandle(signature string) runtime.Handle {
	cSignature := v.cstring(signature)
	defer v.free(cSignature)
	return v.track(uint32(v.call(guestMakeCallHandle, uint64(v.ptr), uint64(cSignature))))
}

func (v *vm) Call(ctx context.Context, method runtime.Handle) runtime.InterpretResult {
	defer v.enter(ctx)()
	res, err := v.fns[guestCall].Call(v.ctx, uint64(v.ptr), uint64(v.handle(method)))
	if err != nil {
		return v.guestFailure(err)
	}
	return runtime.InterpretResult(int32(res[0]))
}

func (v *vm) ReleaseHandle(h runtime.Handle) {
	v.call(guestReleaseHandle, uint64(v.ptr), uint64(v.handle(h)))
	delete(v.handles, h)
}

func (v *vm) CollectGarbage() { v.call(guestCollectGarbage, uint64(v.ptr)) }

func (v *vm) track(ptr uint32) runtime.Handle {
	v.nextID++
	v.handles[v.nextID] = ptr
	return v.nextID
}

func (v *vm) handle(h runtime.Handle) uint32 {
	ptr, ok := v.handles[h]
	if !ok {
		panic(fmt.Sprintf("wasm: unknown handle %d", h))
	}
	return ptr
}

func (v *vm) EnsureSlots(n int) { v.call(guestEnsureSlots, uint64(v.ptr), uint64(n)) }
func (v *vm) SlotCount() int    { return int(int32(v.call(guestGetSlotCount, uint64(v.ptr)))) }

func (v *vm) SlotType(slot int) runtime.SlotType {
	return runtime.SlotType(int32(v.call(guestGetSlotType, uint64(v.ptr), uint64(slot))))
}

func (v *vm) SlotBool(slot int) bool {
	return uint32(v.call(guestGetSlotBool, uint64(v.ptr), uint64(slot))) != 0
}

func (v *vm) SlotDouble(slot int) float64 {
	return api.DecodeF64(v.call(guestGetSlotDouble, uint64(v.ptr), uint64(slot)))
}

// SlotBytes copies the string out of guest memory.
func (v *vm) SlotBytes(slot int) []byte {
	if v.scratch == 0 {
		ptr, err := copyBytesToWasm(v.ctx, v.instance, make([]byte, 4))
		if err != nil {
			panic(err)
		}
		v.scratch = ptr
	}
	ptr := uint32(v.call(guestGetSlotBytes, uint64(v.ptr), uint64(slot), uint64(v.scratch)))
	length, ok := v.instance.Memory().ReadUint32Le(v.scratch)
	if !ok {
		panic(fmt.Sprintf("wasm: scratch %#x out of range", v.scratch))
	}
	b, err := readBytes(v.instance.Memory(), ptr, length)
	if err != nil {
		panic(err)
	}
	return b
}

func (v *vm) SlotHandle(slot int) runtime.Handle {
	return v.track(uint32(v.call(guestGetSlotHandle, uint64(v.ptr), uint64(slot))))
}

func (v *vm) SlotForeign(slot int) any {
	id := uint32(v.call(guestSlotForeign, uint64(v.ptr), uint64(slot)))
	obj, ok := v.foreign[id]
	if !ok {
		panic(fmt.Sprintf("wasm: unknown foreign object %d", id))
	}
	return obj.value
}

func (v *vm) SetSlotNull(slot int) { v.call(guestSetSlotNull, uint64(v.ptr), uint64(slot)) }

func (v *vm) SetSlotBool(slot int, value bool) {
	var b uint64
	if value {
		b = 1
	}
	v.call(guestSetSlotBool, uint64(v.ptr), uint64(slot), b)
}

func (v *vm) SetSlotDouble(slot int, value float64) {
	v.call(guestSetSlotDouble, uint64(v.ptr), uint64(slot), api.EncodeF64(value))
}

// SetSlotBytes copies value into a new VM string.
func (v *vm) SetSlotBytes(slot int, value []byte) {
	ptr, err := copyBytesToWasm(v.ctx, v.instance, value)
	if err != nil {
		panic(err)
	}
	defer v.free(ptr)
	v.call(guestSetSlotBytes, uint64(v.ptr), uint64(slot), uint64(ptr), uint64(len(value)))
}

func (v *vm) SetSlotHandle(slot int, h runtime.Handle) {
	v.call(guestSetSlotHandle, uint64(v.ptr), uint64(slot), uint64(v.handle(h)))
}

// SetSlotNewForeign stores the id of value in a new foreign instance. Inside
// an allocator the instance gets the finalizer of the class being allocated.
func (v *vm) SetSlotNewForeign(slot, classSlot int, value any) {
	obj := &foreignObject{value: value}
	if v.allocating != nil {
		obj.finalize = v.allocating.Finalize
	}
	v.nextForeign++
	v.foreign[v.nextForeign] = obj
	v.call(guestSetSlotForeign, uint64(v.ptr), uint64(slot), uint64(classSlot), uint64(v.nextForeign))
}

func (v *vm) SetSlotNewList(slot int) { v.call(guestSetSlotNewList, uint64(v.ptr), uint64(slot)) }
func (v *vm) SetSlotNewMap(slot int)  { v.call(guestSetSlotNewMap, uint64(v.ptr), uint64(slot)) }

func (v *vm) ListCount(slot int) int {
	return int(int32(v.call(guestGetListCount, uint64(v.ptr), uint64(slot))))
}

func (v *vm) ListElement(listSlot, index, elementSlot int) {
	v.call(guestGetListElement, uint64(v.ptr), uint64(listSlot), uint64(uint32(int32(index))), uint64(elementSlot))
}

func (v *vm) SetListElement(listSlot, index, elementSlot int) {
	v.call(guestSetListElement, uint64(v.ptr), uint64(listSlot), uint64(uint32(int32(index))), uint64(elementSlot))
}

func (v *vm) InsertInList(listSlot, index, elementSlot int) {
	v.call(guestInsertInList, uint64(v.ptr), uint64(listSlot), uint64(uint32(int32(index))), uint64(elementSlot))
}

func (v *vm) MapCount(slot int) int {
	return int(int32(v.call(guestGetMapCount, uint64(v.ptr), uint64(slot))))
}

func (v *vm) MapContainsKey(mapSlot, keySlot int) bool {
	return uint32(v.call(guestGetMapContains, uint64(v.ptr), uint64(mapSlot), uint64(keySlot))) != 0
}

func (v *vm) MapValue(mapSlot, keySlot, valueSlot int) {
	v.call(guestGetMapValue, uint64(v.ptr), uint64(mapSlot), uint64(keySlot), uint64(valueSlot))
}

func (v *vm) SetMapValue(mapSlot, keySlot, valueSlot int) {
	v.call(guestSetMapValue, uint64(v.ptr), uint64(mapSlot), uint64(keySlot), uint64(valueSlot))
}

func (v *vm) RemoveMapValue(mapSlot, keySlot, removedValueSlot int) {
	v.call(guestRemoveMapValue, uint64(v.ptr), uint64(mapSlot), uint64(keySlot), uint64(removedValueSlot))
}

func (v *vm) GetVariable(module, name string, slot int) {
	cModule, cName := v.cstring(module), v.cstring(name)
	defer v.free(cModule)
	defer v.free(cName)
	v.call(guestGetVariable, uint64(v.ptr), uint64(cModule), uint64(cName), uint64(slot))
}

func (v *vm) HasVariable(module, name string) bool {
	cModule, cName := v.cstring(module), v.cstring(name)
	defer v.free(cModule)
	defer v.free(cName)
	return uint32(v.call(guestHasVariable, uint64(v.ptr), uint64(cModule), uint64(cName))) != 0
}

func (v *vm) HasModule(module string) bool {
	cModule := v.cstring(module)
	defer v.free(cModule)
	return uint32(v.call(guestHasModule, uint64(v.ptr), uint64(cModule))) != 0
}

func (v *vm) AbortFiber(slot int) { v.call(guestAbortFiber, uint64(v.ptr), uint64(slot)) }

func (v *vm) SetUserData(data any) { v.userData = data }
func (v *vm) UserData() any        { return v.userData }
