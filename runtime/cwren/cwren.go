//go:build cgo && wren

// Package cwren implements runtime.Runtime by linking libwren through cgo.
//
// The package is only built with the wren build tag and a C toolchain able to
// find wren.h and libwren:
//
//	CGO_CFLAGS=-I/path/to/wren/src/include CGO_LDFLAGS=-L/path/to/wren/lib go build -tags wren
package cwren

/*
#cgo LDFLAGS: -lwren -lm
#include <stdint.h>
#include <stdlib.h>
#include <string.h>
#include <wren.h>

extern void wrenletWrite(WrenVM* vm, char* text);
extern void wrenletError(WrenVM* vm, int kind, char* module, int line, char* message);
extern char* wrenletResolveModule(WrenVM* vm, char* importer, char* name);
extern char* wrenletLoadModule(WrenVM* vm, char* name);
extern int wrenletBindForeignClass(WrenVM* vm, char* module, char* className);
extern int wrenletBindForeignMethod(WrenVM* vm, char* module, char* className, int isStatic, char* signature);
extern void wrenletForeignMethod(WrenVM* vm, int index);
extern void wrenletAllocate(WrenVM* vm, int index);
extern void wrenletFinalize(uintptr_t object);

#define WRENLET_TRAMPOLINES 100

#define WRENLET_M(a, b) static void wrenlet_method_##a##b(WrenVM* vm) { wrenletForeignMethod(vm, a * 10 + b); }
#define WRENLET_A(a, b) static void wrenlet_allocate_##a##b(WrenVM* vm) { wrenletAllocate(vm, a * 10 + b); }
#define WRENLET_ROW(F, a) F(a, 0) F(a, 1) F(a, 2) F(a, 3) F(a, 4) F(a, 5) F(a, 6) F(a, 7) F(a, 8) F(a, 9)
#define WRENLET_TABLE(F) WRENLET_ROW(F, 0) WRENLET_ROW(F, 1) WRENLET_ROW(F, 2) WRENLET_ROW(F, 3) WRENLET_ROW(F, 4) \
	WRENLET_ROW(F, 5) WRENLET_ROW(F, 6) WRENLET_ROW(F, 7) WRENLET_ROW(F, 8) WRENLET_ROW(F, 9)

WRENLET_TABLE(WRENLET_M)
WRENLET_TABLE(WRENLET_A)

#define WRENLET_METHOD_ENTRY(a, b) wrenlet_method_##a##b,
#define WRENLET_ALLOCATE_ENTRY(a, b) wrenlet_allocate_##a##b,

static WrenForeignMethodFn wrenlet_methods[WRENLET_TRAMPOLINES] = { WRENLET_TABLE(WRENLET_METHOD_ENTRY) };
static WrenForeignMethodFn wrenlet_allocators[WRENLET_TRAMPOLINES] = { WRENLET_TABLE(WRENLET_ALLOCATE_ENTRY) };

static void wrenlet_write(WrenVM* vm, const char* text) {
	wrenletWrite(vm, (char*)text);
}

static void wrenlet_error(WrenVM* vm, WrenErrorType kind, const char* module, int line, const char* message) {
	wrenletError(vm, (int)kind, (char*)module, line, (char*)message);
}

static const char* wrenlet_resolve_module(WrenVM* vm, const char* importer, const char* name) {
	return wrenletResolveModule(vm, (char*)importer, (char*)name);
}

static void wrenlet_load_complete(WrenVM* vm, const char* name, WrenLoadModuleResult result) {
	free((void*)result.source);
}

static WrenLoadModuleResult wrenlet_load_module(WrenVM* vm, const char* name) {
	WrenLoadModuleResult result;
	memset(&result, 0, sizeof(result));
	result.source = wrenletLoadModule(vm, (char*)name);
	if (result.source != NULL) {
		result.onComplete = wrenlet_load_complete;
	}
	return result;
}

static void wrenlet_finalize(void* data) {
	wrenletFinalize(*(uintptr_t*)data);
}

static WrenForeignClassMethods wrenlet_bind_foreign_class(WrenVM* vm, const char* module, const char* className) {
	WrenForeignClassMethods methods = { NULL, NULL };
	int index = wrenletBindForeignClass(vm, (char*)module, (char*)className);
	if (index >= 0 && index < WRENLET_TRAMPOLINES) {
		methods.allocate = wrenlet_allocators[index];
		methods.finalize = wrenlet_finalize;
	}
	return methods;
}

static WrenForeignMethodFn wrenlet_bind_foreign_method(WrenVM* vm, const char* module, const char* className, bool isStatic, const char* signature) {
	int index = wrenletBindForeignMethod(vm, (char*)module, (char*)className, isStatic ? 1 : 0, (char*)signature);
	if (index >= 0 && index < WRENLET_TRAMPOLINES) {
		return wrenlet_methods[index];
	}
	return NULL;
}

static WrenVM* wrenlet_new_vm(uintptr_t handle, size_t initialHeapSize, size_t minHeapSize, int heapGrowthPercent) {
	WrenConfiguration config;
	wrenInitConfiguration(&config);
	config.writeFn = wrenlet_write;
	config.errorFn = wrenlet_error;
	config.resolveModuleFn = wrenlet_resolve_module;
	config.loadModuleFn = wrenlet_load_module;
	config.bindForeignClassFn = wrenlet_bind_foreign_class;
	config.bindForeignMethodFn = wrenlet_bind_foreign_method;
	if (initialHeapSize > 0) config.initialHeapSize = initialHeapSize;
	if (minHeapSize > 0) config.minHeapSize = minHeapSize;
	if (heapGrowthPercent > 0) config.heapGrowthPercent = heapGrowthPercent;
	config.userData = (void*)handle;
	return wrenNewVM(&config);
}

static uintptr_t wrenlet_handle(WrenVM* vm) {
	return (uintptr_t)wrenGetUserData(vm);
}

static void wrenlet_set_slot_foreign(WrenVM* vm, int slot, int classSlot, uintptr_t object) {
	uintptr_t* data = (uintptr_t*)wrenSetSlotNewForeign(vm, slot, classSlot, sizeof(uintptr_t));
	*data = object;
}

static uintptr_t wrenlet_slot_foreign(WrenVM* vm, int slot) {
	return *(uintptr_t*)wrenGetSlotForeign(vm, slot);
}

static int wrenlet_trampolines(void) {
	return WRENLET_TRAMPOLINES;
}
*/
import "C"

import (
	"context"
	"fmt"
	"runtime/cgo"
	"unsafe"

	"github.com/cbrownsey/wrenlet/runtime"
)

func init() {
	runtime.Register(runtime.RuntimeTypeCWren, newRuntime)
}

// Trampolines is the number of foreign methods, and separately of foreign
// classes, one VM can bind.
var Trampolines = int(C.wrenlet_trampolines())

type cRuntime struct{}

func newRuntime(*runtime.Config) (runtime.Runtime, error) {
	return &cRuntime{}, nil
}

// NewVM implements runtime.Runtime
func (r *cRuntime) NewVM(_ context.Context, cfg runtime.VMConfig) (runtime.VM, error) {
	v := &vm{
		userData: cfg.UserData,
		handles:  map[runtime.Handle]*C.WrenHandle{},
	}
	v.self = cgo.NewHandle(v)
	v.ptr = C.wrenlet_new_vm(C.uintptr_t(v.self), C.size_t(cfg.InitialHeapSize), C.size_t(cfg.MinHeapSize), C.int(cfg.HeapGrowthPercent))
	if v.ptr == nil {
		v.self.Delete()
		return nil, fmt.Errorf("wren: wrenNewVM returned NULL: %w", runtime.ErrVMCreateFailed)
	}
	return v, nil
}

// Close implements runtime.Runtime. libwren keeps no state outside its VMs.
func (r *cRuntime) Close(context.Context) error {
	return nil
}

// vm is a libwren VM. Its user data pointer holds a cgo.Handle to the vm so
// the callbacks can find it again.
type vm struct {
	ptr      *C.WrenVM
	self     cgo.Handle
	userData any

	handles map[runtime.Handle]*C.WrenHandle
	nextID  runtime.Handle

	methods    []runtime.ForeignMethodFn
	classes    []runtime.ForeignClassMethods
	allocating *runtime.ForeignClassMethods
}

var _ runtime.VM = (*vm)(nil)

// foreignObject is the host side of a foreign instance. The instance's bytes
// hold a cgo.Handle to it.
type foreignObject struct {
	value    any
	finalize func(any)
}

func lookup(ptr *C.WrenVM) *vm {
	return cgo.Handle(C.wrenlet_handle(ptr)).Value().(*vm)
}

func (v *vm) Free() {
	C.wrenFreeVM(v.ptr)
	v.ptr = nil
	v.self.Delete()
	v.handles = nil
}

func (v *vm) Interpret(_ context.Context, module, source string) runtime.InterpretResult {
	cModule := C.CString(module)
	defer C.free(unsafe.Pointer(cModule))
	cSource := C.CString(source)
	defer C.free(unsafe.Pointer(cSource))
	return runtime.InterpretResult(C.wrenInterpret(v.ptr, cModule, cSource))
}

func (v *vm) MakeCallHandle(signature string) runtime.Handle {
	cSignature := C.CString(signature)
	defer C.free(unsafe.Pointer(cSignature))
	return v.track(C.wrenMakeCallHandle(v.ptr, cSignature))
}

func (v *vm) Call(_ context.Context, method runtime.Handle) runtime.InterpretResult {
	return runtime.InterpretResult(C.wrenCall(v.ptr, v.handle(method)))
}

func (v *vm) ReleaseHandle(h runtime.Handle) {
	C.wrenReleaseHandle(v.ptr, v.handle(h))
	delete(v.handles, h)
}

func (v *vm) CollectGarbage() {
	C.wrenCollectGarbage(v.ptr)
}

func (v *vm) track(h *C.WrenHandle) runtime.Handle {
	v.nextID++
	v.handles[v.nextID] = h
	return v.nextID
}

func (v *vm) handle(h runtime.Handle) *C.WrenHandle {
	ptr, ok := v.handles[h]
	if !ok {
		panic(fmt.Sprintf("wren: unknown handle %d", h))
	}
	return ptr
}

func (v *vm) EnsureSlots(n int) { C.wrenEnsureSlots(v.ptr, C.int(n)) }
func (v *vm) SlotCount() int    { return int(C.wrenGetSlotCount(v.ptr)) }

func (v *vm) SlotType(slot int) runtime.SlotType {
	return runtime.SlotType(C.wrenGetSlotType(v.ptr, C.int(slot)))
}

func (v *vm) SlotBool(slot int) bool      { return bool(C.wrenGetSlotBool(v.ptr, C.int(slot))) }
func (v *vm) SlotDouble(slot int) float64 { return float64(C.wrenGetSlotDouble(v.ptr, C.int(slot))) }
func (v *vm) SlotHandle(slot int) runtime.Handle {
	return v.track(C.wrenGetSlotHandle(v.ptr, C.int(slot)))
}

// SlotBytes copies the string out of VM memory.
func (v *vm) SlotBytes(slot int) []byte {
	var length C.int
	ptr := C.wrenGetSlotBytes(v.ptr, C.int(slot), &length)
	return C.GoBytes(unsafe.Pointer(ptr), length)
}

func (v *vm) SlotForeign(slot int) any {
	h := cgo.Handle(C.wrenlet_slot_foreign(v.ptr, C.int(slot)))
	return h.Value().(*foreignObject).value
}

func (v *vm) SetSlotNull(slot int)             { C.wrenSetSlotNull(v.ptr, C.int(slot)) }
func (v *vm) SetSlotBool(slot int, value bool) { C.wrenSetSlotBool(v.ptr, C.int(slot), C.bool(value)) }
func (v *vm) SetSlotDouble(slot int, value float64) {
	C.wrenSetSlotDouble(v.ptr, C.int(slot), C.double(value))
}
func (v *vm) SetSlotNewList(slot int) { C.wrenSetSlotNewList(v.ptr, C.int(slot)) }
func (v *vm) SetSlotNewMap(slot int)  { C.wrenSetSlotNewMap(v.ptr, C.int(slot)) }

// SetSlotBytes copies value into a new VM string.
func (v *vm) SetSlotBytes(slot int, value []byte) {
	if len(value) == 0 {
		empty := C.CString("")
		defer C.free(unsafe.Pointer(empty))
		C.wrenSetSlotBytes(v.ptr, C.int(slot), empty, 0)
		return
	}
	C.wrenSetSlotBytes(v.ptr, C.int(slot), (*C.char)(unsafe.Pointer(&value[0])), C.size_t(len(value)))
}

func (v *vm) SetSlotHandle(slot int, h runtime.Handle) {
	C.wrenSetSlotHandle(v.ptr, C.int(slot), v.handle(h))
}

// SetSlotNewForeign stores a cgo.Handle to value in a new foreign instance.
// Inside an allocator the instance gets the finalizer of the class being
// allocated; elsewhere it is only released when collected.
func (v *vm) SetSlotNewForeign(slot, classSlot int, value any) {
	obj := &foreignObject{value: value}
	if v.allocating != nil {
		obj.finalize = v.allocating.Finalize
	}
	C.wrenlet_set_slot_foreign(v.ptr, C.int(slot), C.int(classSlot), C.uintptr_t(cgo.NewHandle(obj)))
}

func (v *vm) ListCount(slot int) int { return int(C.wrenGetListCount(v.ptr, C.int(slot))) }

func (v *vm) ListElement(listSlot, index, elementSlot int) {
	C.wrenGetListElement(v.ptr, C.int(listSlot), C.int(index), C.int(elementSlot))
}

func (v *vm) SetListElement(listSlot, index, elementSlot int) {
	C.wrenSetListElement(v.ptr, C.int(listSlot), C.int(index), C.int(elementSlot))
}

func (v *vm) InsertInList(listSlot, index, elementSlot int) {
	C.wrenInsertInList(v.ptr, C.int(listSlot), C.int(index), C.int(elementSlot))
}

func (v *vm) MapCount(slot int) int { return int(C.wrenGetMapCount(v.ptr, C.int(slot))) }

func (v *vm) MapContainsKey(mapSlot, keySlot int) bool {
	return bool(C.wrenGetMapContainsKey(v.ptr, C.int(mapSlot), C.int(keySlot)))
}

func (v *vm) MapValue(mapSlot, keySlot, valueSlot int) {
	C.wrenGetMapValue(v.ptr, C.int(mapSlot), C.int(keySlot), C.int(valueSlot))
}

func (v *vm) SetMapValue(mapSlot, keySlot, valueSlot int) {
	C.wrenSetMapValue(v.ptr, C.int(mapSlot), C.int(keySlot), C.int(valueSlot))
}

func (v *vm) RemoveMapValue(mapSlot, keySlot, removedValueSlot int) {
	C.wrenRemoveMapValue(v.ptr, C.int(mapSlot), C.int(keySlot), C.int(removedValueSlot))
}

func (v *vm) GetVariable(module, name string, slot int) {
	cModule, cName := C.CString(module), C.CString(name)
	defer C.free(unsafe.Pointer(cModule))
	defer C.free(unsafe.Pointer(cName))
	C.wrenGetVariable(v.ptr, cModule, cName, C.int(slot))
}

func (v *vm) HasVariable(module, name string) bool {
	cModule, cName := C.CString(module), C.CString(name)
	defer C.free(unsafe.Pointer(cModule))
	defer C.free(unsafe.Pointer(cName))
	return bool(C.wrenHasVariable(v.ptr, cModule, cName))
}

func (v *vm) HasModule(module string) bool {
	cModule := C.CString(module)
	defer C.free(unsafe.Pointer(cModule))
	return bool(C.wrenHasModule(v.ptr, cModule))
}

func (v *vm) AbortFiber(slot int) { C.wrenAbortFiber(v.ptr, C.int(slot)) }

func (v *vm) SetUserData(data any) { v.userData = data }
func (v *vm) UserData() any        { return v.userData }
