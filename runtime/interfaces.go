// Package runtime provides an abstraction layer over the Wren virtual machine ABI.
//
// A Runtime is a backend able to create virtual machines. Each VM exposes the
// raw slot and handle API of one native Wren VM. Nothing in this package
// checks slot bounds or type tags: callers must call EnsureSlots before
// touching a slot and must check SlotType before using a typed accessor.
package runtime

import "context"

// Runtime represents a backend hosting Wren virtual machines
type Runtime interface {
	// NewVM creates a virtual machine with the given user data installed
	// before any callback can run.
	NewVM(ctx context.Context, cfg VMConfig) (VM, error)
	// Close releases every resource held by the backend. VMs created by the
	// backend must have been freed before.
	Close(ctx context.Context) error
}

// VM is the raw interface of one native virtual machine.
//
// Only Interpret and Call may reenter the Host installed as user data. Slot
// values read through SlotBytes borrow VM memory and are only valid until the
// next call into the VM.
type VM interface {
	// Free disposes of every resource in use by the VM. The VM must not be
	// used afterwards.
	Free()

	// Interpret runs source in the context of module.
	Interpret(ctx context.Context, module, source string) InterpretResult
	// MakeCallHandle compiles a method signature into a reusable handle.
	MakeCallHandle(signature string) Handle
	// Call invokes method with the receiver in slot 0 and its arguments in
	// the following slots. On success the result is left in slot 0.
	Call(ctx context.Context, method Handle) InterpretResult
	// ReleaseHandle releases a handle created by MakeCallHandle or SlotHandle.
	ReleaseHandle(h Handle)
	// CollectGarbage runs a full collection cycle.
	CollectGarbage()

	// EnsureSlots grows the slot array to at least n slots. New slots are
	// not initialised and must be written before they are read. It never
	// shrinks the array.
	EnsureSlots(n int)
	SlotCount() int
	SlotType(slot int) SlotType

	SlotBool(slot int) bool
	SlotDouble(slot int) float64
	SlotBytes(slot int) []byte
	SlotHandle(slot int) Handle
	// SlotForeign returns the host value stored in the foreign object held
	// in slot.
	SlotForeign(slot int) any

	SetSlotNull(slot int)
	SetSlotBool(slot int, value bool)
	SetSlotDouble(slot int, value float64)
	SetSlotBytes(slot int, value []byte)
	SetSlotHandle(slot int, h Handle)
	// SetSlotNewForeign creates a foreign object of the class in classSlot
	// wrapping value and stores it in slot.
	SetSlotNewForeign(slot, classSlot int, value any)
	SetSlotNewList(slot int)
	SetSlotNewMap(slot int)

	ListCount(slot int) int
	ListElement(listSlot, index, elementSlot int)
	SetListElement(listSlot, index, elementSlot int)
	InsertInList(listSlot, index, elementSlot int)

	MapCount(slot int) int
	MapContainsKey(mapSlot, keySlot int) bool
	MapValue(mapSlot, keySlot, valueSlot int)
	SetMapValue(mapSlot, keySlot, valueSlot int)
	RemoveMapValue(mapSlot, keySlot, removedValueSlot int)

	// GetVariable loads a top level variable of a loaded module into slot.
	GetVariable(module, name string, slot int)
	// HasVariable reports whether a loaded module defines name.
	HasVariable(module, name string) bool
	HasModule(module string) bool
	// AbortFiber aborts the current fiber with the value in slot as error.
	AbortFiber(slot int)

	SetUserData(data any)
	UserData() any
}

// Host receives the callbacks of a VM. Backends look it up through the VM's
// user data, so it must be installed with SetUserData (or VMConfig.UserData).
type Host interface {
	// Write is called by System.print and friends.
	Write(vm VM, text string)
	// Error reports a compile error, a runtime error or one stack trace frame.
	// For stack trace frames message holds the method name.
	Error(vm VM, kind ErrorType, module string, line int, message string)
	// ResolveModule canonicalizes an imported module name.
	ResolveModule(vm VM, importer, name string) (string, bool)
	// LoadModule returns the source of a module.
	LoadModule(vm VM, name string) (string, bool)
	// BindForeignClass returns the allocator and finalizer of a foreign class.
	BindForeignClass(vm VM, module, className string) ForeignClassMethods
	// BindForeignMethod returns the implementation of a foreign method, or nil.
	BindForeignMethod(vm VM, module, className string, isStatic bool, signature string) ForeignMethodFn
}
