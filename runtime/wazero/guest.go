package wazero

// Trampolines is the number of foreign methods, and separately of foreign
// classes, one guest VM can bind.
const Trampolines = 100

// Functions exported by the Wren guest. Apart from the wrenlet_ helpers they
// are the Wren C API compiled for wasm32, so pointers and sizes are i32.
const (
	guestMalloc = "malloc"
	guestFree   = "free"

	// wrenlet_new_vm(initialHeapSize, minHeapSize, heapGrowthPercent) -> WrenVM*
	guestNewVM = "wrenlet_new_vm"
	// wrenlet_set_slot_foreign(vm, slot, classSlot, object)
	guestSetSlotForeign = "wrenlet_set_slot_foreign"
	// wrenlet_slot_foreign(vm, slot) -> object
	guestSlotForeign = "wrenlet_slot_foreign"

	guestFreeVM         = "wrenFreeVM"
	guestInterpret      = "wrenInterpret"
	guestMakeCallHandle = "wrenMakeCallHandle"
	guestCall           = "wrenCall"
	guestReleaseHandle  = "wrenReleaseHandle"
	guestCollectGarbage = "wrenCollectGarbage"
	guestEnsureSlots    = "wrenEnsureSlots"
	guestGetSlotCount   = "wrenGetSlotCount"
	guestGetSlotType    = "wrenGetSlotType"
	guestGetSlotBool    = "wrenGetSlotBool"
	guestGetSlotDouble  = "wrenGetSlotDouble"
	guestGetSlotBytes   = "wrenGetSlotBytes"
	guestGetSlotHandle  = "wrenGetSlotHandle"
	guestSetSlotNull    = "wrenSetSlotNull"
	guestSetSlotBool    = "wrenSetSlotBool"
	guestSetSlotDouble  = "wrenSetSlotDouble"
	guestSetSlotBytes   = "wrenSetSlotBytes"
	guestSetSlotHandle  = "wrenSetSlotHandle"
	guestSetSlotNewList = "wrenSetSlotNewList"
	guestSetSlotNewMap  = "wrenSetSlotNewMap"
	guestGetListCount   = "wrenGetListCount"
	guestGetListElement = "wrenGetListElement"
	guestSetListElement = "wrenSetListElement"
	guestInsertInList   = "wrenInsertInList"
	guestGetMapCount    = "wrenGetMapCount"
	guestGetMapContains = "wrenGetMapContainsKey"
	guestGetMapValue    = "wrenGetMapValue"
	guestSetMapValue    = "wrenSetMapValue"
	guestRemoveMapValue = "wrenRemoveMapValue"
	guestGetVariable    = "wrenGetVariable"
	guestHasVariable    = "wrenHasVariable"
	guestHasModule      = "wrenHasModule"
	guestAbortFiber     = "wrenAbortFiber"
)

var guestExports = []string{
	guestMalloc, guestFree,
	guestNewVM, guestSetSlotForeign, guestSlotForeign,
	guestFreeVM, guestInterpret, guestMakeCallHandle, guestCall, guestReleaseHandle, guestCollectGarbage,
	guestEnsureSlots, guestGetSlotCount, guestGetSlotType,
	guestGetSlotBool, guestGetSlotDouble, guestGetSlotBytes, guestGetSlotHandle,
	guestSetSlotNull, guestSetSlotBool, guestSetSlotDouble, guestSetSlotBytes, guestSetSlotHandle,
	guestSetSlotNewList, guestSetSlotNewMap,
	guestGetListCount, guestGetListElement, guestSetListElement, guestInsertInList,
	guestGetMapCount, guestGetMapContains, guestGetMapValue, guestSetMapValue, guestRemoveMapValue,
	guestGetVariable, guestHasVariable, guestHasModule, guestAbortFiber,
}

// Functions of the "wrenlet" host module imported by the guest.
const (
	hostModuleName = "wrenlet"

	hostWrite             = "write"
	hostError             = "error"
	hostResolveModule     = "resolve_module"
	hostLoadModule        = "load_module"
	hostBindForeignClass  = "bind_foreign_class"
	hostBindForeignMethod = "bind_foreign_method"
	hostForeignMethod     = "foreign_method"
	hostForeignAllocate   = "foreign_allocate"
	hostForeignFinalize   = "foreign_finalize"
)
