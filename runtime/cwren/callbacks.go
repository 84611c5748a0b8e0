//go:build cgo && wren

package cwren

/*
#include <stdint.h>
#include <wren.h>
*/
import "C"

import (
	"runtime/cgo"

	"github.com/cbrownsey/wrenlet/runtime"
)

//export wrenletWrite
func wrenletWrite(ptr *C.WrenVM, text *C.char) {
	v := lookup(ptr)
	runtime.HostOf(v).Write(v, C.GoString(text))
}

//export wrenletError
func wrenletError(ptr *C.WrenVM, kind C.int, module *C.char, line C.int, message *C.char) {
	v := lookup(ptr)
	runtime.HostOf(v).Error(v, runtime.ErrorType(kind), C.GoString(module), int(line), C.GoString(message))
}

// wrenletResolveModule returns a malloc'd name that Wren frees with its own
// allocator, or NULL.
//
//export wrenletResolveModule
func wrenletResolveModule(ptr *C.WrenVM, importer, name *C.char) *C.char {
	v := lookup(ptr)
	resolved, ok := runtime.HostOf(v).ResolveModule(v, C.GoString(importer), C.GoString(name))
	if !ok {
		return nil
	}
	return C.CString(resolved)
}

// wrenletLoadModule returns a malloc'd source freed by the load completion
// callback, or NULL.
//
//export wrenletLoadModule
func wrenletLoadModule(ptr *C.WrenVM, name *C.char) *C.char {
	v := lookup(ptr)
	source, ok := runtime.HostOf(v).LoadModule(v, C.GoString(name))
	if !ok {
		return nil
	}
	return C.CString(source)
}

//export wrenletBindForeignClass
func wrenletBindForeignClass(ptr *C.WrenVM, module, className *C.char) C.int {
	v := lookup(ptr)
	methods := runtime.HostOf(v).BindForeignClass(v, C.GoString(module), C.GoString(className))
	if methods.Allocate == nil || len(v.classes) >= Trampolines {
		return -1
	}
	v.classes = append(v.classes, methods)
	return C.int(len(v.classes) - 1)
}

//export wrenletBindForeignMethod
func wrenletBindForeignMethod(ptr *C.WrenVM, module, className *C.char, isStatic C.int, signature *C.char) C.int {
	v := lookup(ptr)
	fn := runtime.HostOf(v).BindForeignMethod(v, C.GoString(module), C.GoString(className), isStatic != 0, C.GoString(signature))
	if fn == nil || len(v.methods) >= Trampolines {
		return -1
	}
	v.methods = append(v.methods, fn)
	return C.int(len(v.methods) - 1)
}

//export wrenletForeignMethod
func wrenletForeignMethod(ptr *C.WrenVM, index C.int) {
	v := lookup(ptr)
	v.methods[index](v)
}

//export wrenletAllocate
func wrenletAllocate(ptr *C.WrenVM, index C.int) {
	v := lookup(ptr)
	class := &v.classes[index]
	prev := v.allocating
	v.allocating = class
	defer func() { v.allocating = prev }()
	class.Allocate(v)
}

//export wrenletFinalize
func wrenletFinalize(object C.uintptr_t) {
	h := cgo.Handle(object)
	obj := h.Value().(*foreignObject)
	h.Delete()
	if obj.finalize != nil {
		obj.finalize(obj.value)
	}
}
