package runtime

// HostFuncs adapts plain functions to the Host interface. Nil fields fall back
// to the behaviour of a VM without the corresponding callback: output and
// errors are discarded, imports resolve to themselves, nothing is loaded and
// no foreign class or method is bound.
type HostFuncs struct {
	WriteFn             func(vm VM, text string)
	ErrorFn             func(vm VM, kind ErrorType, module string, line int, message string)
	ResolveModuleFn     func(vm VM, importer, name string) (string, bool)
	LoadModuleFn        func(vm VM, name string) (string, bool)
	BindForeignClassFn  func(vm VM, module, className string) ForeignClassMethods
	BindForeignMethodFn func(vm VM, module, className string, isStatic bool, signature string) ForeignMethodFn
}

var _ Host = (*HostFuncs)(nil)

// Write implements Host
func (h *HostFuncs) Write(vm VM, text string) {
	if h.WriteFn != nil {
		h.WriteFn(vm, text)
	}
}

// Error implements Host
func (h *HostFuncs) Error(vm VM, kind ErrorType, module string, line int, message string) {
	if h.ErrorFn != nil {
		h.ErrorFn(vm, kind, module, line, message)
	}
}

// ResolveModule implements Host
func (h *HostFuncs) ResolveModule(vm VM, importer, name string) (string, bool) {
	if h.ResolveModuleFn != nil {
		return h.ResolveModuleFn(vm, importer, name)
	}
	return name, true
}

// LoadModule implements Host
func (h *HostFuncs) LoadModule(vm VM, name string) (string, bool) {
	if h.LoadModuleFn != nil {
		return h.LoadModuleFn(vm, name)
	}
	return "", false
}

// BindForeignClass implements Host
func (h *HostFuncs) BindForeignClass(vm VM, module, className string) ForeignClassMethods {
	if h.BindForeignClassFn != nil {
		return h.BindForeignClassFn(vm, module, className)
	}
	return ForeignClassMethods{}
}

// BindForeignMethod implements Host
func (h *HostFuncs) BindForeignMethod(vm VM, module, className string, isStatic bool, signature string) ForeignMethodFn {
	if h.BindForeignMethodFn != nil {
		return h.BindForeignMethodFn(vm, module, className, isStatic, signature)
	}
	return nil
}

var nopHost = &HostFuncs{}

// HostOf returns the Host installed as the user data of vm. Backends use it
// from their callback entry points; a VM whose user data is not a Host gets
// the defaults of HostFuncs.
func HostOf(vm VM) Host {
	if h, ok := vm.UserData().(Host); ok && h != nil {
		return h
	}
	return nopHost
}
