package wrenlet

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/cbrownsey/wrenlet/runtime"
)

// Method is a foreign method of a ForeignClass. Fn reads its receiver from
// slot 0 and its arguments from the following slots, and leaves its result in
// slot 0. A returned error aborts the calling fiber.
type Method struct {
	Signature string
	Static    bool
	Fn        func(s *Slots) error
}

// InstanceMethod returns a non static Method.
func InstanceMethod(signature string, fn func(s *Slots) error) Method {
	return Method{Signature: signature, Fn: fn}
}

// StaticMethod returns a static Method.
func StaticMethod(signature string, fn func(s *Slots) error) Method {
	return Method{Signature: signature, Static: true, Fn: fn}
}

// ForeignClass binds a Go type to a foreign class declared by a script.
type ForeignClass struct {
	module    string
	name      string
	typ       reflect.Type
	construct func(s *Slots) (any, error)
	destroy   func(any)
	methods   []Method
}

// NewForeignClass describes the foreign class name of module backed by T.
// construct runs when a script instantiates the class, with the class in
// slot 0 and the constructor arguments in the following slots; a returned
// error aborts the fiber. destroy, if not nil, runs when the instance is
// collected or the VM is freed, and must not use the VM.
func NewForeignClass[T any](module, name string, construct func(s *Slots) (*T, error), destroy func(*T), methods ...Method) *ForeignClass {
	fc := &ForeignClass{
		module: module,
		name:   name,
		typ:    reflect.TypeOf((*T)(nil)).Elem(),
		construct: func(s *Slots) (any, error) {
			return construct(s)
		},
		methods: append([]Method(nil), methods...),
	}
	if destroy != nil {
		fc.destroy = func(v any) { destroy(v.(*T)) }
	}
	return fc
}

func (fc *ForeignClass) Module() string { return fc.module }
func (fc *ForeignClass) Name() string   { return fc.name }

// Type returns the Go type of the instances.
func (fc *ForeignClass) Type() reflect.Type { return fc.typ }

// Size returns the size in bytes of one instance's Go value.
func (fc *ForeignClass) Size() uintptr { return fc.typ.Size() }

func (fc *ForeignClass) String() string {
	return fmt.Sprintf("%s.%s(%s)", fc.module, fc.name, fc.typ)
}

func (h *header) foreignClass(module, name string) *ForeignClass {
	for _, fc := range h.foreign {
		if fc.module == module && fc.name == name {
			return fc
		}
	}
	return nil
}

// BindForeignClass implements runtime.Host. Unregistered classes get no
// allocator, which makes the VM raise a runtime error when they are used.
func (h *header) BindForeignClass(_ runtime.VM, module, className string) runtime.ForeignClassMethods {
	fc := h.foreignClass(module, className)
	if fc == nil {
		h.logger.Debug("unregistered foreign class", zap.String("module", module), zap.String("class", className))
		return runtime.ForeignClassMethods{}
	}
	methods := runtime.ForeignClassMethods{
		Allocate: func(native runtime.VM) {
			slots, leave := h.enterForeign()
			defer leave()
			value, err := fc.construct(slots)
			if err != nil {
				slots.Abort(err)
				return
			}
			if reflect.ValueOf(value).IsNil() {
				slots.Abort(fmt.Errorf("wrenlet: constructor of %s returned nil", fc))
				return
			}
			native.SetSlotNewForeign(0, 0, value)
		},
	}
	if fc.destroy != nil {
		methods.Finalize = fc.destroy
	}
	return methods
}

// BindForeignMethod implements runtime.Host.
func (h *header) BindForeignMethod(_ runtime.VM, module, className string, isStatic bool, signature string) runtime.ForeignMethodFn {
	fc := h.foreignClass(module, className)
	if fc == nil {
		return nil
	}
	for _, m := range fc.methods {
		if m.Static != isStatic || m.Signature != signature {
			continue
		}
		fn := m.Fn
		return func(runtime.VM) {
			slots, leave := h.enterForeign()
			defer leave()
			if err := fn(slots); err != nil {
				slots.Abort(err)
			}
		}
	}
	h.logger.Debug("unregistered foreign method",
		zap.Stringer("class", fc), zap.Bool("static", isStatic), zap.String("signature", signature))
	return nil
}

// Instance returns the receiver of a foreign method as *T.
func Instance[T any](s *Slots) (*T, error) {
	return Foreign[T](s, 0)
}

// Foreign reads the foreign object in slot as *T. A slot holding something
// else, or an instance of another class, is a TypeMismatch.
func Foreign[T any](s *Slots, slot int) (*T, error) {
	h := s.check("Foreign", slot)
	found := h.native.SlotType(slot)
	if found != TypeForeign {
		err := mismatch(found, TypeForeign)
		err.GoType = reflect.TypeOf((*T)(nil)).Elem().String()
		return nil, err
	}
	v, ok := h.native.SlotForeign(slot).(*T)
	if !ok {
		err := mismatch(found, TypeForeign)
		err.GoType = reflect.TypeOf((*T)(nil)).Elem().String()
		return nil, err
	}
	return v, nil
}
