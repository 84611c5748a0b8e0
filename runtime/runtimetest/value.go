package runtimetest

import (
	"bytes"
	"math"

	"github.com/cbrownsey/wrenlet/runtime"
)

// Value is one value stored by the in-memory VM.
type Value struct {
	Type  runtime.SlotType
	Bool  bool
	Num   float64
	Bytes []byte
	// Ref is set for lists, maps, foreign objects and other objects.
	Ref *Object
}

// Object is the heap part of a non scalar value.
type Object struct {
	// Class names the class of instances and class objects.
	Class string
	// Static is true for class objects.
	Static bool

	List    []Value
	Keys    []Value
	Values  []Value
	Foreign any

	finalize func(any)
}

// Null returns the null value.
func Null() Value { return Value{Type: runtime.SlotTypeNull} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{Type: runtime.SlotTypeBool, Bool: b} }

// Num returns a number value.
func Num(n float64) Value { return Value{Type: runtime.SlotTypeNum, Num: n} }

// String returns a string value.
func String(s string) Value { return Value{Type: runtime.SlotTypeString, Bytes: []byte(s)} }

// Garbage returns the NaN number the VM fills grown slots with.
func Garbage() Value { return Num(math.NaN()) }

// Class returns a class object, reported as SlotTypeUnknown like any other
// object the slot API has no accessor for.
func Class(name string) Value {
	return Value{Type: runtime.SlotTypeUnknown, Ref: &Object{Class: name, Static: true}}
}

// Instance returns a plain instance of a class.
func Instance(class string) Value {
	return Value{Type: runtime.SlotTypeUnknown, Ref: &Object{Class: class}}
}

// List returns a new list holding elems.
func List(elems ...Value) Value {
	return Value{Type: runtime.SlotTypeList, Ref: &Object{Class: "List", List: append([]Value(nil), elems...)}}
}

// Map returns a new empty map.
func Map() Value {
	return Value{Type: runtime.SlotTypeMap, Ref: &Object{Class: "Map"}}
}

// Equal reports whether two values are equal under Wren's == for the value
// types and identity for objects.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case runtime.SlotTypeNull:
		return true
	case runtime.SlotTypeBool:
		return v.Bool == o.Bool
	case runtime.SlotTypeNum:
		return v.Num == o.Num
	case runtime.SlotTypeString:
		return bytes.Equal(v.Bytes, o.Bytes)
	default:
		return v.Ref == o.Ref
	}
}

func (o *Object) indexOfKey(key Value) int {
	for i, k := range o.Keys {
		if k.Equal(key) {
			return i
		}
	}
	return -1
}
