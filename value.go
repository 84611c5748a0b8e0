package wrenlet

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cbrownsey/wrenlet/runtime"
)

// SlotType is the type tag of a slot.
type SlotType = runtime.SlotType

const (
	TypeBool    = runtime.SlotTypeBool
	TypeNum     = runtime.SlotTypeNum
	TypeForeign = runtime.SlotTypeForeign
	TypeList    = runtime.SlotTypeList
	TypeMap     = runtime.SlotTypeMap
	TypeNull    = runtime.SlotTypeNull
	TypeString  = runtime.SlotTypeString
	TypeUnknown = runtime.SlotTypeUnknown
)

// Value is a snapshot of one slot. Only the field matching Type is set; List,
// Map, Foreign and Unknown values carry no payload and are read through Slots
// or kept alive with a *Handle.
type Value struct {
	Type  SlotType
	Bool  bool
	Num   float64
	Bytes []byte
}

// Null, Bool, Num and String build scalar values for Slots.Set and Call.
func Null() Value           { return Value{Type: TypeNull} }
func Bool(b bool) Value     { return Value{Type: TypeBool, Bool: b} }
func Num(n float64) Value   { return Value{Type: TypeNum, Num: n} }
func String(s string) Value { return Value{Type: TypeString, Bytes: []byte(s)} }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.Type == TypeNull }

// IsScalar reports whether v carries its whole payload, which is the case
// for null, booleans, numbers and strings. Only scalar values can be stored
// with Slots.Set.
func (v Value) IsScalar() bool {
	return v.Type == TypeNull || v.Type == TypeBool || v.Type == TypeNum || v.Type == TypeString
}

// Text returns the bytes of a string value as a Go string, without checking
// the encoding.
func (v Value) Text() string { return string(v.Bytes) }

func (v Value) String() string {
	switch v.Type {
	case TypeNull:
		return "null"
	case TypeBool:
		return strconv.FormatBool(v.Bool)
	case TypeNum:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case TypeString:
		return strconv.Quote(string(v.Bytes))
	default:
		return "<" + strings.ToLower(v.Type.String()) + ">"
	}
}

// LossyString decodes a String slot replacing invalid UTF-8 with U+FFFD.
type LossyString string

// Decodable lists the Go types a slot can be read as.
type Decodable interface {
	struct{} | bool | float64 | string | LossyString | []byte | Value | *Handle
}

// Get reads slot as T. The slot's type tag is checked first and a mismatch
// is reported as a *ConversionError; the slot is never modified.
func Get[T Decodable](s *Slots, slot int) (T, error) {
	var out T
	h := s.check("Get", slot)
	native := h.native
	found := native.SlotType(slot)

	switch p := any(&out).(type) {
	case *struct{}:
		if found != TypeNull {
			return out, mismatch(found, TypeNull)
		}
	case *bool:
		if found != TypeBool {
			return out, mismatch(found, TypeBool)
		}
		*p = native.SlotBool(slot)
	case *float64:
		if found != TypeNum {
			return out, mismatch(found, TypeNum)
		}
		*p = native.SlotDouble(slot)
	case *string:
		if found != TypeString {
			return out, mismatch(found, TypeString)
		}
		b := native.SlotBytes(slot)
		if !utf8.Valid(b) {
			return out, &ConversionError{Kind: InvalidEncoding, Expected: []SlotType{TypeString}, Found: found}
		}
		*p = string(b)
	case *LossyString:
		if found != TypeString {
			return out, mismatch(found, TypeString)
		}
		*p = LossyString(strings.ToValidUTF8(string(native.SlotBytes(slot)), string(utf8.RuneError)))
	case *[]byte:
		if found != TypeString {
			return out, mismatch(found, TypeString)
		}
		*p = append([]byte{}, native.SlotBytes(slot)...)
	case *Value:
		*p = readValue(native, slot, found)
	case **Handle:
		*p = newHandle(h, native.SlotHandle(slot), found)
	default:
		panic(fmt.Sprintf("Bug: unhandled decodable type %T", out))
	}
	return out, nil
}

func readValue(native runtime.VM, slot int, found SlotType) Value {
	v := Value{Type: found}
	switch found {
	case TypeBool:
		v.Bool = native.SlotBool(slot)
	case TypeNum:
		v.Num = native.SlotDouble(slot)
	case TypeString:
		v.Bytes = append([]byte{}, native.SlotBytes(slot)...)
	}
	return v
}

// encoder writes one host value into a slot.
type encoder func(h *header, slot int)

// encode resolves the setter for v without touching the VM, so unsupported
// values fail before any slot is written.
func encode(v any) (encoder, error) {
	switch x := v.(type) {
	case nil, struct{}:
		return func(h *header, slot int) { h.native.SetSlotNull(slot) }, nil
	case bool:
		return func(h *header, slot int) { h.native.SetSlotBool(slot, x) }, nil
	case float64:
		return encodeNum(x), nil
	case float32:
		return encodeNum(float64(x)), nil
	case int:
		return encodeNum(float64(x)), nil
	case int8:
		return encodeNum(float64(x)), nil
	case int16:
		return encodeNum(float64(x)), nil
	case int32:
		return encodeNum(float64(x)), nil
	case int64:
		return encodeNum(float64(x)), nil
	case uint:
		return encodeNum(float64(x)), nil
	case uint8:
		return encodeNum(float64(x)), nil
	case uint16:
		return encodeNum(float64(x)), nil
	case uint32:
		return encodeNum(float64(x)), nil
	case uint64:
		return encodeNum(float64(x)), nil
	case string:
		return encodeBytes([]byte(x)), nil
	case LossyString:
		return encodeBytes([]byte(x)), nil
	case []byte:
		return encodeBytes(x), nil
	case Value:
		switch x.Type {
		case TypeNull:
			return encode(nil)
		case TypeBool:
			return encode(x.Bool)
		case TypeNum:
			return encode(x.Num)
		case TypeString:
			return encode(x.Bytes)
		}
		return nil, fmt.Errorf("wrenlet: %s value has no payload, use a *Handle: %w", x.Type, ErrUnsupportedType)
	case *Handle:
		if x == nil {
			return encode(nil)
		}
		return func(h *header, slot int) { x.store(h, slot) }, nil
	default:
		return nil, fmt.Errorf("wrenlet: cannot store %T in a slot: %w", v, ErrUnsupportedType)
	}
}

func encodeNum(n float64) encoder {
	return func(h *header, slot int) { h.native.SetSlotDouble(slot, n) }
}

func encodeBytes(b []byte) encoder {
	return func(h *header, slot int) { h.native.SetSlotBytes(slot, b) }
}
