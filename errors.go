package wrenlet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cbrownsey/wrenlet/runtime"
)

var (
	ErrUnsupportedType       = errors.New("unsupported type")
	ErrUnknownVariable       = errors.New("unknown variable")
	ErrTypeMismatch          = errors.New("type mismatch")
	ErrInvalidEncoding       = errors.New("invalid encoding")
	ErrClosed                = errors.New("vm closed")
	ErrArityMismatch         = errors.New("argument count does not match signature")
	ErrTooManyArguments      = errors.New("too many arguments")
	ErrDuplicateForeignClass = errors.New("foreign class registered twice")
	ErrInvalidSignature      = runtime.ErrInvalidSignature
	ErrInvalidConfiguration  = runtime.ErrInvalidConfiguration
)

// CompileError is returned when a module fails to compile.
type CompileError struct {
	Module  string
	Line    int
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("wrenlet: compile error in %s:%d: %s", e.Module, e.Line, e.Message)
}

// Frame is one entry of a runtime error's stack trace.
type Frame struct {
	Module string
	Line   int
	Method string
}

func (f Frame) String() string {
	return fmt.Sprintf("%s (%s:%d)", f.Method, f.Module, f.Line)
}

// RuntimeError is returned when a fiber aborts. StackTrace holds the frames in
// the order the VM reported them.
type RuntimeError struct {
	Message    string
	StackTrace []Frame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString("wrenlet: runtime error: ")
	b.WriteString(e.Message)
	for _, f := range e.StackTrace {
		b.WriteString("\n\tat ")
		b.WriteString(f.String())
	}
	return b.String()
}

// ConversionKind classifies a ConversionError.
type ConversionKind int

const (
	TypeMismatch ConversionKind = iota
	InvalidEncoding
)

func (k ConversionKind) String() string {
	switch k {
	case TypeMismatch:
		return "type mismatch"
	case InvalidEncoding:
		return "invalid encoding"
	default:
		return fmt.Sprintf("ConversionKind(%d)", int(k))
	}
}

// ConversionError is returned when a slot cannot be decoded into the
// requested Go type. The slot is left untouched.
type ConversionError struct {
	Kind     ConversionKind
	Expected []SlotType
	Found    SlotType
	// GoType names the requested host type of a foreign object, if any.
	GoType string
}

func (e *ConversionError) Error() string {
	switch e.Kind {
	case InvalidEncoding:
		return "wrenlet: string is not valid UTF-8"
	default:
		if e.GoType != "" {
			return fmt.Sprintf("wrenlet: type mismatch: expected foreign %s, found %s", e.GoType, e.Found)
		}
		return fmt.Sprintf("wrenlet: type mismatch: expected %v, found %s", e.Expected, e.Found)
	}
}

func (e *ConversionError) Unwrap() error {
	if e.Kind == InvalidEncoding {
		return ErrInvalidEncoding
	}
	return ErrTypeMismatch
}

func mismatch(found SlotType, expected ...SlotType) *ConversionError {
	return &ConversionError{Kind: TypeMismatch, Expected: expected, Found: found}
}

// ContractViolation is the value panicked with when the facade is misused:
// a handle used with another VM, a slot index past the slot count, a double
// release or a VM used after Close. It is never returned as an error.
type ContractViolation struct {
	VM     uuid.UUID
	Op     string
	Reason string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("wrenlet: contract violation in %s on vm %s: %s", e.Op, e.VM, e.Reason)
}

func violation(h *header, op, format string, args ...any) *ContractViolation {
	v := &ContractViolation{Op: op, Reason: fmt.Sprintf(format, args...)}
	if h != nil {
		v.VM = h.id
	}
	return v
}
