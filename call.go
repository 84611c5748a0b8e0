package wrenlet

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cbrownsey/wrenlet/runtime"
)

// MaxArgs is the number of arguments a call can pass after the receiver.
const MaxArgs = 8

// CallHandle is a compiled method signature. It holds a claim on its VM.
type CallHandle struct {
	share     share
	native    runtime.Handle
	signature string
	arity     int
}

// Signature returns the compiled signature.
func (c *CallHandle) Signature() string { return c.signature }

// Arity returns the number of arguments the signature takes.
func (c *CallHandle) Arity() int { return c.arity }

// Release releases the native handle, then the claim on the VM. Releasing
// twice panics.
func (c *CallHandle) Release() {
	h := c.share.check("CallHandle.Release")
	c.share.checkLast("CallHandle.Release")
	h.native.ReleaseHandle(c.native)
	c.share.release("CallHandle.Release")
	logTeardown(h)
}

// MakeCallHandle compiles signature, such as "flyTo(_)" or "name=(_)", for
// use with Call. A leading "static " is accepted and ignored: whether the
// method is static is decided by the receiver.
func (vm *VM) MakeCallHandle(signature string) (*CallHandle, error) {
	h := vm.header("MakeCallHandle")
	signature = strings.TrimPrefix(signature, "static ")
	arity, err := runtime.SignatureArity(signature)
	if err != nil {
		return nil, err
	}
	if arity > MaxArgs {
		return nil, fmt.Errorf("wrenlet: %s takes %d arguments, at most %d are supported: %w", signature, arity, MaxArgs, ErrTooManyArguments)
	}
	c := &CallHandle{
		share:     newShare(h),
		native:    h.native.MakeCallHandle(signature),
		signature: signature,
		arity:     arity,
	}
	h.logger.Debug("call handle made", zap.String("signature", signature))
	return c, nil
}

// Call invokes method on receiver with args and decodes the result as T.
//
// The receiver goes to slot 0 and the arguments to slots 1..n, left to
// right. Supported values are nil, struct{}, bool, the integer and float
// types, string, LossyString, []byte, scalar Values and *Handle. The number
// of arguments must match the signature. A handle made by another VM panics
// with a *ContractViolation.
func Call[T Decodable](ctx context.Context, vm *VM, method *CallHandle, receiver any, args ...any) (T, error) {
	var zero T
	h := vm.header("Call")
	if owner := method.share.check("Call"); owner != h {
		panic(violation(h, "Call", "call handle %s belongs to vm %s", method.signature, owner.id))
	}
	if len(args) > MaxArgs {
		return zero, fmt.Errorf("wrenlet: %d arguments: %w", len(args), ErrTooManyArguments)
	}
	if len(args) != method.arity {
		return zero, fmt.Errorf("wrenlet: %s takes %d arguments, got %d: %w", method.signature, method.arity, len(args), ErrArityMismatch)
	}

	encoders := make([]encoder, 0, len(args)+1)
	for i, v := range append([]any{receiver}, args...) {
		enc, err := encode(v)
		if err != nil {
			return zero, fmt.Errorf("wrenlet: argument %d: %w", i, err)
		}
		encoders = append(encoders, enc)
	}

	slots := vm.enter("Call")
	slots.Ensure(len(encoders))
	for i, enc := range encoders {
		enc(h, i)
	}

	result := h.run(func() runtime.InterpretResult {
		return h.native.Call(ctx, method.native)
	})
	if err := h.drain(result, "call "+method.signature); err != nil {
		return zero, err
	}
	return Get[T](newSlots(h), 0)
}
