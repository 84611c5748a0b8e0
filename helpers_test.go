package wrenlet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cbrownsey/wrenlet/runtime"
	"github.com/cbrownsey/wrenlet/runtime/runtimetest"
)

const (
	sumSource     = "var a = 1 + 2\nSystem.print(a)"
	invalidSyntax = "var = "
	birdSource    = "class Bird {\n  static flyTo(city) {\n    __city = city\n  }\n}\n"
)

// interpreter scripts the sources used across the tests.
func interpreter(vm *runtimetest.VM, module, source string) runtime.InterpretResult {
	switch source {
	case sumSource:
		vm.Define(module, "a", runtimetest.Num(3))
		vm.Print("3")
		vm.Print("\n")
	case invalidSyntax:
		vm.ReportCompileError(module, 1, "Error at '=': Expected variable name.")
		return runtime.ResultCompileError
	case birdSource:
		vm.Define(module, "Bird", runtimetest.Class("Bird"))
	}
	return runtime.ResultSuccess
}

func newTestRuntime() *runtimetest.Runtime {
	rt := runtimetest.NewRuntime()
	rt.Interpreter = interpreter
	rt.Methods["flyTo(_)"] = func(vm *runtimetest.VM) runtime.InterpretResult {
		vm.SetSlotNull(0)
		return runtime.ResultSuccess
	}
	return rt
}

// newTestVM creates a VM on a fresh in-memory runtime and returns the native
// VM behind it.
func newTestVM(t *testing.T, cfg Config) (*VM, *runtimetest.VM) {
	t.Helper()
	rt := newTestRuntime()
	if cfg.Output == nil {
		cfg.Output = &discard{}
	}
	cfg.Backend = rt
	vm, err := New(context.Background(), cfg)
	require.NoError(t, err)
	return vm, rt.VMs[len(rt.VMs)-1]
}

func newObservedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

// requireViolation runs fn and returns the *ContractViolation it panics with.
func requireViolation(t *testing.T, fn func()) *ContractViolation {
	t.Helper()
	var recovered any
	func() {
		defer func() { recovered = recover() }()
		fn()
	}()
	v, ok := recovered.(*ContractViolation)
	require.Truef(t, ok, "expected *ContractViolation panic, got %#v", recovered)
	return v
}

type discard struct{ written []string }

func (d *discard) Write(p []byte) (int, error) {
	d.written = append(d.written, string(p))
	return len(p), nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

// closer records when it is closed.
type closer struct {
	onClose func()
	err     error
	closed  int
}

func (c *closer) Close() error {
	c.closed++
	if c.onClose != nil {
		c.onClose()
	}
	return c.err
}
