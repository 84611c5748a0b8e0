package runtimetest

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbrownsey/wrenlet/runtime"
)

func newVM(t *testing.T, host runtime.Host) *VM {
	t.Helper()
	rt := NewRuntime()
	vm, err := rt.NewVM(context.Background(), runtime.VMConfig{UserData: host})
	require.NoError(t, err)
	return vm.(*VM)
}

func TestEnsureSlots(t *testing.T) {
	vm := newVM(t, nil)

	vm.EnsureSlots(2)
	assert.Equal(t, 2, vm.SlotCount())
	vm.SetSlotDouble(1, 4)

	vm.EnsureSlots(1)
	assert.Equal(t, 2, vm.SlotCount())
	assert.Equal(t, 4.0, vm.SlotDouble(1))

	vm.EnsureSlots(5)
	for i := 2; i < 5; i++ {
		assert.Equal(t, runtime.SlotTypeNum, vm.SlotType(i))
		assert.True(t, math.IsNaN(vm.SlotDouble(i)))
	}
}

func TestContractPanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func(vm *VM)
	}{
		{"slot out of range", func(vm *VM) { vm.SlotType(0) }},
		{"wrong accessor", func(vm *VM) { vm.EnsureSlots(1); vm.SlotBool(0) }},
		{"released handle", func(vm *VM) {
			h := vm.MakeCallHandle("x")
			vm.ReleaseHandle(h)
			vm.ReleaseHandle(h)
		}},
		{"variable of unloaded module", func(vm *VM) { vm.HasVariable("nope", "a") }},
		{"missing variable", func(vm *VM) { vm.DefineModule("main"); vm.EnsureSlots(1); vm.GetVariable("main", "a", 0) }},
		{"call with too few slots", func(vm *VM) { vm.Call(context.Background(), vm.MakeCallHandle("f(_)")) }},
		{"use after free", func(vm *VM) { vm.Free(); vm.EnsureSlots(1) }},
		{"double free", func(vm *VM) { vm.Free(); vm.Free() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newVM(t, nil)
			assert.Panics(t, func() { tt.fn(vm) })
		})
	}
}

func TestInterpretDefinesModule(t *testing.T) {
	vm := newVM(t, nil)
	vm.Interpreter = func(vm *VM, module, source string) runtime.InterpretResult {
		if source == "bad" {
			vm.ReportCompileError(module, 1, "Error at end of file")
			return runtime.ResultCompileError
		}
		vm.Define(module, "a", Num(3))
		return runtime.ResultSuccess
	}

	assert.Equal(t, runtime.ResultCompileError, vm.Interpret(context.Background(), "broken", "bad"))
	assert.False(t, vm.HasModule("broken"))

	assert.Equal(t, runtime.ResultSuccess, vm.Interpret(context.Background(), "main", "var a = 3"))
	assert.True(t, vm.HasModule("main"))
	assert.True(t, vm.HasVariable("main", "a"))

	vm.EnsureSlots(1)
	vm.GetVariable("main", "a", 0)
	assert.Equal(t, 3.0, vm.SlotDouble(0))
}

func TestCall(t *testing.T) {
	var kinds []runtime.ErrorType
	vm := newVM(t, &runtime.HostFuncs{
		ErrorFn: func(_ runtime.VM, kind runtime.ErrorType, _ string, _ int, _ string) {
			kinds = append(kinds, kind)
		},
	})
	vm.Methods["double(_)"] = func(vm *VM) runtime.InterpretResult {
		vm.SetSlotDouble(0, vm.SlotDouble(1)*2)
		return runtime.ResultSuccess
	}

	h := vm.MakeCallHandle("double(_)")
	vm.EnsureSlots(2)
	vm.SetSlot(0, Class("Math"))
	vm.SetSlotDouble(1, 21)
	assert.Equal(t, runtime.ResultSuccess, vm.Call(context.Background(), h))
	assert.Equal(t, 1, vm.SlotCount())
	assert.Equal(t, 42.0, vm.SlotDouble(0))

	missing := vm.MakeCallHandle("triple(_)")
	vm.EnsureSlots(2)
	assert.Equal(t, runtime.ResultRuntimeError, vm.Call(context.Background(), missing))
	assert.Equal(t, []runtime.ErrorType{runtime.ErrorRuntime}, kinds)

	assert.Equal(t, 2, vm.LiveHandles())
	vm.ReleaseHandle(h)
	vm.ReleaseHandle(missing)
	assert.Equal(t, 0, vm.LiveHandles())
}

func TestValueHandles(t *testing.T) {
	vm := newVM(t, nil)
	vm.EnsureSlots(2)
	vm.SetSlotBytes(0, []byte("kept"))
	h := vm.SlotHandle(0)
	vm.SetSlotNull(0)

	vm.SetSlotHandle(1, h)
	assert.Equal(t, "kept", string(vm.SlotBytes(1)))

	call := vm.MakeCallHandle("x")
	assert.Panics(t, func() { vm.SetSlotHandle(0, call) })
}

func TestListsAndMaps(t *testing.T) {
	vm := newVM(t, nil)
	vm.EnsureSlots(4)

	vm.SetSlotNewList(0)
	vm.SetSlotDouble(1, 1)
	vm.InsertInList(0, -1, 1)
	vm.SetSlotDouble(1, 0)
	vm.InsertInList(0, 0, 1)
	assert.Equal(t, 2, vm.ListCount(0))
	vm.ListElement(0, -1, 2)
	assert.Equal(t, 1.0, vm.SlotDouble(2))
	vm.SetListElement(0, 1, 1)
	vm.ListElement(0, 1, 2)
	assert.Equal(t, 0.0, vm.SlotDouble(2))
	assert.Panics(t, func() { vm.ListElement(0, 2, 2) })

	vm.SetSlotNewMap(0)
	vm.SetSlotBytes(1, []byte("k"))
	vm.SetSlotBool(2, true)
	vm.SetMapValue(0, 1, 2)
	assert.Equal(t, 1, vm.MapCount(0))
	assert.True(t, vm.MapContainsKey(0, 1))
	vm.MapValue(0, 1, 3)
	assert.True(t, vm.SlotBool(3))
	vm.RemoveMapValue(0, 1, 3)
	assert.True(t, vm.SlotBool(3))
	assert.Equal(t, 0, vm.MapCount(0))
	vm.MapValue(0, 1, 3)
	assert.Equal(t, runtime.SlotTypeNull, vm.SlotType(3))
}

func TestForeignLifecycle(t *testing.T) {
	var finalized []any
	vm := newVM(t, &runtime.HostFuncs{
		BindForeignClassFn: func(_ runtime.VM, module, class string) runtime.ForeignClassMethods {
			if module != "main" || class != "Point" {
				return runtime.ForeignClassMethods{}
			}
			return runtime.ForeignClassMethods{
				Allocate: func(vm runtime.VM) {
					vm.SetSlotNewForeign(0, 0, vm.SlotDouble(1))
				},
				Finalize: func(value any) { finalized = append(finalized, value) },
			}
		},
		BindForeignMethodFn: func(_ runtime.VM, _, _ string, _ bool, signature string) runtime.ForeignMethodFn {
			switch signature {
			case "x":
				return func(vm runtime.VM) { vm.SetSlotDouble(0, vm.SlotForeign(0).(float64)) }
			case "fail()":
				return func(vm runtime.VM) {
					vm.SetSlotBytes(0, []byte("nope"))
					vm.AbortFiber(0)
				}
			}
			return nil
		},
	})

	p, result := vm.NewForeign("main", "Point", Num(7))
	require.Equal(t, runtime.ResultSuccess, result)

	x, result := vm.CallForeign("main", "Point", false, "x", p)
	require.Equal(t, runtime.ResultSuccess, result)
	assert.Equal(t, 7.0, x.Num)

	_, result = vm.CallForeign("main", "Point", false, "fail()", p)
	assert.Equal(t, runtime.ResultRuntimeError, result)

	_, result = vm.CallForeign("main", "Point", false, "y", p)
	assert.Equal(t, runtime.ResultRuntimeError, result)

	_, result = vm.NewForeign("main", "Other")
	assert.Equal(t, runtime.ResultRuntimeError, result)

	q, _ := vm.NewForeign("main", "Point", Num(1))
	vm.Collect(q)
	assert.Equal(t, []any{1.0}, finalized)
	assert.Panics(t, func() { vm.Collect(q) })

	vm.Free()
	assert.Equal(t, []any{1.0, 7.0}, finalized)
	assert.Equal(t, 2, vm.Finalized())
}

func TestRuntimeClose(t *testing.T) {
	rt := NewRuntime()
	rt.Methods["f"] = func(*VM) runtime.InterpretResult { return runtime.ResultSuccess }
	vm, err := rt.NewVM(context.Background(), runtime.VMConfig{})
	require.NoError(t, err)
	assert.Contains(t, vm.(*VM).Methods, "f")

	require.NoError(t, rt.Close(context.Background()))
	assert.Equal(t, 1, rt.Closed())
	_, err = rt.NewVM(context.Background(), runtime.VMConfig{})
	assert.ErrorIs(t, err, runtime.ErrRuntimeClosed)
}

func TestValueEqual(t *testing.T) {
	assert.True(t, String("a").Equal(String("a")))
	assert.False(t, String("a").Equal(Num(1)))
	assert.True(t, Null().Equal(Null()))
	l := List(Num(1))
	assert.True(t, l.Equal(l))
	assert.False(t, l.Equal(List(Num(1))))
}
