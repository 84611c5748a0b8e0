package wazero

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

type wasmFunctionSpec struct {
	name        string
	params      int
	returnValue *uint32
}

// buildTestModule assembles a module exporting functions whose i32 params are
// ignored and which return a constant when returnValue is set.
func buildTestModule(exportMemory bool, functions []wasmFunctionSpec) []byte {
	module := []byte{
		0x00, 0x61, 0x73, 0x6d, // magic
		0x01, 0x00, 0x00, 0x00, // version
	}

	appendSection := func(sectionID byte, payload []byte) {
		module = append(module, sectionID)
		module = append(module, encodeULEB128Test(uint32(len(payload)))...)
		module = append(module, payload...)
	}

	// Type section: one type per function
	typePayload := append([]byte{}, encodeULEB128Test(uint32(len(functions)))...)
	for _, fn := range functions {
		typePayload = append(typePayload, 0x60)
		typePayload = append(typePayload, encodeULEB128Test(uint32(fn.params))...)
		for i := 0; i < fn.params; i++ {
			typePayload = append(typePayload, 0x7f)
		}
		if fn.returnValue != nil {
			typePayload = append(typePayload, 0x01, 0x7f)
		} else {
			typePayload = append(typePayload, 0x00)
		}
	}
	appendSection(0x01, typePayload)

	// Function section
	funcPayload := append([]byte{}, encodeULEB128Test(uint32(len(functions)))...)
	for i := range functions {
		funcPayload = append(funcPayload, encodeULEB128Test(uint32(i))...)
	}
	appendSection(0x03, funcPayload)

	if exportMemory {
		// Memory section: one memory, min 1 page.
		appendSection(0x05, []byte{
			0x01, // 1 memory
			0x00, // only min limit
			0x01, // min 1 page
		})
	}

	// Export section
	exportCount := len(functions)
	if exportMemory {
		exportCount++
	}
	exportPayload := append([]byte{}, encodeULEB128Test(uint32(exportCount))...)
	if exportMemory {
		exportPayload = append(exportPayload, encodeULEB128Test(uint32(len(guestExportMemory)))...)
		exportPayload = append(exportPayload, guestExportMemory...)
		exportPayload = append(exportPayload, 0x02, 0x00) // memory index 0
	}
	for i, fn := range functions {
		exportPayload = append(exportPayload, encodeULEB128Test(uint32(len(fn.name)))...)
		exportPayload = append(exportPayload, fn.name...)
		exportPayload = append(exportPayload, 0x00) // export kind: func
		exportPayload = append(exportPayload, encodeULEB128Test(uint32(i))...)
	}
	appendSection(0x07, exportPayload)

	// Code section
	codePayload := append([]byte{}, encodeULEB128Test(uint32(len(functions)))...)
	for _, fn := range functions {
		body := wasmFunctionBody(fn.returnValue)
		codePayload = append(codePayload, encodeULEB128Test(uint32(len(body)))...)
		codePayload = append(codePayload, body...)
	}
	appendSection(0x0a, codePayload)

	return module
}

func wasmFunctionBody(returnValue *uint32) []byte {
	if returnValue == nil {
		return []byte{
			0x00, // local decl count
			0x0b, // end
		}
	}

	body := []byte{
		0x00, // local decl count
		0x41, // i32.const
	}
	body = append(body, encodeSLEB128Test(int32(*returnValue))...)
	body = append(body, 0x0b) // end
	return body
}

func encodeULEB128Test(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

// encodeSLEB128Test encodes i32.const immediates, which are signed.
func encodeSLEB128Test(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		out = append(out, b)
		if done {
			return out
		}
	}
}

func uint32Ptr(v uint32) *uint32 {
	return &v
}

// allocatorFunctions are a malloc that always returns addr and a no-op free.
func allocatorFunctions(addr uint32) []wasmFunctionSpec {
	return []wasmFunctionSpec{
		{name: guestMalloc, params: 1, returnValue: uint32Ptr(addr)},
		{name: guestFree, params: 1},
	}
}

// newTestInstance instantiates module under name in a fresh wazero runtime
// and returns a wazeroRuntime wrapping it, without WASI or guest validation.
func newTestInstance(t *testing.T, name string, module []byte) (*wazeroRuntime, api.Module) {
	t.Helper()

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() {
		if err := r.Close(ctx); err != nil {
			t.Fatalf("failed to close runtime: %v", err)
		}
	})

	mod, err := r.InstantiateWithConfig(ctx, module, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		t.Fatalf("failed to instantiate module: %v", err)
	}
	return &wazeroRuntime{runtime: r, vms: map[string]*vm{}}, mod
}
