package wazero

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/tetratelabs/wazero/api"
)

// copyStringToWasm copies s into guest memory allocated with malloc and
// terminates it with a NUL byte. The caller frees the returned pointer.
func copyStringToWasm(ctx context.Context, m api.Module, s string) (uint32, error) {
	malloc := m.ExportedFunction(guestMalloc)
	res, err := malloc.Call(ctx, uint64(len(s)+1))
	if err != nil {
		return 0, fmt.Errorf("wasm: malloc: %w", err)
	}
	ptr := uint32(res[0])
	if ptr == 0 {
		return 0, fmt.Errorf("wasm: malloc(%d) returned NULL", len(s)+1)
	}

	// Get byte representation of string without allocation
	buf := unsafe.Slice(unsafe.StringData(s), len(s))
	if !m.Memory().Write(ptr, buf) || !m.Memory().WriteByte(ptr+uint32(len(s)), 0) {
		return 0, fmt.Errorf("wasm: write of %d bytes at %#x out of range", len(s)+1, ptr)
	}
	return ptr, nil
}

// copyBytesToWasm copies b into guest memory allocated with malloc. The
// caller frees the returned pointer.
func copyBytesToWasm(ctx context.Context, m api.Module, b []byte) (uint32, error) {
	size := len(b)
	if size == 0 {
		size = 1
	}
	malloc := m.ExportedFunction(guestMalloc)
	res, err := malloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, fmt.Errorf("wasm: malloc: %w", err)
	}
	ptr := uint32(res[0])
	if ptr == 0 {
		return 0, fmt.Errorf("wasm: malloc(%d) returned NULL", size)
	}
	if !m.Memory().Write(ptr, b) {
		return 0, fmt.Errorf("wasm: write of %d bytes at %#x out of range", len(b), ptr)
	}
	return ptr, nil
}

// freeWasm releases memory allocated by the copy helpers
func freeWasm(ctx context.Context, m api.Module, ptr uint32) {
	if ptr == 0 {
		return
	}
	_, _ = m.ExportedFunction(guestFree).Call(ctx, uint64(ptr))
}

// readCString reads the NUL terminated string at ptr. A NULL pointer reads
// as the empty string.
func readCString(mem api.Memory, ptr uint32) (string, error) {
	if ptr == 0 {
		return "", nil
	}
	size := mem.Size()
	if ptr >= size {
		return "", fmt.Errorf("wasm: string pointer %#x out of range", ptr)
	}
	buf, _ := mem.Read(ptr, size-ptr)
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), nil
		}
	}
	return "", fmt.Errorf("wasm: string at %#x is not terminated", ptr)
}

// readBytes copies length bytes at ptr out of guest memory
func readBytes(mem api.Memory, ptr, length uint32) ([]byte, error) {
	buf, ok := mem.Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("wasm: read of %d bytes at %#x out of range", length, ptr)
	}
	return append([]byte{}, buf...), nil
}
