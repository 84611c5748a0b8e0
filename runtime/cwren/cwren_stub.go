//go:build !cgo || !wren

package cwren

import (
	"fmt"

	"github.com/cbrownsey/wrenlet/runtime"
)

func init() {
	runtime.Register(runtime.RuntimeTypeCWren, newRuntime)
}

// Trampolines is zero when libwren is not linked.
var Trampolines = 0

func newRuntime(*runtime.Config) (runtime.Runtime, error) {
	return nil, fmt.Errorf("wren: binary built without cgo and the wren tag: %w", runtime.ErrRuntimeNotFound)
}
