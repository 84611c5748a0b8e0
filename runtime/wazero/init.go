package wazero

import (
	"github.com/cbrownsey/wrenlet/runtime"
)

func init() {
	runtime.Register(runtime.RuntimeTypeWazero, newWazeroRuntime)
}
