package wrenlet

import (
	"go.uber.org/zap"

	"github.com/cbrownsey/wrenlet/runtime"
)

// Handle keeps a VM value alive across garbage collections. It holds a claim
// on its VM, which is not torn down before every handle is released.
type Handle struct {
	share  share
	native runtime.Handle
	typ    SlotType
}

func newHandle(h *header, native runtime.Handle, typ SlotType) *Handle {
	return &Handle{share: newShare(h), native: native, typ: typ}
}

// Type returns the type tag of the value when the handle was taken.
func (hd *Handle) Type() SlotType { return hd.typ }

// Release releases the VM value, then the claim on the VM. Releasing twice
// panics.
func (hd *Handle) Release() {
	h := hd.share.check("Handle.Release")
	hd.share.checkLast("Handle.Release")
	h.native.ReleaseHandle(hd.native)
	hd.share.release("Handle.Release")
	logTeardown(h)
}

// store writes the handle's value into slot of the VM owning h.
func (hd *Handle) store(h *header, slot int) {
	owner := hd.share.check("Handle")
	if owner != h {
		panic(violation(h, "Handle", "handle belongs to vm %s", owner.id))
	}
	h.native.SetSlotHandle(slot, hd.native)
}

// logTeardown reports errors of a teardown triggered by a handle, which has
// no caller to return them to.
func logTeardown(h *header) {
	if h.refs == 0 && h.teardownErr != nil {
		h.logger.Warn("vm teardown failed", zap.Error(h.teardownErr))
	}
}
