package wrenlet

import (
	"context"
	"io"
	"math"
	"os"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cbrownsey/wrenlet/runtime"
)

// payload is what the embedder hands over at construction. It is owned by the
// header and dropped exactly once, before the native VM is freed.
type payload struct {
	userData any
	loader   ModuleLoader
	output   io.Writer
}

// header is the per-VM block installed as the native VM's user data. Every
// callback reaches it through the VM and nothing else.
type header struct {
	payload

	id     uuid.UUID
	logger *zap.Logger

	refs int
	// slotsAllocated is the largest slot count requested through the facade.
	slotsAllocated int
	// pending holds the error reported during the current Interpret or Call.
	pending error
	foreign []*ForeignClass

	native runtime.VM
	// backend is closed at teardown when the facade created it.
	backend runtime.Runtime

	// slotGen invalidates Slots views whenever the slot array may be
	// repurposed.
	slotGen uint64
	// foreignDepth counts the foreign methods and allocators running.
	foreignDepth int
	// running counts the native Interpret and Call frames on the stack. The
	// VM cannot be reentered or torn down while it is positive.
	running int

	teardownErr error
}

var _ runtime.Host = (*header)(nil)

// claim adds a holder.
func (h *header) claim() {
	if h.refs <= 0 {
		panic(violation(h, "claim", "vm already torn down"))
	}
	if h.refs == math.MaxInt {
		panic(violation(h, "claim", "reference count overflow"))
	}
	h.refs++
}

// release drops a holder and tears the VM down when it was the last one.
func (h *header) release() {
	if h.refs <= 0 {
		panic(violation(h, "release", "reference count already zero"))
	}
	h.refs--
	if h.refs == 0 {
		h.teardown()
	}
}

// run calls into the native VM with the running depth held.
func (h *header) run(fn func() runtime.InterpretResult) runtime.InterpretResult {
	h.running++
	defer func() { h.running-- }()
	return fn()
}

// checkRunning panics when the VM is inside Interpret or Call.
func (h *header) checkRunning(op string) {
	if h.running > 0 {
		panic(violation(h, op, "vm is running"))
	}
}

// teardown drops the payload, frees the native VM and closes a backend
// created by New, in that order.
func (h *header) teardown() {
	var err error
	for _, v := range []any{h.userData, h.loader, h.output} {
		c, ok := v.(io.Closer)
		if !ok || v == os.Stdout || v == os.Stderr {
			continue
		}
		err = multierr.Append(err, c.Close())
	}
	h.payload = payload{}

	h.native.Free()
	h.native = nil
	h.foreign = nil
	h.pending = nil
	h.slotGen++

	if h.backend != nil {
		err = multierr.Append(err, h.backend.Close(context.Background()))
		h.backend = nil
	}
	h.teardownErr = err
	h.logger.Debug("vm torn down", zap.Error(err))
}

// share is one holder's claim on a header. release runs exactly once.
type share struct {
	h        *header
	released bool
}

func newShare(h *header) share {
	h.claim()
	return share{h: h}
}

func (s *share) release(op string) {
	if s.released {
		panic(violation(s.h, op, "released twice"))
	}
	s.checkLast(op)
	s.released = true
	s.h.release()
}

// checkLast panics when releasing s would tear down a running VM.
func (s *share) checkLast(op string) {
	if s.h.refs == 1 {
		s.h.checkRunning(op)
	}
}

func (s *share) check(op string) *header {
	if s.released {
		panic(violation(s.h, op, "used after release"))
	}
	return s.h
}
