package wrenlet

import (
	"go.uber.org/zap"

	"github.com/cbrownsey/wrenlet/runtime"
)

// Write forwards script output to the output sink.
func (h *header) Write(_ runtime.VM, text string) {
	if h.output == nil {
		return
	}
	if _, err := h.output.Write([]byte(text)); err != nil {
		h.logger.Warn("failed to write script output", zap.Error(err))
	}
}

// Error records a diagnostic. Compile and runtime errors replace any pending
// error; stack trace frames extend the pending runtime error.
func (h *header) Error(_ runtime.VM, kind runtime.ErrorType, module string, line int, message string) {
	switch kind {
	case runtime.ErrorCompile:
		h.replacePending(&CompileError{Module: module, Line: line, Message: message})
	case runtime.ErrorRuntime:
		h.replacePending(&RuntimeError{Message: message})
	case runtime.ErrorStackTrace:
		re, ok := h.pending.(*RuntimeError)
		if !ok {
			panic(violation(h, "error callback", "stack trace frame %s:%d without a runtime error", module, line))
		}
		re.StackTrace = append(re.StackTrace, Frame{Module: module, Line: line, Method: message})
	default:
		h.logger.Warn("unknown error kind", zap.Stringer("kind", kind), zap.String("message", message))
	}
}

func (h *header) replacePending(err error) {
	if h.pending != nil {
		h.logger.Debug("pending error overwritten", zap.NamedError("dropped", h.pending))
	}
	h.pending = err
}

// drain returns the outcome of an Interpret or Call and clears the pending
// error. A failure the VM reported without any error callback gets a generic
// error.
func (h *header) drain(result runtime.InterpretResult, module string) error {
	err := h.pending
	h.pending = nil
	switch result {
	case runtime.ResultSuccess:
		if err != nil {
			h.logger.Debug("error reported by a successful run", zap.Error(err))
		}
		return nil
	case runtime.ResultCompileError:
		if err == nil {
			err = &CompileError{Module: module, Line: -1, Message: "compilation failed"}
		}
	default:
		if err == nil {
			err = &RuntimeError{Message: "runtime error in module " + module}
		}
	}
	return err
}
