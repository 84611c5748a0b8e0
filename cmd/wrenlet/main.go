// Command wrenlet runs Wren scripts.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/cbrownsey/wrenlet"
)

// Exit codes follow wren_cli, which uses the sysexits values.
const (
	exitUsage    = 64
	exitCompile  = 65
	exitNoInput  = 66
	exitRuntime  = 70
	exitInternal = 1
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var (
		compileErr *wrenlet.CompileError
		runtimeErr *wrenlet.RuntimeError
		usageErr   *usageError
	)
	switch {
	case errors.As(err, &compileErr):
		return exitCompile
	case errors.As(err, &runtimeErr):
		return exitRuntime
	case errors.As(err, &usageErr):
		return exitUsage
	case errors.Is(err, os.ErrNotExist):
		return exitNoInput
	default:
		return exitInternal
	}
}

// usageError is a problem with the command line or configuration.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }
