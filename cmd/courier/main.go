// -- cmd/courier/main.go --
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/courier-cli/cmd"
	"github.com/xkilldash9x/courier-cli/internal/observability"
)

const panicLogFile = "panic.log"

// Injection points for tests.
var (
	osExit      = os.Exit
	osWriteFile = os.WriteFile
)

func main() {
	defer handlePanic()

	// SIGINT/SIGTERM cancel the batch between prospects; the in-flight
	// prospect still reaches a terminal outcome before the process exits.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			// Graceful shutdown: partial results are already on disk.
			osExit(0)
			return
		}
		osExit(1)
	}
}

// handlePanic flushes logs and preserves the stack before the process dies.
// A crash must never silently eat an authenticated session's run record.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	message := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(message), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to write panic log: %v\n%s\n", err, message)
		osExit(2)
		return
	}
	fmt.Fprintf(os.Stderr, "courier crashed; details written to %s\n", panicLogFile)
	osExit(2)
}
