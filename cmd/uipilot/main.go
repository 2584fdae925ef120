// File: cmd/uipilot/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/uipilot/cmd"
	"github.com/xkilldash9x/uipilot/internal/observability"
)

const panicLogFile = "panic.log"

var osExit = os.Exit

func main() {
	defer handlePanic()

	// Interrupts cancel the command context; scenarios and the detection
	// loop shut down cooperatively from there.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		observability.Sync()
		if errors.Is(err, context.Canceled) {
			osExit(0)
		}
		osExit(1)
	}
	observability.Sync()
}

// handlePanic writes crash details to a file so a wedged automation run
// leaves something to debug with.
func handlePanic() {
	if r := recover(); r != nil {
		observability.Sync()

		panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
		if err := os.WriteFile(panicLogFile, []byte(panicMessage), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
			fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
			osExit(1)
			return
		}

		fmt.Fprintf(os.Stderr, "CRASH DETECTED. Details logged to %s\n", panicLogFile)
		osExit(1)
	}
}
