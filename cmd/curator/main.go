// Package main provides the curator binary entry point.
// Curator runs durable knowledge-domain workflows: domain bootstraps,
// document contributions, and the HTTP API and worker fleet behind them.
package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/curatorhq/curator/commands"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := commands.Root().Execute(); err != nil {
		if errors.Is(err, commands.ErrInterrupted) {
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
