package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// exitFatal is the process status for any setup or I/O failure.
const exitFatal = 100

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ltv-pipeline:", err)
		cancel()
		os.Exit(exitFatal)
	}
}
