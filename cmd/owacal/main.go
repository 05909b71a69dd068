package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	appLog "owacal/internal/log"
)

// version will be set at build time via -ldflags.
var version = "dev"

func main() {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		appLog.Error("owacal failed", err)
		os.Exit(1)
	}
}
