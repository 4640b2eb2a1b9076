package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/app"
)

const defaultInterval = time.Minute

// The worker runs the recovery sweep on its own so the web process can keep
// its sweep disabled. It shares the store with the web process.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Boot(ctx, os.Getenv("CHECKOUT_CONFIG"), "consumers")
	if err != nil {
		_, _ = os.Stderr.WriteString("startup failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	interval := a.Config.Recovery.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	a.Logger.Info("consumers started", "interval", interval.String(), "topics", a.Bus.Topics())

	if _, err := a.Recovery.Sweep(ctx); err != nil {
		a.Logger.Error("initial sweep failed", "error", err.Error())
	}
	if err := a.Recovery.Run(ctx, interval); err != nil {
		a.Logger.Error("recovery loop stopped", "error", err.Error())
	}
	a.Logger.Info("consumers stopped", "dead_letters", len(a.Recovery.DeadLetters()))
}
