package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"storefront/cmd/web/handlers"
	"storefront/cmd/web/validator"
	"storefront/internal/app"
	"storefront/internal/metrics"
)

const snapshotInterval = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Boot(ctx, os.Getenv("CHECKOUT_CONFIG"), "web")
	if err != nil {
		_, _ = os.Stderr.WriteString("startup failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()
	logger := a.Logger
	cfg := a.Config

	jsonV := validator.NewJSON()
	statsSvc := metrics.NewService(a.Metrics)
	router := handlers.NewRouter(handlers.Routes{
		Payment:    handlers.NewPayment(jsonV, a.Payments, a.Reconciler, logger),
		Order:      handlers.NewOrder(jsonV, a.Orders, a.Projector, logger),
		Health:     handlers.NewHealth(a.Health, logger),
		Metrics:    handlers.NewMetrics(statsSvc, logger),
		Prometheus: a.Metrics.Handler(),
		Logger:     logger,
		Timeout:    cfg.Server.WriteTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("web server started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Recovery.Interval > 0 {
		g.Go(func() error {
			return a.Recovery.Run(gctx, cfg.Recovery.Interval)
		})
	}
	g.Go(func() error {
		t := time.NewTicker(snapshotInterval)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				snap, err := statsSvc.Snapshot()
				if err != nil {
					logger.Error("metrics snapshot failed", "error", err.Error())
					continue
				}
				logger.Info("metrics snapshot", metrics.Pairs(snap)...)
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("web server stopping")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("web server error", "error", err.Error())
	}
}
