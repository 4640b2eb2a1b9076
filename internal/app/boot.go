package app

import (
	"context"
	"time"

	"storefront/internal/config"
	"storefront/kit/observability"
)

const tracingFlushTimeout = 5 * time.Second

// Boot loads configuration from path (empty means defaults plus env), builds
// the logger and tracer provider, and wires the App. The tracer is flushed by
// App.Close.
func Boot(ctx context.Context, path, process string) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, err := observability.NewLoggerWithConfig(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	logger = logger.With("service", cfg.Tracing.ServiceName, "process", process)

	shutdown, err := observability.InitTracing(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
	if err != nil {
		logger.Error("tracing init failed", "layer", "app", "endpoint", cfg.Tracing.Endpoint, "error", err.Error())
		return nil, err
	}

	a, err := New(ctx, cfg, logger)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		flushCtx, cancel := context.WithTimeout(context.Background(), tracingFlushTimeout)
		defer cancel()
		return shutdown(flushCtx)
	})
	return a, nil
}
