package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/audit"
	"storefront/internal/config"
	"storefront/internal/consumers"
	"storefront/internal/health"
	"storefront/internal/notification"
	"storefront/internal/order"
	"storefront/internal/payment"
	"storefront/internal/readmodels"
	"storefront/internal/recovery"
	"storefront/internal/transaction"
	"storefront/kit/broker"
	"storefront/kit/db"
	gateway "storefront/kit/external_payment_gateway"
	"storefront/kit/observability"
)

const healthTTL = 5 * time.Second

// App holds the wired services shared by the web server, the worker and
// the ops CLI.
type App struct {
	Config  *config.Config
	Logger  *observability.Logger
	Metrics *observability.Metrics

	Store   db.Client
	Journal *db.Journal
	Bus     *broker.Bus
	Gateway gateway.Gateway
	Breaker *gateway.CircuitBreakerGateway

	Transactions  *transaction.DocumentRepository
	Payments      *payment.Service
	Reconciler    *payment.Reconciler
	Orders        *order.Service
	Audit         *audit.Service
	Notifications *notification.Service
	Recovery      *recovery.Service
	Health        *health.Service
	Projector     *readmodels.Projector

	closers []func() error
}

type Option func(*options)

type options struct {
	store   db.Client
	gateway gateway.Gateway
}

// WithStore replaces the configured store backend.
func WithStore(c db.Client) Option {
	return func(o *options) { o.store = c }
}

// WithGateway replaces the configured provider client. Breaker and
// instrumentation still wrap it.
func WithGateway(g gateway.Gateway) Option {
	return func(o *options) { o.gateway = g }
}

func New(ctx context.Context, cfg *config.Config, logger *observability.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	store := o.store
	if store == nil {
		var err error
		if store, err = a.openStore(ctx); err != nil {
			return nil, err
		}
	}
	a.Store = store

	if cfg.Store.JournalFile != "" {
		j, err := db.NewJournalWithFile(logger, cfg.Store.JournalFile)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Journal = j
		a.closers = append(a.closers, j.Close)
	} else {
		a.Journal = db.NewJournal(logger)
	}

	if cfg.Store.AuditFile != "" {
		au, err := audit.NewServiceWithFile(logger, cfg.Store.AuditFile)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Audit = au
		a.closers = append(a.closers, au.Close)
	} else {
		a.Audit = audit.NewService(logger)
	}

	a.Bus = broker.New(logger)
	a.buildGateway(o.gateway)

	envs := cfg.Environments()
	a.Transactions = transaction.NewDocumentRepository(store, logger)
	a.Payments = payment.NewService(a.Transactions, a.Gateway, envs, a.Bus, a.Journal, a.Metrics, logger,
		payment.WithReturnURL(cfg.Gateway.ReturnURL))
	a.Reconciler = payment.NewReconciler(a.Transactions, a.Gateway, envs, a.Bus, a.Journal, a.Metrics, logger)
	a.Orders = order.NewService(order.NewDocumentRepository(store, logger), a.Bus, a.Metrics, logger)
	a.Notifications = notification.NewService(logger)
	a.Recovery = recovery.NewService(a.Transactions, a.Reconciler, a.Bus, a.Metrics, logger,
		recovery.WithThreshold(cfg.Recovery.Threshold),
		recovery.WithConcurrency(cfg.Recovery.Concurrency))

	a.Projector = readmodels.NewProjector()
	if err := a.Projector.Replay(ctx, a.Journal); err != nil {
		logger.Error("read model replay failed", "layer", "app", "error", err.Error())
		_ = a.Close()
		return nil, err
	}

	consumers.Register(a.Bus, consumers.Handlers{
		Audit:        consumers.NewAuditEvent(a.Audit),
		Notification: consumers.NewNotificationEvent(a.Notifications),
		Order:        consumers.NewOrderEvent(logger, a.Orders, a.Recovery),
		Projection:   a.Projector,
	})

	a.Health = health.NewService(healthTTL, map[string]health.CheckFunc{
		"store":   store.Ping,
		"gateway": a.gatewayCheck(envs),
	})

	logger.Info("app wired", "layer", "app", "store", cfg.Store.Backend, "fake_gateway", cfg.Gateway.Fake,
		"default_environment", cfg.Gateway.DefaultEnvironment, "topics", a.Bus.Topics())
	return a, nil
}

func (a *App) openStore(ctx context.Context) (db.Client, error) {
	cfg := a.Config.Store
	switch cfg.Backend {
	case config.BackendRedis:
		c, err := db.OpenRedis(ctx, cfg.RedisURL,
			db.WithRedisPrefix(cfg.RedisPrefix),
			db.WithRedisIndex(transaction.Collection, transaction.IndexedFields...),
			db.WithRedisIndex(order.Collection, order.IndexedFields...),
			db.WithRedisLogger(a.Logger))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c.Close)
		return c, nil
	case config.BackendPostgres:
		c, err := db.OpenPostgres(ctx, cfg.PostgresURL,
			db.WithPostgresIndex(transaction.Collection, transaction.IndexedFields...),
			db.WithPostgresIndex(order.Collection, order.IndexedFields...),
			db.WithPostgresLogger(a.Logger))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c.Close)
		return c, nil
	case config.BackendMemory:
		opts := []db.MemoryOption{
			db.WithIndex(transaction.Collection, transaction.IndexedFields...),
			db.WithIndex(order.Collection, order.IndexedFields...),
			db.WithMemoryLogger(a.Logger),
		}
		if cfg.File != "" {
			opts = append(opts, db.WithJSONFile(cfg.File))
		}
		return db.NewMemoryClient(opts...)
	default:
		return nil, fmt.Errorf("%w: store backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
}

func (a *App) buildGateway(base gateway.Gateway) {
	gc := a.Config.Gateway
	if base == nil {
		if gc.Fake {
			base = gateway.NewFakeGateway(gc.FakeDelay)
		} else {
			base = gateway.NewHTTPClient(gc.Timeout, gateway.WithRateLimit(gc.RateLimit, gc.RateBurst))
		}
	}
	a.Breaker = gateway.NewCircuitBreakerGateway(base, gateway.CircuitBreakerConfig{
		FailureThreshold: gc.BreakerFailures,
		OpenTimeout:      gc.BreakerOpenFor,
	})
	a.Gateway = gateway.NewInstrumentedGateway(a.Breaker, a.Metrics, a.Logger)
}

func (a *App) gatewayCheck(envs config.Environments) health.CheckFunc {
	return func(ctx context.Context) error {
		if a.Breaker.Open() {
			return gateway.ErrCircuitOpen
		}
		env, err := envs.Resolve(envs.DefaultName())
		if err != nil {
			return err
		}
		_, err = a.Gateway.Authenticate(ctx, env)
		return err
	}
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}
