package recovery

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"storefront/internal/events"
	"storefront/internal/transaction"
	"storefront/kit/observability"
)

const (
	DefaultThreshold   = 15 * time.Minute
	DefaultConcurrency = 4
)

// DeadLetter is an event whose handler gave up.
type DeadLetter struct {
	Topic   string
	Reason  string
	Payload any
	At      time.Time
}

// Report summarizes one sweep.
type Report struct {
	Reconciled   int `json:"reconciled"`
	Settled      int `json:"settled"`
	StillPending int `json:"stillPending"`
	Stuck        int `json:"stuck"`
	Errors       int `json:"errors"`
}

type Service struct {
	repo        RepositoryContract
	reconciler  ReconcilerContract
	bus         PublisherContract
	metrics     *observability.Metrics
	logger      *observability.Logger
	threshold   time.Duration
	concurrency int
	now         func() time.Time

	mu  sync.Mutex
	dlq []DeadLetter
}

type Option func(*Service)

// WithThreshold sets how old a non-terminal transaction must be before
// the sweep touches it.
func WithThreshold(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.threshold = d
		}
	}
}

func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func NewService(repo RepositoryContract, reconciler ReconcilerContract, bus PublisherContract,
	metrics *observability.Metrics, logger *observability.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	s := &Service{
		repo:        repo,
		reconciler:  reconciler,
		bus:         bus,
		metrics:     metrics,
		logger:      logger,
		threshold:   DefaultThreshold,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep re-queries the provider for processing transactions whose callback
// never arrived and reports initiated ones that never reached the provider.
func (s *Service) Sweep(ctx context.Context) (Report, error) {
	var rep Report
	cutoff := s.now().Add(-s.threshold)

	processing, err := s.repo.ListByStatus(ctx, transaction.StatusProcessing)
	if err != nil {
		s.logger.Error("list processing failed", "layer", "service", "component", "recovery", "method", "Sweep", "error", err.Error())
		return rep, err
	}
	initiated, err := s.repo.ListByStatus(ctx, transaction.StatusInitiated)
	if err != nil {
		s.logger.Error("list initiated failed", "layer", "service", "component", "recovery", "method", "Sweep", "error", err.Error())
		return rep, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, tx := range processing {
		tx := tx
		if tx.UpdatedAt.After(cutoff) || tx.GatewayOrderID == "" {
			continue
		}
		g.Go(func() error {
			res, err := s.reconciler.Complete(gctx, tx.GatewayOrderID)
			mu.Lock()
			defer mu.Unlock()
			rep.Reconciled++
			switch {
			case err != nil:
				rep.Errors++
				s.logger.Warn("sweep reconcile failed", "layer", "service", "component", "recovery", "method", "Sweep",
					"transaction_id", tx.ID, "gateway_order_id", tx.GatewayOrderID, "error", err.Error())
			case res.Status.IsTerminal():
				rep.Settled++
			default:
				rep.StillPending++
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	for _, tx := range initiated {
		if tx.UpdatedAt.After(cutoff) {
			continue
		}
		rep.Stuck++
		age := s.now().Sub(tx.UpdatedAt)
		s.logger.Error("transaction stuck in initiated", "layer", "service", "component", "recovery", "method", "Sweep",
			"transaction_id", tx.ID, "order_id", tx.OrderID, "age", age.String())
		if s.bus != nil {
			s.bus.Publish(ctx, events.TransactionStuck{
				TransactionID: tx.ID,
				OrderID:       tx.OrderID,
				Status:        string(tx.Status),
				Age:           age,
				At:            s.now().UTC(),
			})
		}
	}
	if s.metrics != nil && rep.Stuck > 0 {
		s.metrics.TransactionsStuckAdd(rep.Stuck)
	}

	s.logger.Info("sweep done", "layer", "service", "component", "recovery", "method", "Sweep",
		"reconciled", rep.Reconciled, "settled", rep.Settled, "pending", rep.StillPending, "stuck", rep.Stuck, "errors", rep.Errors)
	return rep, nil
}

// Run sweeps every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("sweep failed", "layer", "service", "component", "recovery", "method", "Run", "error", err.Error())
			}
		}
	}
}

func (s *Service) SendToDLQ(ctx context.Context, topic string, reason string, payload any) {
	s.mu.Lock()
	s.dlq = append(s.dlq, DeadLetter{Topic: topic, Reason: reason, Payload: payload, At: s.now().UTC()})
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.HandlerFailed(topic)
	}
	s.logger.Error("dlq", "topic", topic, "reason", reason, "payload", payload)
}

func (s *Service) DeadLetters() []DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DeadLetter(nil), s.dlq...)
}
