package order

import (
	"context"
	"errors"
	"time"

	"storefront/internal/events"
	"storefront/kit/db"
	"storefront/kit/observability"
)

type Service struct {
	repo    RepositoryContract
	bus     PublisherContract
	metrics *observability.Metrics
	logger  *observability.Logger
	now     func() time.Time
}

func NewService(repo RepositoryContract, bus PublisherContract, metrics *observability.Metrics, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Service{repo: repo, bus: bus, metrics: metrics, logger: logger, now: time.Now}
}

func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, errors.Join(db.ErrInvalid, ErrInvalidRequest)
	}
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		s.logger.Error("get order failed", "layer", "service", "component", "order", "method", "Get",
			"order_id", orderID, "error", err.Error())
		return nil, err
	}
	return o, nil
}

func (s *Service) Save(ctx context.Context, o *Order) error {
	if err := ValidateOrder(o); err != nil {
		return errors.Join(db.ErrInvalid, err)
	}
	return s.repo.Save(ctx, o)
}

// MarkPaid records the settled payment on the order and announces it.
func (s *Service) MarkPaid(ctx context.Context, orderID string, details PaymentDetails) error {
	if err := ValidatePaymentDetails(orderID, details); err != nil {
		s.logger.Error("invalid mark paid request", "layer", "service", "component", "order", "method", "MarkPaid",
			"order_id", orderID, "transaction_id", details.TransactionID, "error", err.Error())
		return errors.Join(db.ErrInvalid, err)
	}
	now := s.now().UTC()
	if details.PaidAt.IsZero() {
		details.PaidAt = now
	}
	if err := s.repo.MarkPaid(ctx, orderID, details, now); err != nil {
		s.logger.Error("mark order paid failed", "layer", "service", "component", "order", "method", "MarkPaid",
			"order_id", orderID, "transaction_id", details.TransactionID, "error", err.Error())
		return err
	}

	if s.metrics != nil {
		s.metrics.OrdersPaidAdd(1)
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events.OrderPaid{OrderID: orderID, TransactionID: details.TransactionID, At: now})
	}
	s.logger.Info("order paid", "layer", "service", "component", "order", "method", "MarkPaid",
		"order_id", orderID, "transaction_id", details.TransactionID)
	return nil
}
