package notification

import (
	"context"
	"sync"

	"storefront/kit/observability"
)

const (
	MsgPaymentCompleted = "payment completed"
	MsgPaymentFailed    = "payment could not be completed"
)

// Service keeps the customer-facing messages sent per order.
type Service struct {
	logger *observability.Logger

	mu   sync.Mutex
	sent map[string][]string
}

func NewService(logger *observability.Logger) *Service {
	return &Service{logger: logger, sent: make(map[string][]string)}
}

func (s *Service) Notify(ctx context.Context, orderID string, msg string) {
	s.mu.Lock()
	s.sent[orderID] = append(s.sent[orderID], msg)
	s.mu.Unlock()
	if s.logger == nil {
		return
	}
	s.logger.Info("notify", "order_id", orderID, "msg", msg)
}

func (s *Service) Sent(orderID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent[orderID]...)
}
