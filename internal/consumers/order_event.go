package consumers

import (
	"context"
	"fmt"

	"storefront/internal/events"
	"storefront/internal/order"
	"storefront/kit/broker"
	"storefront/kit/observability"
)

// OrderEvent marks the order paid once its transaction succeeds. The
// transaction is already settled, so a failure here is dead-lettered.
type OrderEvent struct {
	logger *observability.Logger
	orders OrdersContract
	dlq    DeadLetterContract
}

func NewOrderEvent(logger *observability.Logger, orders OrdersContract, dlq DeadLetterContract) *OrderEvent {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &OrderEvent{logger: logger, orders: orders, dlq: dlq}
}

func (h *OrderEvent) HandleTransactionSucceeded(ctx context.Context, evt broker.Event) error {
	e, ok := evt.(events.TransactionSucceeded)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnexpectedEventType, evt)
	}
	details := order.PaymentDetails{
		TransactionID:  e.TransactionID,
		GatewayOrderID: e.GatewayOrderID,
		Amount:         e.Amount,
		Currency:       e.Currency,
		PaidAt:         e.At,
	}
	if err := h.orders.MarkPaid(ctx, e.OrderID, details); err != nil {
		h.logger.Error("mark order paid failed", "layer", "consumer", "component", "order", "method", "HandleTransactionSucceeded",
			"order_id", e.OrderID, "transaction_id", e.TransactionID, "error", err.Error())
		if h.dlq != nil {
			h.dlq.SendToDLQ(ctx, e.Name(), err.Error(), e)
		}
		return err
	}
	return nil
}
