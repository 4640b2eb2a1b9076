package consumers

import (
	"context"
	"fmt"

	"storefront/internal/events"
	"storefront/internal/notification"
	"storefront/kit/broker"
)

type NotificationEvent struct {
	n NotifierContract
}

func NewNotificationEvent(n NotifierContract) *NotificationEvent {
	return &NotificationEvent{n: n}
}

func (h *NotificationEvent) HandleTransactionSucceeded(ctx context.Context, evt broker.Event) error {
	if h.n == nil {
		return nil
	}
	e, ok := evt.(events.TransactionSucceeded)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnexpectedEventType, evt)
	}
	h.n.Notify(ctx, e.OrderID, notification.MsgPaymentCompleted)
	return nil
}

func (h *NotificationEvent) HandleTransactionFailed(ctx context.Context, evt broker.Event) error {
	if h.n == nil {
		return nil
	}
	e, ok := evt.(events.TransactionFailed)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnexpectedEventType, evt)
	}
	h.n.Notify(ctx, e.OrderID, notification.MsgPaymentFailed)
	return nil
}
