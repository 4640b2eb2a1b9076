package consumers

import (
	"context"
	"errors"

	"storefront/internal/order"
	"storefront/kit/broker"
)

var ErrUnexpectedEventType = errors.New("unexpected event type")

// AuditorContract define audit trail responsibility.
type AuditorContract interface {
	Record(ctx context.Context, evt broker.Event) error
}

// NotifierContract define customer notification responsibility.
type NotifierContract interface {
	Notify(ctx context.Context, orderID string, msg string)
}

// OrdersContract define the order update consumers perform.
type OrdersContract interface {
	MarkPaid(ctx context.Context, orderID string, details order.PaymentDetails) error
}

// DeadLetterContract define dead-letter responsibility (recovery).
type DeadLetterContract interface {
	SendToDLQ(ctx context.Context, topic string, reason string, payload any)
}

// SubscriberContract define subscription responsibility (broker).
type SubscriberContract interface {
	Subscribe(eventName, name string, h broker.Handler)
}

// ProjectorContract define read model responsibility.
type ProjectorContract interface {
	Apply(ctx context.Context, evt broker.Event) error
}
