package order

import (
	"context"
	"time"

	"storefront/kit/broker"
)

// RepositoryContract define order repository responsibility.
type RepositoryContract interface {
	Get(ctx context.Context, orderID string) (*Order, error)
	Save(ctx context.Context, o *Order) error
	MarkPaid(ctx context.Context, orderID string, details PaymentDetails, at time.Time) error
}

// ServiceContract define order service responsibility.
type ServiceContract interface {
	Get(ctx context.Context, orderID string) (*Order, error)
	Save(ctx context.Context, o *Order) error
	MarkPaid(ctx context.Context, orderID string, details PaymentDetails) error
}

// PublisherContract define publish responsibility (broker).
type PublisherContract interface {
	Publish(ctx context.Context, evt broker.Event) []error
}
