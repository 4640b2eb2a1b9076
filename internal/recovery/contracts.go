package recovery

import (
	"context"

	"storefront/internal/payment"
	"storefront/internal/transaction"
	"storefront/kit/broker"
)

// RepositoryContract define the transaction listing the sweep needs.
type RepositoryContract interface {
	ListByStatus(ctx context.Context, status transaction.Status) ([]*transaction.Transaction, error)
}

// ReconcilerContract define callback reconciliation responsibility.
type ReconcilerContract interface {
	Complete(ctx context.Context, gatewayOrderID string) (*payment.CompleteResult, error)
}

// PublisherContract define publish responsibility (broker).
type PublisherContract interface {
	Publish(ctx context.Context, evt broker.Event) []error
}
