package payment

import (
	"context"

	"storefront/internal/transaction"
	"storefront/kit/broker"
	"storefront/kit/db"
	gateway "storefront/kit/external_payment_gateway"
)

// RepositoryContract define transaction store responsibility.
type RepositoryContract interface {
	transaction.RepositoryContract
}

// ServiceContract define orchestrator responsibility.
type ServiceContract interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	Get(ctx context.Context, transactionID string) (*transaction.Transaction, error)
	History(ctx context.Context, transactionID string) ([]db.Record, error)
}

// ReconcilerContract define callback reconciliation responsibility.
type ReconcilerContract interface {
	Complete(ctx context.Context, gatewayOrderID string) (*CompleteResult, error)
}

// GatewayContract define payment provider responsibility.
type GatewayContract interface {
	gateway.Gateway
}

// EnvironmentsContract resolves provider credentials by name.
type EnvironmentsContract interface {
	Resolve(name gateway.EnvironmentName) (gateway.Environment, error)
	DefaultName() gateway.EnvironmentName
}

// PublisherContract define publish responsibility (broker).
type PublisherContract interface {
	Publish(ctx context.Context, evt broker.Event) []error
}

// StoreContract define journal responsibility (event store).
type StoreContract interface {
	Append(ctx context.Context, aggregateID string, evt broker.Event) error
	Load(ctx context.Context, aggregateID string) []db.Record
}
