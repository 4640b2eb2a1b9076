package transaction

import "context"

// RepositoryContract define transaction store responsibility.
type RepositoryContract interface {
	Create(ctx context.Context, t *Transaction) (string, error)
	Update(ctx context.Context, id string, p Patch) error
	UpdateIf(ctx context.Context, id string, expected Status, p Patch) error
	Get(ctx context.Context, id string) (*Transaction, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Transaction, error)
	FindByOrderID(ctx context.Context, orderID string) ([]*Transaction, error)
	ListByStatus(ctx context.Context, status Status) ([]*Transaction, error)
}
