package recovery

import (
	"context"

	"github.com/stretchr/testify/mock"

	"storefront/internal/payment"
	"storefront/internal/transaction"
	"storefront/kit/broker"
)

type RepositoryMock struct {
	mock.Mock
	RepositoryContract
}

func (m *RepositoryMock) ListByStatus(ctx context.Context, status transaction.Status) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

type ReconcilerMock struct {
	mock.Mock
	ReconcilerContract
}

func (m *ReconcilerMock) Complete(ctx context.Context, gatewayOrderID string) (*payment.CompleteResult, error) {
	args := m.Called(ctx, gatewayOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CompleteResult), args.Error(1)
}

type PublisherMock struct {
	mock.Mock
	PublisherContract
}

func (m *PublisherMock) Publish(ctx context.Context, evt broker.Event) []error {
	args := m.Called(ctx, evt)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]error)
}
