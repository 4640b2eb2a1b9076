package order

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"storefront/kit/broker"
)

type RepositoryMock struct {
	mock.Mock
	RepositoryContract
}

func (m *RepositoryMock) Get(ctx context.Context, orderID string) (*Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *RepositoryMock) Save(ctx context.Context, o *Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *RepositoryMock) MarkPaid(ctx context.Context, orderID string, d PaymentDetails, at time.Time) error {
	args := m.Called(ctx, orderID, d, at)
	return args.Error(0)
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
