package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"storefront/internal/health"
	"storefront/internal/order"
	"storefront/internal/payment"
	"storefront/internal/readmodels"
	"storefront/internal/transaction"
	"storefront/kit/db"
)

type paymentServiceMock struct{ mock.Mock }

func (m *paymentServiceMock) Initiate(ctx context.Context, req payment.InitiateRequest) (*payment.InitiateResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*payment.InitiateResult)
	return res, args.Error(1)
}

func (m *paymentServiceMock) Get(ctx context.Context, transactionID string) (*transaction.Transaction, error) {
	args := m.Called(ctx, transactionID)
	tx, _ := args.Get(0).(*transaction.Transaction)
	return tx, args.Error(1)
}

func (m *paymentServiceMock) History(ctx context.Context, transactionID string) ([]db.Record, error) {
	args := m.Called(ctx, transactionID)
	recs, _ := args.Get(0).([]db.Record)
	return recs, args.Error(1)
}

type reconcilerMock struct{ mock.Mock }

func (m *reconcilerMock) Complete(ctx context.Context, gatewayOrderID string) (*payment.CompleteResult, error) {
	args := m.Called(ctx, gatewayOrderID)
	res, _ := args.Get(0).(*payment.CompleteResult)
	return res, args.Error(1)
}

type orderServiceMock struct{ mock.Mock }

func (m *orderServiceMock) Get(ctx context.Context, orderID string) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

func (m *orderServiceMock) Save(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

type readModelMock struct{ mock.Mock }

func (m *readModelMock) GetOrder(orderID string) (readmodels.OrderPaymentView, bool) {
	args := m.Called(orderID)
	v, _ := args.Get(0).(readmodels.OrderPaymentView)
	return v, args.Bool(1)
}

type healthMock struct{ mock.Mock }

func (m *healthMock) Check(ctx context.Context) health.Result {
	args := m.Called(ctx)
	return args.Get(0).(health.Result)
}
