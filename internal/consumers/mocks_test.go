package consumers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"storefront/internal/order"
	"storefront/kit/broker"
)

type AuditorMock struct {
	mock.Mock
	AuditorContract
}

func (m *AuditorMock) Record(ctx context.Context, evt broker.Event) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

type NotifierMock struct {
	mock.Mock
	NotifierContract
}

func (m *NotifierMock) Notify(ctx context.Context, orderID string, msg string) {
	m.Called(ctx, orderID, msg)
}

type OrdersMock struct {
	mock.Mock
	OrdersContract
}

func (m *OrdersMock) MarkPaid(ctx context.Context, orderID string, details order.PaymentDetails) error {
	args := m.Called(ctx, orderID, details)
	return args.Error(0)
}

type DeadLetterMock struct {
	mock.Mock
	DeadLetterContract
}

func (m *DeadLetterMock) SendToDLQ(ctx context.Context, topic string, reason string, payload any) {
	m.Called(ctx, topic, reason, payload)
}
