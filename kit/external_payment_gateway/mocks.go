package external_payment_gateway

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type GatewayMock struct {
	mock.Mock
	Gateway
}

func (m *GatewayMock) Authenticate(ctx context.Context, env Environment) (Token, error) {
	ret := m.Called(ctx, env)
	return ret.Get(0).(Token), ret.Error(1)
}

func (m *GatewayMock) Pay(ctx context.Context, env Environment, req PayRequest) (*PayResponse, error) {
	ret := m.Called(ctx, env, req)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(*PayResponse), ret.Error(1)
}

func (m *GatewayMock) QueryStatus(ctx context.Context, env Environment, gatewayOrderID string) (*StatusResponse, error) {
	ret := m.Called(ctx, env, gatewayOrderID)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(*StatusResponse), ret.Error(1)
}
