package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"storefront/internal/transaction"
	"storefront/kit/broker"
	"storefront/kit/db"
	gateway "storefront/kit/external_payment_gateway"
)

type RepositoryMock struct {
	mock.Mock
	RepositoryContract
}

func (m *RepositoryMock) Create(ctx context.Context, t *transaction.Transaction) (string, error) {
	args := m.Called(ctx, t)
	if args.Error(1) == nil {
		t.ID = args.String(0)
	}
	return args.String(0), args.Error(1)
}

func (m *RepositoryMock) UpdateIf(ctx context.Context, id string, expected transaction.Status, p transaction.Patch) error {
	args := m.Called(ctx, id, expected, p)
	return args.Error(0)
}

func (m *RepositoryMock) Get(ctx context.Context, id string) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *RepositoryMock) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*transaction.Transaction, error) {
	args := m.Called(ctx, gatewayOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *RepositoryMock) FindByOrderID(ctx context.Context, orderID string) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
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

type StoreMock struct {
	mock.Mock
	StoreContract
}

func (m *StoreMock) Append(ctx context.Context, aggregateID string, evt broker.Event) error {
	args := m.Called(ctx, aggregateID, evt)
	return args.Error(0)
}

func (m *StoreMock) Load(ctx context.Context, aggregateID string) []db.Record {
	args := m.Called(ctx, aggregateID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]db.Record)
}

type staticEnvs struct {
	def  gateway.EnvironmentName
	envs map[gateway.EnvironmentName]gateway.Environment
}

func newStaticEnvs() staticEnvs {
	return staticEnvs{
		def: gateway.EnvTest,
		envs: map[gateway.EnvironmentName]gateway.Environment{
			gateway.EnvTest:       {Name: gateway.EnvTest, BaseURL: "https://sandbox.pay", ClientID: "test-id", ClientSecret: "s", ClientVersion: "1"},
			gateway.EnvProduction: {Name: gateway.EnvProduction, BaseURL: "https://api.pay", ClientID: "prod-id", ClientSecret: "s", ClientVersion: "1"},
		},
	}
}

func (s staticEnvs) Resolve(name gateway.EnvironmentName) (gateway.Environment, error) {
	env, ok := s.envs[name]
	if !ok {
		return gateway.Environment{}, fmt.Errorf("%w: %q", gateway.ErrEnvironment, name)
	}
	return env, nil
}

func (s staticEnvs) DefaultName() gateway.EnvironmentName { return s.def }

// countingClient counts successful writes that set a given status.
type countingClient struct {
	db.Client
	mu     sync.Mutex
	writes map[string]int
}

func newCountingClient(inner db.Client) *countingClient {
	return &countingClient{Client: inner, writes: make(map[string]int)}
}

func (c *countingClient) PatchIf(ctx context.Context, collection, id string, cond db.Condition, partial db.Document) error {
	err := c.Client.PatchIf(ctx, collection, id, cond, partial)
	if err == nil {
		if s, ok := partial["status"].(string); ok {
			c.mu.Lock()
			c.writes[s]++
			c.mu.Unlock()
		}
	}
	return err
}

func (c *countingClient) Patch(ctx context.Context, collection, id string, partial db.Document) error {
	err := c.Client.Patch(ctx, collection, id, partial)
	if err == nil {
		if s, ok := partial["status"].(string); ok {
			c.mu.Lock()
			c.writes[s]++
			c.mu.Unlock()
		}
	}
	return err
}

func (c *countingClient) count(status transaction.Status) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes[string(status)]
}
