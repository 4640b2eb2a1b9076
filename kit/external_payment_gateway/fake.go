package external_payment_gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// FakeGateway is a deterministic in-process provider for local runs.
// Amounts whose minor units are divisible by 11 are declined at status time;
// everything else completes. SetState overrides the outcome per order.
type FakeGateway struct {
	delay time.Duration

	mu     sync.Mutex
	orders map[string]fakeOrder
}

type fakeOrder struct {
	amount int64
	state  string
}

func NewFakeGateway(delay time.Duration) *FakeGateway {
	return &FakeGateway{delay: delay, orders: make(map[string]fakeOrder)}
}

func (g *FakeGateway) wait(ctx context.Context) error {
	if g.delay <= 0 {
		if ctx.Err() != nil {
			return &GatewayError{Op: "fake", Reason: "context done", Err: errors.Join(ErrTimeout, ctx.Err())}
		}
		return nil
	}
	select {
	case <-ctx.Done():
		return &GatewayError{Op: "fake", Reason: "context done", Err: errors.Join(ErrTimeout, ctx.Err())}
	case <-time.After(g.delay):
		return nil
	}
}

func (g *FakeGateway) Authenticate(ctx context.Context, env Environment) (Token, error) {
	if err := g.wait(ctx); err != nil {
		return Token{}, err
	}
	return Token{AccessToken: "fake-" + string(env.Name), TokenType: "O-Bearer", ExpiresAt: time.Now().Add(time.Hour).Unix()}, nil
}

func (g *FakeGateway) Pay(ctx context.Context, env Environment, req PayRequest) (*PayResponse, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	if req.MerchantOrderID == "" || req.AmountMinor <= 0 {
		return nil, &GatewayError{Op: "pay", Reason: "invalid pay request", StatusCode: 400,
			Raw: map[string]any{"code": "BAD_REQUEST"}, Err: ErrClient}
	}
	id := fmt.Sprintf("gw_%s", req.MerchantOrderID)
	state := "COMPLETED"
	if req.AmountMinor%11 == 0 {
		state = "FAILED"
	}

	g.mu.Lock()
	if cur, ok := g.orders[id]; ok && cur.state != "" {
		state = cur.state
	}
	g.orders[id] = fakeOrder{amount: req.AmountMinor, state: state}
	g.mu.Unlock()

	redirect := fmt.Sprintf("https://%s.fake-gateway.local/checkout/%s?redirect=%s", env.Name, id, req.RedirectURL)
	return &PayResponse{
		RedirectURL:     redirect,
		ProviderOrderID: id,
		State:           "PENDING",
		Raw: map[string]any{
			"redirectUrl":     redirect,
			"providerOrderId": id,
			"state":           "PENDING",
		},
	}, nil
}

func (g *FakeGateway) QueryStatus(ctx context.Context, env Environment, gatewayOrderID string) (*StatusResponse, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	g.mu.Lock()
	o, ok := g.orders[gatewayOrderID]
	g.mu.Unlock()
	if !ok {
		return nil, &GatewayError{Op: "status", Reason: "order not found", StatusCode: 404,
			Raw: map[string]any{"code": "ORDER_NOT_FOUND"}, Err: ErrClient}
	}
	state, err := NormalizeState(o.state)
	if err != nil {
		return nil, &GatewayError{Op: "status", Reason: "unknown payment state", Err: err}
	}
	return &StatusResponse{
		State:        state,
		ResponseCode: o.state,
		Raw: map[string]any{
			"orderId":      gatewayOrderID,
			"paymentState": o.state,
			"amount":       o.amount,
		},
	}, nil
}

// SetState forces the provider-side state of an order, e.g. "PENDING".
func (g *FakeGateway) SetState(gatewayOrderID, state string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o := g.orders[gatewayOrderID]
	o.state = state
	g.orders[gatewayOrderID] = o
}
