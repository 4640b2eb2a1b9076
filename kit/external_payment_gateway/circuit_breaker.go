package external_payment_gateway

import (
	"context"
	"errors"
	"sync"
	"time"
)

type CircuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
	IsFailure        func(error) bool
}

// CircuitBreakerGateway stops calling the provider after FailureThreshold
// consecutive transport or server failures and lets a single probe through
// once OpenTimeout has passed. Client errors never trip it.
type CircuitBreakerGateway struct {
	next Gateway
	cfg  CircuitBreakerConfig
	now  func() time.Time

	mu           sync.Mutex
	state        int
	failures     int
	successes    int
	openedAt     time.Time
	halfInFlight bool
}

const (
	cbClosed = iota
	cbOpen
	cbHalfOpen
)

func NewCircuitBreakerGateway(next Gateway, cfg CircuitBreakerConfig) *CircuitBreakerGateway {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool {
			return errors.Is(err, ErrTimeout) ||
				errors.Is(err, ErrServer) ||
				errors.Is(err, ErrUnreachable) ||
				errors.Is(err, context.DeadlineExceeded)
		}
	}
	return &CircuitBreakerGateway{next: next, cfg: cfg, state: cbClosed, now: time.Now}
}

func (g *CircuitBreakerGateway) Authenticate(ctx context.Context, env Environment) (Token, error) {
	if err := g.beforeCall("authenticate"); err != nil {
		return Token{}, err
	}
	tok, err := g.next.Authenticate(ctx, env)
	g.afterCall(err)
	return tok, err
}

func (g *CircuitBreakerGateway) Pay(ctx context.Context, env Environment, req PayRequest) (*PayResponse, error) {
	if err := g.beforeCall("pay"); err != nil {
		return nil, err
	}
	resp, err := g.next.Pay(ctx, env, req)
	g.afterCall(err)
	return resp, err
}

func (g *CircuitBreakerGateway) QueryStatus(ctx context.Context, env Environment, gatewayOrderID string) (*StatusResponse, error) {
	if err := g.beforeCall("status"); err != nil {
		return nil, err
	}
	resp, err := g.next.QueryStatus(ctx, env, gatewayOrderID)
	g.afterCall(err)
	return resp, err
}

func (g *CircuitBreakerGateway) Open() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == cbOpen
}

func (g *CircuitBreakerGateway) beforeCall(op string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	open := &GatewayError{Op: op, Reason: "circuit open", Err: ErrCircuitOpen}
	switch g.state {
	case cbClosed:
		return nil
	case cbOpen:
		if g.now().Sub(g.openedAt) < g.cfg.OpenTimeout {
			return open
		}
		g.state = cbHalfOpen
		g.successes = 0
		g.halfInFlight = false
		fallthrough
	case cbHalfOpen:
		if g.halfInFlight {
			return open
		}
		g.halfInFlight = true
		return nil
	default:
		return open
	}
}

func (g *CircuitBreakerGateway) afterCall(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == cbHalfOpen {
		g.halfInFlight = false
	}

	if err == nil || !g.cfg.IsFailure(err) {
		switch g.state {
		case cbClosed:
			g.failures = 0
		case cbHalfOpen:
			g.successes++
			if g.successes >= g.cfg.SuccessThreshold {
				g.state = cbClosed
				g.failures = 0
				g.successes = 0
			}
		}
		return
	}

	switch g.state {
	case cbClosed:
		g.failures++
		if g.failures >= g.cfg.FailureThreshold {
			g.trip()
		}
	case cbHalfOpen:
		g.trip()
	}
}

func (g *CircuitBreakerGateway) trip() {
	g.state = cbOpen
	g.openedAt = g.now()
	g.failures = g.cfg.FailureThreshold
	g.successes = 0
	g.halfInFlight = false
}
