package external_payment_gateway

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/kit/observability"
)

// InstrumentedGateway records latency and a span for every provider call.
type InstrumentedGateway struct {
	next    Gateway
	metrics *observability.Metrics
	tracer  trace.Tracer
	logger  *observability.Logger
}

func NewInstrumentedGateway(next Gateway, metrics *observability.Metrics, logger *observability.Logger) *InstrumentedGateway {
	return &InstrumentedGateway{
		next:    next,
		metrics: metrics,
		tracer:  observability.Tracer("storefront/gateway"),
		logger:  logger,
	}
}

func (g *InstrumentedGateway) Authenticate(ctx context.Context, env Environment) (Token, error) {
	ctx, end := g.start(ctx, "authenticate", env)
	tok, err := g.next.Authenticate(ctx, env)
	end(err)
	return tok, err
}

func (g *InstrumentedGateway) Pay(ctx context.Context, env Environment, req PayRequest) (*PayResponse, error) {
	ctx, end := g.start(ctx, "pay", env, attribute.String("merchant_order_id", req.MerchantOrderID))
	resp, err := g.next.Pay(ctx, env, req)
	end(err)
	return resp, err
}

func (g *InstrumentedGateway) QueryStatus(ctx context.Context, env Environment, gatewayOrderID string) (*StatusResponse, error) {
	ctx, end := g.start(ctx, "status", env, attribute.String("gateway_order_id", gatewayOrderID))
	resp, err := g.next.QueryStatus(ctx, env, gatewayOrderID)
	end(err)
	return resp, err
}

func (g *InstrumentedGateway) start(ctx context.Context, op string, env Environment, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	begin := time.Now()
	attrs = append(attrs, attribute.String("environment", string(env.Name)))
	ctx, span := g.tracer.Start(ctx, "gateway."+op, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		outcome := Outcome(err)
		if g.metrics != nil {
			g.metrics.GatewayCallObserved(op, outcome, time.Since(begin))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			if g.logger != nil {
				g.logger.Error("gateway call failed", "layer", "gateway", "component", "payment_gateway", "method", op,
					"environment", string(env.Name), "outcome", outcome, "error", err.Error())
			}
		}
		span.End()
	}
}

// Outcome is the metric label for a call result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrServer):
		return "server_error"
	case errors.Is(err, ErrClient):
		return "client_error"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	default:
		return "error"
	}
}
