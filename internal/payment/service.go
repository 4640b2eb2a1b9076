package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/transaction"
	"storefront/kit/broker"
	"storefront/kit/db"
	"storefront/kit/observability"
)

const DefaultReturnURL = "http://localhost:8080/payments/return"

// recordTimeout bounds the store writes that follow a provider call.
const recordTimeout = 5 * time.Second

// detached returns a context that outlives the caller's cancellation. Once
// the provider has answered, its answer must be recorded even if the caller
// has gone away.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
}

// emitter journals an event and fans it out. Neither step can fail the
// caller: the store write has already happened.
type emitter struct {
	bus     PublisherContract
	journal StoreContract
	logger  *observability.Logger
}

func (e emitter) emit(ctx context.Context, aggregateID string, evt broker.Event) {
	if e.journal != nil {
		if err := e.journal.Append(ctx, aggregateID, evt); err != nil {
			e.logger.Error("journal append failed", "layer", "service", "component", "payment", "event", evt.Name(),
				"transaction_id", aggregateID, "error", err.Error())
		}
	}
	if e.bus != nil {
		for _, err := range e.bus.Publish(ctx, evt) {
			e.logger.Error("event handler failed", "layer", "service", "component", "payment", "event", evt.Name(),
				"transaction_id", aggregateID, "error", err.Error())
		}
	}
}

type Service struct {
	repository RepositoryContract
	gateway    GatewayContract
	envs       EnvironmentsContract
	metrics    *observability.Metrics
	logger     *observability.Logger
	tracer     trace.Tracer
	returnURL  string
	emitter
}

type ServiceOption func(*Service)

// WithReturnURL sets the page the provider sends the browser back to when
// the request carries none.
func WithReturnURL(u string) ServiceOption {
	return func(s *Service) {
		if u != "" {
			s.returnURL = u
		}
	}
}

func NewService(repo RepositoryContract, gw GatewayContract, envs EnvironmentsContract, bus PublisherContract,
	journal StoreContract, metrics *observability.Metrics, logger *observability.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	s := &Service{
		repository: repo,
		gateway:    gw,
		envs:       envs,
		metrics:    metrics,
		logger:     logger,
		tracer:     observability.Tracer("storefront/payment"),
		returnURL:  DefaultReturnURL,
		emitter:    emitter{bus: bus, journal: journal, logger: logger},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initiate records a transaction, asks the provider for a hosted payment page
// and moves the transaction to processing. A provider failure leaves it failed
// with the error payload stored.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (res *InitiateResult, err error) {
	ctx, span := s.tracer.Start(ctx, "payment.Initiate", trace.WithAttributes(attribute.String("order_id", req.OrderID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "initiate failed")
		}
		span.End()
	}()

	if err := ValidateInitiateRequest(req); err != nil {
		s.logger.Error("invalid initiate request", "layer", "service", "component", "payment", "method", "Initiate",
			"order_id", req.OrderID, "amount", req.Amount.String(), "error", err.Error())
		return nil, errors.Join(db.ErrInvalid, err)
	}
	minor, _ := ToMinorUnits(req.Amount)

	envName := req.Environment
	if envName == "" {
		envName = s.envs.DefaultName()
	}
	env, err := s.envs.Resolve(envName)
	if err != nil {
		s.logger.Error("unknown environment", "layer", "service", "component", "payment", "method", "Initiate",
			"order_id", req.OrderID, "environment", string(envName), "error", err.Error())
		return nil, errors.Join(db.ErrInvalid, err)
	}

	if err := s.ensureNoActive(ctx, req.OrderID); err != nil {
		return nil, err
	}

	tx := ToTransaction(req, env.Name)
	if _, err := s.repository.Create(ctx, tx); err != nil {
		s.logger.Error("create transaction failed", "layer", "service", "component", "payment", "method", "Initiate",
			"order_id", req.OrderID, "error", err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("transaction_id", tx.ID))
	s.emit(ctx, tx.ID, ToTransactionInitiatedEvent(tx))

	redirect := req.RedirectURL
	if redirect == "" {
		redirect = s.returnURL
	}
	resp, payErr := s.gateway.Pay(ctx, env, ToPayRequest(tx, minor, redirect, req.MetaInfo))
	recordCtx, cancel := detached(ctx)
	defer cancel()
	if payErr != nil {
		return nil, s.failInitiated(recordCtx, tx, payErr)
	}

	patch := transaction.Patch{
		Status:          transaction.StatusProcessing,
		GatewayOrderID:  resp.ProviderOrderID,
		GatewayResponse: resp.Raw,
	}
	if err := s.repository.UpdateIf(recordCtx, tx.ID, transaction.StatusInitiated, patch); err != nil {
		// the provider holds an order we could not record; the recovery sweep reports it
		s.logger.Error("record provider order failed", "layer", "service", "component", "payment", "method", "Initiate",
			"transaction_id", tx.ID, "order_id", tx.OrderID, "gateway_order_id", resp.ProviderOrderID, "error", err.Error())
		return nil, err
	}

	tx.Status = transaction.StatusProcessing
	tx.GatewayOrderID = resp.ProviderOrderID
	if s.metrics != nil {
		s.metrics.TransactionsInitiatedAdd(1)
	}
	s.emit(recordCtx, tx.ID, ToTransactionProcessingEvent(tx, resp.ProviderOrderID))
	s.logger.Info("transaction processing", "layer", "service", "component", "payment", "method", "Initiate",
		"transaction_id", tx.ID, "order_id", tx.OrderID, "gateway_order_id", resp.ProviderOrderID, "environment", string(env.Name))

	return &InitiateResult{
		TransactionID:  tx.ID,
		GatewayOrderID: resp.ProviderOrderID,
		RedirectURL:    resp.RedirectURL,
		Status:         transaction.StatusProcessing,
	}, nil
}

func (s *Service) ensureNoActive(ctx context.Context, orderID string) error {
	existing, err := s.repository.FindByOrderID(ctx, orderID)
	if err != nil {
		s.logger.Error("lookup order transactions failed", "layer", "service", "component", "payment", "method", "Initiate",
			"order_id", orderID, "error", err.Error())
		return err
	}
	for _, t := range existing {
		if !t.Status.IsTerminal() || t.Status == transaction.StatusSucceeded {
			s.logger.Info("order already has a transaction", "layer", "service", "component", "payment", "method", "Initiate",
				"order_id", orderID, "transaction_id", t.ID, "status", string(t.Status))
			return errors.Join(db.ErrConflict, fmt.Errorf("%w: %s is %s", ErrActiveTransaction, t.ID, t.Status))
		}
	}
	return nil
}

func (s *Service) failInitiated(ctx context.Context, tx *transaction.Transaction, payErr error) error {
	s.logger.Error("gateway pay failed", "layer", "service", "component", "payment", "method", "Initiate",
		"transaction_id", tx.ID, "order_id", tx.OrderID, "gateway_response", FailurePayload(payErr), "error", payErr.Error())

	patch := transaction.Patch{Status: transaction.StatusFailed, GatewayResponse: FailurePayload(payErr)}
	if err := s.repository.UpdateIf(ctx, tx.ID, transaction.StatusInitiated, patch); err != nil {
		s.logger.Error("record pay failure failed", "layer", "service", "component", "payment", "method", "Initiate",
			"transaction_id", tx.ID, "error", err.Error())
		return errors.Join(payErr, err)
	}
	tx.Status = transaction.StatusFailed
	if s.metrics != nil {
		s.metrics.TransactionsFailedAdd(1)
	}
	s.emit(ctx, tx.ID, ToTransactionFailedEvent(tx, "pay", payErr.Error()))
	return payErr
}

func (s *Service) Get(ctx context.Context, transactionID string) (*transaction.Transaction, error) {
	tx, err := s.repository.Get(ctx, transactionID)
	if err != nil {
		s.logger.Error("get transaction failed", "layer", "service", "component", "payment", "method", "Get",
			"transaction_id", transactionID, "error", err.Error())
		return nil, err
	}
	return tx, nil
}

// History returns the journaled events of one transaction, oldest first.
func (s *Service) History(ctx context.Context, transactionID string) ([]db.Record, error) {
	if _, err := s.Get(ctx, transactionID); err != nil {
		return nil, err
	}
	if s.journal == nil {
		return []db.Record{}, nil
	}
	return s.journal.Load(ctx, transactionID), nil
}
