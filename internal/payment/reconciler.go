package payment

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/transaction"
	"storefront/kit/db"
	gateway "storefront/kit/external_payment_gateway"
	"storefront/kit/observability"
)

// Reconciliation outcomes, used as metric labels.
const (
	OutcomeSucceeded       = "succeeded"
	OutcomeFailed          = "failed"
	OutcomePending         = "pending"
	OutcomeAlreadyTerminal = "already_terminal"
	OutcomeLostRace        = "lost_race"
	OutcomeNotFound        = "not_found"
	OutcomeGatewayError    = "gateway_error"
	OutcomeStoreError      = "store_error"
)

// Reconciler settles processing transactions from the provider's
// authoritative status. Calling Complete again for a settled transaction
// returns the stored result without writing or calling the provider.
type Reconciler struct {
	repository RepositoryContract
	gateway    GatewayContract
	envs       EnvironmentsContract
	metrics    *observability.Metrics
	logger     *observability.Logger
	tracer     trace.Tracer
	emitter
}

func NewReconciler(repo RepositoryContract, gw GatewayContract, envs EnvironmentsContract, bus PublisherContract,
	journal StoreContract, metrics *observability.Metrics, logger *observability.Logger) *Reconciler {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Reconciler{
		repository: repo,
		gateway:    gw,
		envs:       envs,
		metrics:    metrics,
		logger:     logger,
		tracer:     observability.Tracer("storefront/payment"),
		emitter:    emitter{bus: bus, journal: journal, logger: logger},
	}
}

func (r *Reconciler) Complete(ctx context.Context, gatewayOrderID string) (res *CompleteResult, err error) {
	ctx, span := r.tracer.Start(ctx, "payment.Complete", trace.WithAttributes(attribute.String("gateway_order_id", gatewayOrderID)))
	outcome := OutcomeStoreError
	defer func() {
		if r.metrics != nil {
			r.metrics.ReconciliationObserved(outcome)
		}
		span.SetAttributes(attribute.String("outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
	}()

	if gatewayOrderID == "" {
		outcome = OutcomeNotFound
		return nil, errors.Join(db.ErrInvalid, errors.New("gateway order id required"))
	}

	tx, err := r.repository.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		r.logger.Error("lookup transaction failed", "layer", "service", "component", "reconciler", "method", "Complete",
			"gateway_order_id", gatewayOrderID, "error", err.Error())
		return nil, err
	}
	if tx == nil {
		outcome = OutcomeNotFound
		r.logger.Info("unknown gateway order", "layer", "service", "component", "reconciler", "method", "Complete",
			"gateway_order_id", gatewayOrderID)
		return nil, errors.Join(db.ErrNotFound, fmt.Errorf("no transaction for gateway order %s", gatewayOrderID))
	}
	span.SetAttributes(attribute.String("transaction_id", tx.ID))

	if tx.Status.IsTerminal() {
		outcome = OutcomeAlreadyTerminal
		return ToCompleteResult(tx, true), nil
	}
	if tx.Status != transaction.StatusProcessing {
		return nil, errors.Join(db.ErrConflict, fmt.Errorf("transaction %s is %s", tx.ID, tx.Status))
	}

	env, err := r.envs.Resolve(tx.Environment)
	if err != nil {
		r.logger.Error("stored environment not configured", "layer", "service", "component", "reconciler", "method", "Complete",
			"transaction_id", tx.ID, "environment", string(tx.Environment), "error", err.Error())
		return nil, errors.Join(db.ErrInternal, err)
	}

	status, qErr := r.gateway.QueryStatus(ctx, env, gatewayOrderID)
	recordCtx, cancel := detached(ctx)
	defer cancel()
	if qErr != nil {
		outcome = OutcomeGatewayError
		r.logger.Error("gateway status failed", "layer", "service", "component", "reconciler", "method", "Complete",
			"transaction_id", tx.ID, "gateway_order_id", gatewayOrderID, "retryable", gateway.IsRetryable(qErr),
			"gateway_response", FailurePayload(qErr), "error", qErr.Error())
		if !errors.Is(qErr, gateway.ErrClient) {
			return nil, qErr
		}
		// the provider rejected the query outright; the order will never settle
		if _, err := r.settle(recordCtx, tx, transaction.StatusFailed, FailurePayload(qErr), qErr.Error()); err != nil {
			return nil, errors.Join(qErr, err)
		}
		return nil, qErr
	}

	switch status.State {
	case gateway.StatePending:
		outcome = OutcomePending
		r.logger.Info("provider still pending", "layer", "service", "component", "reconciler", "method", "Complete",
			"transaction_id", tx.ID, "gateway_order_id", gatewayOrderID)
		return &CompleteResult{
			TransactionID:   tx.ID,
			OrderID:         tx.OrderID,
			GatewayOrderID:  gatewayOrderID,
			Status:          transaction.StatusProcessing,
			GatewayResponse: transaction.Sanitize(status.Raw),
		}, nil
	case gateway.StateSuccess:
		res, err := r.settle(recordCtx, tx, transaction.StatusSucceeded, status.Raw, "")
		outcome = settledOutcome(res, err, OutcomeSucceeded)
		return res, err
	default:
		res, err := r.settle(recordCtx, tx, transaction.StatusFailed, status.Raw, "provider reported "+status.ResponseCode)
		outcome = settledOutcome(res, err, OutcomeFailed)
		return res, err
	}
}

func settledOutcome(res *CompleteResult, err error, won string) string {
	switch {
	case err != nil:
		return OutcomeStoreError
	case res.AlreadyFinal:
		return OutcomeLostRace
	default:
		return won
	}
}

// settle performs the single processing -> terminal write. Losing the
// conditional write to a concurrent call returns the winner's result.
func (r *Reconciler) settle(ctx context.Context, tx *transaction.Transaction, next transaction.Status, payload map[string]any, reason string) (*CompleteResult, error) {
	payload = transaction.Sanitize(payload)
	err := r.repository.UpdateIf(ctx, tx.ID, transaction.StatusProcessing, transaction.Patch{Status: next, GatewayResponse: payload})
	if db.IsConflict(err) {
		winner, gerr := r.repository.Get(ctx, tx.ID)
		if gerr != nil {
			r.logger.Error("re-read after lost race failed", "layer", "service", "component", "reconciler", "method", "settle",
				"transaction_id", tx.ID, "error", gerr.Error())
			return nil, gerr
		}
		if !winner.Status.IsTerminal() {
			return nil, errors.Join(db.ErrConflict, fmt.Errorf("transaction %s moved to %s", tx.ID, winner.Status))
		}
		r.logger.Info("concurrent reconciliation won", "layer", "service", "component", "reconciler", "method", "settle",
			"transaction_id", tx.ID, "status", string(winner.Status))
		return ToCompleteResult(winner, true), nil
	}
	if err != nil {
		r.logger.Error("settle transaction failed", "layer", "service", "component", "reconciler", "method", "settle",
			"transaction_id", tx.ID, "next", string(next), "error", err.Error())
		return nil, err
	}

	tx.Status = next
	tx.GatewayResponse = payload
	if next == transaction.StatusSucceeded {
		if r.metrics != nil {
			r.metrics.TransactionsSucceededAdd(1)
		}
		r.emit(ctx, tx.ID, ToTransactionSucceededEvent(tx, payload))
	} else {
		if r.metrics != nil {
			r.metrics.TransactionsFailedAdd(1)
		}
		r.emit(ctx, tx.ID, ToTransactionFailedEvent(tx, "status", reason))
	}
	r.logger.Info("transaction settled", "layer", "service", "component", "reconciler", "method", "settle",
		"transaction_id", tx.ID, "order_id", tx.OrderID, "status", string(next))
	return ToCompleteResult(tx, false), nil
}
