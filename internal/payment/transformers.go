package payment

import (
	"time"

	"storefront/internal/events"
	"storefront/internal/transaction"
	gateway "storefront/kit/external_payment_gateway"
)

func ToTransaction(req InitiateRequest, env gateway.EnvironmentName) *transaction.Transaction {
	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	return &transaction.Transaction{
		OrderID:         req.OrderID,
		Amount:          req.Amount,
		Currency:        currency,
		Environment:     env,
		Status:          transaction.StatusInitiated,
		GatewayResponse: map[string]any{},
	}
}

func ToPayRequest(tx *transaction.Transaction, minor int64, redirectURL string, meta map[string]string) gateway.PayRequest {
	info := map[string]string{"orderId": tx.OrderID}
	for k, v := range meta {
		info[k] = v
	}
	return gateway.PayRequest{
		MerchantOrderID: tx.ID,
		AmountMinor:     minor,
		RedirectURL:     redirectURL,
		MetaInfo:        info,
	}
}

// FailurePayload is the document stored when a provider call fails.
func FailurePayload(err error) map[string]any {
	if ge, ok := gateway.AsGatewayError(err); ok {
		return ge.Payload()
	}
	return map[string]any{"error": err.Error()}
}

func ToCompleteResult(tx *transaction.Transaction, alreadyFinal bool) *CompleteResult {
	return &CompleteResult{
		TransactionID:   tx.ID,
		OrderID:         tx.OrderID,
		GatewayOrderID:  tx.GatewayOrderID,
		Status:          tx.Status,
		GatewayResponse: tx.GatewayResponse,
		AlreadyFinal:    alreadyFinal,
	}
}

func ToTransactionInitiatedEvent(tx *transaction.Transaction) events.TransactionInitiated {
	return events.TransactionInitiated{
		TransactionID: tx.ID,
		OrderID:       tx.OrderID,
		Amount:        tx.Amount.StringFixed(2),
		Currency:      tx.Currency,
		Environment:   string(tx.Environment),
		At:            time.Now().UTC(),
	}
}

func ToTransactionProcessingEvent(tx *transaction.Transaction, gatewayOrderID string) events.TransactionProcessing {
	return events.TransactionProcessing{TransactionID: tx.ID, OrderID: tx.OrderID, GatewayOrderID: gatewayOrderID, At: time.Now().UTC()}
}

func ToTransactionSucceededEvent(tx *transaction.Transaction, payload map[string]any) events.TransactionSucceeded {
	return events.TransactionSucceeded{
		TransactionID:   tx.ID,
		OrderID:         tx.OrderID,
		GatewayOrderID:  tx.GatewayOrderID,
		Amount:          tx.Amount.StringFixed(2),
		Currency:        tx.Currency,
		GatewayResponse: payload,
		At:              time.Now().UTC(),
	}
}

func ToTransactionFailedEvent(tx *transaction.Transaction, stage, reason string) events.TransactionFailed {
	return events.TransactionFailed{
		TransactionID:  tx.ID,
		OrderID:        tx.OrderID,
		GatewayOrderID: tx.GatewayOrderID,
		Stage:          stage,
		Reason:         reason,
		At:             time.Now().UTC(),
	}
}
