package payment

import (
	"github.com/shopspring/decimal"

	"storefront/internal/transaction"
	gateway "storefront/kit/external_payment_gateway"
)

type InitiateRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	Currency    string
	Environment gateway.EnvironmentName
	RedirectURL string
	MetaInfo    map[string]string
}

type InitiateResult struct {
	TransactionID  string
	GatewayOrderID string
	RedirectURL    string
	Status         transaction.Status
}

type CompleteResult struct {
	TransactionID   string
	OrderID         string
	GatewayOrderID  string
	Status          transaction.Status
	GatewayResponse map[string]any
	// AlreadyFinal is set when this call found the transaction settled and wrote nothing.
	AlreadyFinal bool
}
