package transaction

import (
	"time"

	"github.com/shopspring/decimal"

	gateway "storefront/kit/external_payment_gateway"
)

type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusInitiated, StatusProcessing, StatusSucceeded, StatusFailed:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// CanTransitionTo enforces initiated -> processing -> {succeeded|failed}
// and initiated -> failed. Terminal states accept nothing.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusInitiated:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusSucceeded || next == StatusFailed
	default:
		return false
	}
}

type Transaction struct {
	ID              string
	OrderID         string
	GatewayOrderID  string
	Amount          decimal.Decimal
	Currency        string
	Environment     gateway.EnvironmentName
	Status          Status
	GatewayResponse map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Patch is a partial update. Zero fields are left untouched.
type Patch struct {
	Status          Status
	GatewayOrderID  string
	GatewayResponse map[string]any
}

func (p Patch) empty() bool {
	return p.Status == "" && p.GatewayOrderID == "" && p.GatewayResponse == nil
}
