package events

import "time"

type TransactionInitiated struct {
	TransactionID string    `json:"transaction_id"`
	OrderID       string    `json:"order_id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Environment   string    `json:"environment"`
	At            time.Time `json:"at"`
}

func (TransactionInitiated) Name() string { return "transaction.initiated" }

func (e TransactionInitiated) PartitionKey() string { return e.TransactionID }

type TransactionProcessing struct {
	TransactionID  string    `json:"transaction_id"`
	OrderID        string    `json:"order_id"`
	GatewayOrderID string    `json:"gateway_order_id"`
	At             time.Time `json:"at"`
}

func (TransactionProcessing) Name() string { return "transaction.processing" }

func (e TransactionProcessing) PartitionKey() string { return e.TransactionID }

type TransactionSucceeded struct {
	TransactionID   string         `json:"transaction_id"`
	OrderID         string         `json:"order_id"`
	GatewayOrderID  string         `json:"gateway_order_id"`
	Amount          string         `json:"amount"`
	Currency        string         `json:"currency"`
	GatewayResponse map[string]any `json:"gateway_response"`
	At              time.Time      `json:"at"`
}

func (TransactionSucceeded) Name() string { return "transaction.succeeded" }

func (e TransactionSucceeded) PartitionKey() string { return e.TransactionID }

// TransactionFailed is emitted from either initiate (Stage "pay") or
// reconciliation (Stage "status").
type TransactionFailed struct {
	TransactionID  string    `json:"transaction_id"`
	OrderID        string    `json:"order_id"`
	GatewayOrderID string    `json:"gateway_order_id,omitempty"`
	Stage          string    `json:"stage"`
	Reason         string    `json:"reason"`
	At             time.Time `json:"at"`
}

func (TransactionFailed) Name() string { return "transaction.failed" }

func (e TransactionFailed) PartitionKey() string { return e.TransactionID }

type TransactionStuck struct {
	TransactionID string        `json:"transaction_id"`
	OrderID       string        `json:"order_id"`
	Status        string        `json:"status"`
	Age           time.Duration `json:"age"`
	At            time.Time     `json:"at"`
}

func (TransactionStuck) Name() string { return "transaction.stuck" }

func (e TransactionStuck) PartitionKey() string { return e.TransactionID }

type OrderPaid struct {
	OrderID       string    `json:"order_id"`
	TransactionID string    `json:"transaction_id"`
	At            time.Time `json:"at"`
}

func (OrderPaid) Name() string { return "order.paid" }

func (e OrderPaid) PartitionKey() string { return e.OrderID }
