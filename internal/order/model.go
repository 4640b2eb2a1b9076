package order

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

type Order struct {
	ID             string
	Status         Status
	Total          string
	Currency       string
	PaymentDetails *PaymentDetails
	UpdatedAt      time.Time
}

// PaymentDetails records the settled transaction on the order.
type PaymentDetails struct {
	TransactionID  string
	GatewayOrderID string
	Amount         string
	Currency       string
	PaidAt         time.Time
}
