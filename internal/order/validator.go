package order

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrPaidElsewhere  = errors.New("order already paid by another transaction")
)

func ValidatePaymentDetails(orderID string, d PaymentDetails) error {
	if orderID == "" || d.TransactionID == "" {
		return ErrInvalidRequest
	}
	return nil
}

func ValidateOrder(o *Order) error {
	if o == nil || o.ID == "" {
		return ErrInvalidRequest
	}
	if o.Status != "" && o.Status != StatusPending && o.Status != StatusPaid {
		return ErrInvalidRequest
	}
	return nil
}
