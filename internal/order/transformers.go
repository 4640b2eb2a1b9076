package order

import (
	"errors"
	"fmt"
	"time"

	"storefront/kit/db"
)

func toDocument(o *Order) db.Document {
	doc := db.Document{
		"id":        o.ID,
		"status":    string(o.Status),
		"total":     o.Total,
		"currency":  o.Currency,
		"updatedAt": o.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if o.PaymentDetails != nil {
		doc["paymentDetails"] = detailsDocument(*o.PaymentDetails)
	}
	return doc
}

func detailsDocument(d PaymentDetails) map[string]any {
	return map[string]any{
		"transactionId":  d.TransactionID,
		"gatewayOrderId": d.GatewayOrderID,
		"amount":         d.Amount,
		"currency":       d.Currency,
		"paidAt":         d.PaidAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromDocument(doc db.Document) (*Order, error) {
	o := &Order{
		ID:       str(doc, "id"),
		Status:   Status(str(doc, "status")),
		Total:    str(doc, "total"),
		Currency: str(doc, "currency"),
	}
	if s := str(doc, "updatedAt"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, errors.Join(db.ErrInternal, fmt.Errorf("order %s: updatedAt: %w", o.ID, err))
		}
		o.UpdatedAt = t
	}
	if pd, ok := doc["paymentDetails"].(map[string]any); ok {
		d := &PaymentDetails{
			TransactionID:  str(pd, "transactionId"),
			GatewayOrderID: str(pd, "gatewayOrderId"),
			Amount:         str(pd, "amount"),
			Currency:       str(pd, "currency"),
		}
		if s := str(pd, "paidAt"); s != "" {
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, errors.Join(db.ErrInternal, fmt.Errorf("order %s: paidAt: %w", o.ID, err))
			}
			d.PaidAt = t
		}
		o.PaymentDetails = d
	}
	return o, nil
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
