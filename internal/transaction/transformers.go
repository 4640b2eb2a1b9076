package transaction

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"storefront/kit/db"
	gateway "storefront/kit/external_payment_gateway"
)

const (
	fieldID              = "id"
	fieldOrderID         = "orderId"
	fieldGatewayOrderID  = "gatewayOrderId"
	fieldAmount          = "amount"
	fieldCurrency        = "currency"
	fieldEnvironment     = "environment"
	fieldStatus          = "status"
	fieldGatewayResponse = "gatewayResponse"
	fieldCreatedAt       = "createdAt"
	fieldUpdatedAt       = "updatedAt"
)

func toDocument(t *Transaction) db.Document {
	return db.Document{
		fieldID:              t.ID,
		fieldOrderID:         t.OrderID,
		fieldGatewayOrderID:  t.GatewayOrderID,
		fieldAmount:          t.Amount.StringFixed(2),
		fieldCurrency:        t.Currency,
		fieldEnvironment:     string(t.Environment),
		fieldStatus:          string(t.Status),
		fieldGatewayResponse: Sanitize(t.GatewayResponse),
		fieldCreatedAt:       t.CreatedAt.UTC().Format(time.RFC3339Nano),
		fieldUpdatedAt:       t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func patchDocument(p Patch, now time.Time) db.Document {
	doc := db.Document{fieldUpdatedAt: now.UTC().Format(time.RFC3339Nano)}
	if p.Status != "" {
		doc[fieldStatus] = string(p.Status)
	}
	if p.GatewayOrderID != "" {
		doc[fieldGatewayOrderID] = p.GatewayOrderID
	}
	if p.GatewayResponse != nil {
		doc[fieldGatewayResponse] = Sanitize(p.GatewayResponse)
	}
	return doc
}

func fromDocument(doc db.Document) (*Transaction, error) {
	amount, err := decimal.NewFromString(str(doc, fieldAmount))
	if err != nil {
		return nil, errors.Join(db.ErrInternal, fmt.Errorf("transaction %s: amount: %w", str(doc, fieldID), err))
	}
	created, err := parseTime(doc, fieldCreatedAt)
	if err != nil {
		return nil, err
	}
	updated, err := parseTime(doc, fieldUpdatedAt)
	if err != nil {
		return nil, err
	}
	resp, _ := doc[fieldGatewayResponse].(map[string]any)
	if resp == nil {
		resp = map[string]any{}
	}
	return &Transaction{
		ID:              str(doc, fieldID),
		OrderID:         str(doc, fieldOrderID),
		GatewayOrderID:  str(doc, fieldGatewayOrderID),
		Amount:          amount,
		Currency:        str(doc, fieldCurrency),
		Environment:     gateway.EnvironmentName(str(doc, fieldEnvironment)),
		Status:          Status(str(doc, fieldStatus)),
		GatewayResponse: resp,
		CreatedAt:       created,
		UpdatedAt:       updated,
	}, nil
}

func str(doc db.Document, key string) string {
	s, _ := doc[key].(string)
	return s
}

func parseTime(doc db.Document, key string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, str(doc, key))
	if err != nil {
		return time.Time{}, errors.Join(db.ErrInternal, fmt.Errorf("transaction %s: %s: %w", str(doc, fieldID), key, err))
	}
	return t, nil
}

// Sanitize copies a provider payload dropping null members, which the store
// refuses. A nil map becomes an empty one.
func Sanitize(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if c, ok := sanitizeValue(v); ok {
			out[k] = c
		}
	}
	return out
}

func sanitizeValue(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		if t == nil {
			return nil, false
		}
		return Sanitize(t), true
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			if c, ok := sanitizeValue(e); ok {
				out = append(out, c)
			}
		}
		return out, true
	default:
		return v, true
	}
}
