package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/kit/db"
	"storefront/kit/observability"
)

const Collection = "orders"

var IndexedFields = []string{"status"}

type DocumentRepository struct {
	db     db.Client
	logger *observability.Logger
}

func NewDocumentRepository(client db.Client, logger *observability.Logger) *DocumentRepository {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &DocumentRepository{db: client, logger: logger}
}

func (r *DocumentRepository) Get(ctx context.Context, orderID string) (*Order, error) {
	doc, err := r.db.Get(ctx, Collection, orderID)
	if err != nil {
		if !db.IsNotFound(err) {
			r.logger.Error("get order failed", "layer", "repo", "component", "order", "method", "Get",
				"order_id", orderID, "error", err.Error())
		}
		return nil, err
	}
	return fromDocument(doc)
}

func (r *DocumentRepository) Save(ctx context.Context, o *Order) error {
	if o.Status == "" {
		o.Status = StatusPending
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = time.Now().UTC()
	}
	if err := r.db.Put(ctx, Collection, o.ID, toDocument(o)); err != nil {
		r.logger.Error("save order failed", "layer", "repo", "component", "order", "method", "Save",
			"order_id", o.ID, "error", err.Error())
		return err
	}
	return nil
}

// MarkPaid moves a pending order to paid. Repeating it for the same
// transaction is a no-op; a different transaction gets db.ErrConflict.
func (r *DocumentRepository) MarkPaid(ctx context.Context, orderID string, d PaymentDetails, at time.Time) error {
	partial := db.Document{
		"status":         string(StatusPaid),
		"paymentDetails": detailsDocument(d),
		"updatedAt":      at.UTC().Format(time.RFC3339Nano),
	}
	err := r.db.PatchIf(ctx, Collection, orderID, db.Condition{Field: "status", Value: string(StatusPending)}, partial)
	if err == nil {
		return nil
	}
	if !db.IsConflict(err) {
		if !db.IsNotFound(err) {
			r.logger.Error("mark order paid failed", "layer", "repo", "component", "order", "method", "MarkPaid",
				"order_id", orderID, "error", err.Error())
		}
		return err
	}

	cur, gerr := r.Get(ctx, orderID)
	if gerr != nil {
		return gerr
	}
	if cur.Status == StatusPaid && cur.PaymentDetails != nil && cur.PaymentDetails.TransactionID == d.TransactionID {
		return nil
	}
	paidBy := ""
	if cur.PaymentDetails != nil {
		paidBy = cur.PaymentDetails.TransactionID
	}
	return errors.Join(db.ErrConflict, fmt.Errorf("%w: %s is %s by %q", ErrPaidElsewhere, orderID, cur.Status, paidBy))
}
