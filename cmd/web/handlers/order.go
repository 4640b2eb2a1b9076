package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"storefront/cmd/web/validator"
	"storefront/internal/order"
	"storefront/internal/readmodels"
	"storefront/kit/db"
	"storefront/kit/observability"
)

type OrderServiceContract interface {
	Get(ctx context.Context, orderID string) (*order.Order, error)
	Save(ctx context.Context, o *order.Order) error
}

type OrderReadModelContract interface {
	GetOrder(orderID string) (readmodels.OrderPaymentView, bool)
}

type Order struct {
	json   *validator.JSON
	orders OrderServiceContract
	rm     OrderReadModelContract
	logger *observability.Logger
}

func NewOrder(jsonV *validator.JSON, orders OrderServiceContract, rm OrderReadModelContract, logger *observability.Logger) *Order {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Order{json: jsonV, orders: orders, rm: rm, logger: logger}
}

type putOrderReq struct {
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

// Put creates or replaces a pending order. Paid orders are immutable.
func (h *Order) Put(w http.ResponseWriter, r *http.Request) {
	id, err := validator.Param(r, "id")
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "missing order id"})
		return
	}
	var req putOrderReq
	if err := h.json.Decode(w, r, &req); err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if !req.Total.IsPositive() {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "total must be positive"})
		return
	}

	existing, err := h.orders.Get(r.Context(), id)
	switch {
	case err == nil && existing.Status == order.StatusPaid:
		writeError(w, h.logger, errors.Join(db.ErrConflict, errors.New("order already paid")),
			"layer", "handler", "component", "order", "method", "Put", "order_id", id)
		return
	case err != nil && !db.IsNotFound(err):
		writeError(w, h.logger, err, "layer", "handler", "component", "order", "method", "Put", "order_id", id)
		return
	}

	o := &order.Order{ID: id, Status: order.StatusPending, Total: req.Total.StringFixed(2), Currency: req.Currency}
	if err := h.orders.Save(r.Context(), o); err != nil {
		writeError(w, h.logger, err, "layer", "handler", "component", "order", "method", "Put", "order_id", id)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"orderId": o.ID, "status": o.Status, "total": o.Total})
}

func (h *Order) Get(w http.ResponseWriter, r *http.Request) {
	id, err := validator.Param(r, "id")
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "missing order id"})
		return
	}
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err, "layer", "handler", "component", "order", "method", "Get", "order_id", id)
		return
	}
	body := map[string]any{
		"orderId":  o.ID,
		"status":   o.Status,
		"total":    o.Total,
		"currency": o.Currency,
	}
	if o.PaymentDetails != nil {
		body["paymentDetails"] = map[string]any{
			"transactionId":  o.PaymentDetails.TransactionID,
			"gatewayOrderId": o.PaymentDetails.GatewayOrderID,
			"amount":         o.PaymentDetails.Amount,
			"currency":       o.PaymentDetails.Currency,
			"paidAt":         o.PaymentDetails.PaidAt,
		}
	}
	if h.rm != nil {
		if v, ok := h.rm.GetOrder(id); ok {
			body["payment"] = v
		}
	}
	writeJSON(w, h.logger, http.StatusOK, body)
}
