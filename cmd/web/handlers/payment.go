package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"storefront/cmd/web/validator"
	"storefront/internal/payment"
	"storefront/internal/transaction"
	"storefront/kit/db"
	gateway "storefront/kit/external_payment_gateway"
	"storefront/kit/observability"
)

type PaymentServiceContract interface {
	Initiate(ctx context.Context, req payment.InitiateRequest) (*payment.InitiateResult, error)
	Get(ctx context.Context, transactionID string) (*transaction.Transaction, error)
	History(ctx context.Context, transactionID string) ([]db.Record, error)
}

type PaymentReconcilerContract interface {
	Complete(ctx context.Context, gatewayOrderID string) (*payment.CompleteResult, error)
}

type Payment struct {
	json       *validator.JSON
	payment    PaymentServiceContract
	reconciler PaymentReconcilerContract
	logger     *observability.Logger
}

func NewPayment(jsonV *validator.JSON, paymentSvc PaymentServiceContract, reconciler PaymentReconcilerContract, logger *observability.Logger) *Payment {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Payment{json: jsonV, payment: paymentSvc, reconciler: reconciler, logger: logger}
}

type createPaymentReq struct {
	OrderID     string            `json:"orderId"`
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency"`
	Environment string            `json:"environment"`
	RedirectURL string            `json:"redirectUrl"`
	MetaInfo    map[string]string `json:"metaInfo"`
}

type transactionResp struct {
	TransactionID  string             `json:"transactionId"`
	OrderID        string             `json:"orderId"`
	GatewayOrderID string             `json:"gatewayOrderId,omitempty"`
	Amount         string             `json:"amount"`
	Currency       string             `json:"currency"`
	Environment    string             `json:"environment"`
	Status         transaction.Status `json:"status"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

func (h *Payment) Create(w http.ResponseWriter, r *http.Request) {
	var req createPaymentReq
	if err := h.json.Decode(w, r, &req); err != nil {
		h.logger.Info("invalid json", "layer", "handler", "component", "payment", "method", "Create", "error", err.Error())
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	res, err := h.payment.Initiate(r.Context(), payment.InitiateRequest{
		OrderID:     req.OrderID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Environment: gateway.EnvironmentName(req.Environment),
		RedirectURL: req.RedirectURL,
		MetaInfo:    req.MetaInfo,
	})
	if err != nil {
		writeError(w, h.logger, err, "layer", "handler", "component", "payment", "method", "Create", "order_id", req.OrderID)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, map[string]any{
		"transactionId":  res.TransactionID,
		"gatewayOrderId": res.GatewayOrderID,
		"redirectUrl":    res.RedirectURL,
		"status":         res.Status,
	})
}

func (h *Payment) Get(w http.ResponseWriter, r *http.Request) {
	id, err := validator.Param(r, "id")
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "missing transaction id"})
		return
	}
	tx, err := h.payment.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err, "layer", "handler", "component", "payment", "method", "Get", "transaction_id", id)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, transactionResp{
		TransactionID:  tx.ID,
		OrderID:        tx.OrderID,
		GatewayOrderID: tx.GatewayOrderID,
		Amount:         tx.Amount.StringFixed(2),
		Currency:       tx.Currency,
		Environment:    string(tx.Environment),
		Status:         tx.Status,
		CreatedAt:      tx.CreatedAt,
		UpdatedAt:      tx.UpdatedAt,
	})
}

func (h *Payment) History(w http.ResponseWriter, r *http.Request) {
	id, err := validator.Param(r, "id")
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "missing transaction id"})
		return
	}
	recs, err := h.payment.History(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err, "layer", "handler", "component", "payment", "method", "History", "transaction_id", id)
		return
	}
	out := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		out = append(out, map[string]any{"seq": rec.Seq, "event": rec.EventName, "at": rec.OccurredAt})
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"transactionId": id, "events": out})
}

// Complete is called from the browser return page with the provider order
// id saved before redirecting. The outcome always comes from the provider.
func (h *Payment) Complete(w http.ResponseWriter, r *http.Request) {
	gatewayOrderID, err := validator.Param(r, "gatewayOrderId")
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "missing gateway order id"})
		return
	}
	res, err := h.reconciler.Complete(r.Context(), gatewayOrderID)
	if err != nil {
		writeError(w, h.logger, err, "layer", "handler", "component", "payment", "method", "Complete", "gateway_order_id", gatewayOrderID)
		return
	}

	msg := "payment pending"
	switch res.Status {
	case transaction.StatusSucceeded:
		msg = "payment completed"
	case transaction.StatusFailed:
		msg = MsgPaymentFailed
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"transactionId": res.TransactionID,
		"orderId":       res.OrderID,
		"status":        res.Status,
		"alreadyFinal":  res.AlreadyFinal,
		"message":       msg,
	})
}
