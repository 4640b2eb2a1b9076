package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"storefront/kit/db"
	gateway "storefront/kit/external_payment_gateway"
	"storefront/kit/observability"
)

// MsgPaymentFailed is the only failure text shown to shoppers.
const MsgPaymentFailed = "payment could not be completed"

func writeJSON(w http.ResponseWriter, logger *observability.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("encode response failed", "layer", "handler", "error", err.Error())
	}
}

// statusFor maps a service error to an HTTP status and the message shown
// to the caller. Provider payloads never reach the response.
func statusFor(err error) (int, string) {
	var gwErr *gateway.GatewayError
	switch {
	case db.IsInvalid(err):
		return http.StatusBadRequest, "invalid request"
	case db.IsNotFound(err):
		return http.StatusNotFound, "not found"
	case db.IsConflict(err):
		return http.StatusConflict, "conflict"
	case errors.As(err, &gwErr), errors.Is(err, gateway.ErrCircuitOpen):
		return http.StatusBadGateway, MsgPaymentFailed
	case db.IsUnavailable(err):
		return http.StatusServiceUnavailable, "temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(w http.ResponseWriter, logger *observability.Logger, err error, kv ...any) {
	status, msg := statusFor(err)
	fields := append([]any{"status", status, "error", err.Error()}, kv...)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", fields...)
	} else {
		logger.Info("request rejected", fields...)
	}
	writeJSON(w, logger, status, map[string]string{"error": msg})
}
