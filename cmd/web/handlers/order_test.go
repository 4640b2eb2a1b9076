package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront/cmd/web/validator"
	"storefront/internal/order"
	"storefront/internal/readmodels"
	"storefront/kit/db"
)

func orderRouter(h *Order) http.Handler {
	r := chi.NewRouter()
	r.Put("/orders/{id}", h.Put)
	r.Get("/orders/{id}", h.Get)
	return r
}

func TestOrder_Put(t *testing.T) {
	var tests = []struct {
		name     string
		body     string
		service  func() *orderServiceMock
		wantCode int
	}{
		{
			name:     "non positive total",
			body:     `{"total":"0","currency":"INR"}`,
			service:  func() *orderServiceMock { return new(orderServiceMock) },
			wantCode: http.StatusBadRequest,
		},
		{
			name: "paid order is immutable",
			body: `{"total":"10","currency":"INR"}`,
			service: func() *orderServiceMock {
				svc := new(orderServiceMock)
				svc.On("Get", mock.Anything, "O1").Return(&order.Order{ID: "O1", Status: order.StatusPaid}, nil)
				return svc
			},
			wantCode: http.StatusConflict,
		},
		{
			name: "store down",
			body: `{"total":"10","currency":"INR"}`,
			service: func() *orderServiceMock {
				svc := new(orderServiceMock)
				svc.On("Get", mock.Anything, "O1").Return(nil, db.ErrUnavailable)
				return svc
			},
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name: "creates pending order",
			body: `{"total":"99.5","currency":"INR"}`,
			service: func() *orderServiceMock {
				svc := new(orderServiceMock)
				svc.On("Get", mock.Anything, "O1").Return(nil, db.ErrNotFound)
				svc.On("Save", mock.Anything, mock.MatchedBy(func(o *order.Order) bool {
					return o.ID == "O1" && o.Status == order.StatusPending && o.Total == "99.50"
				})).Return(nil)
				return svc
			},
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := tt.service()
			router := orderRouter(NewOrder(validator.NewJSON(), svc, nil, nil))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/orders/O1", strings.NewReader(tt.body)))
			require.Equal(t, tt.wantCode, rr.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestOrder_Get(t *testing.T) {
	paidAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := new(orderServiceMock)
	svc.On("Get", mock.Anything, "O1").Return(&order.Order{
		ID: "O1", Status: order.StatusPaid, Total: "10.00", Currency: "INR",
		PaymentDetails: &order.PaymentDetails{TransactionID: "t1", GatewayOrderID: "G1", Amount: "10.00", Currency: "INR", PaidAt: paidAt},
	}, nil)
	svc.On("Get", mock.Anything, "O2").Return(nil, db.ErrNotFound)
	rm := new(readModelMock)
	rm.On("GetOrder", "O1").Return(readmodels.OrderPaymentView{OrderID: "O1", TransactionID: "t1", Status: "succeeded", Attempts: 1, Paid: true}, true)

	router := orderRouter(NewOrder(validator.NewJSON(), svc, rm, nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/O1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	got := decodeBody(t, rr)
	require.Equal(t, "paid", got["status"])
	details, ok := got["paymentDetails"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "t1", details["transactionId"])
	require.Contains(t, got, "payment")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/O2", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
