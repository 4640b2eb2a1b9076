package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"storefront/kit/observability"
)

type Routes struct {
	Payment    *Payment
	Order      *Order
	Health     *Health
	Metrics    *Metrics
	Prometheus http.Handler
	Logger     *observability.Logger
	Timeout    time.Duration
}

func NewRouter(rt Routes) http.Handler {
	logger := rt.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	timeout := rt.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Route("/payments", func(r chi.Router) {
		r.Post("/", rt.Payment.Create)
		r.Get("/{id}", rt.Payment.Get)
		r.Get("/{id}/history", rt.Payment.History)
		r.Post("/{gatewayOrderId}/complete", rt.Payment.Complete)
	})
	r.Route("/orders", func(r chi.Router) {
		r.Put("/{id}", rt.Order.Put)
		r.Get("/{id}", rt.Order.Get)
	})
	r.Get("/healthz", rt.Health.Handler)
	r.Get("/stats", rt.Metrics.Stats)
	if rt.Prometheus != nil {
		r.Method(http.MethodGet, "/metrics", rt.Prometheus)
	}
	return r
}

func requestLogger(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request", "layer", "http", "method", r.Method, "path", r.URL.Path,
				"status", ww.Status(), "bytes", ww.BytesWritten(), "duration", time.Since(start).String(),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
