package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics owns its registry so tests and both binaries get independent sets.
type Metrics struct {
	reg *prometheus.Registry

	TransactionsInitiated prometheus.Counter
	TransactionsSucceeded prometheus.Counter
	TransactionsFailed    prometheus.Counter
	TransactionsStuck     prometheus.Counter
	OrdersPaid            prometheus.Counter

	Reconciliations *prometheus.CounterVec
	GatewayLatency  *prometheus.HistogramVec
	HandlerErrors   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		TransactionsInitiated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transactions",
			Name:      "initiated_total",
			Help:      "Transactions accepted by the gateway",
		}),
		TransactionsSucceeded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transactions",
			Name:      "succeeded_total",
			Help:      "Transactions reconciled as succeeded",
		}),
		TransactionsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transactions",
			Name:      "failed_total",
			Help:      "Transactions that ended in failed",
		}),
		TransactionsStuck: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transactions",
			Name:      "stuck_total",
			Help:      "Initiated transactions reported by the recovery sweep",
		}),
		OrdersPaid: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "paid_total",
			Help:      "Orders marked paid",
		}),
		Reconciliations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "outcomes_total",
			Help:      "Callback reconciliations by outcome",
		}, []string{"outcome"}),
		GatewayLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "call_duration_seconds",
			Help:      "Payment gateway call duration",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation", "outcome"}),
		HandlerErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consumers",
			Name:      "handler_errors_total",
			Help:      "Event handler failures by event name",
		}, []string{"event"}),
	}
}

func (m *Metrics) TransactionsInitiatedAdd(n int) {
	m.TransactionsInitiated.Add(float64(n))
}

func (m *Metrics) TransactionsSucceededAdd(n int) {
	m.TransactionsSucceeded.Add(float64(n))
}

func (m *Metrics) TransactionsFailedAdd(n int) {
	m.TransactionsFailed.Add(float64(n))
}

func (m *Metrics) TransactionsStuckAdd(n int) {
	m.TransactionsStuck.Add(float64(n))
}

func (m *Metrics) OrdersPaidAdd(n int) {
	m.OrdersPaid.Add(float64(n))
}

func (m *Metrics) ReconciliationObserved(outcome string) {
	m.Reconciliations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GatewayCallObserved(operation, outcome string, d time.Duration) {
	m.GatewayLatency.WithLabelValues(operation, outcome).Observe(d.Seconds())
}

func (m *Metrics) HandlerFailed(event string) {
	m.HandlerErrors.WithLabelValues(event).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
