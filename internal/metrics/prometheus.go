package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meeter"

// PrometheusRecorder exports ledger metrics through its own registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	registrations       prometheus.Counter
	authFailures        *prometheus.CounterVec
	credits             prometheus.Counter
	creditedTotal       prometheus.Counter
	debits              prometheus.Counter
	debitedTotal        prometheus.Counter
	insufficientBalance prometheus.Counter
	deliveries          prometheus.Counter
	statsSaved          prometheus.Counter
	deliveryEvents      *prometheus.CounterVec
}

// NewPrometheus creates a recorder with a fresh registry that also carries
// the Go runtime and process collectors.
func NewPrometheus() *PrometheusRecorder {
	r := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "accounts", Name: "registrations_total",
			Help: "Accounts created.",
		}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "auth", Name: "failures_total",
			Help: "Rejected API keys by reason.",
		}, []string{"reason"}),
		credits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "credits_total",
			Help: "Successful credits.",
		}),
		creditedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "credited_amount_total",
			Help: "Sum of credited amounts.",
		}),
		debits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "debits_total",
			Help: "Successful debits.",
		}),
		debitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "debited_amount_total",
			Help: "Sum of debited amounts.",
		}),
		insufficientBalance: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "insufficient_balance_total",
			Help: "Spends rejected for insufficient balance.",
		}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "deliveries", Name: "logged_total",
			Help: "Delivery records appended.",
		}),
		statsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stats", Name: "saved_total",
			Help: "Stats entries upserted.",
		}),
		deliveryEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "deliveries", Name: "events_published_total",
			Help: "Delivery events published to the stream by status.",
		}, []string{"status"}),
	}

	r.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		r.registrations,
		r.authFailures,
		r.credits,
		r.creditedTotal,
		r.debits,
		r.debitedTotal,
		r.insufficientBalance,
		r.deliveries,
		r.statsSaved,
		r.deliveryEvents,
	)

	return r
}

// Handler serves the registry in Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// IncRegistration implements Recorder.
func (r *PrometheusRecorder) IncRegistration() { r.registrations.Inc() }

// IncAuthFailure implements Recorder.
func (r *PrometheusRecorder) IncAuthFailure(reason string) {
	r.authFailures.WithLabelValues(reason).Inc()
}

// ObserveCredit implements Recorder.
func (r *PrometheusRecorder) ObserveCredit(amount float64) {
	r.credits.Inc()
	r.creditedTotal.Add(amount)
}

// ObserveDebit implements Recorder.
func (r *PrometheusRecorder) ObserveDebit(amount float64) {
	r.debits.Inc()
	r.debitedTotal.Add(amount)
}

// IncInsufficientBalance implements Recorder.
func (r *PrometheusRecorder) IncInsufficientBalance() { r.insufficientBalance.Inc() }

// IncDelivery implements Recorder.
func (r *PrometheusRecorder) IncDelivery() { r.deliveries.Inc() }

// IncStatsSaved implements Recorder.
func (r *PrometheusRecorder) IncStatsSaved() { r.statsSaved.Inc() }

// IncDeliveryEventPublished implements Recorder.
func (r *PrometheusRecorder) IncDeliveryEventPublished(status string) {
	r.deliveryEvents.WithLabelValues(status).Inc()
}
