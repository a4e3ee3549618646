package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		confirmationsTotal,
		confirmationDuration,
		partialActivationsTotal,
		dataIntegrityAlarmsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment records by state transition (pending/exitoso/fallido).",
		},
		[]string{"state", "product_kind"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of successful payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	// outcome: confirmed|failed|activation_pending|error
	// kind: the bounded error kind, "none" on success
	confirmationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_confirmations_total",
			Help: "Gateway confirmations handled by outcome, error kind and replay flag.",
		},
		[]string{"outcome", "kind", "replayed"},
	)

	confirmationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_confirmation_duration_seconds",
			Help:    "Duration of confirmation handling in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"outcome"},
	)

	partialActivationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscription_partial_activations_total",
			Help: "Successful payments whose membership activation had to be deferred.",
		},
	)

	dataIntegrityAlarmsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "data_integrity_alarms_total",
			Help: "Conflicting state transitions detected, by component.",
		},
		[]string{"component"},
	)
)

func IncPayment(state, productKind string) {
	paymentsTotal.WithLabelValues(norm(state), norm(productKind)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func ObserveConfirmation(outcome, kind string, replayed bool, seconds float64) {
	r := "false"
	if replayed {
		r = "true"
	}
	confirmationsTotal.WithLabelValues(norm(outcome), norm(kind), r).Inc()
	confirmationDuration.WithLabelValues(norm(outcome)).Observe(seconds)
}

func IncPartialActivation() { partialActivationsTotal.Inc() }

func IncDataIntegrityAlarm(component string) {
	dataIntegrityAlarmsTotal.WithLabelValues(norm(component)).Inc()
}
