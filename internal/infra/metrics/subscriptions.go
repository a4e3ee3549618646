package metrics

import (
	"github.com/Jesusn8npro/AcademiaVallenataOnline2-sub003/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		subscriptionsExpiredTotal,
		subscriptionsActivatedTotal,
		subscriptionsTotal,
		schedulerRunsTotal,
	)
}

var (
	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Total number of subscriptions expired by the renewal sweep.",
		},
	)

	subscriptionsActivatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_activated_total",
			Help: "Subscription activations by path (webhook/reconciler).",
		},
		[]string{"path"},
	)

	subscriptionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions_total",
			Help: "Current number of subscriptions by state.",
		},
		[]string{"state"},
	)

	// job: sweep|reconcile; result: ok|error|skipped
	schedulerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_runs_total",
			Help: "Periodic job runs by job and result.",
		},
		[]string{"job", "result"},
	)
)

func IncSubscriptionsExpired(count int) {
	subscriptionsExpiredTotal.Add(float64(count))
}

func IncSubscriptionsActivated(path string, count int) {
	subscriptionsActivatedTotal.WithLabelValues(norm(path)).Add(float64(count))
}

func SetSubscriptionsTotal(counts map[model.SubscriptionState]int) {
	states := []model.SubscriptionState{
		model.SubscriptionStatePendingPayment,
		model.SubscriptionStateActive,
		model.SubscriptionStatePaused,
		model.SubscriptionStateCancelled,
		model.SubscriptionStateExpired,
	}
	for _, s := range states {
		subscriptionsTotal.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

func IncSchedulerRun(job, result string) {
	schedulerRunsTotal.WithLabelValues(norm(job), norm(result)).Inc()
}
