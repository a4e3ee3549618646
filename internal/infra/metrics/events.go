package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(eventsPublishedTotal) }

// result: sent|dropped|error
var eventsPublishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notification_events_total",
		Help: "Notification events handed to the event channel, by kind and result.",
	},
	[]string{"kind", "result"},
)

func IncEvent(kind, result string) {
	eventsPublishedTotal.WithLabelValues(norm(kind), norm(result)).Inc()
}
