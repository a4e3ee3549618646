package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(planCacheLookups, poolConnections) }

const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

var (
	// entry: plan|plan_list
	planCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plan_cache_lookups_total",
			Help: "Redis lookups in front of the plans table, by entry and outcome.",
		},
		[]string{"entry", "result"},
	)

	poolConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "postgres_pool_connections",
			Help: "Connections held by the pgx pool backing payment and subscription storage.",
		},
		[]string{"state"},
	)
)

func ObservePlanCache(entry, result string) {
	planCacheLookups.WithLabelValues(norm(entry), norm(result)).Inc()
}

// SetPoolConnections publishes a pgxpool.Stat snapshot; idle and acquired do
// not have to add up to total while connections are being constructed.
func SetPoolConnections(total, idle, acquired, max int32) {
	poolConnections.WithLabelValues("total").Set(float64(total))
	poolConnections.WithLabelValues("idle").Set(float64(idle))
	poolConnections.WithLabelValues("acquired").Set(float64(acquired))
	poolConnections.WithLabelValues("max").Set(float64(max))
}
