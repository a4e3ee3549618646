package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(serviceInfo) }

var serviceInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "academia_payments_info",
		Help: "Always 1; labels carry the running release of the payments service.",
	},
	[]string{"version", "commit", "go_version"},
)

// SetServiceInfo replaces any earlier release labels.
func SetServiceInfo(version, commit string) {
	serviceInfo.Reset()
	serviceInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}
