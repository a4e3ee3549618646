package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once
	pending      []prometheus.Collector
)

func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister adds every collector of this package to the default registry.
// Later calls are no-ops, so each cobra subcommand may call it.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(pending...)
	})
}

// Collectors returns the collectors of this package, for tests that use a
// private registry.
func Collectors() []prometheus.Collector {
	out := make([]prometheus.Collector, len(pending))
	copy(out, pending)
	return out
}
