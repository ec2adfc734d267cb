package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for tenant rate limiting.
type Metrics struct {
	Rejected       prometheus.Counter
	StoreErrors    prometheus.Counter
	FallbackChecks prometheus.Counter
	BreakerOpen    prometheus.Gauge
}

// New creates a new Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "klok_ratelimit_rejected_total",
			Help: "Requests rejected with 429",
		}),
		StoreErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "klok_ratelimit_store_errors_total",
			Help: "Failed checks against the shared counter store",
		}),
		FallbackChecks: f.NewCounter(prometheus.CounterOpts{
			Name: "klok_ratelimit_fallback_checks_total",
			Help: "Checks answered by the in-memory fallback while the breaker is open",
		}),
		BreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "klok_ratelimit_breaker_open",
			Help: "1 while the shared store is bypassed",
		}),
	}
}
