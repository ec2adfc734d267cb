package compliance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks compliance audit persistence.
type Metrics struct {
	eventsEmitted   prometheus.Counter
	persistFailures prometheus.Counter
	persistDuration prometheus.Histogram
}

// NewMetrics registers the compliance publisher metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		eventsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "klok_audit_compliance_events_emitted_total",
			Help: "Compliance audit events persisted to the outbox",
		}),
		persistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "klok_audit_compliance_persist_failures_total",
			Help: "Compliance audit writes that failed and aborted the calling operation",
		}),
		persistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "klok_audit_compliance_persist_duration_seconds",
			Help:    "Latency of synchronous compliance audit writes",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25},
		}),
	}
}

func (m *Metrics) IncEventsEmitted() {
	if m == nil {
		return
	}
	m.eventsEmitted.Inc()
}

func (m *Metrics) IncPersistFailures() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

func (m *Metrics) ObservePersistDuration(seconds float64) {
	if m == nil {
		return
	}
	m.persistDuration.Observe(seconds)
}
