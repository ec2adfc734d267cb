package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision module.
type Metrics struct {
	// Decision outcomes by jurisdiction, outcome and block kind
	DecisionOutcome *prometheus.CounterVec

	// High or critical risk approvals
	HighRiskAdvisories *prometheus.CounterVec

	// Recovered provider panics
	ProviderPanics *prometheus.CounterVec

	// Compliance descriptor cache lookups by result (hit, miss)
	CacheLookups *prometheus.CounterVec

	EvaluateLatency prometheus.Histogram
}

// New creates a new Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DecisionOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "klok_decision_outcomes_total",
			Help: "Classification decisions by jurisdiction, outcome and block kind",
		}, []string{"jurisdiction", "outcome", "kind"}),

		HighRiskAdvisories: f.NewCounterVec(prometheus.CounterOpts{
			Name: "klok_decision_high_risk_advisories_total",
			Help: "Approved decisions carrying a deemed-employment risk advisory",
		}, []string{"jurisdiction"}),

		ProviderPanics: f.NewCounterVec(prometheus.CounterOpts{
			Name: "klok_decision_provider_panics_total",
			Help: "Provider panics recovered and reported as internal errors",
		}, []string{"jurisdiction"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "klok_decision_compliance_cache_lookups_total",
			Help: "Classification compliance descriptor cache lookups",
		}, []string{"result"}),

		EvaluateLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "klok_decision_evaluate_duration_seconds",
			Help:    "Duration of a classification decision including risk scoring",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}),
	}
}

// IncrementOutcome records a decision outcome. kind is empty for approvals.
func (m *Metrics) IncrementOutcome(jurisdiction, outcome, kind string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(jurisdiction, outcome, kind).Inc()
	}
}

func (m *Metrics) IncrementHighRisk(jurisdiction string) {
	if m != nil {
		m.HighRiskAdvisories.WithLabelValues(jurisdiction).Inc()
	}
}

func (m *Metrics) IncrementProviderPanic(jurisdiction string) {
	if m != nil {
		m.ProviderPanics.WithLabelValues(jurisdiction).Inc()
	}
}

func (m *Metrics) IncrementCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}
