package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for organization onboarding and risk.
type Metrics struct {
	Onboarded *prometheus.CounterVec

	// Risk assessments by jurisdiction and resulting level
	Assessments *prometheus.CounterVec
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Onboarded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "klok_organizations_onboarded_total",
			Help: "Organizations onboarded by jurisdiction",
		}, []string{"jurisdiction"}),
		Assessments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "klok_organization_risk_assessments_total",
			Help: "Organization risk assessments by jurisdiction and overall risk",
		}, []string{"jurisdiction", "level"}),
	}
}

func (m *Metrics) IncrementOnboarded(jurisdiction string) {
	if m != nil {
		m.Onboarded.WithLabelValues(jurisdiction).Inc()
	}
}

func (m *Metrics) IncrementAssessment(jurisdiction, level string) {
	if m != nil {
		m.Assessments.WithLabelValues(jurisdiction, level).Inc()
	}
}
