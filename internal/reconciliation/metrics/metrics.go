package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for reconciliation runs.
type Metrics struct {
	// Completed runs by result (ok, cancelled, failed, locked)
	Runs *prometheus.CounterVec

	// Records evaluated, by jurisdiction
	RecordsReviewed *prometheus.CounterVec

	// Records that would be blocked under the current rules
	Violations *prometheus.CounterVec

	// Annotations written (new findings only)
	AnnotationsWritten *prometheus.CounterVec

	// Findings already annotated by an earlier run
	Skipped prometheus.Counter

	// Per-record failures (provider lookup, timeout, store)
	RecordErrors prometheus.Counter

	RunDuration prometheus.Histogram
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "klok_reconciliation_runs_total",
			Help: "Reconciliation runs by result",
		}, []string{"result"}),

		RecordsReviewed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "klok_reconciliation_records_reviewed_total",
			Help: "Invoice records re-evaluated against current rules",
		}, []string{"jurisdiction"}),

		Violations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "klok_reconciliation_violations_total",
			Help: "Stored invoices whose classification is no longer invoice eligible",
		}, []string{"jurisdiction", "rule_version"}),

		AnnotationsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "klok_reconciliation_annotations_written_total",
			Help: "Reconciliation warnings appended to invoice records",
		}, []string{"jurisdiction"}),

		Skipped: f.NewCounter(prometheus.CounterOpts{
			Name: "klok_reconciliation_skipped_total",
			Help: "Violations already annotated by a previous run",
		}),

		RecordErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "klok_reconciliation_record_errors_total",
			Help: "Records that could not be reconciled",
		}),

		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "klok_reconciliation_run_duration_seconds",
			Help:    "Wall time of one reconciliation run",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}

func (m *Metrics) IncrementRun(result string) {
	if m != nil {
		m.Runs.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementReviewed(jurisdiction string) {
	if m != nil {
		m.RecordsReviewed.WithLabelValues(jurisdiction).Inc()
	}
}

func (m *Metrics) IncrementViolation(jurisdiction, ruleVersion string) {
	if m != nil {
		m.Violations.WithLabelValues(jurisdiction, ruleVersion).Inc()
	}
}

func (m *Metrics) IncrementAnnotation(jurisdiction string) {
	if m != nil {
		m.AnnotationsWritten.WithLabelValues(jurisdiction).Inc()
	}
}

func (m *Metrics) IncrementSkipped() {
	if m != nil {
		m.Skipped.Inc()
	}
}

func (m *Metrics) IncrementRecordError() {
	if m != nil {
		m.RecordErrors.Inc()
	}
}

func (m *Metrics) ObserveRunDuration(d time.Duration) {
	if m != nil {
		m.RunDuration.Observe(d.Seconds())
	}
}
