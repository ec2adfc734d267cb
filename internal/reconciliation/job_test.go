package reconciliation_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"klok/internal/compliance/models"
	"klok/internal/compliance/providers"
	"klok/internal/compliance/providers/za"
	"klok/internal/decision"
	"klok/internal/invoice"
	invoicestore "klok/internal/invoice/store/memory"
	"klok/internal/reconciliation"
	"klok/internal/reconciliation/metrics"
	id "klok/pkg/domain"
	"klok/pkg/platform/audit"
	"klok/pkg/platform/audit/publishers/compliance"
	auditmemory "klok/pkg/platform/audit/store/memory"
)

// flakyStore fails every annotation write while broken is set.
type flakyStore struct {
	*invoicestore.InMemoryStore
	broken bool
}

func (s *flakyStore) AppendAnnotation(ctx context.Context, a invoice.Annotation) error {
	if s.broken {
		return errors.New("disk full")
	}
	return s.InMemoryStore.AppendAnnotation(ctx, a)
}

// stallingValidator never returns from EvaluateWith until release is closed,
// whatever its context says.
type stallingValidator struct {
	*decision.Service
	release chan struct{}
}

func (v *stallingValidator) EvaluateWith(context.Context, providers.Provider, string, models.ControlTestFactors) (decision.Decision, error) {
	<-v.release
	return decision.Decision{}, errors.New("released")
}

// orderLedger records how many annotations the store held each time a key
// was marked.
type orderLedger struct {
	*reconciliation.MemoryLedger
	store     *invoicestore.InMemoryStore
	failMarks bool
	marks     []int
}

func (l *orderLedger) Mark(ctx context.Context, key string) error {
	l.marks = append(l.marks, l.store.AnnotationCount())
	if l.failMarks {
		return errors.New("redis unavailable")
	}
	return l.MemoryLedger.Mark(ctx, key)
}

type JobSuite struct {
	suite.Suite
	registry  *providers.Registry
	decisions *decision.Service
	gate      *invoice.Gate
	store     *invoicestore.InMemoryStore
	audit     *auditmemory.InMemoryStore
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func TestJobSuite(t *testing.T) {
	suite.Run(t, new(JobSuite))
}

func (s *JobSuite) SetupTest() {
	reg, err := providers.NewRegistry(za.MustNew(za.DefaultConfig()))
	s.Require().NoError(err)
	s.registry = reg
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.decisions = decision.NewService(reg, decision.WithLogger(s.logger))
	s.gate = invoice.NewGate(s.decisions)
	s.store = invoicestore.NewInMemory()
	s.audit = auditmemory.NewInMemoryStore()
	s.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
}

func (s *JobSuite) newJob(store reconciliation.Store, opts ...reconciliation.Option) *reconciliation.Job {
	base := []reconciliation.Option{
		reconciliation.WithLogger(s.logger),
		reconciliation.WithMetrics(s.metrics),
		reconciliation.WithAuditPublisher(compliance.New(s.audit)),
		reconciliation.WithPageRate(0),
		reconciliation.WithBatchSize(2),
	}
	return reconciliation.NewJob(store, s.decisions, append(base, opts...)...)
}

func (s *JobSuite) seed(c models.Classification) *invoice.Record {
	rec, _, err := s.gate.NewRecord(context.Background(), invoice.Draft{
		TenantID:       id.TenantID(uuid.New()),
		OrganizationID: id.OrganizationID(uuid.New()),
		ContractorID:   id.ContractorID(uuid.New()),
		Classification: string(c),
		Factors:        models.AllIndependent(),
		TaxInfo:        invoice.TaxInfo{Country: "ZA", VATRegistered: true, VATNumber: "4123456789", TaxNumber: "0123456789"},
		Currency:       "ZAR",
		Subtotal:       decimal.RequireFromString("20000"),
	}, id.InvoiceID(uuid.New()), time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), rec))
	return rec
}

// moveConsultantsToPayroll registers a rule version under which consultants
// may no longer invoice.
func (s *JobSuite) moveConsultantsToPayroll() {
	cfg := za.DefaultConfig()
	doc := "rule_version: za-2026.2\n" +
		"classifications:\n  invoice_eligible: [independent_contractor, freelancer]\n" +
		"  payroll_only: [consultant, fixed_term_employee, temporary_employee, casual_worker, labour_broker_employee]\n"
	s.Require().NoError(providers.ApplyOverrides([]byte(doc), cfg))
	_, err := s.registry.Register("ZA", za.MustNew(cfg))
	s.Require().NoError(err)
}

func (s *JobSuite) TestNothingToFlagUnderUnchangedRules() {
	for range 3 {
		s.seed(models.Consultant)
	}
	sum, err := s.newJob(s.store).Run(context.Background())
	s.Require().NoError(err)
	s.Equal(3, sum.Reviewed)
	s.Zero(sum.Violations)
	s.Zero(s.store.AnnotationCount())
}

func (s *JobSuite) TestRuleChangeAnnotatesOnce() {
	consultants := []*invoice.Record{s.seed(models.Consultant), s.seed(models.Consultant)}
	s.seed(models.Freelancer)
	s.seed(models.IndependentContractor)
	s.seed(models.Freelancer)

	s.moveConsultantsToPayroll()
	job := s.newJob(s.store, reconciliation.WithLedger(reconciliation.NewMemoryLedger()))

	first, err := job.Run(context.Background())
	s.Require().NoError(err)
	s.Equal(5, first.Reviewed)
	s.Equal(2, first.Violations)
	s.Equal(2, first.Updated)
	s.Zero(first.Errors)
	s.Equal(2, s.audit.CountAction(audit.EventReconciliationViolation))

	for _, c := range consultants {
		found, err := s.store.FindByID(context.Background(), c.TenantID(), c.ID())
		s.Require().NoError(err)
		s.Require().Len(found.Annotations(), 1)
		a := found.Annotations()[0]
		s.Equal(invoice.AnnotationReconciliationWarning, a.Kind)
		s.Equal("za-2026.2", a.RuleVersion)
		s.Equal(invoice.StatusDraft, found.Status())
		s.True(found.Total().Equal(c.Total()))
		s.Equal(za.RuleVersion, found.Checks().RuleVersion)
	}

	second, err := job.Run(context.Background())
	s.Require().NoError(err)
	s.Zero(second.Updated)
	s.Equal(2, second.Skipped)
	s.Equal(2, s.audit.CountAction(audit.EventReconciliationViolation))
	s.Equal(2, s.store.AnnotationCount())
	s.InDelta(2, testutil.ToFloat64(s.metrics.Skipped), 0)
}

func (s *JobSuite) TestStoreDedupesWithoutLedger() {
	s.seed(models.Consultant)
	s.moveConsultantsToPayroll()
	job := s.newJob(s.store)

	_, err := job.Run(context.Background())
	s.Require().NoError(err)
	again, err := job.Run(context.Background())
	s.Require().NoError(err)
	s.Zero(again.Updated)
	s.Equal(1, again.Skipped)
	s.Equal(1, s.audit.CountAction(audit.EventReconciliationViolation))
}

func (s *JobSuite) TestVoidRecordsAreIgnored() {
	rec := s.seed(models.Consultant)
	s.Require().NoError(rec.Void(time.Now()))
	s.Require().NoError(s.store.Update(context.Background(), rec))
	s.moveConsultantsToPayroll()

	sum, err := s.newJob(s.store).Run(context.Background())
	s.Require().NoError(err)
	s.Zero(sum.Reviewed)
	s.Zero(sum.Violations)
}

func (s *JobSuite) TestOneBadRecordDoesNotStopTheRun() {
	s.seed(models.Freelancer)
	orphan, err := invoice.Rehydrate(invoice.Snapshot{
		ID:             id.InvoiceID(uuid.New()),
		TenantID:       id.TenantID(uuid.New()),
		Classification: models.Freelancer,
		TaxInfo:        invoice.TaxInfo{Country: "KE"},
		Currency:       "KES",
		Subtotal:       decimal.NewFromInt(100),
		VAT:            decimal.Zero,
		Total:          decimal.NewFromInt(100),
		Checks:         invoice.ComplianceChecks{ContractorStatusVerified: true},
		Status:         invoice.StatusApproved,
	})
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), orphan))
	s.seed(models.Freelancer)

	sum, err := s.newJob(s.store).Run(context.Background())
	s.Require().NoError(err)
	s.Equal(2, sum.Reviewed)
	s.Equal(1, sum.Errors)
	s.InDelta(1, testutil.ToFloat64(s.metrics.RecordErrors), 0)
}

func (s *JobSuite) TestFailedWriteIsRetriedNextRun() {
	s.seed(models.Consultant)
	s.moveConsultantsToPayroll()
	flaky := &flakyStore{InMemoryStore: s.store, broken: true}
	job := s.newJob(flaky, reconciliation.WithLedger(reconciliation.NewMemoryLedger()))

	first, err := job.Run(context.Background())
	s.Require().NoError(err)
	s.Equal(1, first.Errors)
	s.Zero(s.audit.CountAction(audit.EventReconciliationViolation))

	flaky.broken = false
	second, err := job.Run(context.Background())
	s.Require().NoError(err)
	s.Equal(1, second.Updated)
	s.Equal(1, s.store.AnnotationCount())
}

func (s *JobSuite) TestCancelledRunStops() {
	s.seed(models.Consultant)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := s.newJob(s.store).Run(ctx)
	s.ErrorIs(err, context.Canceled)
	s.Zero(sum.Reviewed)
	s.InDelta(1, testutil.ToFloat64(s.metrics.Runs.WithLabelValues("cancelled")), 0)
}

func (s *JobSuite) TestUnreadableRowIsCountedAndSkipped() {
	valid := []*invoice.Record{s.seed(models.Freelancer), s.seed(models.Freelancer), s.seed(models.Freelancer)}
	broken := valid[0].Snapshot()
	broken.ID = id.InvoiceID(uuid.New())
	broken.Classification = models.Classification("contractor")
	s.Require().NoError(s.store.Restore(context.Background(), broken))

	sum, err := s.newJob(s.store).Run(context.Background())
	s.Require().NoError(err)
	s.Equal(3, sum.Reviewed)
	s.Equal(1, sum.Errors)
	s.InDelta(1, testutil.ToFloat64(s.metrics.RecordErrors), 0)
	s.InDelta(1, testutil.ToFloat64(s.metrics.Runs.WithLabelValues("ok")), 0)
}

func (s *JobSuite) TestLedgerIsMarkedOnlyAfterTheAnnotationIsStored() {
	s.seed(models.Consultant)
	s.moveConsultantsToPayroll()
	ledger := &orderLedger{MemoryLedger: reconciliation.NewMemoryLedger(), store: s.store}
	flaky := &flakyStore{InMemoryStore: s.store, broken: true}
	job := s.newJob(flaky, reconciliation.WithLedger(ledger))

	first, err := job.Run(context.Background())
	s.Require().NoError(err)
	s.Equal(1, first.Errors)
	s.Empty(ledger.marks)

	flaky.broken = false
	second, err := job.Run(context.Background())
	s.Require().NoError(err)
	s.Equal(1, second.Updated)
	s.Equal([]int{1}, ledger.marks)
}

func (s *JobSuite) TestLostMarkFallsBackToTheStore() {
	rec := s.seed(models.Consultant)
	s.moveConsultantsToPayroll()
	ledger := &orderLedger{MemoryLedger: reconciliation.NewMemoryLedger(), store: s.store, failMarks: true}
	job := s.newJob(s.store, reconciliation.WithLedger(ledger))

	first, err := job.Run(context.Background())
	s.Require().NoError(err)
	s.Equal(1, first.Updated)
	s.Zero(first.Errors)

	ledger.failMarks = false
	second, err := job.Run(context.Background())
	s.Require().NoError(err)
	s.Zero(second.Updated)
	s.Equal(1, second.Skipped)
	s.Equal(1, s.store.AnnotationCount())
	s.Equal(1, s.audit.CountAction(audit.EventReconciliationViolation))

	seen, err := ledger.Seen(context.Background(), invoice.DedupeKey(rec.ID(), models.Consultant, "za-2026.2"))
	s.Require().NoError(err)
	s.True(seen)
}

func (s *JobSuite) TestRecordTimeoutBoundsEvaluation() {
	s.seed(models.Freelancer)
	v := &stallingValidator{Service: s.decisions, release: make(chan struct{})}
	defer close(v.release)
	job := reconciliation.NewJob(s.store, v,
		reconciliation.WithLogger(s.logger),
		reconciliation.WithMetrics(s.metrics),
		reconciliation.WithPageRate(0),
		reconciliation.WithRecordTimeout(20*time.Millisecond),
	)

	done := make(chan reconciliation.Summary, 1)
	go func() {
		sum, err := job.Run(context.Background())
		s.NoError(err)
		done <- sum
	}()
	select {
	case sum := <-done:
		s.Equal(1, sum.Errors)
		s.Zero(sum.Reviewed)
	case <-time.After(2 * time.Second):
		s.Fail("run did not finish after the record timeout")
	}
}

func TestMemoryLedger(t *testing.T) {
	ctx := context.Background()
	l := reconciliation.NewMemoryLedger()

	seen, err := l.Seen(ctx, "a")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, l.Mark(ctx, "a"))
	seen, err = l.Seen(ctx, "a")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = l.Seen(ctx, "b")
	require.NoError(t, err)
	assert.False(t, seen)
}
