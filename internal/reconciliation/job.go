// Package reconciliation re-evaluates stored invoices against the rules
// currently registered and annotates the ones that would now be blocked.
// It never changes a financial field or a status.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"klok/internal/compliance/providers"
	"klok/internal/decision"
	"klok/internal/invoice"
	"klok/internal/reconciliation/metrics"
	id "klok/pkg/domain"
	"klok/pkg/platform/audit"
	"klok/pkg/platform/sentinel"
	txcontext "klok/pkg/platform/tx"
)

// Store is the slice of the invoice store reconciliation reads and appends to.
type Store interface {
	ListPage(ctx context.Context, after id.InvoiceID, limit int) ([]invoice.Row, error)
	AppendAnnotation(ctx context.Context, a invoice.Annotation) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// Summary reports one run.
type Summary struct {
	Reviewed   int           `json:"reviewed"`
	Violations int           `json:"violations"`
	Updated    int           `json:"updated"`
	Skipped    int           `json:"skipped"`
	Errors     int           `json:"errors"`
	Duration   time.Duration `json:"duration_ns"`
}

type outcome int

const (
	outcomeCompliant outcome = iota
	outcomeAnnotated
	outcomeAlreadyFlagged
	outcomeIgnored
)

// Job pages through every stored invoice. Records inside a page are
// evaluated concurrently; one failing or unreadable record never aborts
// the run.
type Job struct {
	store         Store
	validator     invoice.Validator
	ledger        Ledger
	audit         AuditPublisher
	tx            txcontext.Runner
	metrics       *metrics.Metrics
	logger        *slog.Logger
	tracer        trace.Tracer
	limiter       *rate.Limiter
	batchSize     int
	concurrency   int
	recordTimeout time.Duration
	now           func() time.Time
}

type Option func(*Job)

func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) { j.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(j *Job) { j.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(j *Job) { j.tracer = t }
}

// WithLedger adds a shared ledger of already flagged findings.
func WithLedger(l Ledger) Option {
	return func(j *Job) { j.ledger = l }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(j *Job) { j.audit = p }
}

func WithTxRunner(r txcontext.Runner) Option {
	return func(j *Job) { j.tx = r }
}

func WithBatchSize(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.batchSize = n
		}
	}
}

func WithConcurrency(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.concurrency = n
		}
	}
}

func WithRecordTimeout(d time.Duration) Option {
	return func(j *Job) {
		if d > 0 {
			j.recordTimeout = d
		}
	}
}

// WithPageRate caps page fetches per second. Zero or less disables the cap.
func WithPageRate(perSecond float64) Option {
	return func(j *Job) {
		if perSecond <= 0 {
			j.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		j.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

func WithClock(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

func NewJob(store Store, validator invoice.Validator, opts ...Option) *Job {
	j := &Job{
		store:         store,
		validator:     validator,
		tx:            txcontext.NoopRunner{},
		logger:        slog.Default(),
		tracer:        otel.Tracer("klok/internal/reconciliation"),
		limiter:       rate.NewLimiter(rate.Limit(10), 1),
		batchSize:     100,
		concurrency:   4,
		recordTimeout: 5 * time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run reviews every record once. It returns the summary so far together
// with ctx.Err() when cancelled, and a non-nil error only when a page
// cannot be fetched or the run was cancelled.
func (j *Job) Run(ctx context.Context) (Summary, error) {
	start := j.now()
	ctx, span := j.tracer.Start(ctx, "reconciliation.Run")
	defer span.End()

	var (
		mu      sync.Mutex
		summary Summary
		after   id.InvoiceID
	)
	finish := func(result string, err error) (Summary, error) {
		summary.Duration = j.now().Sub(start)
		j.metrics.IncrementRun(result)
		j.metrics.ObserveRunDuration(summary.Duration)
		span.SetAttributes(
			attribute.Int("reviewed", summary.Reviewed),
			attribute.Int("violations", summary.Violations),
			attribute.Int("updated", summary.Updated),
			attribute.Int("errors", summary.Errors),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		j.logger.InfoContext(ctx, "reconciliation run finished",
			"result", result,
			"reviewed", summary.Reviewed,
			"violations", summary.Violations,
			"updated", summary.Updated,
			"skipped", summary.Skipped,
			"errors", summary.Errors,
			"duration_ms", summary.Duration.Milliseconds(),
		)
		return summary, err
	}

	for {
		if err := j.limiter.Wait(ctx); err != nil {
			return finish("cancelled", ctx.Err())
		}
		page, err := j.store.ListPage(ctx, after, j.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return finish("cancelled", ctx.Err())
			}
			return finish("failed", fmt.Errorf("list invoices: %w", err))
		}
		if len(page) == 0 {
			break
		}

		var g errgroup.Group
		g.SetLimit(j.concurrency)
		for _, row := range page {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				var (
					out outcome
					err = row.Err
				)
				if err == nil {
					out, err = j.reconcile(ctx, row.Record)
				}
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					summary.Errors++
					j.metrics.IncrementRecordError()
					attrs := []any{"invoice_id", row.ID, "error", err}
					if row.Record != nil {
						attrs = append(attrs, "tenant_id", row.Record.TenantID())
					}
					j.logger.WarnContext(ctx, "reconciliation record failed", attrs...)
					return nil
				}
				switch out {
				case outcomeIgnored:
					return nil
				case outcomeAnnotated:
					summary.Violations++
					summary.Updated++
				case outcomeAlreadyFlagged:
					summary.Violations++
					summary.Skipped++
				}
				summary.Reviewed++
				return nil
			})
		}
		_ = g.Wait()

		if ctx.Err() != nil {
			return finish("cancelled", ctx.Err())
		}
		if len(page) < j.batchSize {
			break
		}
		after = page[len(page)-1].ID
	}
	return finish("ok", nil)
}

// reconcile re-runs the decision for one record under the provider
// currently registered for its jurisdiction.
func (j *Job) reconcile(ctx context.Context, rec *invoice.Record) (outcome, error) {
	if rec.Status() == invoice.StatusVoid {
		return outcomeIgnored, nil
	}
	ctx, cancel := context.WithTimeout(ctx, j.recordTimeout)
	defer cancel()

	p, err := j.validator.Provider(rec.Jurisdiction())
	if err != nil {
		return 0, err
	}
	dec, err := j.evaluate(ctx, p, rec)
	if err != nil {
		return 0, err
	}
	j.metrics.IncrementReviewed(p.Code())
	if dec.Approved() {
		return outcomeCompliant, nil
	}
	j.metrics.IncrementViolation(p.Code(), dec.RuleVersion)

	key := invoice.DedupeKey(rec.ID(), rec.Classification(), dec.RuleVersion)
	if j.ledger != nil {
		seen, err := j.ledger.Seen(ctx, key)
		if err != nil {
			// The store still dedupes; carry on without the ledger.
			j.logger.WarnContext(ctx, "reconciliation ledger unavailable", "error", err)
		} else if seen {
			j.metrics.IncrementSkipped()
			return outcomeAlreadyFlagged, nil
		}
	}

	annotation := invoice.Annotation{
		ID:             uuid.NewString(),
		InvoiceID:      rec.ID(),
		DedupeKey:      key,
		Kind:           invoice.AnnotationReconciliationWarning,
		Classification: rec.Classification(),
		Message:        fmt.Sprintf("%s %s", dec.Block.Reason, dec.Block.Remediation),
		RuleVersion:    dec.RuleVersion,
		CreatedAt:      j.now(),
	}
	err = j.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := j.store.AppendAnnotation(ctx, annotation); err != nil {
			return err
		}
		return j.emit(ctx, rec, string(dec.Block.Kind), dec.Block.Reason, dec.RuleVersion)
	})
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		j.mark(ctx, key)
		j.metrics.IncrementSkipped()
		return outcomeAlreadyFlagged, nil
	case err != nil:
		return 0, err
	}
	j.mark(ctx, key)

	j.metrics.IncrementAnnotation(p.Code())
	j.logger.InfoContext(ctx, "reconciliation violation annotated",
		"invoice_id", rec.ID(),
		"tenant_id", rec.TenantID(),
		"classification", rec.Classification(),
		"rule_version", dec.RuleVersion,
	)
	return outcomeAnnotated, nil
}

// evaluate runs the decision under ctx so a provider that ignores
// cancellation still cannot hold a worker past the record timeout.
func (j *Job) evaluate(ctx context.Context, p providers.Provider, rec *invoice.Record) (decision.Decision, error) {
	type result struct {
		dec decision.Decision
		err error
	}
	done := make(chan result, 1)
	go func() {
		dec, err := j.validator.EvaluateWith(ctx, p, string(rec.Classification()), rec.Checks().EvaluatedFactors)
		done <- result{dec: dec, err: err}
	}()
	select {
	case r := <-done:
		return r.dec, r.err
	case <-ctx.Done():
		return decision.Decision{}, fmt.Errorf("evaluate invoice %s: %w", rec.ID(), ctx.Err())
	}
}

// mark records an annotated key. A failed mark only costs the next run a
// store round trip.
func (j *Job) mark(ctx context.Context, key string) {
	if j.ledger == nil {
		return
	}
	if err := j.ledger.Mark(context.WithoutCancel(ctx), key); err != nil {
		j.logger.WarnContext(ctx, "reconciliation ledger mark failed", "key", key, "error", err)
	}
}

func (j *Job) emit(ctx context.Context, rec *invoice.Record, kind, reason, ruleVersion string) error {
	if j.audit == nil {
		return nil
	}
	return j.audit.Emit(ctx, audit.ComplianceEvent{
		TenantID:       rec.TenantID(),
		Subject:        rec.ID().String(),
		Action:         audit.EventReconciliationViolation,
		Jurisdiction:   rec.Jurisdiction(),
		Classification: string(rec.Classification()),
		Decision:       kind,
		Reason:         reason,
		RuleVersion:    ruleVersion,
	})
}
