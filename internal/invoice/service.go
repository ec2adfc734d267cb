package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"klok/internal/decision"
	id "klok/pkg/domain"
	dErrors "klok/pkg/domain-errors"
	"klok/pkg/platform/audit"
	"klok/pkg/platform/sentinel"
	txcontext "klok/pkg/platform/tx"
	"klok/pkg/requestcontext"
)

// Store persists records and their annotations.
type Store interface {
	Create(ctx context.Context, r *Record) error
	Update(ctx context.Context, r *Record) error
	FindByID(ctx context.Context, tenantID id.TenantID, invoiceID id.InvoiceID) (*Record, error)
	// ListPage returns up to limit rows with ID greater than after, in ID
	// order, across all tenants. A zero after starts from the beginning. A
	// row that fails to rehydrate is returned with Err set; only a failed
	// query fails the call.
	ListPage(ctx context.Context, after id.InvoiceID, limit int) ([]Row, error)
	// AppendAnnotation returns sentinel.ErrAlreadyUsed when the dedupe key exists.
	AppendAnnotation(ctx context.Context, a Annotation) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// Service runs invoice operations through the gate and records every
// compliance outcome. An outcome that cannot be audited fails the operation.
type Service struct {
	store  Store
	gate   *Gate
	tx     txcontext.Runner
	audit  AuditPublisher
	logger *slog.Logger
	newID  func() id.InvoiceID
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.audit = p
	}
}

func WithTxRunner(r txcontext.Runner) Option {
	return func(s *Service) {
		s.tx = r
	}
}

// WithIDGenerator overrides invoice ID generation.
func WithIDGenerator(fn func() id.InvoiceID) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

func NewService(store Store, gate *Gate, opts ...Option) *Service {
	s := &Service{
		store:  store,
		gate:   gate,
		tx:     txcontext.NoopRunner{},
		logger: slog.Default(),
		newID:  func() id.InvoiceID { return id.InvoiceID(uuid.New()) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate is a dry run of Create. Nothing is persisted or audited.
func (s *Service) Validate(ctx context.Context, d Draft) (Evaluation, error) {
	d.TenantID = requestcontext.TenantID(ctx)
	return s.gate.Validate(ctx, d)
}

// Create builds a record through the gate and stores it.
func (s *Service) Create(ctx context.Context, d Draft) (*Record, Evaluation, error) {
	d.TenantID = requestcontext.TenantID(ctx)
	if d.TenantID.IsNil() {
		return nil, Evaluation{}, dErrors.New(dErrors.CodeUnauthorized, "tenant required")
	}
	now := requestcontext.Now(ctx)

	rec, ev, err := s.gate.NewRecord(ctx, d, s.newID(), now)
	if err != nil {
		if auditErr := s.auditBlocked(ctx, d.TenantID, d.ContractorID.String(), err); auditErr != nil {
			return nil, ev, auditErr
		}
		return nil, ev, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store invoice")
		}
		return s.emit(ctx, rec, audit.EventInvoiceApproved, "approved", "")
	})
	if err != nil {
		return nil, ev, err
	}

	s.logger.InfoContext(ctx, "invoice created",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", rec.TenantID(),
		"invoice_id", rec.ID(),
		"classification", rec.Classification(),
		"rule_version", rec.Checks().RuleVersion,
		"high_risk_advisory", rec.Checks().HighRiskAdvisory,
	)
	return rec, ev, nil
}

// Get returns one record of the caller's tenant.
func (s *Service) Get(ctx context.Context, invoiceID id.InvoiceID) (*Record, error) {
	rec, err := s.store.FindByID(ctx, requestcontext.TenantID(ctx), invoiceID)
	if err != nil {
		return nil, translate(err, "invoice")
	}
	return rec, nil
}

// Reclassify replaces a draft with a record built from amended inputs. The
// old draft is voided in the same transaction.
func (s *Service) Reclassify(ctx context.Context, invoiceID id.InvoiceID, a Amendment) (*Record, Evaluation, error) {
	tenantID := requestcontext.TenantID(ctx)
	now := requestcontext.Now(ctx)

	var (
		next *Record
		ev   Evaluation
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.store.FindByID(ctx, tenantID, invoiceID)
		if err != nil {
			return translate(err, "invoice")
		}
		next, ev, err = current.Reclassify(ctx, s.gate, a, s.newID(), now)
		if err != nil {
			return err
		}
		if err := s.store.Update(ctx, current); err != nil {
			return translate(err, "invoice")
		}
		if err := s.store.Create(ctx, next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store invoice")
		}
		return s.emit(ctx, next, audit.EventInvoiceReclassified, "approved",
			fmt.Sprintf("replaces %s (%s)", current.ID(), current.Classification()))
	})
	if err != nil {
		if auditErr := s.auditBlocked(ctx, tenantID, invoiceID.String(), err); auditErr != nil {
			return nil, ev, auditErr
		}
		return nil, ev, err
	}

	s.logger.InfoContext(ctx, "invoice reclassified",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", tenantID,
		"invoice_id", next.ID(),
		"replaces_id", invoiceID,
		"classification", next.Classification(),
	)
	return next, ev, nil
}

// Approve freezes a draft.
func (s *Service) Approve(ctx context.Context, invoiceID id.InvoiceID) (*Record, error) {
	tenantID := requestcontext.TenantID(ctx)
	var rec *Record
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		rec, err = s.store.FindByID(ctx, tenantID, invoiceID)
		if err != nil {
			return translate(err, "invoice")
		}
		if err := rec.Approve(requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.store.Update(ctx, rec); err != nil {
			return translate(err, "invoice")
		}
		return s.emit(ctx, rec, audit.EventInvoiceFinalized, "approved", "")
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) emit(ctx context.Context, rec *Record, action audit.AuditEvent, outcome, reason string) error {
	if s.audit == nil {
		return nil
	}
	event := audit.ComplianceEvent{
		TenantID:       rec.TenantID(),
		Subject:        rec.ID().String(),
		Action:         action,
		Jurisdiction:   rec.Jurisdiction(),
		Classification: string(rec.Classification()),
		Decision:       outcome,
		Reason:         reason,
		RuleVersion:    rec.Checks().RuleVersion,
	}.WithRequestMetadata(ctx)
	if err := s.audit.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record compliance audit event")
	}
	return nil
}

// auditBlocked records a blocked decision. Other gate failures (format,
// validation) are caller input errors and are not audited.
func (s *Service) auditBlocked(ctx context.Context, tenantID id.TenantID, subject string, cause error) error {
	var blocked *decision.BlockedError
	if !errors.As(cause, &blocked) {
		return nil
	}
	s.logger.InfoContext(ctx, "invoice blocked",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", tenantID,
		"jurisdiction", blocked.Jurisdiction,
		"classification", blocked.Classification,
		"kind", blocked.Kind,
	)
	if s.audit == nil {
		return nil
	}
	event := audit.ComplianceEvent{
		TenantID:       tenantID,
		Subject:        subject,
		Action:         audit.EventInvoiceBlocked,
		Jurisdiction:   blocked.Jurisdiction,
		Classification: blocked.Classification,
		Decision:       string(blocked.Kind),
		Reason:         blocked.Reason,
		RuleVersion:    blocked.RuleVersion,
	}.WithRequestMetadata(ctx)
	if err := s.audit.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record compliance audit event")
	}
	return nil
}

func translate(err error, what string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, what+" was modified concurrently")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeInvariantViolation, what+" is not in a modifiable state")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load "+what)
	}
}
