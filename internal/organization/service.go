package organization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"klok/internal/compliance/models"
	"klok/internal/compliance/providers"
	orgmetrics "klok/internal/organization/metrics"
	id "klok/pkg/domain"
	dErrors "klok/pkg/domain-errors"
	"klok/pkg/platform/audit"
	"klok/pkg/platform/sentinel"
	txcontext "klok/pkg/platform/tx"
	"klok/pkg/requestcontext"
)

// Store persists organizations together with their submitted documents.
type Store interface {
	Create(ctx context.Context, o *Organization) error
	Update(ctx context.Context, o *Organization) error
	FindByID(ctx context.Context, tenantID id.TenantID, orgID id.OrganizationID) (*Organization, error)
	// ListReviewDue returns organizations whose review date is at or before
	// before, oldest review first.
	ListReviewDue(ctx context.Context, tenantID id.TenantID, before time.Time, limit int) ([]*Organization, error)
}

// ProviderSource resolves a jurisdiction code. *providers.Registry satisfies it.
type ProviderSource interface {
	Get(code string) (providers.Provider, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// Service onboards organizations and rescores them after every
// risk-relevant change. A rescore that cannot be audited fails the change.
type Service struct {
	store     Store
	providers ProviderSource
	tx        txcontext.Runner
	audit     AuditPublisher
	metrics   *orgmetrics.Metrics
	logger    *slog.Logger
	newID     func() id.OrganizationID
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.audit = p }
}

func WithTxRunner(r txcontext.Runner) Option {
	return func(s *Service) { s.tx = r }
}

func WithMetrics(m *orgmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithIDGenerator(fn func() id.OrganizationID) Option {
	return func(s *Service) { s.newID = fn }
}

func NewService(store Store, source ProviderSource, opts ...Option) *Service {
	s := &Service{
		store:     store,
		providers: source,
		tx:        txcontext.NoopRunner{},
		logger:    slog.Default(),
		newID:     func() id.OrganizationID { return id.OrganizationID(uuid.New()) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Onboard validates the registration details against the jurisdiction's
// formats, scores the initial profile and stores the organization.
func (s *Service) Onboard(ctx context.Context, in Onboarding) (*Organization, error) {
	tenantID := requestcontext.TenantID(ctx)
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "tenant required")
	}
	p, err := s.providers.Get(in.Jurisdiction)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	org, err := newOrganization(s.newID(), tenantID, in, now)
	if err != nil {
		return nil, err
	}
	org.Jurisdiction = p.Code()
	if err := checkRegistration(p, org); err != nil {
		return nil, err
	}
	if org.Profile.TaxRegistered == nil && org.TaxNumber != "" {
		registered := true
		org.Profile.TaxRegistered = &registered
	}
	if err := s.assess(ctx, p, org, now); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, org); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "organization already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store organization")
		}
		return s.emit(ctx, org, "onboarded", "")
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementOnboarded(org.Jurisdiction)
	s.logger.InfoContext(ctx, "organization onboarded",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", tenantID,
		"organization_id", org.ID,
		"jurisdiction", org.Jurisdiction,
		"overall_risk", org.Risk.Profile.OverallRisk,
	)
	return org, nil
}

func checkRegistration(p providers.Provider, org *Organization) error {
	orgType := org.Profile.OrgType
	if orgType == "" {
		return dErrors.New(dErrors.CodeValidation, "org_type is required")
	}
	if !slices.Contains(p.Capabilities().OrgTypes, orgType) {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("organization type %s is not supported in %s", orgType, p.Code()))
	}
	if !p.ValidateCompanyRegistration(org.RegistrationNo, orgType) {
		return dErrors.New(dErrors.CodeFormatViolation,
			fmt.Sprintf("registration number is not valid for a %s in %s", orgType, p.Code()))
	}
	if org.TaxNumber != "" && !p.ValidateTaxNumber(org.TaxNumber, orgType) {
		return dErrors.New(dErrors.CodeFormatViolation, "tax number format is invalid")
	}
	if org.VATNumber != "" && !p.ValidateVATNumber(org.VATNumber, orgType) {
		return dErrors.New(dErrors.CodeFormatViolation, "VAT number format is invalid")
	}
	return nil
}

// Get returns one organization of the caller's tenant.
func (s *Service) Get(ctx context.Context, orgID id.OrganizationID) (*Organization, error) {
	org, err := s.store.FindByID(ctx, requestcontext.TenantID(ctx), orgID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return org, nil
}

func (s *Service) AddOwner(ctx context.Context, orgID id.OrganizationID, owner models.Owner) (*Organization, error) {
	return s.mutate(ctx, orgID, "owner_added", func(o *Organization, now time.Time) error {
		return o.AddOwner(owner, now)
	})
}

func (s *Service) AddDocument(ctx context.Context, orgID id.OrganizationID, doc models.Document) (*Organization, error) {
	return s.mutate(ctx, orgID, "document_submitted", func(o *Organization, now time.Time) error {
		return o.SubmitDocument(doc, now)
	})
}

// UpdateRevenue replaces revenue and optionally the employee count. Both
// feed the document checklist as well as the financial score.
func (s *Service) UpdateRevenue(ctx context.Context, orgID id.OrganizationID, revenue decimal.Decimal, employeeCount *int) (*Organization, error) {
	return s.mutate(ctx, orgID, "revenue_updated", func(o *Organization, now time.Time) error {
		return o.UpdateRevenue(revenue, employeeCount, now)
	})
}

// RecalculateRisk rescores without changing the profile, picking up any
// rule change in the jurisdiction.
func (s *Service) RecalculateRisk(ctx context.Context, orgID id.OrganizationID) (*Organization, error) {
	return s.mutate(ctx, orgID, "recalculated", func(*Organization, time.Time) error { return nil })
}

// Requirements resolves the document checklist for the organization's
// current profile and marks what has been submitted.
func (s *Service) Requirements(ctx context.Context, orgID id.OrganizationID) (Checklist, error) {
	org, err := s.Get(ctx, orgID)
	if err != nil {
		return Checklist{}, err
	}
	p, err := s.providers.Get(org.Jurisdiction)
	if err != nil {
		return Checklist{}, err
	}
	required := p.RequiredDocuments(org.Profile.OrgType, org.Profile.Revenue, org.Profile.EmployeeCount)
	return buildChecklist(org, p.Code(), p.RuleVersion(), required), nil
}

// DueForReview lists the caller's organizations whose assessment has expired.
func (s *Service) DueForReview(ctx context.Context, limit int) ([]*Organization, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	orgs, err := s.store.ListReviewDue(ctx, requestcontext.TenantID(ctx), requestcontext.Now(ctx), limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list organizations")
	}
	return orgs, nil
}

func (s *Service) mutate(ctx context.Context, orgID id.OrganizationID, trigger string, apply func(*Organization, time.Time) error) (*Organization, error) {
	tenantID := requestcontext.TenantID(ctx)
	now := requestcontext.Now(ctx)

	var org *Organization
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		org, err = s.store.FindByID(ctx, tenantID, orgID)
		if err != nil {
			return wrapStoreErr(err)
		}
		previous := ""
		if org.Risk != nil {
			previous = string(org.Risk.Profile.OverallRisk)
		}
		if err := apply(org, now); err != nil {
			return err
		}
		p, err := s.providers.Get(org.Jurisdiction)
		if err != nil {
			return err
		}
		if err := s.assess(ctx, p, org, now); err != nil {
			return err
		}
		if err := s.store.Update(ctx, org); err != nil {
			return wrapStoreErr(err)
		}
		return s.emit(ctx, org, trigger, previous)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "organization risk recalculated",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", tenantID,
		"organization_id", orgID,
		"trigger", trigger,
		"overall_risk", org.Risk.Profile.OverallRisk,
		"review_required_at", org.Risk.ReviewRequiredAt,
	)
	return org, nil
}

// assess scores the profile under p. A provider panic becomes an internal error.
func (s *Service) assess(ctx context.Context, p providers.Provider, org *Organization, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "risk scoring panicked",
				"jurisdiction", p.Code(),
				"organization_id", org.ID,
				"panic", r,
			)
			err = dErrors.Wrap(&providers.ProviderError{
				Category:     providers.ErrorPanic,
				Jurisdiction: p.Code(),
				Message:      fmt.Sprint(r),
			}, dErrors.CodeInternal, "risk scoring failed")
		}
	}()
	profile := p.CalculateRiskScore(org.Profile)
	org.ApplyRisk(profile, p.RuleVersion(), now)
	s.metrics.IncrementAssessment(p.Code(), string(profile.OverallRisk))
	return nil
}

func (s *Service) emit(ctx context.Context, org *Organization, trigger, previous string) error {
	if s.audit == nil {
		return nil
	}
	reason := trigger
	if previous != "" && previous != string(org.Risk.Profile.OverallRisk) {
		reason = fmt.Sprintf("%s, was %s", trigger, previous)
	}
	event := audit.ComplianceEvent{
		TenantID:     org.TenantID,
		Subject:      org.ID.String(),
		Action:       audit.EventRiskRecalculated,
		Jurisdiction: org.Jurisdiction,
		Decision:     string(org.Risk.Profile.OverallRisk),
		Reason:       reason,
		RuleVersion:  org.Risk.RuleVersion,
	}.WithRequestMetadata(ctx)
	if err := s.audit.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record compliance audit event")
	}
	return nil
}

func wrapStoreErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "organization not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "organization was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
	}
}
