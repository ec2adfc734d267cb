// Package za implements the South African labour and tax rule set.
//
// The deemed-employment rules follow the BCEA s200A presumption and the
// Fourth Schedule to the Income Tax Act: a worker who meets the control
// and dependency indicators is an employee for PAYE, UIF and SDL purposes
// and cannot be paid against an invoice.
package za

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"klok/internal/compliance/documents"
	"klok/internal/compliance/models"
	"klok/internal/compliance/providers"
	"klok/internal/compliance/risk"
	"klok/internal/compliance/rules"
	dErrors "klok/pkg/domain-errors"
)

var hundred = decimal.NewFromInt(100)

// Provider is immutable after New and safe for concurrent use.
type Provider struct {
	cfg      *models.JurisdictionConfig
	rules    *rules.Rules
	scorer   *risk.Scorer
	resolver *documents.Resolver
}

var _ providers.Provider = (*Provider)(nil)

// New builds a provider from cfg. Pass DefaultConfig(), optionally with
// overrides applied.
func New(cfg *models.JurisdictionConfig) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, providers.NewProviderError(providers.ErrorConfig, cfg.Code, "invalid jurisdiction config", err)
	}
	compiled, err := rules.Compile(cfg.Formats)
	if err != nil {
		return nil, providers.NewProviderError(providers.ErrorConfig, cfg.Code, "invalid format rules", err)
	}
	return &Provider{
		cfg:      cfg,
		rules:    compiled,
		scorer:   risk.NewScorer(cfg.Risk),
		resolver: documents.NewResolver(cfg.Documents),
	}, nil
}

// MustNew panics on an invalid config. Used for the built-in defaults.
func MustNew(cfg *models.JurisdictionConfig) *Provider {
	p, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Provider) Code() string                               { return p.cfg.Code }
func (p *Provider) RuleVersion() string                        { return p.cfg.RuleVersion }
func (p *Provider) Config() *models.JurisdictionConfig         { return p.cfg }
func (p *Provider) Classifications() models.ClassificationSets { return p.cfg.Classifications }

func (p *Provider) Capabilities() providers.Capabilities {
	return providers.Capabilities{
		Code:            p.cfg.Code,
		Name:            p.cfg.Name,
		Currency:        p.cfg.Currency,
		RuleVersion:     p.cfg.RuleVersion,
		VATRate:         p.cfg.VATRate,
		OrgTypes:        p.cfg.OrgTypes,
		Classifications: p.cfg.Classifications,
	}
}

func (p *Provider) LegalBasis(c models.Classification) (string, string) {
	reason := fmt.Sprintf(
		"Workers classified as %s are employees under the BCEA s200A presumption and the Fourth Schedule to the Income Tax Act; "+
			"remuneration must be paid through payroll with PAYE, UIF and SDL withheld",
		c.DisplayName())
	remediation := "Process this worker through payroll, or reclassify them as an independent contractor, " +
		"freelancer or consultant if the control test supports it"
	if c == models.LabourBrokerEmployee {
		remediation = "The temporary employment service must pay this worker through its payroll (LRA s198)"
	}
	return reason, remediation
}

func (p *Provider) ValidateTaxNumber(value string, orgType models.OrgType) bool {
	return p.rules.ValidateTaxNumber(value, orgType)
}

func (p *Provider) ValidateVATNumber(value string, orgType models.OrgType) bool {
	return p.rules.ValidateVATNumber(value, orgType)
}

func (p *Provider) ValidateCompanyRegistration(value string, orgType models.OrgType) bool {
	return p.rules.ValidateCompanyRegistration(value, orgType)
}

func (p *Provider) RequiredDocuments(orgType models.OrgType, revenue *decimal.Decimal, employeeCount *int) []models.ComplianceRequirement {
	return p.resolver.Resolve(orgType, revenue, employeeCount)
}

func (p *Provider) ClassificationCompliance(c models.Classification) models.ClassificationCompliance {
	path, _ := p.cfg.Classifications.PathOf(c)
	cc := models.ClassificationCompliance{
		Jurisdiction:     p.cfg.Code,
		Classification:   c,
		PaymentPath:      path,
		CanIssueInvoices: path == models.PathInvoice,
		Requirements:     p.resolver.ForClassification(c),
	}
	switch path {
	case models.PathInvoice:
		cc.Notes = []string{
			"Contractor must be able to show control over how, when and where the work is done",
			fmt.Sprintf("VAT registration is compulsory once taxable supplies exceed %s %s in 12 months",
				p.cfg.Currency, p.cfg.VATThreshold.StringFixed(0)),
		}
	case models.PathPayroll:
		reason, _ := p.LegalBasis(c)
		cc.Notes = []string{reason}
	}
	return cc
}

func (p *Provider) CalculateRiskScore(profile models.OrganizationProfile) models.RiskProfile {
	var required []models.ComplianceRequirement
	if profile.OrgType != "" {
		required = p.resolver.Resolve(profile.OrgType, profile.Revenue, profile.EmployeeCount)
	}
	return p.scorer.Score(profile, required)
}

func (p *Provider) ScoreRelationship(factors models.ControlTestFactors) models.RiskProfile {
	return p.scorer.ScoreRelationship(factors)
}

// CalculateContractorTax computes VAT at the configured rate, rounded half
// away from zero to cents.
func (p *Provider) CalculateContractorTax(subtotal decimal.Decimal, c models.Classification, params models.TaxParams) (models.TaxBreakdown, error) {
	path, ok := p.cfg.Classifications.PathOf(c)
	if !ok {
		return models.TaxBreakdown{}, dErrors.New(dErrors.CodeUnknownClassification,
			fmt.Sprintf("unknown classification %q", string(c)))
	}
	if path != models.PathInvoice {
		reason, _ := p.LegalBasis(c)
		return models.TaxBreakdown{}, dErrors.New(dErrors.CodeLegalViolation, reason)
	}
	if !subtotal.IsPositive() {
		return models.TaxBreakdown{}, dErrors.New(dErrors.CodeValidation, "subtotal must be greater than zero")
	}
	if params.Currency != "" && !strings.EqualFold(params.Currency, p.cfg.Currency) {
		return models.TaxBreakdown{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("currency must be %s for %s", p.cfg.Currency, p.cfg.Code))
	}

	subtotal = subtotal.Round(2)
	out := models.TaxBreakdown{
		Subtotal: subtotal,
		VATRate:  decimal.Zero,
		VAT:      decimal.Zero,
		Total:    subtotal,
		Currency: p.cfg.Currency,
	}
	if params.VATRegistered {
		out.VATRate = p.cfg.VATRate
		out.VAT = subtotal.Mul(p.cfg.VATRate).Div(hundred).Round(2)
		out.Total = subtotal.Add(out.VAT)
	} else if subtotal.GreaterThan(p.cfg.VATThreshold) {
		out.Advisories = append(out.Advisories, fmt.Sprintf(
			"invoice subtotal exceeds the %s %s compulsory VAT registration threshold",
			p.cfg.Currency, p.cfg.VATThreshold.StringFixed(0)))
	}
	return out, nil
}
