package invoice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"klok/internal/compliance/models"
	"klok/internal/compliance/providers"
	"klok/internal/decision"
	id "klok/pkg/domain"
	dErrors "klok/pkg/domain-errors"
)

// Validator is the classification decision the gate relies on.
type Validator interface {
	Provider(code string) (providers.Provider, error)
	EvaluateWith(ctx context.Context, p providers.Provider, classification string, factors models.ControlTestFactors) (decision.Decision, error)
}

// Draft is the caller's proposal for a new invoice.
type Draft struct {
	TenantID       id.TenantID
	OrganizationID id.OrganizationID
	ContractorID   id.ContractorID
	Classification string
	Factors        models.ControlTestFactors
	TaxInfo        TaxInfo
	Currency       string
	Subtotal       decimal.Decimal
}

// Evaluation is the gate's verdict on a draft that passed every check.
type Evaluation struct {
	Decision decision.Decision
	Tax      models.TaxBreakdown
}

// Gate decides whether a draft may become a record. It holds no state of
// its own and never touches persistence.
type Gate struct {
	validator Validator
}

func NewGate(v Validator) *Gate {
	return &Gate{validator: v}
}

// Validate runs every check NewRecord runs without building anything.
// A blocked decision is returned alongside its *decision.BlockedError so
// callers can audit it.
func (g *Gate) Validate(ctx context.Context, d Draft) (Evaluation, error) {
	p, err := g.validator.Provider(d.TaxInfo.Country)
	if err != nil {
		return Evaluation{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(d.Currency))
	if want := p.Capabilities().Currency; currency != want {
		return Evaluation{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("currency must be %s for jurisdiction %s", want, p.Code()))
	}
	if !d.Subtotal.IsPositive() {
		return Evaluation{}, dErrors.New(dErrors.CodeValidation, "subtotal must be greater than zero")
	}

	dec, err := g.validator.EvaluateWith(ctx, p, d.Classification, d.Factors)
	if err != nil {
		return Evaluation{}, err
	}
	if !dec.Approved() {
		return Evaluation{Decision: dec}, dec.Err()
	}

	if err := checkTaxInfo(p, d.TaxInfo); err != nil {
		return Evaluation{Decision: dec}, err
	}

	tax, err := calculateTax(p, d.Subtotal, dec.Classification, models.TaxParams{
		VATRegistered: d.TaxInfo.VATRegistered,
		Currency:      currency,
	})
	if err != nil {
		return Evaluation{Decision: dec}, err
	}
	return Evaluation{Decision: dec, Tax: tax}, nil
}

// NewRecord is the only constructor for an unsaved Record. Nothing is
// returned unless every check passed.
func (g *Gate) NewRecord(ctx context.Context, d Draft, invoiceID id.InvoiceID, now time.Time) (*Record, Evaluation, error) {
	ev, err := g.Validate(ctx, d)
	if err != nil {
		return nil, ev, err
	}
	dec := ev.Decision
	return &Record{
		id:             invoiceID,
		tenantID:       d.TenantID,
		organizationID: d.OrganizationID,
		contractorID:   d.ContractorID,
		classification: dec.Classification,
		taxInfo:        normalizeTaxInfo(d.TaxInfo, dec.Jurisdiction),
		currency:       ev.Tax.Currency,
		subtotal:       ev.Tax.Subtotal,
		vat:            ev.Tax.VAT,
		total:          ev.Tax.Total,
		advisories:     ev.Tax.Advisories,
		checks: ComplianceChecks{
			ContractorStatusVerified: true,
			VerifiedAt:               now,
			RuleVersion:              dec.RuleVersion,
			EvaluatedFactors:         dec.Factors,
			RiskLevel:                dec.Risk.OverallRisk,
			HighRiskAdvisory:         dec.HighRiskAdvisory,
		},
		status:    StatusDraft,
		createdAt: now,
		updatedAt: now,
	}, ev, nil
}

// Reclassify re-runs the gate over r's inputs with a applied. On success it
// returns the replacement record and voids r; on failure r is unchanged.
func (r *Record) Reclassify(ctx context.Context, g *Gate, a Amendment, newID id.InvoiceID, now time.Time) (*Record, Evaluation, error) {
	if r.status != StatusDraft {
		return nil, Evaluation{}, dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("invoice is %s; only drafts can be reclassified", r.status))
	}
	next, ev, err := g.NewRecord(ctx, r.Draft(a), newID, now)
	if err != nil {
		return nil, ev, err
	}
	replaced := r.id
	next.replacesID = &replaced
	if err := r.Void(now); err != nil {
		return nil, ev, err
	}
	return next, ev, nil
}

func normalizeTaxInfo(t TaxInfo, jurisdiction string) TaxInfo {
	t.Country = jurisdiction
	t.TaxNumber = strings.TrimSpace(t.TaxNumber)
	t.VATNumber = strings.TrimSpace(t.VATNumber)
	return t
}

func checkTaxInfo(p providers.Provider, t TaxInfo) error {
	tax := strings.TrimSpace(t.TaxNumber)
	if tax == "" {
		return dErrors.New(dErrors.CodeFormatViolation, "tax_number is required")
	}
	if !p.ValidateTaxNumber(tax, "") {
		return dErrors.New(dErrors.CodeFormatViolation,
			fmt.Sprintf("tax_number is not a valid %s tax reference", p.Code()))
	}
	vat := strings.TrimSpace(t.VATNumber)
	switch {
	case t.VATRegistered && vat == "":
		return dErrors.New(dErrors.CodeFormatViolation, "vat_number is required for a vat registered contractor")
	case vat != "" && !p.ValidateVATNumber(vat, ""):
		return dErrors.New(dErrors.CodeFormatViolation,
			fmt.Sprintf("vat_number is not a valid %s vat number", p.Code()))
	}
	return nil
}

// calculateTax contains a provider panic the same way the decision service does.
func calculateTax(p providers.Provider, subtotal decimal.Decimal, c models.Classification, params models.TaxParams) (out models.TaxBreakdown, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = dErrors.Wrap(providers.Recovered(p.Code(), v), dErrors.CodeInternal, "compliance provider failure")
		}
	}()
	return p.CalculateContractorTax(subtotal, c, params)
}
