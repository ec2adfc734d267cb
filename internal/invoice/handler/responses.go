package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"klok/internal/compliance/models"
	"klok/internal/invoice"
)

// InvoiceResponse is the HTTP shape of a stored record.
type InvoiceResponse struct {
	ID             string                   `json:"id"`
	OrganizationID string                   `json:"organization_id"`
	ContractorID   string                   `json:"contractor_id"`
	Classification string                   `json:"classification"`
	TaxInfo        invoice.TaxInfo          `json:"tax_info"`
	Currency       string                   `json:"currency"`
	Subtotal       decimal.Decimal          `json:"subtotal"`
	VAT            decimal.Decimal          `json:"vat"`
	Total          decimal.Decimal          `json:"total"`
	Status         string                   `json:"status"`
	Compliance     invoice.ComplianceChecks `json:"compliance_checks"`
	Advisories     []string                 `json:"advisories,omitempty"`
	ReplacesID     string                   `json:"replaces_id,omitempty"`
	Annotations    []invoice.Annotation     `json:"annotations"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

func FromRecord(r *invoice.Record) *InvoiceResponse {
	resp := &InvoiceResponse{
		ID:             r.ID().String(),
		OrganizationID: r.OrganizationID().String(),
		ContractorID:   r.ContractorID().String(),
		Classification: string(r.Classification()),
		TaxInfo:        r.TaxInfo(),
		Currency:       r.Currency(),
		Subtotal:       r.Subtotal(),
		VAT:            r.VAT(),
		Total:          r.Total(),
		Status:         string(r.Status()),
		Compliance:     r.Checks(),
		Advisories:     r.Advisories(),
		Annotations:    r.Annotations(),
		CreatedAt:      r.CreatedAt(),
		UpdatedAt:      r.UpdatedAt(),
	}
	if resp.Annotations == nil {
		resp.Annotations = []invoice.Annotation{}
	}
	if replaced, ok := r.ReplacesID(); ok {
		resp.ReplacesID = replaced.String()
	}
	return resp
}

// ValidationResponse is returned by the dry run.
type ValidationResponse struct {
	Valid            bool                `json:"valid"`
	Jurisdiction     string              `json:"jurisdiction"`
	Classification   string              `json:"classification"`
	RuleVersion      string              `json:"rule_version"`
	HighRiskAdvisory bool                `json:"high_risk_advisory"`
	RiskProfile      *models.RiskProfile `json:"risk_profile,omitempty"`
	Tax              models.TaxBreakdown `json:"tax"`
}

func FromEvaluation(ev invoice.Evaluation) *ValidationResponse {
	return &ValidationResponse{
		Valid:            ev.Decision.Approved(),
		Jurisdiction:     ev.Decision.Jurisdiction,
		Classification:   string(ev.Decision.Classification),
		RuleVersion:      ev.Decision.RuleVersion,
		HighRiskAdvisory: ev.Decision.HighRiskAdvisory,
		RiskProfile:      ev.Decision.Risk,
		Tax:              ev.Tax,
	}
}
