package handler

import (
	"strings"

	"github.com/shopspring/decimal"

	"klok/internal/compliance/models"
	"klok/internal/invoice"
	id "klok/pkg/domain"
	dErrors "klok/pkg/domain-errors"
)

const (
	maxClassificationLen = 64
	maxCurrencyLen       = 3
	maxTaxRefLen         = 32
)

// TaxInfoRequest is the contractor's tax identity as submitted.
type TaxInfoRequest struct {
	Country       string `json:"country"`
	VATRegistered bool   `json:"vat_registered"`
	VATNumber     string `json:"vat_number"`
	TaxNumber     string `json:"tax_number"`
}

func (t *TaxInfoRequest) normalize() error {
	t.Country = strings.ToUpper(strings.TrimSpace(t.Country))
	if t.Country == "" {
		return dErrors.New(dErrors.CodeValidation, "tax_info.country is required")
	}
	if len(t.Country) > 8 {
		return dErrors.New(dErrors.CodeValidation, "tax_info.country is too long")
	}
	t.VATNumber = strings.TrimSpace(t.VATNumber)
	t.TaxNumber = strings.TrimSpace(t.TaxNumber)
	if len(t.VATNumber) > maxTaxRefLen || len(t.TaxNumber) > maxTaxRefLen {
		return dErrors.New(dErrors.CodeValidation, "tax reference is too long")
	}
	return nil
}

func (t TaxInfoRequest) toModel() invoice.TaxInfo {
	return invoice.TaxInfo{
		Country:       t.Country,
		VATRegistered: t.VATRegistered,
		VATNumber:     t.VATNumber,
		TaxNumber:     t.TaxNumber,
	}
}

// CreateInvoiceRequest is the body for POST /invoices and POST /invoices/validate.
// Format checks on tax references belong to the gate, not to this DTO.
type CreateInvoiceRequest struct {
	OrganizationID string                    `json:"organization_id"`
	ContractorID   string                    `json:"contractor_id"`
	Classification string                    `json:"classification"`
	Factors        models.ControlTestFactors `json:"factors"`
	TaxInfo        TaxInfoRequest            `json:"tax_info"`
	Currency       string                    `json:"currency"`
	Subtotal       decimal.Decimal           `json:"subtotal"`

	organizationID id.OrganizationID
	contractorID   id.ContractorID
}

func (r *CreateInvoiceRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	var err error
	if r.organizationID, err = id.ParseOrganizationID(strings.TrimSpace(r.OrganizationID)); err != nil {
		return dErrors.New(dErrors.CodeValidation, "organization_id must be a valid id")
	}
	if r.contractorID, err = id.ParseContractorID(strings.TrimSpace(r.ContractorID)); err != nil {
		return dErrors.New(dErrors.CodeValidation, "contractor_id must be a valid id")
	}
	if len(r.Classification) > maxClassificationLen {
		return dErrors.New(dErrors.CodeValidation, "classification is too long")
	}
	r.Classification = strings.TrimSpace(r.Classification)
	if r.Classification == "" {
		return dErrors.New(dErrors.CodeValidation, "classification is required")
	}
	if err := r.TaxInfo.normalize(); err != nil {
		return err
	}
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if r.Currency == "" || len(r.Currency) > maxCurrencyLen {
		return dErrors.New(dErrors.CodeValidation, "currency must be a three letter code")
	}
	return nil
}

func (r *CreateInvoiceRequest) ToDraft() invoice.Draft {
	return invoice.Draft{
		OrganizationID: r.organizationID,
		ContractorID:   r.contractorID,
		Classification: r.Classification,
		Factors:        r.Factors,
		TaxInfo:        r.TaxInfo.toModel(),
		Currency:       r.Currency,
		Subtotal:       r.Subtotal,
	}
}

// ReclassifyRequest is the body for POST /invoices/{id}/reclassify.
// Omitted fields keep the current record's value.
type ReclassifyRequest struct {
	Classification *string                    `json:"classification"`
	Factors        *models.ControlTestFactors `json:"factors"`
	TaxInfo        *TaxInfoRequest            `json:"tax_info"`
	Currency       *string                    `json:"currency"`
}

func (r *ReclassifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Classification == nil && r.Factors == nil && r.TaxInfo == nil && r.Currency == nil {
		return dErrors.New(dErrors.CodeValidation, "at least one of classification, factors, tax_info or currency is required")
	}
	if r.Classification != nil {
		c := strings.TrimSpace(*r.Classification)
		if c == "" || len(c) > maxClassificationLen {
			return dErrors.New(dErrors.CodeValidation, "classification is invalid")
		}
		r.Classification = &c
	}
	if r.TaxInfo != nil {
		if err := r.TaxInfo.normalize(); err != nil {
			return err
		}
	}
	if r.Currency != nil {
		c := strings.ToUpper(strings.TrimSpace(*r.Currency))
		if c == "" || len(c) > maxCurrencyLen {
			return dErrors.New(dErrors.CodeValidation, "currency must be a three letter code")
		}
		r.Currency = &c
	}
	return nil
}

func (r *ReclassifyRequest) ToAmendment() invoice.Amendment {
	a := invoice.Amendment{
		Classification: r.Classification,
		Currency:       r.Currency,
		Factors:        r.Factors,
	}
	if r.TaxInfo != nil {
		t := r.TaxInfo.toModel()
		a.TaxInfo = &t
	}
	return a
}
