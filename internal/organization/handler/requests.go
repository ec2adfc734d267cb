package handler

import (
	"strings"

	"github.com/shopspring/decimal"

	"klok/internal/compliance/models"
	"klok/internal/organization"
	dErrors "klok/pkg/domain-errors"
)

const (
	maxNameLen    = 200
	maxRefLen     = 32
	maxDocTypeLen = 64
	maxOwners     = 50
)

type OwnerRequest struct {
	Name               string          `json:"name"`
	PoliticallyExposed bool            `json:"politically_exposed"`
	Foreign            bool            `json:"foreign"`
	OwnershipPct       decimal.Decimal `json:"ownership_pct"`
}

func (r *OwnerRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > maxNameLen {
		return dErrors.New(dErrors.CodeValidation, "name is too long")
	}
	return nil
}

func (r OwnerRequest) toModel() models.Owner {
	return models.Owner{
		Name:               r.Name,
		PoliticallyExposed: r.PoliticallyExposed,
		Foreign:            r.Foreign,
		OwnershipPct:       r.OwnershipPct,
	}
}

type DocumentRequest struct {
	Type     string `json:"type"`
	Verified bool   `json:"verified"`
}

func (r *DocumentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Type = strings.ToLower(strings.TrimSpace(r.Type))
	if r.Type == "" {
		return dErrors.New(dErrors.CodeValidation, "type is required")
	}
	if len(r.Type) > maxDocTypeLen {
		return dErrors.New(dErrors.CodeValidation, "type is too long")
	}
	return nil
}

func (r DocumentRequest) toModel() models.Document {
	return models.Document{Type: r.Type, Verified: r.Verified}
}

// OnboardRequest is the body for POST /organizations.
type OnboardRequest struct {
	Name           string            `json:"name"`
	Jurisdiction   string            `json:"jurisdiction"`
	RegistrationNo string            `json:"registration_no"`
	TaxNumber      string            `json:"tax_number"`
	VATNumber      string            `json:"vat_number"`
	OrgType        string            `json:"org_type"`
	IndustryCode   string            `json:"industry_code"`
	Revenue        *decimal.Decimal  `json:"revenue"`
	EmployeeCount  *int              `json:"employee_count"`
	Region         string            `json:"region"`
	Owners         []OwnerRequest    `json:"owners"`
	BankVerified   *bool             `json:"bank_verified"`
	TaxRegistered  *bool             `json:"tax_registered"`
	Documents      []DocumentRequest `json:"documents"`

	orgType models.OrgType
}

func (r *OnboardRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > maxNameLen {
		return dErrors.New(dErrors.CodeValidation, "name is too long")
	}
	r.Jurisdiction = strings.ToUpper(strings.TrimSpace(r.Jurisdiction))
	if r.Jurisdiction == "" {
		return dErrors.New(dErrors.CodeValidation, "jurisdiction is required")
	}
	if len(r.RegistrationNo) > maxRefLen || len(r.TaxNumber) > maxRefLen || len(r.VATNumber) > maxRefLen {
		return dErrors.New(dErrors.CodeValidation, "registration or tax reference is too long")
	}
	var err error
	if r.orgType, err = models.ParseOrgType(r.OrgType); err != nil {
		return err
	}
	if len(r.Owners) > maxOwners {
		return dErrors.New(dErrors.CodeValidation, "too many owners")
	}
	for i := range r.Owners {
		if err := r.Owners[i].Validate(); err != nil {
			return err
		}
	}
	for i := range r.Documents {
		if err := r.Documents[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (r OnboardRequest) ToOnboarding() organization.Onboarding {
	owners := make([]models.Owner, 0, len(r.Owners))
	for _, o := range r.Owners {
		owners = append(owners, o.toModel())
	}
	docs := make([]models.Document, 0, len(r.Documents))
	for _, d := range r.Documents {
		docs = append(docs, d.toModel())
	}
	return organization.Onboarding{
		Name:           r.Name,
		Jurisdiction:   r.Jurisdiction,
		RegistrationNo: r.RegistrationNo,
		TaxNumber:      r.TaxNumber,
		VATNumber:      r.VATNumber,
		Profile: models.OrganizationProfile{
			OrgType:       r.orgType,
			IndustryCode:  strings.TrimSpace(r.IndustryCode),
			Revenue:       r.Revenue,
			EmployeeCount: r.EmployeeCount,
			Region:        strings.TrimSpace(r.Region),
			Owners:        owners,
			BankVerified:  r.BankVerified,
			TaxRegistered: r.TaxRegistered,
			Documents:     docs,
		},
	}
}

// RevenueRequest is the body for PUT /organizations/{id}/revenue.
type RevenueRequest struct {
	Revenue       *decimal.Decimal `json:"revenue"`
	EmployeeCount *int             `json:"employee_count"`
}

func (r *RevenueRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Revenue == nil {
		return dErrors.New(dErrors.CodeValidation, "revenue is required")
	}
	return nil
}
