package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	dErrors "klok/pkg/domain-errors"
)

// OrgType is the legal form of an organization.
type OrgType string

const (
	OrgSoleProprietor   OrgType = "sole_proprietor"
	OrgPartnership      OrgType = "partnership"
	OrgCorporation      OrgType = "corporation"
	OrgCloseCorporation OrgType = "close_corporation"
	OrgTrust            OrgType = "trust"
	OrgNonProfit        OrgType = "non_profit"
)

var orgTypes = []OrgType{OrgSoleProprietor, OrgPartnership, OrgCorporation, OrgCloseCorporation, OrgTrust, OrgNonProfit}

func ParseOrgType(s string) (OrgType, error) {
	t := OrgType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range orgTypes {
		if t == known {
			return t, nil
		}
	}
	return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown organization type %q", s))
}

// Owner is one entry in the ownership structure.
type Owner struct {
	Name               string          `json:"name"`
	PoliticallyExposed bool            `json:"politically_exposed"`
	Foreign            bool            `json:"foreign"`
	OwnershipPct       decimal.Decimal `json:"ownership_pct"`
}

// Document is a submitted checklist item.
type Document struct {
	Type     string `json:"type"`
	Verified bool   `json:"verified"`
}

// OrganizationProfile holds the facts that feed risk scoring and the
// document resolver. Pointer fields are optional: nil means "not provided",
// which the scorer reports as insufficient data instead of assuming a value.
type OrganizationProfile struct {
	OrgType       OrgType          `json:"org_type"`
	IndustryCode  string           `json:"industry_code,omitempty"`
	Revenue       *decimal.Decimal `json:"revenue,omitempty"`
	EmployeeCount *int             `json:"employee_count,omitempty"`
	Region        string           `json:"region,omitempty"`
	Owners        []Owner          `json:"owners"`
	BankVerified  *bool            `json:"bank_verified,omitempty"`
	TaxRegistered *bool            `json:"tax_registered,omitempty"`
	Documents     []Document       `json:"documents"`
}

// Document returns the submitted document of the given type, if any.
func (p OrganizationProfile) Document(docType string) (Document, bool) {
	for _, d := range p.Documents {
		if d.Type == docType {
			return d, true
		}
	}
	return Document{}, false
}

// UpsertDocument replaces an existing document of the same type or appends.
func (p *OrganizationProfile) UpsertDocument(doc Document) {
	for i, d := range p.Documents {
		if d.Type == doc.Type {
			p.Documents[i] = doc
			return
		}
	}
	p.Documents = append(p.Documents, doc)
}
