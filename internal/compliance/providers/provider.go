// Package providers defines the jurisdiction provider contract and the
// registry that maps country codes to providers.
package providers

import (
	"github.com/shopspring/decimal"

	"klok/internal/compliance/models"
)

// Capabilities describes a provider for discovery endpoints.
type Capabilities struct {
	Code            string                    `json:"code"`
	Name            string                    `json:"name"`
	Currency        string                    `json:"currency"`
	RuleVersion     string                    `json:"rule_version"`
	VATRate         decimal.Decimal           `json:"vat_rate"`
	OrgTypes        []models.OrgType          `json:"org_types"`
	Classifications models.ClassificationSets `json:"classifications"`
}

// Provider encapsulates one jurisdiction's labour and tax rules. Providers
// hold only immutable configuration and must be safe for concurrent use
// without synchronization.
type Provider interface {
	Code() string
	RuleVersion() string
	Capabilities() Capabilities
	Config() *models.JurisdictionConfig

	// Classifications partitions the worker types for this jurisdiction.
	Classifications() models.ClassificationSets
	// LegalBasis explains, in statute terms, why c cannot be invoiced.
	LegalBasis(c models.Classification) (reason, remediation string)

	ValidateTaxNumber(value string, orgType models.OrgType) bool
	ValidateVATNumber(value string, orgType models.OrgType) bool
	ValidateCompanyRegistration(value string, orgType models.OrgType) bool

	RequiredDocuments(orgType models.OrgType, revenue *decimal.Decimal, employeeCount *int) []models.ComplianceRequirement
	ClassificationCompliance(c models.Classification) models.ClassificationCompliance

	CalculateRiskScore(profile models.OrganizationProfile) models.RiskProfile
	ScoreRelationship(factors models.ControlTestFactors) models.RiskProfile

	// CalculateContractorTax re-checks eligibility and returns a
	// legal_violation error for payroll-only classifications before
	// computing anything.
	CalculateContractorTax(subtotal decimal.Decimal, c models.Classification, params models.TaxParams) (models.TaxBreakdown, error)
}
