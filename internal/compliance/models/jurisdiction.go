package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// JurisdictionConfig is the immutable rule set for one country. Providers
// hold a pointer to one and never mutate it.
type JurisdictionConfig struct {
	Code        string          `yaml:"code"`
	Name        string          `yaml:"name"`
	Currency    string          `yaml:"currency"`
	RuleVersion string          `yaml:"rule_version"`
	VATRate     decimal.Decimal `yaml:"vat_rate"`
	// VATThreshold is the annual revenue above which VAT registration is compulsory.
	VATThreshold decimal.Decimal `yaml:"vat_threshold"`

	Formats         FormatRules        `yaml:"formats"`
	Classifications ClassificationSets `yaml:"classifications"`
	Risk            RiskRules          `yaml:"risk"`
	Documents       DocumentRules      `yaml:"documents"`
	OrgTypes        []OrgType          `yaml:"org_types"`
}

// FormatRules are regular expressions for identifiers. Per-org-type entries
// take precedence over the default.
type FormatRules struct {
	TaxNumber          string             `yaml:"tax_number"`
	TaxNumberByOrgType map[OrgType]string `yaml:"tax_number_by_org_type"`
	VATNumber          string             `yaml:"vat_number"`
	Registration       map[OrgType]string `yaml:"registration"`
}

// RiskRules parameterize the scorer.
type RiskRules struct {
	Baseline   int            `yaml:"baseline"`
	Thresholds RiskThresholds `yaml:"thresholds"`

	PEPOwner             int `yaml:"pep_owner"`
	ForeignOwner         int `yaml:"foreign_owner"`
	UnverifiedBank       int `yaml:"unverified_bank"`
	VerifiedBank         int `yaml:"verified_bank"`
	MissingTaxRegistered int `yaml:"missing_tax_registration"`
	HighRiskIndustry     int `yaml:"high_risk_industry"`
	LowRiskIndustry      int `yaml:"low_risk_industry"`
	HighRiskRegion       int `yaml:"high_risk_region"`
	MissingDocument      int `yaml:"missing_document"`
	MissingDocumentCap   int `yaml:"missing_document_cap"`
	AllDocumentsVerified int `yaml:"all_documents_verified"`

	// BankRevenueThreshold gates the unverified-bank rule.
	BankRevenueThreshold decimal.Decimal `yaml:"bank_revenue_threshold"`

	HighRiskIndustries []string `yaml:"high_risk_industries"`
	LowRiskIndustries  []string `yaml:"low_risk_industries"`
	HighRiskRegions    []string `yaml:"high_risk_regions"`

	Relationship []RelationshipRule `yaml:"relationship"`
}

// RelationshipRule maps one control-test factor onto a dimension.
// EmployeePoints must be >= 0 and IndependentPoints <= 0 so that moving a
// factor toward employment never lowers the score.
type RelationshipRule struct {
	Factor            Factor    `yaml:"factor"`
	Dimension         Dimension `yaml:"dimension"`
	EmployeePoints    int       `yaml:"employee_points"`
	IndependentPoints int       `yaml:"independent_points"`
	EmployeeReason    string    `yaml:"employee_reason"`
	IndependentReason string    `yaml:"independent_reason"`
	Action            string    `yaml:"action"`
}

// DocumentRules describe the resolver checklist.
type DocumentRules struct {
	Base      []ComplianceRequirement             `yaml:"base"`
	ByOrgType map[OrgType][]ComplianceRequirement `yaml:"by_org_type"`
	// RevenueTiers apply when revenue is strictly above Threshold.
	RevenueTiers []RevenueTier `yaml:"revenue_tiers"`
	// WithEmployees applies when the employee count is above zero.
	WithEmployees []ComplianceRequirement `yaml:"with_employees"`

	ByClassification map[Classification][]ComplianceRequirement `yaml:"by_classification"`
}

type RevenueTier struct {
	Threshold decimal.Decimal         `yaml:"threshold"`
	Items     []ComplianceRequirement `yaml:"items"`
}

// Validate checks the invariants every provider relies on.
func (c *JurisdictionConfig) Validate() error {
	if c.Code == "" {
		return fmt.Errorf("jurisdiction: code is required")
	}
	if c.Currency == "" {
		return fmt.Errorf("jurisdiction %s: currency is required", c.Code)
	}
	if c.RuleVersion == "" {
		return fmt.Errorf("jurisdiction %s: rule_version is required", c.Code)
	}
	if c.VATRate.IsNegative() {
		return fmt.Errorf("jurisdiction %s: vat_rate must not be negative", c.Code)
	}
	if err := c.Classifications.Validate(); err != nil {
		return fmt.Errorf("jurisdiction %s: %w", c.Code, err)
	}
	th := c.Risk.Thresholds
	if !(th.Low < th.Medium && th.Medium < th.High) {
		return fmt.Errorf("jurisdiction %s: risk thresholds must be strictly increasing", c.Code)
	}
	if c.Risk.Baseline < MinScore || c.Risk.Baseline > MaxScore {
		return fmt.Errorf("jurisdiction %s: risk baseline must be within [%d,%d]", c.Code, MinScore, MaxScore)
	}
	for _, r := range c.Risk.Relationship {
		if r.EmployeePoints < 0 || r.IndependentPoints > 0 {
			return fmt.Errorf("jurisdiction %s: relationship rule %s would break monotonicity", c.Code, r.Factor)
		}
	}
	return nil
}
