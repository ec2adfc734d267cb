package models

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"
)

// RequirementCategory groups checklist items. Resolver output is ordered by
// category rank, then insertion order.
type RequirementCategory string

const (
	CategoryRegistration RequirementCategory = "registration"
	CategoryIdentity     RequirementCategory = "identity"
	CategoryTax          RequirementCategory = "tax"
	CategoryFinancial    RequirementCategory = "financial"
	CategoryPayroll      RequirementCategory = "payroll"
	CategoryLabour       RequirementCategory = "labour"
	CategoryContract     RequirementCategory = "contract"
)

var categoryRank = map[RequirementCategory]int{
	CategoryRegistration: 1,
	CategoryIdentity:     2,
	CategoryTax:          3,
	CategoryFinancial:    4,
	CategoryPayroll:      5,
	CategoryLabour:       6,
	CategoryContract:     7,
}

// Rank returns the sort position; unknown categories sort last.
func (c RequirementCategory) Rank() int {
	if r, ok := categoryRank[c]; ok {
		return r
	}
	return len(categoryRank) + 1
}

// ComplianceRequirement is one checklist item.
type ComplianceRequirement struct {
	DocType        string              `yaml:"doc_type"`
	Name           string              `yaml:"name"`
	Mandatory      bool                `yaml:"mandatory"`
	Category       RequirementCategory `yaml:"category"`
	ValidityPeriod *time.Duration      `yaml:"-"`
}

// ValidityDays converts a day count into a validity period.
func ValidityDays(days int) *time.Duration {
	d := time.Duration(days) * 24 * time.Hour
	return &d
}

type requirementJSON struct {
	DocType      string              `json:"doc_type"`
	Name         string              `json:"name"`
	Mandatory    bool                `json:"mandatory"`
	Category     RequirementCategory `json:"category"`
	ValidityDays *int                `json:"validity_days,omitempty"`
}

// MarshalJSON serializes the validity period as whole days.
func (r ComplianceRequirement) MarshalJSON() ([]byte, error) {
	out := requirementJSON{
		DocType:   r.DocType,
		Name:      r.Name,
		Mandatory: r.Mandatory,
		Category:  r.Category,
	}
	if r.ValidityPeriod != nil {
		days := int(*r.ValidityPeriod / (24 * time.Hour))
		out.ValidityDays = &days
	}
	return json.Marshal(out)
}

func (r *ComplianceRequirement) UnmarshalJSON(data []byte) error {
	var in requirementJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = ComplianceRequirement{
		DocType:   in.DocType,
		Name:      in.Name,
		Mandatory: in.Mandatory,
		Category:  in.Category,
	}
	if in.ValidityDays != nil {
		r.ValidityPeriod = ValidityDays(*in.ValidityDays)
	}
	return nil
}

// UnmarshalYAML accepts validity_days in jurisdiction override files.
func (r *ComplianceRequirement) UnmarshalYAML(node *yaml.Node) error {
	var in struct {
		DocType      string              `yaml:"doc_type"`
		Name         string              `yaml:"name"`
		Mandatory    bool                `yaml:"mandatory"`
		Category     RequirementCategory `yaml:"category"`
		ValidityDays *int                `yaml:"validity_days"`
	}
	if err := node.Decode(&in); err != nil {
		return err
	}
	*r = ComplianceRequirement{
		DocType:   in.DocType,
		Name:      in.Name,
		Mandatory: in.Mandatory,
		Category:  in.Category,
	}
	if in.ValidityDays != nil {
		r.ValidityPeriod = ValidityDays(*in.ValidityDays)
	}
	return nil
}

// ClassificationCompliance is the static descriptor for one classification
// in one jurisdiction.
type ClassificationCompliance struct {
	Jurisdiction     string                  `json:"jurisdiction"`
	Classification   Classification          `json:"classification"`
	PaymentPath      PaymentPath             `json:"payment_path"`
	CanIssueInvoices bool                    `json:"can_issue_invoices"`
	Requirements     []ComplianceRequirement `json:"country_specific_requirements"`
	Notes            []string                `json:"notes,omitempty"`
}
