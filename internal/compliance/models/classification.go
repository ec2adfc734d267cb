package models

import (
	"fmt"
	"slices"
	"strings"

	dErrors "klok/pkg/domain-errors"
)

// Classification is the closed set of worker types. Adding a variant
// requires extending DefaultPath; the switch panics on anything it does
// not know, so a missed case fails loudly in tests rather than defaulting.
type Classification string

const (
	IndependentContractor Classification = "independent_contractor"
	Freelancer            Classification = "freelancer"
	Consultant            Classification = "consultant"

	FixedTermEmployee    Classification = "fixed_term_employee"
	TemporaryEmployee    Classification = "temporary_employee"
	CasualWorker         Classification = "casual_worker"
	LabourBrokerEmployee Classification = "labour_broker_employee"
)

// PaymentPath is how a worker must be remunerated.
type PaymentPath string

const (
	PathInvoice PaymentPath = "invoice"
	PathPayroll PaymentPath = "payroll"
)

var allClassifications = []Classification{
	IndependentContractor,
	Freelancer,
	Consultant,
	FixedTermEmployee,
	TemporaryEmployee,
	CasualWorker,
	LabourBrokerEmployee,
}

// AllClassifications returns every variant in declaration order.
func AllClassifications() []Classification {
	return slices.Clone(allClassifications)
}

// IsValid reports whether c is a declared variant.
func (c Classification) IsValid() bool {
	return slices.Contains(allClassifications, c)
}

// DefaultPath is the reference partition. Jurisdictions may move a
// variant between paths through their ClassificationSets.
func (c Classification) DefaultPath() PaymentPath {
	switch c {
	case IndependentContractor, Freelancer, Consultant:
		return PathInvoice
	case FixedTermEmployee, TemporaryEmployee, CasualWorker, LabourBrokerEmployee:
		return PathPayroll
	default:
		panic(fmt.Sprintf("models: unhandled classification %q", string(c)))
	}
}

// DisplayName renders the classification for statute-style messages.
func (c Classification) DisplayName() string {
	return strings.ReplaceAll(string(c), "_", " ")
}

func (c Classification) String() string { return string(c) }

// ParseClassification accepts the canonical snake_case name, case-insensitively.
func ParseClassification(s string) (Classification, error) {
	c := Classification(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeUnknownClassification, fmt.Sprintf("unknown worker classification %q", s))
	}
	return c, nil
}

// ClassificationSets partitions the variants for one jurisdiction.
// Invariant: the sets are disjoint and together cover AllClassifications.
type ClassificationSets struct {
	InvoiceEligible []Classification `yaml:"invoice_eligible" json:"invoice_eligible"`
	PayrollOnly     []Classification `yaml:"payroll_only" json:"payroll_only"`
}

// DefaultClassificationSets builds the partition from DefaultPath.
func DefaultClassificationSets() ClassificationSets {
	var sets ClassificationSets
	for _, c := range allClassifications {
		switch c.DefaultPath() {
		case PathInvoice:
			sets.InvoiceEligible = append(sets.InvoiceEligible, c)
		case PathPayroll:
			sets.PayrollOnly = append(sets.PayrollOnly, c)
		}
	}
	return sets
}

// PathOf returns the payment path of c, or false when c is in neither set.
func (s ClassificationSets) PathOf(c Classification) (PaymentPath, bool) {
	if slices.Contains(s.InvoiceEligible, c) {
		return PathInvoice, true
	}
	if slices.Contains(s.PayrollOnly, c) {
		return PathPayroll, true
	}
	return "", false
}

// Validate checks the partition invariant.
func (s ClassificationSets) Validate() error {
	seen := make(map[Classification]PaymentPath, len(allClassifications))
	for path, set := range map[PaymentPath][]Classification{PathInvoice: s.InvoiceEligible, PathPayroll: s.PayrollOnly} {
		for _, c := range set {
			if !c.IsValid() {
				return fmt.Errorf("classification sets: unknown variant %q", string(c))
			}
			if prev, dup := seen[c]; dup {
				return fmt.Errorf("classification sets: %s listed under both %s and %s", c, prev, path)
			}
			seen[c] = path
		}
	}
	for _, c := range allClassifications {
		if _, ok := seen[c]; !ok {
			return fmt.Errorf("classification sets: %s is not assigned a payment path", c)
		}
	}
	return nil
}
