// Package documents resolves the compliance checklist for an organization.
package documents

import (
	"slices"

	"github.com/shopspring/decimal"

	"klok/internal/compliance/models"
)

// Resolver builds checklists from one jurisdiction's DocumentRules.
// Immutable after construction.
type Resolver struct {
	rules models.DocumentRules
}

func NewResolver(rules models.DocumentRules) *Resolver {
	return &Resolver{rules: rules}
}

// Resolve returns the base checklist plus org-type, revenue-tier and
// employee items. Output is sorted by category rank with insertion order
// preserved inside a category, and a doc type appears at most once.
// A nil revenue or employee count skips the conditional items that depend on it.
func (r *Resolver) Resolve(orgType models.OrgType, revenue *decimal.Decimal, employeeCount *int) []models.ComplianceRequirement {
	out := make([]models.ComplianceRequirement, 0, len(r.rules.Base)+8)
	out = appendUnique(out, r.rules.Base...)
	out = appendUnique(out, r.rules.ByOrgType[orgType]...)
	if revenue != nil {
		for _, tier := range r.rules.RevenueTiers {
			if revenue.GreaterThan(tier.Threshold) {
				out = appendUnique(out, tier.Items...)
			}
		}
	}
	if employeeCount != nil && *employeeCount > 0 {
		out = appendUnique(out, r.rules.WithEmployees...)
	}
	sortByCategory(out)
	return out
}

// ForClassification returns the static checklist for engaging a worker
// under classification c.
func (r *Resolver) ForClassification(c models.Classification) []models.ComplianceRequirement {
	out := appendUnique(nil, r.rules.ByClassification[c]...)
	sortByCategory(out)
	return out
}

func appendUnique(dst []models.ComplianceRequirement, items ...models.ComplianceRequirement) []models.ComplianceRequirement {
	for _, it := range items {
		if slices.ContainsFunc(dst, func(e models.ComplianceRequirement) bool { return e.DocType == it.DocType }) {
			continue
		}
		dst = append(dst, it)
	}
	return dst
}

func sortByCategory(items []models.ComplianceRequirement) {
	slices.SortStableFunc(items, func(a, b models.ComplianceRequirement) int {
		return a.Category.Rank() - b.Category.Rank()
	})
}

// MandatoryTypes lists the doc types of the mandatory items.
func MandatoryTypes(reqs []models.ComplianceRequirement) []string {
	var out []string
	for _, r := range reqs {
		if r.Mandatory {
			out = append(out, r.DocType)
		}
	}
	return out
}
