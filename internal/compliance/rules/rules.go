// Package rules compiles a jurisdiction's identifier formats into matchers.
package rules

import (
	"fmt"
	"regexp"
	"strings"

	"klok/internal/compliance/models"
)

// Rules validates tax, VAT and company registration numbers. A compiled
// Rules value is immutable and safe for concurrent use.
type Rules struct {
	taxNumber          *regexp.Regexp
	taxNumberByOrgType map[models.OrgType]*regexp.Regexp
	vatNumber          *regexp.Regexp
	registration       map[models.OrgType]*regexp.Regexp
}

// Compile builds Rules from the format strings. Every pattern must match
// the whole value; anchors in the config are allowed but not required.
func Compile(f models.FormatRules) (*Rules, error) {
	r := &Rules{
		taxNumberByOrgType: make(map[models.OrgType]*regexp.Regexp, len(f.TaxNumberByOrgType)),
		registration:       make(map[models.OrgType]*regexp.Regexp, len(f.Registration)),
	}
	var err error
	if r.taxNumber, err = compile("tax_number", f.TaxNumber); err != nil {
		return nil, err
	}
	if r.vatNumber, err = compile("vat_number", f.VATNumber); err != nil {
		return nil, err
	}
	for orgType, pattern := range f.TaxNumberByOrgType {
		if r.taxNumberByOrgType[orgType], err = compile("tax_number."+string(orgType), pattern); err != nil {
			return nil, err
		}
	}
	for orgType, pattern := range f.Registration {
		if r.registration[orgType], err = compile("registration."+string(orgType), pattern); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func compile(name, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("format rule %s: empty pattern", name)
	}
	// Compiling the bare pattern first rejects unbalanced groups that could
	// close the wrapper early.
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, fmt.Errorf("format rule %s: %w", name, err)
	}
	// The group keeps a top-level alternation inside both anchors.
	return regexp.MustCompile(`^(?:` + pattern + `)$`), nil
}

// Normalize strips the separators people type into identifiers.
func Normalize(value string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(value))
}

func (r *Rules) ValidateTaxNumber(value string, orgType models.OrgType) bool {
	re := r.taxNumber
	if byType, ok := r.taxNumberByOrgType[orgType]; ok {
		re = byType
	}
	return re.MatchString(Normalize(value))
}

func (r *Rules) ValidateVATNumber(value string, _ models.OrgType) bool {
	return r.vatNumber.MatchString(Normalize(value))
}

// ValidateCompanyRegistration checks the registry number for org types that
// have one. Org types with no registry (sole proprietors, partnerships)
// accept only an empty value.
func (r *Rules) ValidateCompanyRegistration(value string, orgType models.OrgType) bool {
	re, ok := r.registration[orgType]
	if !ok {
		return strings.TrimSpace(value) == ""
	}
	return re.MatchString(strings.ToUpper(strings.TrimSpace(value)))
}

// RequiresRegistration reports whether orgType has a registry number.
func (r *Rules) RequiresRegistration(orgType models.OrgType) bool {
	_, ok := r.registration[orgType]
	return ok
}
