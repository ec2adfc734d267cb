package documents

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"klok/internal/compliance/models"
)

func req(docType string, cat models.RequirementCategory) models.ComplianceRequirement {
	return models.ComplianceRequirement{DocType: docType, Name: docType, Mandatory: true, Category: cat}
}

func testRules() models.DocumentRules {
	return models.DocumentRules{
		Base: []models.ComplianceRequirement{
			req("bank_confirmation", models.CategoryFinancial),
			req("director_id", models.CategoryIdentity),
		},
		ByOrgType: map[models.OrgType][]models.ComplianceRequirement{
			models.OrgCorporation: {req("cipc_registration", models.CategoryRegistration)},
		},
		RevenueTiers: []models.RevenueTier{
			{Threshold: decimal.NewFromInt(1_000_000), Items: []models.ComplianceRequirement{req("vat_registration", models.CategoryTax)}},
		},
		WithEmployees: []models.ComplianceRequirement{
			req("uif_registration", models.CategoryPayroll),
			req("paye_registration", models.CategoryPayroll),
		},
		ByClassification: map[models.Classification][]models.ComplianceRequirement{
			models.Freelancer: {req("contractor_agreement", models.CategoryContract), req("tax_clearance", models.CategoryTax)},
		},
	}
}

func docTypes(reqs []models.ComplianceRequirement) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.DocType
	}
	return out
}

func TestResolveOrdersByCategoryThenInsertion(t *testing.T) {
	r := NewResolver(testRules())
	revenue := decimal.NewFromInt(2_000_000)
	employees := 5

	got := docTypes(r.Resolve(models.OrgCorporation, &revenue, &employees))
	assert.Equal(t, []string{
		"cipc_registration",
		"director_id",
		"vat_registration",
		"bank_confirmation",
		"uif_registration",
		"paye_registration",
	}, got)
}

func TestResolveThresholdsAreStrict(t *testing.T) {
	r := NewResolver(testRules())
	atThreshold := decimal.NewFromInt(1_000_000)
	zero := 0

	got := docTypes(r.Resolve(models.OrgSoleProprietor, &atThreshold, &zero))
	assert.Equal(t, []string{"director_id", "bank_confirmation"}, got)
}

func TestResolveSkipsConditionalItemsWhenInputMissing(t *testing.T) {
	r := NewResolver(testRules())
	got := docTypes(r.Resolve(models.OrgCorporation, nil, nil))
	assert.Equal(t, []string{"cipc_registration", "director_id", "bank_confirmation"}, got)
}

func TestResolveDoesNotAliasRules(t *testing.T) {
	rules := testRules()
	r := NewResolver(rules)
	out := r.Resolve(models.OrgSoleProprietor, nil, nil)
	out[0].DocType = "mutated"
	assert.Equal(t, "bank_confirmation", rules.Base[0].DocType)
}

func TestForClassification(t *testing.T) {
	r := NewResolver(testRules())
	assert.Equal(t, []string{"tax_clearance", "contractor_agreement"}, docTypes(r.ForClassification(models.Freelancer)))
	assert.Empty(t, r.ForClassification(models.CasualWorker))
}

func TestMandatoryTypes(t *testing.T) {
	reqs := []models.ComplianceRequirement{req("a", models.CategoryTax), {DocType: "b"}}
	assert.Equal(t, []string{"a"}, MandatoryTypes(reqs))
}
