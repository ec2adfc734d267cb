package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	dErrors "klok/pkg/domain-errors"
)

func TestDefaultClassificationSetsPartition(t *testing.T) {
	sets := DefaultClassificationSets()
	require.NoError(t, sets.Validate())
	assert.ElementsMatch(t, []Classification{IndependentContractor, Freelancer, Consultant}, sets.InvoiceEligible)
	assert.Len(t, sets.PayrollOnly, 4)
}

func TestClassificationSetsValidate(t *testing.T) {
	t.Run("overlap", func(t *testing.T) {
		sets := DefaultClassificationSets()
		sets.PayrollOnly = append(sets.PayrollOnly, Consultant)
		assert.ErrorContains(t, sets.Validate(), "both")
	})
	t.Run("gap", func(t *testing.T) {
		sets := DefaultClassificationSets()
		sets.InvoiceEligible = sets.InvoiceEligible[:2]
		assert.ErrorContains(t, sets.Validate(), "not assigned")
	})
}

func TestDefaultPathPanicsOnUnknownVariant(t *testing.T) {
	assert.Panics(t, func() { Classification("director").DefaultPath() })
}

func TestParseClassification(t *testing.T) {
	c, err := ParseClassification(" Freelancer ")
	require.NoError(t, err)
	assert.Equal(t, Freelancer, c)

	_, err = ParseClassification("intern")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownClassification))
}

func TestFactJSON(t *testing.T) {
	var f ControlTestFactors
	require.NoError(t, json.Unmarshal([]byte(`{"fixed_hours":true,"supervised":false,"has_other_clients":null}`), &f))

	assert.Equal(t, FactYes, f.FixedHours)
	assert.Equal(t, FactNo, f.Supervised)
	assert.Equal(t, FactUnknown, f.HasOtherClients)
	assert.Equal(t, FactUnknown, f.FixedWorkplace, "absent field must stay unknown")

	var bad ControlTestFactors
	assert.Error(t, json.Unmarshal([]byte(`{"fixed_hours":"yes"}`), &bad))
}

func TestReadingsLean(t *testing.T) {
	f := ControlTestFactors{HasOtherClients: FactNo, Supervised: FactNo}
	el, ind, unk := f.Tally()
	assert.Equal(t, 1, el, "no other clients leans toward employment")
	assert.Equal(t, 1, ind)
	assert.Equal(t, 4, unk)

	el, ind, unk = AllIndependent().Tally()
	assert.Equal(t, 0, el)
	assert.Equal(t, 6, ind)
	assert.Equal(t, 0, unk)
}

func TestRequirementValidityEncoding(t *testing.T) {
	req := ComplianceRequirement{DocType: "bank_confirmation", Category: CategoryFinancial, ValidityPeriod: ValidityDays(90)}
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"doc_type":"bank_confirmation","name":"","mandatory":false,"category":"financial","validity_days":90}`, string(raw))

	var fromYAML ComplianceRequirement
	require.NoError(t, yaml.Unmarshal([]byte("doc_type: tcs\nvalidity_days: 365\nmandatory: true\n"), &fromYAML))
	require.NotNil(t, fromYAML.ValidityPeriod)
	assert.Equal(t, ValidityDays(365), fromYAML.ValidityPeriod)
	assert.True(t, fromYAML.Mandatory)
}
