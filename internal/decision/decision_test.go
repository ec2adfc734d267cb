package decision

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klok/internal/compliance/models"
	"klok/internal/compliance/providers/za"
	dErrors "klok/pkg/domain-errors"
)

var facts = []models.Fact{models.FactUnknown, models.FactYes, models.FactNo}

// everyFactorCombination enumerates all 3^6 answer combinations.
func everyFactorCombination() []models.ControlTestFactors {
	var out []models.ControlTestFactors
	for _, a := range facts {
		for _, b := range facts {
			for _, c := range facts {
				for _, d := range facts {
					for _, e := range facts {
						for _, f := range facts {
							out = append(out, models.ControlTestFactors{
								FixedWorkplace:       a,
								FixedHours:           b,
								Supervised:           c,
								UsesCompanyEquipment: d,
								HasOtherClients:      e,
								PaidRegularSalary:    f,
							})
						}
					}
				}
			}
		}
	}
	return out
}

func TestDecidePayrollOnlyAlwaysBlocked(t *testing.T) {
	p := za.MustNew(za.DefaultConfig())
	combos := everyFactorCombination()
	require.Len(t, combos, 729)

	for _, c := range p.Classifications().PayrollOnly {
		for _, f := range combos {
			d := Decide(p, string(c), f)
			if !assert.Equal(t, OutcomeBlocked, d.Outcome, "%s %+v", c, f) {
				return
			}
			assert.Equal(t, dErrors.CodeLegalViolation, d.Block.Kind)
			assert.Nil(t, d.Risk)
		}
	}
}

func TestDecideInvoiceEligible(t *testing.T) {
	p := za.MustNew(za.DefaultConfig())

	t.Run("independent facts approve at low risk", func(t *testing.T) {
		d := Decide(p, "independent_contractor", models.AllIndependent())
		require.True(t, d.Approved())
		require.NotNil(t, d.Risk)
		assert.Equal(t, models.RiskLow, d.Risk.OverallRisk)
		assert.False(t, d.HighRiskAdvisory)
		assert.Equal(t, za.RuleVersion, d.RuleVersion)
		assert.Equal(t, "ZA", d.Jurisdiction)
		assert.NoError(t, d.Err())
	})

	t.Run("employee-like facts still approve with advisory", func(t *testing.T) {
		f := models.ControlTestFactors{
			FixedWorkplace: models.FactYes, FixedHours: models.FactYes, Supervised: models.FactYes,
			UsesCompanyEquipment: models.FactYes, HasOtherClients: models.FactNo, PaidRegularSalary: models.FactYes,
		}
		d := Decide(p, "consultant", f)
		require.True(t, d.Approved())
		assert.True(t, d.HighRiskAdvisory)
		assert.Equal(t, models.RiskCritical, d.Risk.OverallRisk)
	})

	t.Run("classification names are case insensitive", func(t *testing.T) {
		d := Decide(p, " Freelancer ", models.ControlTestFactors{})
		require.True(t, d.Approved())
		assert.Equal(t, models.Freelancer, d.Classification)
	})
}

func TestDecideUnknownClassification(t *testing.T) {
	p := za.MustNew(za.DefaultConfig())
	d := Decide(p, "gig_worker", models.AllIndependent())
	require.Equal(t, OutcomeBlocked, d.Outcome)
	assert.Equal(t, dErrors.CodeUnknownClassification, d.Block.Kind)
	assert.Contains(t, d.Block.Remediation, "independent_contractor")
	assert.Empty(t, d.Classification)
}

func TestBlockedError(t *testing.T) {
	p := za.MustNew(za.DefaultConfig())
	err := Decide(p, "casual_worker", models.ControlTestFactors{}).Err()
	require.Error(t, err)

	assert.True(t, dErrors.HasCode(err, dErrors.CodeLegalViolation))
	assert.Equal(t, dErrors.CodeLegalViolation, dErrors.CodeOf(err))

	var blocked *BlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, "casual_worker", blocked.Classification)
	assert.NotEmpty(t, blocked.Remediation())
	assert.Contains(t, blocked.Reason, "s200A")
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		name    string
		factors models.ControlTestFactors
		want    models.Classification
	}{
		{"employee-like majority", models.ControlTestFactors{
			FixedWorkplace: models.FactYes, FixedHours: models.FactYes, Supervised: models.FactYes,
			HasOtherClients: models.FactYes,
		}, models.FixedTermEmployee},
		{"regular salary", models.AllIndependent().WithFactor(models.FactorPaidRegularSalary, models.FactYes), models.TemporaryEmployee},
		{"multiple clients without supervision", models.AllIndependent(), models.Freelancer},
		{"nothing known", models.ControlTestFactors{}, models.IndependentContractor},
		{"supervised but independent otherwise", models.AllIndependent().WithFactor(models.FactorSupervised, models.FactYes), models.IndependentContractor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Recommend(tt.factors))
		})
	}
}
