package za

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"klok/internal/compliance/models"
	"klok/internal/compliance/providers"
	"klok/internal/compliance/providers/contract"
	dErrors "klok/pkg/domain-errors"
)

type ProviderSuite struct {
	suite.Suite
	p *Provider
}

func TestProviderSuite(t *testing.T) {
	suite.Run(t, new(ProviderSuite))
}

func (s *ProviderSuite) SetupTest() {
	p, err := New(DefaultConfig())
	s.Require().NoError(err)
	s.p = p
}

func (s *ProviderSuite) TestCapabilities() {
	caps := s.p.Capabilities()
	s.Equal("ZA", caps.Code)
	s.Equal("ZAR", caps.Currency)
	s.Equal(RuleVersion, caps.RuleVersion)
	s.True(decimal.NewFromInt(15).Equal(caps.VATRate))
	s.Len(caps.OrgTypes, 6)
}

func (s *ProviderSuite) TestContractorTax() {
	s.Run("vat registered", func() {
		out, err := s.p.CalculateContractorTax(decimal.NewFromInt(20000), models.IndependentContractor,
			models.TaxParams{VATRegistered: true, Currency: "ZAR"})
		s.Require().NoError(err)
		s.Equal("20000.00", out.Subtotal.StringFixed(2))
		s.Equal("3000.00", out.VAT.StringFixed(2))
		s.Equal("23000.00", out.Total.StringFixed(2))
		s.Equal("ZAR", out.Currency)
	})

	s.Run("not vat registered", func() {
		out, err := s.p.CalculateContractorTax(decimal.NewFromInt(20000), models.Freelancer, models.TaxParams{})
		s.Require().NoError(err)
		s.True(out.VAT.IsZero())
		s.Equal("20000.00", out.Total.StringFixed(2))
		s.Empty(out.Advisories)
	})

	s.Run("rounds half away from zero", func() {
		out, err := s.p.CalculateContractorTax(decimal.RequireFromString("0.10"), models.Consultant,
			models.TaxParams{VATRegistered: true})
		s.Require().NoError(err)
		s.Equal("0.02", out.VAT.StringFixed(2))
		s.Equal("0.12", out.Total.StringFixed(2))
	})

	s.Run("advises above the registration threshold", func() {
		out, err := s.p.CalculateContractorTax(decimal.NewFromInt(1_500_000), models.Consultant, models.TaxParams{})
		s.Require().NoError(err)
		s.Len(out.Advisories, 1)
		s.True(out.VAT.IsZero())
	})

	s.Run("payroll only is a legal violation", func() {
		for _, c := range s.p.Classifications().PayrollOnly {
			_, err := s.p.CalculateContractorTax(decimal.NewFromInt(100), c, models.TaxParams{VATRegistered: true})
			s.True(dErrors.HasCode(err, dErrors.CodeLegalViolation), "classification %s", c)
		}
	})

	s.Run("rejects non-positive subtotal", func() {
		_, err := s.p.CalculateContractorTax(decimal.Zero, models.IndependentContractor, models.TaxParams{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects foreign currency", func() {
		_, err := s.p.CalculateContractorTax(decimal.NewFromInt(10), models.IndependentContractor,
			models.TaxParams{Currency: "USD"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ProviderSuite) TestFormats() {
	s.True(s.p.ValidateTaxNumber("0123456789", models.OrgCorporation))
	s.True(s.p.ValidateTaxNumber("9123 456 789", models.OrgCorporation))
	s.False(s.p.ValidateTaxNumber("4123456789", models.OrgCorporation))
	s.False(s.p.ValidateTaxNumber("012345678", models.OrgCorporation))

	s.True(s.p.ValidateVATNumber("4123456789", models.OrgCorporation))
	s.False(s.p.ValidateVATNumber("5123456789", models.OrgCorporation))

	s.True(s.p.ValidateCompanyRegistration("2015/123456/07", models.OrgCorporation))
	s.False(s.p.ValidateCompanyRegistration("2015/123456/23", models.OrgCorporation))
	s.True(s.p.ValidateCompanyRegistration("2001/654321/23", models.OrgCloseCorporation))
	s.True(s.p.ValidateCompanyRegistration("it1234/2019", models.OrgTrust))
	s.True(s.p.ValidateCompanyRegistration("", models.OrgSoleProprietor))
	s.False(s.p.ValidateCompanyRegistration("2015/123456/07", models.OrgSoleProprietor))
}

func (s *ProviderSuite) TestRequiredDocuments() {
	revenue := decimal.NewFromInt(2_000_000)
	employees := 5

	first := s.p.RequiredDocuments(models.OrgCorporation, &revenue, &employees)
	second := s.p.RequiredDocuments(models.OrgCorporation, &revenue, &employees)
	s.Equal(first, second)

	types := make([]string, 0, len(first))
	seen := map[string]bool{}
	for _, r := range first {
		s.False(seen[r.DocType], "duplicate %s", r.DocType)
		seen[r.DocType] = true
		types = append(types, r.DocType)
	}
	s.Contains(types, "cipc_registration")
	s.Contains(types, "vat_registration")
	s.Contains(types, "paye_registration")
	s.Contains(types, "coida_good_standing")
	s.NotContains(types, "bbbee_certificate")
	s.NotContains(types, "trust_deed")

	for i := 1; i < len(first); i++ {
		s.LessOrEqual(first[i-1].Category.Rank(), first[i].Category.Rank())
	}

	s.Run("unknown revenue and headcount skip conditional items", func() {
		reqs := s.p.RequiredDocuments(models.OrgSoleProprietor, nil, nil)
		for _, r := range reqs {
			s.NotEqual("vat_registration", r.DocType)
			s.NotEqual("paye_registration", r.DocType)
		}
	})
}

func (s *ProviderSuite) TestClassificationCompliance() {
	cc := s.p.ClassificationCompliance(models.IndependentContractor)
	s.True(cc.CanIssueInvoices)
	s.Equal(models.PathInvoice, cc.PaymentPath)
	s.NotEmpty(cc.Requirements)

	cc = s.p.ClassificationCompliance(models.LabourBrokerEmployee)
	s.False(cc.CanIssueInvoices)
	s.Equal(models.PathPayroll, cc.PaymentPath)
	s.Require().Len(cc.Notes, 1)
	s.Contains(cc.Notes[0], "s200A")
}

func (s *ProviderSuite) TestLegalBasisReadsAsASentence() {
	for _, c := range []models.Classification{
		models.FixedTermEmployee,
		models.TemporaryEmployee,
		models.CasualWorker,
		models.LabourBrokerEmployee,
	} {
		reason, remediation := s.p.LegalBasis(c)
		s.True(strings.HasPrefix(reason, "Workers classified as "+c.DisplayName()+" are employees"), reason)
		s.NotContains(reason, "worker workers")
		s.NotContains(reason, "employee workers")
		s.NotEmpty(remediation)
	}
}

func (s *ProviderSuite) TestScoreRelationship() {
	s.Run("all independent is low", func() {
		prof := s.p.ScoreRelationship(models.AllIndependent())
		s.Equal(models.RiskLow, prof.OverallRisk)
		s.False(prof.InsufficientData)
	})

	s.Run("all employee-like is critical", func() {
		f := models.ControlTestFactors{
			FixedWorkplace:       models.FactYes,
			FixedHours:           models.FactYes,
			Supervised:           models.FactYes,
			UsesCompanyEquipment: models.FactYes,
			HasOtherClients:      models.FactNo,
			PaidRegularSalary:    models.FactYes,
		}
		prof := s.p.ScoreRelationship(f)
		s.Equal(models.RiskCritical, prof.OverallRisk)
		s.NotEmpty(prof.RecommendedActions)
	})

	s.Run("unknown answers are flagged", func() {
		prof := s.p.ScoreRelationship(models.ControlTestFactors{})
		s.True(prof.InsufficientData)
		s.Equal(models.RiskMedium, prof.OverallRisk)
	})

	s.Run("moving a factor toward employment never lowers the score", func() {
		employeeAnswer := map[models.Factor]models.Fact{
			models.FactorFixedWorkplace:       models.FactYes,
			models.FactorFixedHours:           models.FactYes,
			models.FactorSupervised:           models.FactYes,
			models.FactorUsesCompanyEquipment: models.FactYes,
			models.FactorHasOtherClients:      models.FactNo,
			models.FactorPaidRegularSalary:    models.FactYes,
		}
		base := models.AllIndependent()
		for factor, answer := range employeeAnswer {
			before := s.p.ScoreRelationship(base)
			unknown := s.p.ScoreRelationship(base.WithFactor(factor, models.FactUnknown))
			after := s.p.ScoreRelationship(base.WithFactor(factor, answer))
			s.LessOrEqual(before.Mean, unknown.Mean, "factor %s", factor)
			s.LessOrEqual(unknown.Mean, after.Mean, "factor %s", factor)
			s.LessOrEqual(before.OverallRisk.Rank(), after.OverallRisk.Rank(), "factor %s", factor)
		}
	})
}

func (s *ProviderSuite) TestCalculateRiskScore() {
	revenue := decimal.NewFromInt(5_000_000)
	bank := false
	taxed := true
	prof := s.p.CalculateRiskScore(models.OrganizationProfile{
		OrgType:       models.OrgCorporation,
		IndustryCode:  "mining",
		Revenue:       &revenue,
		Region:        "ZA",
		Owners:        []models.Owner{{Name: "A", PoliticallyExposed: true, OwnershipPct: decimal.NewFromInt(100)}},
		BankVerified:  &bank,
		TaxRegistered: &taxed,
	})
	s.True(prof.OverallRisk.IsElevated())
	s.Contains(prof.RecommendedActions, "Verify the organization's bank account")
}

func TestNewRejectsBrokenConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Classifications.PayrollOnly = append(cfg.Classifications.PayrollOnly, models.Freelancer)
	_, err := New(cfg)
	require.Error(t, err)
	assert.Equal(t, providers.ErrorConfig, providers.GetCategory(err))

	cfg = DefaultConfig()
	cfg.Formats.VATNumber = "("
	_, err = New(cfg)
	require.Error(t, err)
}

func TestOverrides(t *testing.T) {
	t.Run("applies yaml over defaults", func(t *testing.T) {
		cfg := DefaultConfig()
		err := providers.ApplyOverrides([]byte("rule_version: za-2027.0\nvat_rate: 16\nrisk:\n  high_risk_regions: [\"RU\"]\n"), cfg)
		require.NoError(t, err)

		p, err := New(cfg)
		require.NoError(t, err)
		assert.Equal(t, "za-2027.0", p.RuleVersion())
		assert.Equal(t, []string{"RU"}, p.Config().Risk.HighRiskRegions)
		assert.Equal(t, 5, p.Config().Risk.Baseline)

		out, err := p.CalculateContractorTax(decimal.NewFromInt(100), models.IndependentContractor, models.TaxParams{VATRegistered: true})
		require.NoError(t, err)
		assert.Equal(t, "16.00", out.VAT.StringFixed(2))
	})

	t.Run("moves a classification to payroll", func(t *testing.T) {
		cfg := DefaultConfig()
		doc := "classifications:\n  invoice_eligible: [independent_contractor, freelancer]\n" +
			"  payroll_only: [consultant, fixed_term_employee, temporary_employee, casual_worker, labour_broker_employee]\n"
		require.NoError(t, providers.ApplyOverrides([]byte(doc), cfg))
		p := MustNew(cfg)
		path, ok := p.Classifications().PathOf(models.Consultant)
		require.True(t, ok)
		assert.Equal(t, models.PathPayroll, path)
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		err := providers.ApplyOverrides([]byte("vat_rte: 16\n"), DefaultConfig())
		require.Error(t, err)
	})

	t.Run("rejects non-monotonic relationship rules", func(t *testing.T) {
		doc := "risk:\n  relationship:\n    - factor: supervised\n      dimension: ownership\n      employee_points: -1\n"
		err := providers.ApplyOverrides([]byte(doc), DefaultConfig())
		require.Error(t, err)
	})

	t.Run("loads file by lower-case code", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "za.yaml"), []byte("rule_version: za-file\n"), 0o600))
		cfg := DefaultConfig()
		applied, err := providers.LoadOverrideFile(dir, cfg)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, "za-file", cfg.RuleVersion)

		applied, err = providers.LoadOverrideFile(t.TempDir(), DefaultConfig())
		require.NoError(t, err)
		assert.False(t, applied)
	})
}

func TestProviderContract(t *testing.T) {
	s := &contract.Suite{Provider: MustNew(DefaultConfig())}
	s.Run(t)
}
