// Package contract holds the behavioural checks every jurisdiction provider
// must pass. Provider packages run Suite from their own tests.
package contract

import (
	"testing"

	"github.com/shopspring/decimal"

	"klok/internal/compliance/models"
	"klok/internal/compliance/providers"
	dErrors "klok/pkg/domain-errors"
)

// Suite checks a provider against the cross-jurisdiction guarantees.
type Suite struct {
	Provider providers.Provider
	// SampleOrgTypes are resolved twice to check determinism. Defaults to
	// the provider's declared org types.
	SampleOrgTypes []models.OrgType
}

// Run executes every check as a subtest.
func (s *Suite) Run(t *testing.T) {
	t.Run("capabilities", s.capabilities)
	t.Run("partition", s.partition)
	t.Run("payroll only never taxes", s.payrollOnlyNeverTaxes)
	t.Run("invoice eligible taxes", s.invoiceEligibleTaxes)
	t.Run("all independent is low", s.allIndependentIsLow)
	t.Run("relationship score is monotonic", s.monotonic)
	t.Run("required documents are deterministic", s.deterministicDocuments)
}

func (s *Suite) capabilities(t *testing.T) {
	caps := s.Provider.Capabilities()
	if caps.Code == "" {
		t.Error("code not set")
	}
	if caps.Code != s.Provider.Code() {
		t.Errorf("capabilities code %s differs from Code() %s", caps.Code, s.Provider.Code())
	}
	if caps.Currency == "" {
		t.Error("currency not set")
	}
	if caps.RuleVersion == "" {
		t.Error("rule version not set")
	}
}

func (s *Suite) partition(t *testing.T) {
	sets := s.Provider.Classifications()
	if err := sets.Validate(); err != nil {
		t.Fatalf("classification sets: %v", err)
	}
	for _, c := range models.AllClassifications() {
		path, _ := sets.PathOf(c)
		cc := s.Provider.ClassificationCompliance(c)
		if cc.PaymentPath != path {
			t.Errorf("%s: compliance path %s, partition says %s", c, cc.PaymentPath, path)
		}
		if cc.CanIssueInvoices != (path == models.PathInvoice) {
			t.Errorf("%s: can_issue_invoices disagrees with payment path", c)
		}
	}
}

func (s *Suite) payrollOnlyNeverTaxes(t *testing.T) {
	for _, c := range s.Provider.Classifications().PayrollOnly {
		for _, registered := range []bool{true, false} {
			_, err := s.Provider.CalculateContractorTax(decimal.NewFromInt(1000), c,
				models.TaxParams{VATRegistered: registered})
			if !dErrors.HasCode(err, dErrors.CodeLegalViolation) {
				t.Errorf("%s (vat registered %v): expected legal_violation, got %v", c, registered, err)
			}
		}
		reason, remediation := s.Provider.LegalBasis(c)
		if reason == "" || remediation == "" {
			t.Errorf("%s: legal basis incomplete", c)
		}
	}
}

func (s *Suite) invoiceEligibleTaxes(t *testing.T) {
	subtotal := decimal.NewFromInt(1000)
	for _, c := range s.Provider.Classifications().InvoiceEligible {
		out, err := s.Provider.CalculateContractorTax(subtotal, c, models.TaxParams{VATRegistered: true})
		if err != nil {
			t.Errorf("%s: %v", c, err)
			continue
		}
		if !out.Total.Equal(out.Subtotal.Add(out.VAT)) {
			t.Errorf("%s: total %s != subtotal %s + vat %s", c, out.Total, out.Subtotal, out.VAT)
		}
		if out.VAT.Exponent() < -2 {
			t.Errorf("%s: vat %s not rounded to cents", c, out.VAT)
		}
	}
}

func (s *Suite) allIndependentIsLow(t *testing.T) {
	prof := s.Provider.ScoreRelationship(models.AllIndependent())
	if prof.OverallRisk != models.RiskLow {
		t.Errorf("expected low risk, got %s (mean %.2f)", prof.OverallRisk, prof.Mean)
	}
}

func (s *Suite) monotonic(t *testing.T) {
	factors := []models.Factor{
		models.FactorFixedWorkplace,
		models.FactorFixedHours,
		models.FactorSupervised,
		models.FactorUsesCompanyEquipment,
		models.FactorHasOtherClients,
		models.FactorPaidRegularSalary,
	}
	base := models.AllIndependent()
	for _, f := range factors {
		employeeAnswer := models.FactYes
		if f == models.FactorHasOtherClients {
			employeeAnswer = models.FactNo
		}
		// Walk one factor from independent through unknown to employee-like.
		steps := []models.ControlTestFactors{base, base.WithFactor(f, models.FactUnknown), base.WithFactor(f, employeeAnswer)}
		prev := s.Provider.ScoreRelationship(steps[0])
		for _, step := range steps[1:] {
			cur := s.Provider.ScoreRelationship(step)
			if cur.OverallRisk.Rank() < prev.OverallRisk.Rank() || cur.Mean < prev.Mean {
				t.Errorf("%s: score dropped from %s (%.2f) to %s (%.2f)", f, prev.OverallRisk, prev.Mean, cur.OverallRisk, cur.Mean)
			}
			prev = cur
		}
	}
}

func (s *Suite) deterministicDocuments(t *testing.T) {
	orgTypes := s.SampleOrgTypes
	if len(orgTypes) == 0 {
		orgTypes = s.Provider.Capabilities().OrgTypes
	}
	revenue := decimal.NewFromInt(50_000_000)
	employees := 10
	for _, ot := range orgTypes {
		a := s.Provider.RequiredDocuments(ot, &revenue, &employees)
		b := s.Provider.RequiredDocuments(ot, &revenue, &employees)
		if len(a) != len(b) {
			t.Errorf("%s: resolved %d then %d requirements", ot, len(a), len(b))
			continue
		}
		seen := make(map[string]bool, len(a))
		for i := range a {
			if a[i].DocType != b[i].DocType {
				t.Errorf("%s: order differs at %d: %s vs %s", ot, i, a[i].DocType, b[i].DocType)
			}
			if seen[a[i].DocType] {
				t.Errorf("%s: duplicate requirement %s", ot, a[i].DocType)
			}
			seen[a[i].DocType] = true
		}
	}
}
