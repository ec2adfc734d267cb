// Package risk scores deemed-employment and onboarding risk.
//
// Scoring is a pure function of its inputs and the jurisdiction's rule
// table. It never errors: missing inputs leave the affected dimension at
// the baseline and add an "insufficient data" reason.
package risk

import (
	"fmt"
	"slices"
	"strings"

	"klok/internal/compliance/models"
	pstrings "klok/pkg/platform/strings"
)

const insufficientPrefix = "insufficient data: "

// Scorer applies one jurisdiction's RiskRules. Immutable after construction.
type Scorer struct {
	rules models.RiskRules
}

// NewScorer folds the industry lists to lower case and the region list to
// upper case, the forms profiles are compared in.
func NewScorer(rules models.RiskRules) *Scorer {
	rules.HighRiskIndustries = pstrings.Normalize(rules.HighRiskIndustries, strings.ToLower)
	rules.LowRiskIndustries = pstrings.Normalize(rules.LowRiskIndustries, strings.ToLower)
	rules.HighRiskRegions = pstrings.Normalize(rules.HighRiskRegions, strings.ToUpper)
	return &Scorer{rules: rules}
}

// Bucket maps a mean score onto a level using inclusive upper bounds.
func Bucket(mean float64, t models.RiskThresholds) models.RiskLevel {
	switch {
	case mean <= t.Low:
		return models.RiskLow
	case mean <= t.Medium:
		return models.RiskMedium
	case mean <= t.High:
		return models.RiskHigh
	default:
		return models.RiskCritical
	}
}

// tally accumulates adjustments before clamping.
type tally struct {
	raw          models.RiskScores
	reasons      []string
	actions      []string
	adjustments  []models.Adjustment
	insufficient bool
}

func newTally(baseline int) *tally {
	return &tally{raw: models.UniformScores(baseline)}
}

func (t *tally) adjust(rule string, dim models.Dimension, delta int, reason, action string) {
	if delta == 0 {
		return
	}
	t.raw.Set(dim, t.raw.Get(dim)+delta)
	t.adjustments = append(t.adjustments, models.Adjustment{Rule: rule, Dimension: dim, Delta: delta})
	t.reasons = append(t.reasons, fmt.Sprintf("%s (%s %+d)", reason, dim, delta))
	if action != "" {
		t.actions = append(t.actions, action)
	}
}

func (t *tally) missing(what string) {
	t.insufficient = true
	t.reasons = append(t.reasons, insufficientPrefix+what)
}

func (t *tally) profile(th models.RiskThresholds) models.RiskProfile {
	scores := t.raw
	for _, d := range models.Dimensions() {
		scores.Set(d, clamp(scores.Get(d)))
	}
	mean := scores.Mean()
	reasons := t.reasons
	if reasons == nil {
		reasons = []string{}
	}
	actions := pstrings.DedupeAndTrim(t.actions)
	if actions == nil {
		actions = []string{}
	}
	adjustments := t.adjustments
	if adjustments == nil {
		adjustments = []models.Adjustment{}
	}
	return models.RiskProfile{
		OverallRisk:        Bucket(mean, th),
		Scores:             scores,
		Mean:               mean,
		Reasons:            reasons,
		RecommendedActions: actions,
		Adjustments:        adjustments,
		InsufficientData:   t.insufficient,
	}
}

func clamp(v int) int {
	return max(models.MinScore, min(models.MaxScore, v))
}

// Score evaluates an organization profile. required is the resolver's
// checklist for the same profile; only mandatory items count.
func (s *Scorer) Score(p models.OrganizationProfile, required []models.ComplianceRequirement) models.RiskProfile {
	r := s.rules
	t := newTally(r.Baseline)

	if len(p.Owners) == 0 {
		t.missing("ownership structure not provided")
	} else {
		if slices.ContainsFunc(p.Owners, func(o models.Owner) bool { return o.PoliticallyExposed }) {
			t.adjust("pep_owner", models.DimensionOwnership, r.PEPOwner,
				"an owner is a politically exposed person",
				"Perform enhanced due diligence on politically exposed owners")
		}
		if slices.ContainsFunc(p.Owners, func(o models.Owner) bool { return o.Foreign }) {
			t.adjust("foreign_owner", models.DimensionOwnership, r.ForeignOwner,
				"organization has foreign ownership",
				"Obtain beneficial ownership declarations for foreign owners")
		}
	}

	switch {
	case p.BankVerified == nil:
		t.missing("bank verification status not provided")
	case *p.BankVerified:
		t.adjust("verified_bank", models.DimensionFinancial, r.VerifiedBank, "bank account verified", "")
	case p.Revenue == nil:
		t.missing("revenue not provided, unverified bank exposure unknown")
	case p.Revenue.GreaterThan(r.BankRevenueThreshold):
		t.adjust("unverified_bank", models.DimensionFinancial, r.UnverifiedBank,
			fmt.Sprintf("bank account unverified with revenue above %s", r.BankRevenueThreshold.StringFixed(0)),
			"Verify the organization's bank account")
	}

	switch {
	case p.TaxRegistered == nil:
		t.missing("tax registration status not provided")
	case !*p.TaxRegistered:
		t.adjust("missing_tax_registration", models.DimensionCompliance, r.MissingTaxRegistered,
			"organization is not registered for tax",
			"Register with the revenue authority and submit the tax reference number")
	}

	industry := strings.ToLower(strings.TrimSpace(p.IndustryCode))
	switch {
	case industry == "":
		t.missing("industry code not provided")
	case slices.Contains(r.HighRiskIndustries, industry):
		t.adjust("high_risk_industry", models.DimensionIndustry, r.HighRiskIndustry,
			fmt.Sprintf("industry %q is classified high risk", industry),
			"Schedule periodic review of high-risk industry engagement")
	case slices.Contains(r.LowRiskIndustries, industry):
		t.adjust("low_risk_industry", models.DimensionIndustry, r.LowRiskIndustry,
			fmt.Sprintf("industry %q is classified low risk", industry), "")
	}

	region := strings.ToUpper(strings.TrimSpace(p.Region))
	switch {
	case region == "":
		t.missing("region not provided")
	case slices.Contains(r.HighRiskRegions, region):
		t.adjust("high_risk_region", models.DimensionGeography, r.HighRiskRegion,
			fmt.Sprintf("region %s is classified high risk", region),
			"Confirm the source of funds for high-risk region exposure")
	}

	s.scoreDocuments(t, p, required)

	return t.profile(r.Thresholds)
}

func (s *Scorer) scoreDocuments(t *tally, p models.OrganizationProfile, required []models.ComplianceRequirement) {
	var missing, unverified []string
	mandatory := 0
	for _, req := range required {
		if !req.Mandatory {
			continue
		}
		mandatory++
		doc, ok := p.Document(req.DocType)
		switch {
		case !ok:
			missing = append(missing, req.DocType)
		case !doc.Verified:
			unverified = append(unverified, req.DocType)
		}
	}
	if mandatory == 0 {
		return
	}

	r := s.rules
	if len(missing) > 0 {
		delta := min(len(missing)*r.MissingDocument, r.MissingDocumentCap)
		t.adjust("missing_documents", models.DimensionCompliance, delta,
			fmt.Sprintf("%d mandatory documents missing: %s", len(missing), strings.Join(missing, ", ")),
			"Submit the missing mandatory documents: "+strings.Join(missing, ", "))
		return
	}
	if len(unverified) > 0 {
		t.reasons = append(t.reasons, fmt.Sprintf("%d mandatory documents awaiting verification: %s", len(unverified), strings.Join(unverified, ", ")))
		t.actions = append(t.actions, "Complete verification of submitted documents")
		return
	}
	t.adjust("all_documents_verified", models.DimensionCompliance, r.AllDocumentsVerified,
		"all mandatory documents submitted and verified", "")
}

// ScoreRelationship evaluates control-test facts for deemed employment.
// Each rule moves its dimension up for an employee-like answer and down for
// an independent one; unknown answers leave it at the baseline.
func (s *Scorer) ScoreRelationship(f models.ControlTestFactors) models.RiskProfile {
	t := newTally(s.rules.Baseline)
	readings := f.Readings()

	for _, rule := range s.rules.Relationship {
		idx := slices.IndexFunc(readings, func(r models.Reading) bool { return r.Factor == rule.Factor })
		if idx < 0 {
			continue
		}
		switch readings[idx].Lean {
		case models.LeanEmployee:
			t.adjust(string(rule.Factor), rule.Dimension, rule.EmployeePoints, rule.EmployeeReason, rule.Action)
		case models.LeanIndependent:
			t.adjust(string(rule.Factor), rule.Dimension, rule.IndependentPoints, rule.IndependentReason, "")
		default:
			t.missing(fmt.Sprintf("%s not answered", rule.Factor))
		}
	}

	return t.profile(s.rules.Thresholds)
}
