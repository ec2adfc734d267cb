// Package decision answers whether a worker may be paid against an invoice
// in a given jurisdiction.
//
// Decide is pure: it reads the provider's immutable configuration and the
// caller's facts and returns a Decision. Service adds registry lookup,
// panic containment, caching and metrics around it.
package decision

import (
	"fmt"
	"strings"

	"klok/internal/compliance/models"
	"klok/internal/compliance/providers"
	dErrors "klok/pkg/domain-errors"
)

// Outcome is the top-level verdict.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeBlocked  Outcome = "blocked"
)

// Block explains why an invoice may not be issued.
type Block struct {
	Kind        dErrors.Code `json:"kind"`
	Reason      string       `json:"reason"`
	Remediation string       `json:"remediation"`
}

// Decision is the gate verdict for one (jurisdiction, classification, facts)
// triple. Exactly one of Risk and Block is set.
type Decision struct {
	Outcome        Outcome
	Jurisdiction   string
	RuleVersion    string
	Requested      string
	Classification models.Classification // empty when Requested is not a known variant
	Factors        models.ControlTestFactors

	Risk             *models.RiskProfile
	HighRiskAdvisory bool

	Block *Block
}

// Approved reports whether an invoice may be issued.
func (d Decision) Approved() bool { return d.Outcome == OutcomeApproved }

// Err returns nil for an approved decision and a *BlockedError otherwise.
func (d Decision) Err() error {
	if d.Approved() {
		return nil
	}
	return &BlockedError{
		Block:          *d.Block,
		Jurisdiction:   d.Jurisdiction,
		Classification: d.Requested,
		RuleVersion:    d.RuleVersion,
	}
}

// BlockedError carries a Block through error returns. It unwraps to a coded
// domain error so handlers map it like any other.
type BlockedError struct {
	Block
	Jurisdiction   string
	Classification string
	RuleVersion    string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *BlockedError) Unwrap() error {
	return dErrors.New(e.Kind, e.Reason)
}

func (e *BlockedError) Remediation() string {
	return e.Block.Remediation
}

func blocked(p providers.Provider, requested string, c models.Classification, f models.ControlTestFactors, b Block) Decision {
	return Decision{
		Outcome:        OutcomeBlocked,
		Jurisdiction:   p.Code(),
		RuleVersion:    p.RuleVersion(),
		Requested:      requested,
		Classification: c,
		Factors:        f,
		Block:          &b,
	}
}

// Decide evaluates requested against p. Unknown names are blocked with
// unknown_classification, payroll-only classifications with legal_violation
// whatever the facts say. Invoice-eligible classifications are approved
// and carry the relationship risk profile; high or critical risk sets the
// advisory flag but never blocks.
func Decide(p providers.Provider, requested string, factors models.ControlTestFactors) Decision {
	c, err := models.ParseClassification(requested)
	if err != nil {
		return blocked(p, requested, "", factors, Block{
			Kind:        dErrors.CodeUnknownClassification,
			Reason:      dErrors.MessageOf(err),
			Remediation: "Use one of: " + strings.Join(classificationNames(), ", "),
		})
	}

	path, ok := p.Classifications().PathOf(c)
	if !ok {
		return blocked(p, requested, c, factors, Block{
			Kind:        dErrors.CodeUnknownClassification,
			Reason:      fmt.Sprintf("%s is not recognised in %s", c.DisplayName(), p.Code()),
			Remediation: "Choose a classification supported by this jurisdiction",
		})
	}

	if path == models.PathPayroll {
		reason, remediation := p.LegalBasis(c)
		return blocked(p, requested, c, factors, Block{
			Kind:        dErrors.CodeLegalViolation,
			Reason:      reason,
			Remediation: remediation,
		})
	}

	prof := p.ScoreRelationship(factors)
	return Decision{
		Outcome:          OutcomeApproved,
		Jurisdiction:     p.Code(),
		RuleVersion:      p.RuleVersion(),
		Requested:        requested,
		Classification:   c,
		Factors:          factors,
		Risk:             &prof,
		HighRiskAdvisory: prof.OverallRisk.IsElevated(),
	}
}

func classificationNames() []string {
	all := models.AllClassifications()
	out := make([]string, len(all))
	for i, c := range all {
		out[i] = string(c)
	}
	return out
}

// Recommend suggests a classification from the facts alone:
//   - more employee-like than independent answers: fixed_term_employee
//   - a regular salary: temporary_employee
//   - other clients and no supervision: freelancer
//   - otherwise independent_contractor
func Recommend(f models.ControlTestFactors) models.Classification {
	employeeLike, independent, _ := f.Tally()
	switch {
	case employeeLike > independent:
		return models.FixedTermEmployee
	case f.PaidRegularSalary == models.FactYes:
		return models.TemporaryEmployee
	case f.HasOtherClients == models.FactYes && f.Supervised == models.FactNo:
		return models.Freelancer
	default:
		return models.IndependentContractor
	}
}
