package models

import (
	"bytes"
	"fmt"
)

// Fact is a tri-state answer to one control-test question. The zero value is
// FactUnknown, so an omitted JSON field is never read as "no".
type Fact uint8

const (
	FactUnknown Fact = iota
	FactYes
	FactNo
)

// FactOf lifts a known boolean.
func FactOf(b bool) Fact {
	if b {
		return FactYes
	}
	return FactNo
}

// FactPtr lifts an optional boolean; nil is unknown.
func FactPtr(b *bool) Fact {
	if b == nil {
		return FactUnknown
	}
	return FactOf(*b)
}

func (f Fact) Known() bool { return f == FactYes || f == FactNo }

func (f Fact) String() string {
	switch f {
	case FactYes:
		return "yes"
	case FactNo:
		return "no"
	default:
		return "unknown"
	}
}

func (f Fact) MarshalJSON() ([]byte, error) {
	switch f {
	case FactYes:
		return []byte("true"), nil
	case FactNo:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (f *Fact) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*f = FactYes
	case "false":
		*f = FactNo
	case "null":
		*f = FactUnknown
	default:
		return fmt.Errorf("fact must be true, false or null, got %s", data)
	}
	return nil
}

// Factor names one control-test question.
type Factor string

const (
	FactorFixedWorkplace       Factor = "fixed_workplace"
	FactorFixedHours           Factor = "fixed_hours"
	FactorSupervised           Factor = "supervised"
	FactorUsesCompanyEquipment Factor = "uses_company_equipment"
	FactorHasOtherClients      Factor = "has_other_clients"
	FactorPaidRegularSalary    Factor = "paid_regular_salary"
)

// ControlTestFactors are the relationship facts behind a classification.
type ControlTestFactors struct {
	FixedWorkplace       Fact `json:"fixed_workplace"`
	FixedHours           Fact `json:"fixed_hours"`
	Supervised           Fact `json:"supervised"`
	UsesCompanyEquipment Fact `json:"uses_company_equipment"`
	HasOtherClients      Fact `json:"has_other_clients"`
	PaidRegularSalary    Fact `json:"paid_regular_salary"`
}

// Lean describes which way one answered fact points.
type Lean int

const (
	LeanNone Lean = iota
	LeanEmployee
	LeanIndependent
)

// Reading is one factor with the direction its answer leans.
type Reading struct {
	Factor Factor
	Fact   Fact
	Lean   Lean
}

// Readings lists the factors in a fixed order. Every factor leans toward
// employment when answered yes, except HasOtherClients where "no" signals
// economic dependence on a single engager.
func (f ControlTestFactors) Readings() []Reading {
	out := []Reading{
		{Factor: FactorFixedWorkplace, Fact: f.FixedWorkplace},
		{Factor: FactorFixedHours, Fact: f.FixedHours},
		{Factor: FactorSupervised, Fact: f.Supervised},
		{Factor: FactorUsesCompanyEquipment, Fact: f.UsesCompanyEquipment},
		{Factor: FactorHasOtherClients, Fact: f.HasOtherClients},
		{Factor: FactorPaidRegularSalary, Fact: f.PaidRegularSalary},
	}
	for i := range out {
		out[i].Lean = lean(out[i].Factor, out[i].Fact)
	}
	return out
}

func lean(factor Factor, fact Fact) Lean {
	if !fact.Known() {
		return LeanNone
	}
	employeeAnswer := FactYes
	if factor == FactorHasOtherClients {
		employeeAnswer = FactNo
	}
	if fact == employeeAnswer {
		return LeanEmployee
	}
	return LeanIndependent
}

// Tally counts the readings by lean.
func (f ControlTestFactors) Tally() (employeeLike, independent, unknown int) {
	for _, r := range f.Readings() {
		switch r.Lean {
		case LeanEmployee:
			employeeLike++
		case LeanIndependent:
			independent++
		default:
			unknown++
		}
	}
	return employeeLike, independent, unknown
}

// AllIndependent returns factors with every question answered away from employment.
func AllIndependent() ControlTestFactors {
	return ControlTestFactors{
		FixedWorkplace:       FactNo,
		FixedHours:           FactNo,
		Supervised:           FactNo,
		UsesCompanyEquipment: FactNo,
		HasOtherClients:      FactYes,
		PaidRegularSalary:    FactNo,
	}
}

// WithFactor returns a copy with one factor replaced.
func (f ControlTestFactors) WithFactor(factor Factor, fact Fact) ControlTestFactors {
	switch factor {
	case FactorFixedWorkplace:
		f.FixedWorkplace = fact
	case FactorFixedHours:
		f.FixedHours = fact
	case FactorSupervised:
		f.Supervised = fact
	case FactorUsesCompanyEquipment:
		f.UsesCompanyEquipment = fact
	case FactorHasOtherClients:
		f.HasOtherClients = fact
	case FactorPaidRegularSalary:
		f.PaidRegularSalary = fact
	default:
		panic(fmt.Sprintf("models: unhandled factor %q", string(factor)))
	}
	return f
}
