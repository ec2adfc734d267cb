// Package organization onboards client organizations and keeps their
// risk assessment current. Risk is recalculated after every mutation that
// feeds the scorer: a new owner, a new document, or a revenue change.
package organization

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"klok/internal/compliance/models"
	id "klok/pkg/domain"
	dErrors "klok/pkg/domain-errors"
)

const maxNameLen = 200

var hundred = decimal.NewFromInt(100)

// RiskAssessment is the persisted output of the last scoring run.
type RiskAssessment struct {
	Profile          models.RiskProfile `json:"profile"`
	RuleVersion      string             `json:"rule_version"`
	AssessedAt       time.Time          `json:"assessed_at"`
	ReviewRequiredAt time.Time          `json:"review_required_at"`
}

// Organization is the aggregate root for an onboarded client organization.
//
// Invariants:
//   - Name is non-empty and at most 200 characters
//   - Jurisdiction names a registered provider at onboarding
//   - Owner ownership percentages sum to at most 100
//   - Risk reflects the profile as of UpdatedAt
type Organization struct {
	ID             id.OrganizationID          `json:"id"`
	TenantID       id.TenantID                `json:"tenant_id"`
	Name           string                     `json:"name"`
	Jurisdiction   string                     `json:"jurisdiction"`
	RegistrationNo string                     `json:"registration_no,omitempty"`
	TaxNumber      string                     `json:"tax_number,omitempty"`
	VATNumber      string                     `json:"vat_number,omitempty"`
	Profile        models.OrganizationProfile `json:"profile"`
	Risk           *RiskAssessment            `json:"risk,omitempty"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

// Onboarding carries the caller's input for a new organization.
type Onboarding struct {
	Name           string
	Jurisdiction   string
	RegistrationNo string
	TaxNumber      string
	VATNumber      string
	Profile        models.OrganizationProfile
}

func newOrganization(orgID id.OrganizationID, tenantID id.TenantID, in Onboarding, now time.Time) (*Organization, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "organization name is required")
	}
	if len(name) > maxNameLen {
		return nil, dErrors.New(dErrors.CodeValidation, "organization name must be 200 characters or less")
	}
	if err := checkProfile(in.Profile); err != nil {
		return nil, err
	}
	profile := in.Profile
	if profile.Owners == nil {
		profile.Owners = []models.Owner{}
	}
	if profile.Documents == nil {
		profile.Documents = []models.Document{}
	}
	return &Organization{
		ID:             orgID,
		TenantID:       tenantID,
		Name:           name,
		Jurisdiction:   strings.ToUpper(strings.TrimSpace(in.Jurisdiction)),
		RegistrationNo: strings.TrimSpace(in.RegistrationNo),
		TaxNumber:      strings.TrimSpace(in.TaxNumber),
		VATNumber:      strings.TrimSpace(in.VATNumber),
		Profile:        profile,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func checkProfile(p models.OrganizationProfile) error {
	if p.Revenue != nil && p.Revenue.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "revenue cannot be negative")
	}
	if p.EmployeeCount != nil && *p.EmployeeCount < 0 {
		return dErrors.New(dErrors.CodeValidation, "employee count cannot be negative")
	}
	total := decimal.Zero
	for _, o := range p.Owners {
		if err := checkOwner(o); err != nil {
			return err
		}
		total = total.Add(o.OwnershipPct)
	}
	if total.GreaterThan(hundred) {
		return dErrors.New(dErrors.CodeValidation, "ownership percentages exceed 100")
	}
	return nil
}

func checkOwner(o models.Owner) error {
	if strings.TrimSpace(o.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "owner name is required")
	}
	if o.OwnershipPct.IsNegative() || o.OwnershipPct.GreaterThan(hundred) {
		return dErrors.New(dErrors.CodeValidation, "ownership_pct must be between 0 and 100")
	}
	return nil
}

// AddOwner appends an owner, rejecting a total above 100 percent.
func (o *Organization) AddOwner(owner models.Owner, now time.Time) error {
	owner.Name = strings.TrimSpace(owner.Name)
	if err := checkOwner(owner); err != nil {
		return err
	}
	total := owner.OwnershipPct
	for _, existing := range o.Profile.Owners {
		total = total.Add(existing.OwnershipPct)
	}
	if total.GreaterThan(hundred) {
		return dErrors.New(dErrors.CodeValidation, "ownership percentages exceed 100")
	}
	o.Profile.Owners = append(o.Profile.Owners, owner)
	o.UpdatedAt = now
	return nil
}

// SubmitDocument records a checklist item. Resubmitting a type replaces it.
func (o *Organization) SubmitDocument(doc models.Document, now time.Time) error {
	doc.Type = strings.TrimSpace(doc.Type)
	if doc.Type == "" {
		return dErrors.New(dErrors.CodeValidation, "document type is required")
	}
	o.Profile.UpsertDocument(doc)
	o.UpdatedAt = now
	return nil
}

// UpdateRevenue replaces the revenue and, when given, the employee count.
func (o *Organization) UpdateRevenue(revenue decimal.Decimal, employeeCount *int, now time.Time) error {
	if revenue.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "revenue cannot be negative")
	}
	if employeeCount != nil && *employeeCount < 0 {
		return dErrors.New(dErrors.CodeValidation, "employee count cannot be negative")
	}
	o.Profile.Revenue = &revenue
	if employeeCount != nil {
		n := *employeeCount
		o.Profile.EmployeeCount = &n
	}
	o.UpdatedAt = now
	return nil
}

// ApplyRisk stores a fresh assessment and schedules the next review.
func (o *Organization) ApplyRisk(profile models.RiskProfile, ruleVersion string, now time.Time) {
	o.Risk = &RiskAssessment{
		Profile:          profile,
		RuleVersion:      ruleVersion,
		AssessedAt:       now,
		ReviewRequiredAt: now.Add(ReviewInterval(profile.OverallRisk)),
	}
}

// ReviewDue reports whether the assessment is missing or past its review date.
func (o *Organization) ReviewDue(now time.Time) bool {
	return o.Risk == nil || !now.Before(o.Risk.ReviewRequiredAt)
}

// ReviewInterval is how long an assessment at level stays current.
func ReviewInterval(level models.RiskLevel) time.Duration {
	const day = 24 * time.Hour
	switch level {
	case models.RiskCritical:
		return 30 * day
	case models.RiskHigh:
		return 90 * day
	default:
		return 365 * day
	}
}

// RequirementStatus is one checklist item with the organization's progress on it.
type RequirementStatus struct {
	Requirement models.ComplianceRequirement `json:"requirement"`
	Submitted   bool                         `json:"submitted"`
	Verified    bool                         `json:"verified"`
}

// Checklist is the resolved requirement set for an organization.
type Checklist struct {
	Jurisdiction string              `json:"jurisdiction"`
	RuleVersion  string              `json:"rule_version"`
	Items        []RequirementStatus `json:"items"`
	// Missing lists mandatory document types not yet submitted.
	Missing []string `json:"missing"`
}

func buildChecklist(o *Organization, jurisdiction, ruleVersion string, required []models.ComplianceRequirement) Checklist {
	c := Checklist{
		Jurisdiction: jurisdiction,
		RuleVersion:  ruleVersion,
		Items:        make([]RequirementStatus, 0, len(required)),
		Missing:      []string{},
	}
	for _, req := range required {
		doc, ok := o.Profile.Document(req.DocType)
		c.Items = append(c.Items, RequirementStatus{
			Requirement: req,
			Submitted:   ok,
			Verified:    ok && doc.Verified,
		})
		if req.Mandatory && !ok {
			c.Missing = append(c.Missing, req.DocType)
		}
	}
	return c
}

// Clone returns a deep copy.
func (o *Organization) Clone() *Organization {
	c := *o
	c.Profile.Owners = append([]models.Owner{}, o.Profile.Owners...)
	c.Profile.Documents = append([]models.Document{}, o.Profile.Documents...)
	if o.Profile.Revenue != nil {
		r := *o.Profile.Revenue
		c.Profile.Revenue = &r
	}
	if o.Profile.EmployeeCount != nil {
		n := *o.Profile.EmployeeCount
		c.Profile.EmployeeCount = &n
	}
	if o.Profile.BankVerified != nil {
		b := *o.Profile.BankVerified
		c.Profile.BankVerified = &b
	}
	if o.Profile.TaxRegistered != nil {
		b := *o.Profile.TaxRegistered
		c.Profile.TaxRegistered = &b
	}
	if o.Risk != nil {
		r := *o.Risk
		c.Risk = &r
	}
	return &c
}
