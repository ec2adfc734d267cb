// Package invoice holds contractor invoice records and the eligibility gate
// that is the only way to build one.
package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"klok/internal/compliance/models"
	id "klok/pkg/domain"
	dErrors "klok/pkg/domain-errors"
)

// Status is the invoice lifecycle state.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusApproved Status = "approved"
	StatusVoid     Status = "void"
)

func (s Status) IsValid() bool {
	return s == StatusDraft || s == StatusApproved || s == StatusVoid
}

// TaxInfo is the contractor's tax identity. Country selects the jurisdiction.
type TaxInfo struct {
	Country       string `json:"country"`
	VATRegistered bool   `json:"vat_registered"`
	VATNumber     string `json:"vat_number,omitempty"`
	TaxNumber     string `json:"tax_number,omitempty"`
}

// ComplianceChecks records what the gate evaluated when it built the record.
type ComplianceChecks struct {
	ContractorStatusVerified bool                      `json:"contractor_status_verified"`
	VerifiedAt               time.Time                 `json:"verified_at"`
	RuleVersion              string                    `json:"rule_version"`
	EvaluatedFactors         models.ControlTestFactors `json:"evaluated_factors"`
	RiskLevel                models.RiskLevel          `json:"risk_level"`
	HighRiskAdvisory         bool                      `json:"high_risk_advisory"`
}

// AnnotationKind names the source of an annotation.
type AnnotationKind string

const AnnotationReconciliationWarning AnnotationKind = "reconciliation_warning"

// Annotation is an append-only note attached to a record after the fact.
// It never changes financial fields.
type Annotation struct {
	ID             string                `json:"id"`
	InvoiceID      id.InvoiceID          `json:"invoice_id"`
	DedupeKey      string                `json:"-"`
	Kind           AnnotationKind        `json:"kind"`
	Classification models.Classification `json:"classification"`
	Message        string                `json:"message"`
	RuleVersion    string                `json:"rule_version"`
	CreatedAt      time.Time             `json:"created_at"`
}

// DedupeKey identifies one finding: the same record, classification and rule
// version never produce a second annotation.
func DedupeKey(invoiceID id.InvoiceID, c models.Classification, ruleVersion string) string {
	return strings.Join([]string{invoiceID.String(), string(c), ruleVersion}, "|")
}

// Record is a persisted contractor invoice.
//
// Invariants:
//   - Only Gate.NewRecord and Rehydrate construct a Record
//   - ContractorStatusVerified is always true
//   - Total = Subtotal + VAT, all rounded to cents
//   - Approved and void records never change
//   - Classification, TaxInfo and Currency change only through Reclassify,
//     which yields a new record and voids this one
type Record struct {
	id             id.InvoiceID
	tenantID       id.TenantID
	organizationID id.OrganizationID
	contractorID   id.ContractorID
	classification models.Classification
	taxInfo        TaxInfo
	currency       string
	subtotal       decimal.Decimal
	vat            decimal.Decimal
	total          decimal.Decimal
	advisories     []string
	checks         ComplianceChecks
	status         Status
	replacesID     *id.InvoiceID
	annotations    []Annotation
	createdAt      time.Time
	updatedAt      time.Time
}

func (r *Record) ID() id.InvoiceID                      { return r.id }
func (r *Record) TenantID() id.TenantID                 { return r.tenantID }
func (r *Record) OrganizationID() id.OrganizationID     { return r.organizationID }
func (r *Record) ContractorID() id.ContractorID         { return r.contractorID }
func (r *Record) Jurisdiction() string                  { return r.taxInfo.Country }
func (r *Record) Classification() models.Classification { return r.classification }
func (r *Record) TaxInfo() TaxInfo                      { return r.taxInfo }
func (r *Record) Currency() string                      { return r.currency }
func (r *Record) Subtotal() decimal.Decimal             { return r.subtotal }
func (r *Record) VAT() decimal.Decimal                  { return r.vat }
func (r *Record) Total() decimal.Decimal                { return r.total }
func (r *Record) Checks() ComplianceChecks              { return r.checks }
func (r *Record) Status() Status                        { return r.status }
func (r *Record) CreatedAt() time.Time                  { return r.createdAt }
func (r *Record) UpdatedAt() time.Time                  { return r.updatedAt }

func (r *Record) Advisories() []string {
	return append([]string(nil), r.advisories...)
}

// ReplacesID is the record this one superseded through Reclassify, if any.
func (r *Record) ReplacesID() (id.InvoiceID, bool) {
	if r.replacesID == nil {
		return id.InvoiceID{}, false
	}
	return *r.replacesID, true
}

func (r *Record) Annotations() []Annotation {
	return append([]Annotation(nil), r.annotations...)
}

// CanApprove checks the draft → approved transition.
func (r *Record) CanApprove() error {
	if r.status != StatusDraft {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("invoice is %s and cannot be approved", r.status))
	}
	return nil
}

// Approve freezes a draft.
func (r *Record) Approve(now time.Time) error {
	if err := r.CanApprove(); err != nil {
		return err
	}
	r.status = StatusApproved
	r.updatedAt = now
	return nil
}

// Void retires a draft.
func (r *Record) Void(now time.Time) error {
	if r.status != StatusDraft {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("invoice is %s and cannot be voided", r.status))
	}
	r.status = StatusVoid
	r.updatedAt = now
	return nil
}

// Amendment lists the gate-relevant fields a reclassification may change.
// Nil fields keep the current value.
type Amendment struct {
	Classification *string
	TaxInfo        *TaxInfo
	Currency       *string
	Factors        *models.ControlTestFactors
}

// Draft returns the inputs that produced r with a applied.
func (r *Record) Draft(a Amendment) Draft {
	d := Draft{
		TenantID:       r.tenantID,
		OrganizationID: r.organizationID,
		ContractorID:   r.contractorID,
		Classification: string(r.classification),
		Factors:        r.checks.EvaluatedFactors,
		TaxInfo:        r.taxInfo,
		Currency:       r.currency,
		Subtotal:       r.subtotal,
	}
	if a.Classification != nil {
		d.Classification = *a.Classification
	}
	if a.TaxInfo != nil {
		d.TaxInfo = *a.TaxInfo
	}
	if a.Currency != nil {
		d.Currency = *a.Currency
	}
	if a.Factors != nil {
		d.Factors = *a.Factors
	}
	return d
}

// Snapshot is the flat form stores persist. It carries no behaviour.
type Snapshot struct {
	ID             id.InvoiceID
	TenantID       id.TenantID
	OrganizationID id.OrganizationID
	ContractorID   id.ContractorID
	Classification models.Classification
	TaxInfo        TaxInfo
	Currency       string
	Subtotal       decimal.Decimal
	VAT            decimal.Decimal
	Total          decimal.Decimal
	Advisories     []string
	Checks         ComplianceChecks
	Status         Status
	ReplacesID     *id.InvoiceID
	Annotations    []Annotation
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (r *Record) Snapshot() Snapshot {
	return Snapshot{
		ID:             r.id,
		TenantID:       r.tenantID,
		OrganizationID: r.organizationID,
		ContractorID:   r.contractorID,
		Classification: r.classification,
		TaxInfo:        r.taxInfo,
		Currency:       r.currency,
		Subtotal:       r.subtotal,
		VAT:            r.vat,
		Total:          r.total,
		Advisories:     r.Advisories(),
		Checks:         r.checks,
		Status:         r.status,
		ReplacesID:     r.replacesID,
		Annotations:    r.Annotations(),
		CreatedAt:      r.createdAt,
		UpdatedAt:      r.updatedAt,
	}
}

// Rehydrate rebuilds a stored record. It re-checks the structural
// invariants but does not re-run the gate: a record stays valid under the
// rules it was created with, and reconciliation reports later rule changes.
// Only stores call it.
func Rehydrate(s Snapshot) (*Record, error) {
	switch {
	case s.ID.IsNil():
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "stored invoice has no id")
	case !s.Classification.IsValid():
		return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("stored invoice %s has unknown classification %q", s.ID, string(s.Classification)))
	case !s.Status.IsValid():
		return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("stored invoice %s has unknown status %q", s.ID, s.Status))
	case !s.Checks.ContractorStatusVerified:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("stored invoice %s was never verified", s.ID))
	case !s.Total.Equal(s.Subtotal.Add(s.VAT)):
		return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("stored invoice %s total does not match subtotal and vat", s.ID))
	}
	return &Record{
		id:             s.ID,
		tenantID:       s.TenantID,
		organizationID: s.OrganizationID,
		contractorID:   s.ContractorID,
		classification: s.Classification,
		taxInfo:        s.TaxInfo,
		currency:       s.Currency,
		subtotal:       s.Subtotal,
		vat:            s.VAT,
		total:          s.Total,
		advisories:     append([]string(nil), s.Advisories...),
		checks:         s.Checks,
		status:         s.Status,
		replacesID:     s.ReplacesID,
		annotations:    append([]Annotation(nil), s.Annotations...),
		createdAt:      s.CreatedAt,
		updatedAt:      s.UpdatedAt,
	}, nil
}

// Row is one entry of a listed page. Err is set instead of Record when the
// stored row could not be rebuilt. ID is always set so paging can move past
// a bad row.
type Row struct {
	ID     id.InvoiceID
	Record *Record
	Err    error
}

// RowOf rehydrates snap into a Row, keeping the failure in the row.
func RowOf(snap Snapshot) Row {
	rec, err := Rehydrate(snap)
	return Row{ID: snap.ID, Record: rec, Err: err}
}
