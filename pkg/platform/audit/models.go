package audit

import (
	"context"
	"time"

	id "klok/pkg/domain"
	"klok/pkg/requestcontext"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and Kafka topics.
type EventCategory string

const (
	// CategoryCompliance covers events with legal or regulatory significance:
	// every invoice gate outcome and every reconciliation finding. Retained
	// for the statutory record-keeping period.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine configuration changes.
	CategoryOperations EventCategory = "operations"
)

type AuditEvent string

const (
	// Invoice gate outcomes
	EventInvoiceApproved     AuditEvent = "invoice_approved"
	EventInvoiceBlocked      AuditEvent = "invoice_blocked"
	EventInvoiceReclassified AuditEvent = "invoice_reclassified"
	EventInvoiceFinalized    AuditEvent = "invoice_finalized"

	// Reconciliation findings
	EventReconciliationViolation AuditEvent = "reconciliation_violation"

	// Organization risk
	EventRiskRecalculated AuditEvent = "risk_recalculated"

	// Provider registry
	EventProviderRegistered AuditEvent = "provider_registered"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventInvoiceApproved:         CategoryCompliance,
	EventInvoiceBlocked:          CategoryCompliance,
	EventInvoiceReclassified:     CategoryCompliance,
	EventInvoiceFinalized:        CategoryCompliance,
	EventReconciliationViolation: CategoryCompliance,
	EventRiskRecalculated:        CategoryCompliance,

	EventProviderRegistered: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is the persisted, transport-agnostic form of an audit record.
type Event struct {
	Category       EventCategory
	Timestamp      time.Time
	TenantID       id.TenantID
	ActorID        id.UserID
	Subject        string // aggregate the event is about, e.g. an invoice or organization ID
	Action         string
	Jurisdiction   string
	Classification string
	Decision       string
	Reason         string
	RuleVersion    string
	RequestID      string
	ClientIP       string
	DeviceSummary  string
}

// ComplianceEvent captures regulatory-significant actions requiring
// guaranteed persistence. Emit it through the compliance publisher.
type ComplianceEvent struct {
	Timestamp      time.Time // set automatically if zero
	TenantID       id.TenantID
	ActorID        id.UserID // zero for system actors such as reconciliation
	Subject        string
	Action         AuditEvent
	Jurisdiction   string
	Classification string
	Decision       string
	Reason         string
	RuleVersion    string
	RequestID      string
	ClientIP       string
	DeviceSummary  string
}

// WithRequestMetadata fills actor and client fields from the request context.
// Fields already set win.
func (e ComplianceEvent) WithRequestMetadata(ctx context.Context) ComplianceEvent {
	if e.ActorID.IsNil() {
		e.ActorID = requestcontext.ActorID(ctx)
	}
	if e.RequestID == "" {
		e.RequestID = requestcontext.RequestID(ctx)
	}
	if e.ClientIP == "" {
		e.ClientIP = requestcontext.ClientIP(ctx)
	}
	if e.DeviceSummary == "" {
		e.DeviceSummary = requestcontext.DeviceSummary(ctx)
	}
	return e
}

// ToEvent converts to the stored Event shape.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:       e.Action.Category(),
		Timestamp:      e.Timestamp,
		TenantID:       e.TenantID,
		ActorID:        e.ActorID,
		Subject:        e.Subject,
		Action:         string(e.Action),
		Jurisdiction:   e.Jurisdiction,
		Classification: e.Classification,
		Decision:       e.Decision,
		Reason:         e.Reason,
		RuleVersion:    e.RuleVersion,
		RequestID:      e.RequestID,
		ClientIP:       e.ClientIP,
		DeviceSummary:  e.DeviceSummary,
	}
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// OutboxEntry is an outbox row awaiting relay to the event stream.
type OutboxEntry struct {
	ID          string
	AggregateID string
	EventType   string
	Category    EventCategory
	Payload     []byte
	CreatedAt   time.Time
}
