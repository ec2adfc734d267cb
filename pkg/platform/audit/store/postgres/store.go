package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "klok/pkg/platform/audit"
	txcontext "klok/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table inside the caller's transaction and
// relayed to Kafka by the outbox worker.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka.
type outboxPayload struct {
	ID             string `json:"id"`
	Category       string `json:"category"`
	Timestamp      string `json:"timestamp"`
	TenantID       string `json:"tenant_id"`
	ActorID        string `json:"actor_id,omitempty"`
	Subject        string `json:"subject"`
	Action         string `json:"action"`
	Jurisdiction   string `json:"jurisdiction,omitempty"`
	Classification string `json:"classification,omitempty"`
	Decision       string `json:"decision,omitempty"`
	Reason         string `json:"reason,omitempty"`
	RuleVersion    string `json:"rule_version,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
	ClientIP       string `json:"client_ip,omitempty"`
	DeviceSummary  string `json:"device_summary,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	category := audit.AuditEvent(event.Action).Category()

	payload := outboxPayload{
		ID:             eventID.String(),
		Category:       string(category),
		Timestamp:      event.Timestamp.UTC().Format(time.RFC3339Nano),
		TenantID:       event.TenantID.String(),
		Subject:        event.Subject,
		Action:         event.Action,
		Jurisdiction:   event.Jurisdiction,
		Classification: event.Classification,
		Decision:       event.Decision,
		Reason:         event.Reason,
		RuleVersion:    event.RuleVersion,
		RequestID:      event.RequestID,
		ClientIP:       event.ClientIP,
		DeviceSummary:  event.DeviceSummary,
	}
	if !event.ActorID.IsNil() {
		payload.ActorID = event.ActorID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, category, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		eventID,
		"compliance",
		event.Subject,
		event.Action,
		string(category),
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// FetchPending returns up to limit unpublished outbox entries in insertion order.
// Rows are locked with SKIP LOCKED so concurrent relays never double-claim.
// Must be called inside a transaction carried by ctx for the lock to hold.
func (s *Store) FetchPending(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	query := `
		SELECT id, aggregate_id, event_type, category, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	var (
		rows *sql.Rows
		err  error
	)
	if tx, ok := txcontext.From(ctx); ok {
		rows, err = tx.QueryContext(ctx, query, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []audit.OutboxEntry
	for rows.Next() {
		var (
			e        audit.OutboxEntry
			category string
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &category, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		e.Category = audit.EventCategory(category)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps the given entries as relayed.
func (s *Store) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE outbox SET published_at = $2 WHERE id = ANY($1::uuid[])`
	if _, err := s.execer(ctx).ExecContext(ctx, query, pq.Array(ids), at); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
