package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"klok/internal/compliance/models"
	"klok/internal/invoice"
	id "klok/pkg/domain"
	"klok/pkg/platform/sentinel"
	txcontext "klok/pkg/platform/tx"
)

const foreignKeyViolation = "23503"

// Store persists invoices in contractor_invoices and their annotations in
// invoice_annotations. Writes join the caller's transaction when ctx
// carries one.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const selectColumns = `
	id, tenant_id, organization_id, contractor_id, classification,
	tax_country, vat_registered, vat_number, tax_number, currency,
	subtotal, vat, total, status, contractor_status_verified, verified_at,
	rule_version, evaluated_factors, risk_level, high_risk_advisory,
	replaces_id, created_at, updated_at, advisories`

func (s *Store) Create(ctx context.Context, r *invoice.Record) error {
	snap := r.Snapshot()
	factors, err := json.Marshal(snap.Checks.EvaluatedFactors)
	if err != nil {
		return fmt.Errorf("marshal evaluated factors: %w", err)
	}
	var replaces *uuid.UUID
	if snap.ReplacesID != nil {
		u := uuid.UUID(*snap.ReplacesID)
		replaces = &u
	}
	advisories := snap.Advisories
	if advisories == nil {
		advisories = []string{}
	}

	query := `
		INSERT INTO contractor_invoices (
			id, tenant_id, organization_id, contractor_id, jurisdiction, classification,
			tax_country, vat_registered, vat_number, tax_number, currency,
			subtotal, vat, total, status, contractor_status_verified, verified_at,
			rule_version, evaluated_factors, risk_level, high_risk_advisory,
			replaces_id, created_at, updated_at, advisories
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(snap.ID),
		uuid.UUID(snap.TenantID),
		uuid.UUID(snap.OrganizationID),
		uuid.UUID(snap.ContractorID),
		snap.TaxInfo.Country,
		string(snap.Classification),
		snap.TaxInfo.Country,
		snap.TaxInfo.VATRegistered,
		snap.TaxInfo.VATNumber,
		snap.TaxInfo.TaxNumber,
		snap.Currency,
		snap.Subtotal,
		snap.VAT,
		snap.Total,
		string(snap.Status),
		snap.Checks.ContractorStatusVerified,
		snap.Checks.VerifiedAt,
		snap.Checks.RuleVersion,
		factors,
		string(snap.Checks.RiskLevel),
		snap.Checks.HighRiskAdvisory,
		replaces,
		snap.CreatedAt,
		snap.UpdatedAt,
		pq.Array(advisories),
	)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

// Update writes the lifecycle fields of a draft. Financial and classification
// columns are never rewritten.
func (s *Store) Update(ctx context.Context, r *invoice.Record) error {
	query := `
		UPDATE contractor_invoices
		SET status = $3, updated_at = $4
		WHERE id = $1 AND tenant_id = $2 AND status = 'draft'
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(r.ID()),
		uuid.UUID(r.TenantID()),
		string(r.Status()),
		r.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	err = s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM contractor_invoices WHERE id = $1 AND tenant_id = $2)`,
		uuid.UUID(r.ID()), uuid.UUID(r.TenantID()),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check invoice: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func (s *Store) FindByID(ctx context.Context, tenantID id.TenantID, invoiceID id.InvoiceID) (*invoice.Record, error) {
	query := `SELECT` + selectColumns + ` FROM contractor_invoices WHERE id = $1 AND tenant_id = $2`
	snap, err := scanSnapshot(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(invoiceID), uuid.UUID(tenantID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find invoice: %w", err)
	}
	annotations, err := s.annotations(ctx, []string{invoiceID.String()})
	if err != nil {
		return nil, err
	}
	snap.Annotations = annotations[snap.ID]
	return invoice.Rehydrate(snap)
}

func (s *Store) ListPage(ctx context.Context, after id.InvoiceID, limit int) ([]invoice.Row, error) {
	query := `SELECT` + selectColumns + ` FROM contractor_invoices WHERE id > $1 ORDER BY id LIMIT $2`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(after), limit)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var (
		scanned []scannedRow
		ids     []string
	)
	for rows.Next() {
		snap, factors, err := scanColumns(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		scanned = append(scanned, scannedRow{snap: snap, factors: factors})
		ids = append(ids, snap.ID.String())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	if len(scanned) == 0 {
		return nil, nil
	}

	annotations, err := s.annotations(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]invoice.Row, 0, len(scanned))
	for _, r := range scanned {
		if err := decodeFactors(r.factors, &r.snap); err != nil {
			out = append(out, invoice.Row{ID: r.snap.ID, Err: err})
			continue
		}
		r.snap.Annotations = annotations[r.snap.ID]
		out = append(out, invoice.RowOf(r.snap))
	}
	return out, nil
}

func (s *Store) AppendAnnotation(ctx context.Context, a invoice.Annotation) error {
	annotationID, err := uuid.Parse(a.ID)
	if err != nil {
		return fmt.Errorf("annotation id: %w", err)
	}
	query := `
		INSERT INTO invoice_annotations (id, invoice_id, dedupe_key, kind, classification, message, rule_version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (dedupe_key) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		annotationID,
		uuid.UUID(a.InvoiceID),
		a.DedupeKey,
		string(a.Kind),
		string(a.Classification),
		a.Message,
		a.RuleVersion,
		a.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert annotation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert annotation: %w", err)
	}
	if n == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *Store) annotations(ctx context.Context, invoiceIDs []string) (map[id.InvoiceID][]invoice.Annotation, error) {
	query := `
		SELECT id, invoice_id, dedupe_key, kind, classification, message, rule_version, created_at
		FROM invoice_annotations
		WHERE invoice_id = ANY($1::uuid[])
		ORDER BY created_at, id
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, pq.Array(invoiceIDs))
	if err != nil {
		return nil, fmt.Errorf("query annotations: %w", err)
	}
	defer rows.Close()

	out := make(map[id.InvoiceID][]invoice.Annotation)
	for rows.Next() {
		var (
			a              invoice.Annotation
			annotationID   uuid.UUID
			invoiceID      uuid.UUID
			kind           string
			classification string
		)
		if err := rows.Scan(&annotationID, &invoiceID, &a.DedupeKey, &kind, &classification, &a.Message, &a.RuleVersion, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		a.ID = annotationID.String()
		a.InvoiceID = id.InvoiceID(invoiceID)
		a.Kind = invoice.AnnotationKind(kind)
		a.Classification = models.Classification(classification)
		out[a.InvoiceID] = append(out[a.InvoiceID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate annotations: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

type scannedRow struct {
	snap    invoice.Snapshot
	factors []byte
}

func scanSnapshot(row rowScanner) (invoice.Snapshot, error) {
	snap, factors, err := scanColumns(row)
	if err != nil {
		return invoice.Snapshot{}, err
	}
	if err := decodeFactors(factors, &snap); err != nil {
		return invoice.Snapshot{}, err
	}
	return snap, nil
}

// scanColumns reads one row of selectColumns. The evaluated factors stay
// raw so a bad document fails only its own row.
func scanColumns(row rowScanner) (invoice.Snapshot, []byte, error) {
	var (
		snap           invoice.Snapshot
		invoiceID      uuid.UUID
		tenantID       uuid.UUID
		organizationID uuid.UUID
		contractorID   uuid.UUID
		replaces       uuid.NullUUID
		classification string
		status         string
		riskLevel      string
		factors        []byte
	)
	err := row.Scan(
		&invoiceID, &tenantID, &organizationID, &contractorID, &classification,
		&snap.TaxInfo.Country, &snap.TaxInfo.VATRegistered, &snap.TaxInfo.VATNumber, &snap.TaxInfo.TaxNumber, &snap.Currency,
		&snap.Subtotal, &snap.VAT, &snap.Total, &status, &snap.Checks.ContractorStatusVerified, &snap.Checks.VerifiedAt,
		&snap.Checks.RuleVersion, &factors, &riskLevel, &snap.Checks.HighRiskAdvisory,
		&replaces, &snap.CreatedAt, &snap.UpdatedAt, pq.Array(&snap.Advisories),
	)
	if err != nil {
		return invoice.Snapshot{}, nil, err
	}
	snap.ID = id.InvoiceID(invoiceID)
	snap.TenantID = id.TenantID(tenantID)
	snap.OrganizationID = id.OrganizationID(organizationID)
	snap.ContractorID = id.ContractorID(contractorID)
	snap.Classification = models.Classification(classification)
	snap.Status = invoice.Status(status)
	snap.Checks.RiskLevel = models.RiskLevel(riskLevel)
	if replaces.Valid {
		r := id.InvoiceID(replaces.UUID)
		snap.ReplacesID = &r
	}
	return snap, factors, nil
}

func decodeFactors(raw []byte, snap *invoice.Snapshot) error {
	if err := json.Unmarshal(raw, &snap.Checks.EvaluatedFactors); err != nil {
		return fmt.Errorf("invoice %s: unmarshal evaluated factors: %w", snap.ID, err)
	}
	return nil
}
