package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"klok/internal/compliance/models"
	"klok/internal/organization"
	id "klok/pkg/domain"
	"klok/pkg/platform/sentinel"
	txcontext "klok/pkg/platform/tx"
)

// Store keeps organizations in the organizations table. The profile is a
// JSONB column without its documents; submitted documents live in
// organization_documents, one row per type.
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
	id, tenant_id, name, jurisdiction, registration_no, tax_number, vat_number,
	profile, risk_assessment, created_at, updated_at`

func (s *Store) Create(ctx context.Context, o *organization.Organization) error {
	profile, risk, reviewAt, err := encode(o)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO organizations (
			id, tenant_id, name, jurisdiction, registration_no, tax_number, vat_number,
			profile, risk_assessment, review_required_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(o.ID),
		uuid.UUID(o.TenantID),
		o.Name,
		o.Jurisdiction,
		o.RegistrationNo,
		o.TaxNumber,
		o.VATNumber,
		profile,
		risk,
		reviewAt,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrConflict
	}
	return s.upsertDocuments(ctx, o)
}

// Update rewrites the profile and assessment. Documents are upserted by
// type and never removed.
func (s *Store) Update(ctx context.Context, o *organization.Organization) error {
	profile, risk, reviewAt, err := encode(o)
	if err != nil {
		return err
	}
	query := `
		UPDATE organizations
		SET profile = $3, risk_assessment = $4, review_required_at = $5, updated_at = $6
		WHERE id = $1 AND tenant_id = $2
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(o.ID),
		uuid.UUID(o.TenantID),
		profile,
		risk,
		reviewAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return s.upsertDocuments(ctx, o)
}

// FindByID locks the row when ctx carries a transaction so a concurrent
// mutation cannot interleave with rescoring.
func (s *Store) FindByID(ctx context.Context, tenantID id.TenantID, orgID id.OrganizationID) (*organization.Organization, error) {
	query := `SELECT` + selectColumns + ` FROM organizations WHERE id = $1 AND tenant_id = $2`
	if _, ok := txcontext.From(ctx); ok {
		query += ` FOR UPDATE`
	}
	o, err := scanOrganization(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(orgID), uuid.UUID(tenantID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find organization: %w", err)
	}
	docs, err := s.documents(ctx, []string{orgID.String()})
	if err != nil {
		return nil, err
	}
	o.Profile.Documents = orEmpty(docs[o.ID])
	return o, nil
}

func (s *Store) ListReviewDue(ctx context.Context, tenantID id.TenantID, before time.Time, limit int) ([]*organization.Organization, error) {
	query := `SELECT` + selectColumns + `
		FROM organizations
		WHERE tenant_id = $1 AND review_required_at <= $2
		ORDER BY review_required_at, id
		LIMIT $3`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(tenantID), before, limit)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var (
		orgs []*organization.Organization
		ids  []string
	)
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, o)
		ids = append(ids, o.ID.String())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate organizations: %w", err)
	}
	if len(orgs) == 0 {
		return nil, nil
	}
	docs, err := s.documents(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, o := range orgs {
		o.Profile.Documents = orEmpty(docs[o.ID])
	}
	return orgs, nil
}

func (s *Store) upsertDocuments(ctx context.Context, o *organization.Organization) error {
	query := `
		INSERT INTO organization_documents (organization_id, doc_type, verified, uploaded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization_id, doc_type) DO UPDATE SET verified = EXCLUDED.verified
	`
	for _, d := range o.Profile.Documents {
		if _, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(o.ID), d.Type, d.Verified, o.UpdatedAt); err != nil {
			return fmt.Errorf("upsert document %s: %w", d.Type, err)
		}
	}
	return nil
}

func (s *Store) documents(ctx context.Context, orgIDs []string) (map[id.OrganizationID][]models.Document, error) {
	query := `
		SELECT organization_id, doc_type, verified
		FROM organization_documents
		WHERE organization_id = ANY($1::uuid[])
		ORDER BY uploaded_at, doc_type
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, pq.Array(orgIDs))
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	out := make(map[id.OrganizationID][]models.Document)
	for rows.Next() {
		var (
			orgID uuid.UUID
			d     models.Document
		)
		if err := rows.Scan(&orgID, &d.Type, &d.Verified); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out[id.OrganizationID(orgID)] = append(out[id.OrganizationID(orgID)], d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func encode(o *organization.Organization) (profile, risk []byte, reviewAt *time.Time, err error) {
	p := o.Profile
	p.Documents = nil
	profile, err = json.Marshal(p)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal profile: %w", err)
	}
	if o.Risk != nil {
		risk, err = json.Marshal(o.Risk)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal risk assessment: %w", err)
		}
		at := o.Risk.ReviewRequiredAt
		reviewAt = &at
	}
	return profile, risk, reviewAt, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrganization(row rowScanner) (*organization.Organization, error) {
	var (
		o        organization.Organization
		orgID    uuid.UUID
		tenantID uuid.UUID
		profile  []byte
		risk     []byte
	)
	err := row.Scan(
		&orgID, &tenantID, &o.Name, &o.Jurisdiction, &o.RegistrationNo, &o.TaxNumber, &o.VATNumber,
		&profile, &risk, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(profile, &o.Profile); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	if len(risk) > 0 {
		o.Risk = &organization.RiskAssessment{}
		if err := json.Unmarshal(risk, o.Risk); err != nil {
			return nil, fmt.Errorf("unmarshal risk assessment: %w", err)
		}
	}
	if o.Profile.Owners == nil {
		o.Profile.Owners = []models.Owner{}
	}
	o.ID = id.OrganizationID(orgID)
	o.TenantID = id.TenantID(tenantID)
	return &o, nil
}

func orEmpty(docs []models.Document) []models.Document {
	if docs == nil {
		return []models.Document{}
	}
	return docs
}
