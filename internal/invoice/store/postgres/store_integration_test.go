//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"klok/internal/compliance/models"
	"klok/internal/invoice"
	"klok/internal/invoice/store/postgres"
	id "klok/pkg/domain"
	"klok/pkg/platform/sentinel"
	txcontext "klok/pkg/platform/tx"
	"klok/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	tenant   id.TenantID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "invoice_annotations", "contractor_invoices"))
	s.tenant = id.TenantID(uuid.New())
}

func (s *PostgresStoreSuite) newRecord() *invoice.Record {
	now := time.Now().UTC().Truncate(time.Microsecond)
	rec, err := invoice.Rehydrate(invoice.Snapshot{
		ID:             id.InvoiceID(uuid.New()),
		TenantID:       s.tenant,
		OrganizationID: id.OrganizationID(uuid.New()),
		ContractorID:   id.ContractorID(uuid.New()),
		Classification: models.Consultant,
		TaxInfo:        invoice.TaxInfo{Country: "ZA", VATRegistered: true, VATNumber: "4123456789", TaxNumber: "0123456789"},
		Currency:       "ZAR",
		Subtotal:       decimal.RequireFromString("20000.00"),
		VAT:            decimal.RequireFromString("3000.00"),
		Total:          decimal.RequireFromString("23000.00"),
		Checks: invoice.ComplianceChecks{
			ContractorStatusVerified: true,
			VerifiedAt:               now,
			RuleVersion:              "za-2026.1",
			EvaluatedFactors:         models.ControlTestFactors{HasOtherClients: models.FactYes, Supervised: models.FactNo},
			RiskLevel:                models.RiskLow,
		},
		Status:    invoice.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	})
	s.Require().NoError(err)
	return rec
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	rec := s.newRecord()
	s.Require().NoError(s.store.Create(ctx, rec))
	s.ErrorIs(s.store.Create(ctx, rec), sentinel.ErrConflict)

	found, err := s.store.FindByID(ctx, s.tenant, rec.ID())
	s.Require().NoError(err)
	s.True(found.Total().Equal(rec.Total()))
	s.Equal(models.FactYes, found.Checks().EvaluatedFactors.HasOtherClients)
	s.Equal(models.FactUnknown, found.Checks().EvaluatedFactors.FixedHours)

	_, err = s.store.FindByID(ctx, id.TenantID(uuid.New()), rec.ID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateOnlyTouchesDrafts() {
	ctx := context.Background()
	rec := s.newRecord()
	s.Require().NoError(s.store.Create(ctx, rec))
	s.Require().NoError(rec.Approve(time.Now()))
	s.Require().NoError(s.store.Update(ctx, rec))

	s.ErrorIs(s.store.Update(ctx, rec), sentinel.ErrInvalidState)
	s.ErrorIs(s.store.Update(ctx, s.newRecord()), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestAnnotationDedupe() {
	ctx := context.Background()
	rec := s.newRecord()
	s.Require().NoError(s.store.Create(ctx, rec))
	a := invoice.Annotation{
		ID:             uuid.NewString(),
		InvoiceID:      rec.ID(),
		DedupeKey:      invoice.DedupeKey(rec.ID(), rec.Classification(), "za-2026.2"),
		Kind:           invoice.AnnotationReconciliationWarning,
		Classification: rec.Classification(),
		Message:        "consultant is payroll only under za-2026.2",
		RuleVersion:    "za-2026.2",
		CreatedAt:      time.Now(),
	}
	s.Require().NoError(s.store.AppendAnnotation(ctx, a))

	a.ID = uuid.NewString()
	s.ErrorIs(s.store.AppendAnnotation(ctx, a), sentinel.ErrAlreadyUsed)

	found, err := s.store.FindByID(ctx, s.tenant, rec.ID())
	s.Require().NoError(err)
	s.Len(found.Annotations(), 1)
}

func (s *PostgresStoreSuite) TestTransactionRollback() {
	ctx := context.Background()
	rec := s.newRecord()
	runner := txcontext.NewSQLRunner(s.postgres.DB)

	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, rec); err != nil {
			return err
		}
		return sentinel.ErrUnavailable
	})
	s.ErrorIs(err, sentinel.ErrUnavailable)

	_, err = s.store.FindByID(ctx, s.tenant, rec.ID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListPage() {
	ctx := context.Background()
	for range 3 {
		s.Require().NoError(s.store.Create(ctx, s.newRecord()))
	}
	first, err := s.store.ListPage(ctx, id.InvoiceID{}, 2)
	s.Require().NoError(err)
	s.Require().Len(first, 2)
	for _, row := range first {
		s.NoError(row.Err)
	}

	rest, err := s.store.ListPage(ctx, first[1].ID, 2)
	s.Require().NoError(err)
	s.Len(rest, 1)
}

func (s *PostgresStoreSuite) TestListPageKeepsBrokenRowsInPlace() {
	ctx := context.Background()
	for range 2 {
		s.Require().NoError(s.store.Create(ctx, s.newRecord()))
	}
	badClass := s.newRecord()
	badFactors := s.newRecord()
	s.Require().NoError(s.store.Create(ctx, badClass))
	s.Require().NoError(s.store.Create(ctx, badFactors))
	_, err := s.postgres.DB.ExecContext(ctx,
		`UPDATE contractor_invoices SET classification = 'contractor' WHERE id = $1`, uuid.UUID(badClass.ID()))
	s.Require().NoError(err)
	_, err = s.postgres.DB.ExecContext(ctx,
		`UPDATE contractor_invoices SET evaluated_factors = '[]'::jsonb WHERE id = $1`, uuid.UUID(badFactors.ID()))
	s.Require().NoError(err)

	page, err := s.store.ListPage(ctx, id.InvoiceID{}, 10)
	s.Require().NoError(err)
	s.Require().Len(page, 4)

	broken := map[id.InvoiceID]bool{}
	for _, row := range page {
		if row.Err != nil {
			s.Nil(row.Record)
			broken[row.ID] = true
		}
	}
	s.Equal(map[id.InvoiceID]bool{badClass.ID(): true, badFactors.ID(): true}, broken)
}

func (s *PostgresStoreSuite) TestAdvisoriesRoundTrip() {
	ctx := context.Background()
	snap := s.newRecord().Snapshot()
	snap.Advisories = []string{"invoice subtotal exceeds the ZAR 1000000 compulsory VAT registration threshold"}
	rec, err := invoice.Rehydrate(snap)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, rec))

	found, err := s.store.FindByID(ctx, s.tenant, rec.ID())
	s.Require().NoError(err)
	s.Equal(snap.Advisories, found.Advisories())

	plain := s.newRecord()
	s.Require().NoError(s.store.Create(ctx, plain))
	found, err = s.store.FindByID(ctx, s.tenant, plain.ID())
	s.Require().NoError(err)
	s.Empty(found.Advisories())
}
