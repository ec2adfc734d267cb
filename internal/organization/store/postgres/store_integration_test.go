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
	"klok/internal/organization"
	"klok/internal/organization/store/postgres"
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
	now      time.Time
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
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "organization_documents", "organizations"))
	s.tenant = id.TenantID(uuid.New())
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) newOrg(level models.RiskLevel) *organization.Organization {
	revenue := decimal.RequireFromString("2500000")
	employees := 12
	bank := true
	o := &organization.Organization{
		ID:             id.OrganizationID(uuid.New()),
		TenantID:       s.tenant,
		Name:           "Acme Holdings",
		Jurisdiction:   "ZA",
		RegistrationNo: "2015/123456/07",
		TaxNumber:      "0123456789",
		Profile: models.OrganizationProfile{
			OrgType:       models.OrgCorporation,
			IndustryCode:  "software",
			Revenue:       &revenue,
			EmployeeCount: &employees,
			Region:        "GP",
			BankVerified:  &bank,
			Owners: []models.Owner{
				{Name: "A. Founder", OwnershipPct: decimal.NewFromInt(60)},
			},
			Documents: []models.Document{{Type: "cipc_registration", Verified: true}},
		},
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	o.ApplyRisk(models.RiskProfile{
		OverallRisk: level,
		Scores:      models.UniformScores(5),
		Reasons:     []string{"bank account verified (financial -1)"},
	}, "za-2026.1", s.now)
	return o
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	o := s.newOrg(models.RiskMedium)
	s.Require().NoError(s.store.Create(ctx, o))

	found, err := s.store.FindByID(ctx, s.tenant, o.ID)
	s.Require().NoError(err)
	s.Equal(o.Name, found.Name)
	s.Equal(o.RegistrationNo, found.RegistrationNo)
	s.True(found.Profile.Revenue.Equal(*o.Profile.Revenue))
	s.Equal(12, *found.Profile.EmployeeCount)
	s.Require().Len(found.Profile.Owners, 1)
	s.True(found.Profile.Owners[0].OwnershipPct.Equal(decimal.NewFromInt(60)))
	s.Equal([]models.Document{{Type: "cipc_registration", Verified: true}}, found.Profile.Documents)
	s.Require().NotNil(found.Risk)
	s.Equal(models.RiskMedium, found.Risk.Profile.OverallRisk)
	s.True(found.Risk.ReviewRequiredAt.Equal(o.Risk.ReviewRequiredAt))

	_, err = s.store.FindByID(ctx, id.TenantID(uuid.New()), o.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Create(ctx, o), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestUpdateUpsertsDocuments() {
	ctx := context.Background()
	o := s.newOrg(models.RiskLow)
	o.Profile.Documents = []models.Document{{Type: "cipc_registration"}}
	s.Require().NoError(s.store.Create(ctx, o))

	s.Require().NoError(o.SubmitDocument(models.Document{Type: "cipc_registration", Verified: true}, s.now))
	s.Require().NoError(o.SubmitDocument(models.Document{Type: "share_register"}, s.now.Add(time.Second)))
	s.Require().NoError(s.store.Update(ctx, o))

	found, err := s.store.FindByID(ctx, s.tenant, o.ID)
	s.Require().NoError(err)
	s.Equal([]models.Document{
		{Type: "cipc_registration", Verified: true},
		{Type: "share_register"},
	}, found.Profile.Documents)

	s.ErrorIs(s.store.Update(ctx, s.newOrg(models.RiskLow)), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestRollbackDiscardsDocuments() {
	ctx := context.Background()
	o := s.newOrg(models.RiskLow)
	s.Require().NoError(s.store.Create(ctx, o))

	runner := txcontext.NewSQLRunner(s.postgres.DB)
	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		locked, err := s.store.FindByID(ctx, s.tenant, o.ID)
		if err != nil {
			return err
		}
		if err := locked.SubmitDocument(models.Document{Type: "share_register"}, s.now); err != nil {
			return err
		}
		if err := s.store.Update(ctx, locked); err != nil {
			return err
		}
		return sentinel.ErrUnavailable
	})
	s.ErrorIs(err, sentinel.ErrUnavailable)

	found, err := s.store.FindByID(ctx, s.tenant, o.ID)
	s.Require().NoError(err)
	s.Len(found.Profile.Documents, 1)
}

func (s *PostgresStoreSuite) TestListReviewDue() {
	ctx := context.Background()
	critical := s.newOrg(models.RiskCritical)
	high := s.newOrg(models.RiskHigh)
	low := s.newOrg(models.RiskLow)
	for _, o := range []*organization.Organization{low, high, critical} {
		s.Require().NoError(s.store.Create(ctx, o))
	}

	due, err := s.store.ListReviewDue(ctx, s.tenant, s.now.Add(100*24*time.Hour), 10)
	s.Require().NoError(err)
	s.Require().Len(due, 2)
	s.Equal(critical.ID, due[0].ID)
	s.Equal(high.ID, due[1].ID)
	s.NotEmpty(due[0].Profile.Documents)
}
