package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"klok/internal/compliance/providers"
	"klok/internal/compliance/providers/za"
	"klok/internal/decision"
	httpapi "klok/internal/http"
	"klok/internal/invoice"
	invoicememory "klok/internal/invoice/store/memory"
	jwttoken "klok/internal/jwt_token"
	"klok/internal/organization"
	orgmemory "klok/internal/organization/store/memory"
	"klok/internal/platform/metrics"
	"klok/internal/ratelimit"
	"klok/internal/reconciliation"
	id "klok/pkg/domain"
	"klok/pkg/platform/middleware/admin"
)

const (
	adminToken   = "operator-secret"
	tenantBudget = 3
)

type stubReconciler struct {
	sum reconciliation.Summary
	err error
}

func (r *stubReconciler) RunOnce(context.Context) (reconciliation.Summary, error) {
	return r.sum, r.err
}

type RouterSuite struct {
	suite.Suite
	jwt        *jwttoken.JWTService
	reconciler *stubReconciler
	health     map[string]httpapi.HealthCheck
	router     http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	reg, err := providers.NewRegistry(za.MustNew(za.DefaultConfig()))
	s.Require().NoError(err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	decisions := decision.NewService(reg, decision.WithLogger(logger))
	invoices := invoice.NewService(invoicememory.NewInMemory(), invoice.NewGate(decisions), invoice.WithLogger(logger))
	orgs := organization.NewService(orgmemory.NewInMemory(), reg, organization.WithLogger(logger))

	hash, err := admin.HashToken(adminToken)
	s.Require().NoError(err)

	s.jwt = jwttoken.NewJWTService("router-test-key", "klok", "klok-api")
	s.reconciler = &stubReconciler{}
	s.health = map[string]httpapi.HealthCheck{}
	s.router = httpapi.NewRouter(httpapi.Dependencies{
		Logger:         logger,
		Validator:      jwttoken.NewMiddlewareAdapter(s.jwt),
		AdminTokenHash: hash,
		Metrics:        metrics.NewWithRegistry(prometheus.NewRegistry()),
		RateLimit:      ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Limit{Requests: tenantBudget, Window: time.Minute}, logger),
		Decisions:      decisions,
		Invoices:       invoices,
		Organizations:  orgs,
		Reconciler:     s.reconciler,
		Providers:      reg,
		Health:         s.health,
	})
}

func (s *RouterSuite) bearer() string {
	token, err := s.jwt.GenerateAccessToken(id.UserID(uuid.New()), id.TenantID(uuid.New()), time.Minute)
	s.Require().NoError(err)
	return "Bearer " + token
}

func (s *RouterSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) TestHealth() {
	s.Run("ok without dependencies", func() {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("a failing dependency degrades", func() {
		s.health["redis"] = func(context.Context) error { return errors.New("connection refused") }
		defer delete(s.health, "redis")

		rec := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
		s.Equal(http.StatusServiceUnavailable, rec.Code)

		var body map[string]any
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
		s.Equal("degraded", body["status"])
	})
}

func (s *RouterSuite) TestV1RequiresBearerToken() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/v1/compliance/jurisdictions", nil))
	s.Equal(http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/compliance/jurisdictions", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	s.Equal(http.StatusUnauthorized, s.do(req).Code)
}

func (s *RouterSuite) TestV1ServesAuthenticatedRequests() {
	req := httptest.NewRequest(http.MethodGet, "/v1/compliance/jurisdictions", nil)
	req.Header.Set("Authorization", s.bearer())
	rec := s.do(req)
	s.Equal(http.StatusOK, rec.Code)
	s.NotEmpty(rec.Header().Get("X-Request-ID"))
}

func (s *RouterSuite) TestV1IsRateLimitedPerTenant() {
	bearer := s.bearer()
	get := func(auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/compliance/jurisdictions", nil)
		req.Header.Set("Authorization", auth)
		return s.do(req)
	}
	for range tenantBudget {
		s.Require().Equal(http.StatusOK, get(bearer).Code)
	}
	rec := get(bearer)
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.NotEmpty(rec.Header().Get("Retry-After"))

	s.Equal(http.StatusOK, get(s.bearer()).Code, "other tenants keep their budget")

	adminReq := httptest.NewRequest(http.MethodGet, "/admin/providers", nil)
	adminReq.Header.Set(admin.HeaderAdminToken, adminToken)
	s.Equal(http.StatusOK, s.do(adminReq).Code, "operator routes are not tenant limited")
}

func (s *RouterSuite) TestOrganizationsAreTenantScoped() {
	body, err := json.Marshal(map[string]any{
		"name":            "Acme Holdings",
		"jurisdiction":    "ZA",
		"registration_no": "2015/123456/07",
		"org_type":        "corporation",
	})
	s.Require().NoError(err)

	req := httptest.NewRequest(http.MethodPost, "/v1/organizations", bytes.NewReader(body))
	req.Header.Set("Authorization", s.bearer())
	req.Header.Set("Content-Type", "application/json")
	rec := s.do(req)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&created))

	other := httptest.NewRequest(http.MethodGet, "/v1/organizations/"+created.ID, nil)
	other.Header.Set("Authorization", s.bearer())
	s.Equal(http.StatusNotFound, s.do(other).Code)
}

func (s *RouterSuite) TestAdminRequiresToken() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/admin/providers", nil))
	s.Equal(http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/providers", nil)
	req.Header.Set("Authorization", s.bearer())
	s.Equal(http.StatusUnauthorized, s.do(req).Code, "a tenant token is not an admin token")
}

func (s *RouterSuite) TestAdminListsProviders() {
	req := httptest.NewRequest(http.MethodGet, "/admin/providers", nil)
	req.Header.Set(admin.HeaderAdminToken, adminToken)
	rec := s.do(req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var body struct {
		Providers []providers.Capabilities `json:"providers"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	s.Require().Len(body.Providers, 1)
	s.Equal("ZA", body.Providers[0].Code)
	s.Equal(za.RuleVersion, body.Providers[0].RuleVersion)
}

func (s *RouterSuite) TestAdminRunsReconciliation() {
	s.Run("returns the run summary", func() {
		s.reconciler.sum = reconciliation.Summary{Reviewed: 12, Violations: 2, Updated: 2}
		s.reconciler.err = nil

		req := httptest.NewRequest(http.MethodPost, "/admin/reconciliation/run", nil)
		req.Header.Set(admin.HeaderAdminToken, adminToken)
		rec := s.do(req)
		s.Require().Equal(http.StatusOK, rec.Code)

		var body map[string]any
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
		s.EqualValues(12, body["reviewed"])
		s.EqualValues(2, body["violations"])
	})

	s.Run("conflicts with a run in progress", func() {
		s.reconciler.err = reconciliation.ErrRunInProgress

		req := httptest.NewRequest(http.MethodPost, "/admin/reconciliation/run", nil)
		req.Header.Set(admin.HeaderAdminToken, adminToken)
		s.Equal(http.StatusConflict, s.do(req).Code)
	})
}
