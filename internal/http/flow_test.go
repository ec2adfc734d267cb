package httpapi_test

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"klok/internal/compliance/providers"
	"klok/internal/compliance/providers/za"
	"klok/internal/decision"
	httpapi "klok/internal/http"
	"klok/internal/invoice"
	invoicehandler "klok/internal/invoice/handler"
	invoicememory "klok/internal/invoice/store/memory"
	jwttoken "klok/internal/jwt_token"
	"klok/internal/organization"
	orgmemory "klok/internal/organization/store/memory"
	"klok/internal/platform/metrics"
	"klok/internal/reconciliation"
	id "klok/pkg/domain"
	"klok/pkg/platform/audit/publishers/compliance"
	auditmemory "klok/pkg/platform/audit/store/memory"
	"klok/pkg/testutil"
)

func invoiceBody(orgID, classification string) map[string]any {
	return map[string]any{
		"organization_id": orgID,
		"contractor_id":   uuid.NewString(),
		"classification":  classification,
		"factors": map[string]any{
			"fixed_workplace":   false,
			"fixed_hours":       false,
			"supervised":        false,
			"has_other_clients": true,
		},
		"tax_info": map[string]any{
			"country":        "ZA",
			"vat_registered": true,
			"vat_number":     "4123456789",
			"tax_number":     "0123456789",
		},
		"currency": "ZAR",
		"subtotal": "20000",
	}
}

func TestInvoiceLifecycleThroughRouter(t *testing.T) {
	reg, err := providers.NewRegistry(za.MustNew(za.DefaultConfig()))
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := invoicememory.NewInMemory()
	publisher := compliance.New(auditmemory.NewInMemoryStore())
	decisions := decision.NewService(reg, decision.WithLogger(logger))
	job := reconciliation.NewJob(store, decisions, reconciliation.WithLogger(logger))

	jwt := jwttoken.NewJWTService("flow-test-key", "klok", "klok-api")
	token, err := jwt.GenerateAccessToken(id.UserID(uuid.New()), id.TenantID(uuid.New()), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	router := httpapi.NewRouter(httpapi.Dependencies{
		Logger:        logger,
		Validator:     jwttoken.NewMiddlewareAdapter(jwt),
		Metrics:       metrics.NewWithRegistry(prometheus.NewRegistry()),
		Decisions:     decisions,
		Invoices:      invoice.NewService(store, invoice.NewGate(decisions), invoice.WithLogger(logger), invoice.WithAuditPublisher(publisher)),
		Organizations: organization.NewService(orgmemory.NewInMemory(), reg, organization.WithLogger(logger)),
		Reconciler:    reconciliation.NewWorker(job, nil, time.Hour, logger),
		Providers:     reg,
	})
	authed := func(req *http.Request) *http.Request {
		req.Header.Set("Authorization", "Bearer "+token)
		return req
	}
	orgID := uuid.NewString()

	testutil.Given(t, "an authenticated tenant", func(t *testing.T) {
		testutil.When(t, "a freelancer invoice is created", func(t *testing.T) {
			rr := testutil.DoRequest(router, authed(testutil.NewJSONRequest(t, http.MethodPost, "/v1/invoices", invoiceBody(orgID, "freelancer"))))
			testutil.AssertStatus(t, rr, http.StatusCreated)
			created := testutil.UnmarshalResponse[invoicehandler.InvoiceResponse](t, rr)

			testutil.Then(t, "the invoice carries VAT and its compliance stamp", func(t *testing.T) {
				if created.VAT.IsZero() {
					t.Fatalf("expected VAT on a VAT-registered contractor, got %s", created.VAT)
				}
				if created.Compliance.RuleVersion != za.RuleVersion {
					t.Fatalf("expected rule version %s, got %s", za.RuleVersion, created.Compliance.RuleVersion)
				}
			})

			testutil.Then(t, "it can be fetched and approved", func(t *testing.T) {
				rr := testutil.DoRequest(router, authed(testutil.NewRequest(t, http.MethodGet, "/v1/invoices/"+created.ID)))
				testutil.AssertStatusOK(t, rr)

				rr = testutil.DoRequest(router, authed(testutil.NewRequest(t, http.MethodPost, "/v1/invoices/"+created.ID+"/approve")))
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONHasKey(t, rr, "status")
			})
		})

		testutil.When(t, "an employee classification is invoiced", func(t *testing.T) {
			rr := testutil.DoRequest(router, authed(testutil.NewJSONRequest(t, http.MethodPost, "/v1/invoices", invoiceBody(orgID, "temporary_employee"))))

			testutil.Then(t, "it is a legal violation", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusUnprocessableEntity, "legal_violation")
			})
		})

		testutil.When(t, "the invoice id is malformed", func(t *testing.T) {
			rr := testutil.DoRequest(router, authed(testutil.NewRequest(t, http.MethodGet, "/v1/invoices/not-an-id")))

			testutil.Then(t, "it is a bad request", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusBadRequest)
			})
		})
	})
}
