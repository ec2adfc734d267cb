// Package httpapi assembles the HTTP surface: tenant-scoped /v1 routes behind
// bearer auth, operator routes behind the admin token, plus health and metrics.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	decisionhandler "klok/internal/decision/handler"
	invoicehandler "klok/internal/invoice/handler"
	orghandler "klok/internal/organization/handler"
	"klok/internal/platform/metrics"
	"klok/internal/ratelimit"
	"klok/pkg/platform/middleware/admin"
	"klok/pkg/platform/middleware/auth"
	"klok/pkg/platform/middleware/metadata"
	"klok/pkg/platform/middleware/request"
	"klok/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies are the collaborators the router mounts. Reconciler may be nil
// when the reconciliation worker is disabled; a nil RateLimit leaves /v1 unthrottled.
type Dependencies struct {
	Logger         *slog.Logger
	Validator      auth.JWTValidator
	AdminTokenHash string
	Metrics        *metrics.Metrics
	RateLimit      *ratelimit.Middleware

	Decisions     decisionhandler.Service
	Invoices      invoicehandler.Service
	Organizations orghandler.Service
	Reconciler    Reconciler
	Providers     ProviderLister

	Health map[string]HealthCheck
}

// NewRouter wires every route. Request ID, client metadata and request time
// are set before auth so rejected requests are still traceable.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/healthz", healthHandler(deps.Health, logger))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.Validator, logger))
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Tenant)
		}
		decisionhandler.New(deps.Decisions, logger).Register(r)
		invoicehandler.New(deps.Invoices, logger).Register(r)
		orghandler.New(deps.Organizations, logger).Register(r)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(admin.RequireAdminToken(deps.AdminTokenHash, logger))
		a := &adminHandler{reconciler: deps.Reconciler, providers: deps.Providers, logger: logger}
		a.Register(r)
	})

	return r
}
