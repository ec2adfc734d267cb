package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"klok/internal/compliance/providers"
	"klok/internal/reconciliation"
	dErrors "klok/pkg/domain-errors"
	"klok/pkg/platform/httputil"
	"klok/pkg/requestcontext"
)

// Reconciler runs one reconciliation pass on demand. *reconciliation.Worker
// satisfies it.
type Reconciler interface {
	RunOnce(ctx context.Context) (reconciliation.Summary, error)
}

// ProviderLister exposes every registered jurisdiction. *providers.Registry
// satisfies it.
type ProviderLister interface {
	All() []providers.Provider
}

type adminHandler struct {
	reconciler Reconciler
	providers  ProviderLister
	logger     *slog.Logger
}

func (h *adminHandler) Register(r chi.Router) {
	r.Post("/reconciliation/run", h.HandleRunReconciliation)
	r.Get("/providers", h.HandleListProviders)
}

type reconciliationResponse struct {
	Reviewed   int    `json:"reviewed"`
	Violations int    `json:"violations"`
	Updated    int    `json:"updated"`
	Skipped    int    `json:"skipped"`
	Errors     int    `json:"errors"`
	Duration   string `json:"duration"`
}

// HandleRunReconciliation handles POST /admin/reconciliation/run. The run
// uses the request context, so a client disconnect cancels it.
func (h *adminHandler) HandleRunReconciliation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reconciler == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "reconciliation is disabled"))
		return
	}

	sum, err := h.reconciler.RunOnce(ctx)
	if err != nil {
		if errors.Is(err, reconciliation.ErrRunInProgress) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "a reconciliation run is already in progress"))
			return
		}
		h.logger.ErrorContext(ctx, "manual reconciliation failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "reconciliation failed"))
		return
	}

	h.logger.InfoContext(ctx, "manual reconciliation completed",
		"request_id", requestcontext.RequestID(ctx),
		"reviewed", sum.Reviewed,
		"violations", sum.Violations,
	)
	httputil.WriteJSON(w, http.StatusOK, reconciliationResponse{
		Reviewed:   sum.Reviewed,
		Violations: sum.Violations,
		Updated:    sum.Updated,
		Skipped:    sum.Skipped,
		Errors:     sum.Errors,
		Duration:   sum.Duration.Round(time.Millisecond).String(),
	})
}

type providersResponse struct {
	Providers []providers.Capabilities `json:"providers"`
}

// HandleListProviders handles GET /admin/providers, ordered by code.
func (h *adminHandler) HandleListProviders(w http.ResponseWriter, _ *http.Request) {
	resp := providersResponse{Providers: []providers.Capabilities{}}
	if h.providers != nil {
		for _, p := range h.providers.All() {
			resp.Providers = append(resp.Providers, p.Capabilities())
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthHandler runs every check with a short deadline. Any failure turns
// the response into a 503.
func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
