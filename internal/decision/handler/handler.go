package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"klok/internal/compliance/models"
	"klok/internal/compliance/providers"
	"klok/internal/decision"
	dErrors "klok/pkg/domain-errors"
	"klok/pkg/platform/httputil"
	"klok/pkg/requestcontext"
)

// Service defines the decision operations the handler needs.
type Service interface {
	Evaluate(ctx context.Context, req decision.Request) (decision.Decision, error)
	Recommend(ctx context.Context, jurisdiction string, factors models.ControlTestFactors) (decision.Recommendation, error)
	Compliance(ctx context.Context, jurisdiction, classification string) (models.ClassificationCompliance, error)
	Jurisdictions(ctx context.Context) []providers.Capabilities
}

// Handler wires classification and compliance endpoints to the decision service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the endpoints on an authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/classification/check-eligibility", h.HandleCheckEligibility)
	r.Post("/classification/recommend", h.HandleRecommend)
	r.Get("/compliance/jurisdictions", h.HandleJurisdictions)
	r.Get("/compliance/{classification}", h.HandleCompliance)
}

// HandleCheckEligibility handles POST /classification/check-eligibility.
// A blocked decision is a successful check and returns 200.
func (h *Handler) HandleCheckEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[CheckEligibilityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	d, err := h.service.Evaluate(ctx, decision.Request{
		Jurisdiction:   req.Jurisdiction,
		Classification: req.Classification,
		Factors:        req.Factors,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "eligibility check failed",
			"request_id", requestID,
			"jurisdiction", req.Jurisdiction,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "eligibility checked",
		"request_id", requestID,
		"tenant_id", requestcontext.TenantID(ctx),
		"jurisdiction", d.Jurisdiction,
		"classification", req.Classification,
		"decision", d.Outcome,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromDecision(d))
}

// HandleRecommend handles POST /classification/recommend.
func (h *Handler) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RecommendRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rec, err := h.service.Recommend(ctx, req.Jurisdiction, req.Factors)
	if err != nil {
		h.logger.ErrorContext(ctx, "recommendation failed",
			"request_id", requestID,
			"jurisdiction", req.Jurisdiction,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecommendation(rec))
}

// HandleCompliance handles GET /compliance/{classification}?jurisdiction=ZA.
func (h *Handler) HandleCompliance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	jurisdiction := strings.TrimSpace(r.URL.Query().Get("jurisdiction"))
	if jurisdiction == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "jurisdiction query parameter is required"))
		return
	}

	cc, err := h.service.Compliance(ctx, jurisdiction, chi.URLParam(r, "classification"))
	if err != nil {
		h.logger.WarnContext(ctx, "compliance lookup failed",
			"request_id", requestID,
			"jurisdiction", jurisdiction,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cc)
}

// HandleJurisdictions handles GET /compliance/jurisdictions.
func (h *Handler) HandleJurisdictions(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, JurisdictionsResponse{
		Jurisdictions: h.service.Jurisdictions(r.Context()),
	})
}
