package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"klok/internal/compliance/models"
	"klok/internal/organization"
	id "klok/pkg/domain"
	dErrors "klok/pkg/domain-errors"
	"klok/pkg/platform/httputil"
	"klok/pkg/requestcontext"
)

// Service defines the organization operations the handler needs.
type Service interface {
	Onboard(ctx context.Context, in organization.Onboarding) (*organization.Organization, error)
	Get(ctx context.Context, orgID id.OrganizationID) (*organization.Organization, error)
	AddOwner(ctx context.Context, orgID id.OrganizationID, owner models.Owner) (*organization.Organization, error)
	AddDocument(ctx context.Context, orgID id.OrganizationID, doc models.Document) (*organization.Organization, error)
	UpdateRevenue(ctx context.Context, orgID id.OrganizationID, revenue decimal.Decimal, employeeCount *int) (*organization.Organization, error)
	RecalculateRisk(ctx context.Context, orgID id.OrganizationID) (*organization.Organization, error)
	Requirements(ctx context.Context, orgID id.OrganizationID) (organization.Checklist, error)
	DueForReview(ctx context.Context, limit int) ([]*organization.Organization, error)
}

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

func (h *Handler) Register(r chi.Router) {
	r.Post("/organizations", h.HandleOnboard)
	r.Get("/organizations/review-due", h.HandleReviewDue)
	r.Get("/organizations/{id}", h.HandleGet)
	r.Post("/organizations/{id}/owners", h.HandleAddOwner)
	r.Post("/organizations/{id}/documents", h.HandleAddDocument)
	r.Put("/organizations/{id}/revenue", h.HandleUpdateRevenue)
	r.Get("/organizations/{id}/requirements", h.HandleRequirements)
	r.Post("/organizations/{id}/risk/recalculate", h.HandleRecalculate)
}

// HandleOnboard handles POST /organizations.
func (h *Handler) HandleOnboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[OnboardRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	org, err := h.service.Onboard(ctx, req.ToOnboarding())
	if err != nil {
		h.logError(ctx, "organization onboarding failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromOrganization(org))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.organizationID(w, r)
	if !ok {
		return
	}
	org, err := h.service.Get(r.Context(), orgID)
	h.respond(w, r, org, err, "organization lookup failed")
}

func (h *Handler) HandleAddOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.organizationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[OwnerRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	org, err := h.service.AddOwner(ctx, orgID, req.toModel())
	h.respond(w, r, org, err, "adding owner failed")
}

func (h *Handler) HandleAddDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.organizationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DocumentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	org, err := h.service.AddDocument(ctx, orgID, req.toModel())
	h.respond(w, r, org, err, "adding document failed")
}

func (h *Handler) HandleUpdateRevenue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.organizationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RevenueRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	org, err := h.service.UpdateRevenue(ctx, orgID, *req.Revenue, req.EmployeeCount)
	h.respond(w, r, org, err, "revenue update failed")
}

func (h *Handler) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.organizationID(w, r)
	if !ok {
		return
	}
	org, err := h.service.RecalculateRisk(r.Context(), orgID)
	h.respond(w, r, org, err, "risk recalculation failed")
}

// HandleRequirements handles GET /organizations/{id}/requirements.
func (h *Handler) HandleRequirements(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.organizationID(w, r)
	if !ok {
		return
	}
	checklist, err := h.service.Requirements(r.Context(), orgID)
	if err != nil {
		h.logError(r.Context(), "requirement lookup failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, checklist)
}

// HandleReviewDue handles GET /organizations/review-due?limit=N.
func (h *Handler) HandleReviewDue(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	orgs, err := h.service.DueForReview(r.Context(), limit)
	if err != nil {
		h.logError(r.Context(), "review listing failed", err)
		httputil.WriteError(w, err)
		return
	}
	resp := ReviewDueResponse{Organizations: make([]OrganizationResponse, 0, len(orgs))}
	for _, o := range orgs {
		resp.Organizations = append(resp.Organizations, FromOrganization(o))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, org *organization.Organization, err error, msg string) {
	if err != nil {
		h.logError(r.Context(), msg, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOrganization(org))
}

func (h *Handler) organizationID(w http.ResponseWriter, r *http.Request) (id.OrganizationID, bool) {
	orgID, err := id.ParseOrganizationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid organization id"))
		return id.OrganizationID{}, false
	}
	return orgID, true
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", requestcontext.TenantID(ctx),
		"error", err,
	}
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
		return
	}
	h.logger.InfoContext(ctx, msg, attrs...)
}
