package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"klok/internal/invoice"
	id "klok/pkg/domain"
	dErrors "klok/pkg/domain-errors"
	"klok/pkg/platform/httputil"
	"klok/pkg/requestcontext"
)

// Service defines the invoice operations the handler needs.
type Service interface {
	Validate(ctx context.Context, d invoice.Draft) (invoice.Evaluation, error)
	Create(ctx context.Context, d invoice.Draft) (*invoice.Record, invoice.Evaluation, error)
	Get(ctx context.Context, invoiceID id.InvoiceID) (*invoice.Record, error)
	Reclassify(ctx context.Context, invoiceID id.InvoiceID, a invoice.Amendment) (*invoice.Record, invoice.Evaluation, error)
	Approve(ctx context.Context, invoiceID id.InvoiceID) (*invoice.Record, error)
}

// Handler exposes contractor invoices over HTTP.
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
	r.Post("/invoices", h.HandleCreate)
	r.Post("/invoices/validate", h.HandleValidate)
	r.Get("/invoices/{id}", h.HandleGet)
	r.Post("/invoices/{id}/reclassify", h.HandleReclassify)
	r.Post("/invoices/{id}/approve", h.HandleApprove)
}

// HandleValidate handles POST /invoices/validate. It answers with the
// status Create would have returned, without persisting anything.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateInvoiceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	ev, err := h.service.Validate(ctx, req.ToDraft())
	if err != nil {
		h.logger.InfoContext(ctx, "invoice validation rejected",
			"request_id", requestID,
			"classification", req.Classification,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEvaluation(ev))
}

// HandleCreate handles POST /invoices.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateInvoiceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	rec, _, err := h.service.Create(ctx, req.ToDraft())
	if err != nil {
		h.logError(ctx, "invoice creation failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromRecord(rec))
}

// HandleGet handles GET /invoices/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Get(r.Context(), invoiceID)
	if err != nil {
		h.logError(r.Context(), "invoice lookup failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(rec))
}

// HandleReclassify handles POST /invoices/{id}/reclassify.
func (h *Handler) HandleReclassify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	invoiceID, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReclassifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	rec, _, err := h.service.Reclassify(ctx, invoiceID, req.ToAmendment())
	if err != nil {
		h.logError(ctx, "invoice reclassification failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromRecord(rec))
}

// HandleApprove handles POST /invoices/{id}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Approve(r.Context(), invoiceID)
	if err != nil {
		h.logError(r.Context(), "invoice approval failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(rec))
}

func (h *Handler) invoiceID(w http.ResponseWriter, r *http.Request) (id.InvoiceID, bool) {
	invoiceID, err := id.ParseInvoiceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid invoice id"))
		return id.InvoiceID{}, false
	}
	return invoiceID, true
}

// logError logs client errors at info and everything else at error.
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
