package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"klok/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return s.claims, s.err
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	actor := uuid.New()
	tenant := uuid.New()

	var seenActor, seenTenant string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenActor = requestcontext.ActorID(r.Context()).String()
		seenTenant = requestcontext.TenantID(r.Context()).String()
		w.WriteHeader(http.StatusOK)
	})

	t.Run("missing header", func(t *testing.T) {
		h := RequireAuth(stubValidator{}, logger)(next)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/invoices", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		h := RequireAuth(stubValidator{err: errors.New("bad")}, logger)(next)
		r := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
		r.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-uuid tenant claim", func(t *testing.T) {
		h := RequireAuth(stubValidator{claims: &JWTClaims{ActorID: actor.String(), TenantID: "acme"}}, logger)(next)
		r := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
		r.Header.Set("Authorization", "Bearer tok")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token populates context", func(t *testing.T) {
		h := RequireAuth(stubValidator{claims: &JWTClaims{ActorID: actor.String(), TenantID: tenant.String()}}, logger)(next)
		r := httptest.NewRequest(http.MethodGet, "/v1/invoices", nil)
		r.Header.Set("Authorization", "Bearer tok")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, actor.String(), seenActor)
		assert.Equal(t, tenant.String(), seenTenant)
	})
}
