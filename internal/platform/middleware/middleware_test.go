package middleware_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landledger/internal/platform/middleware"
	"landledger/internal/registrar/secrets"
	id "landledger/pkg/domain"
	"landledger/pkg/requestcontext"
)

type stubValidator struct {
	claims *middleware.Claims
	err    error
}

func (s *stubValidator) ValidateToken(string) (*middleware.Claims, error) {
	return s.claims, s.err
}

func TestRequestIDGeneratesAndEchoes(t *testing.T) {
	var seen string
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
		assert.False(t, requestcontext.Now(r.Context()).IsZero())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	// A caller-supplied ID is kept.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", seen)
}

func TestRequireAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	logger := slog.Default()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	h := middleware.RequireAuth(&stubValidator{err: assert.AnError}, logger)(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthResolvesCaller(t *testing.T) {
	caller := id.UserID(uuid.New())
	validator := &stubValidator{claims: &middleware.Claims{UserID: caller, Role: requestcontext.RoleGovernment}}

	var gotUser id.UserID
	var gotRole requestcontext.Role
	h := middleware.RequireAuth(validator, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = requestcontext.UserID(r.Context())
		gotRole = requestcontext.CallerRole(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, caller, gotUser)
	assert.Equal(t, requestcontext.RoleGovernment, gotRole)
}

func TestRegistrarKeyAuth(t *testing.T) {
	key, err := secrets.Generate()
	require.NoError(t, err)
	hash, err := secrets.Hash(key)
	require.NoError(t, err)
	serviceID := id.UserID(uuid.New())

	var gotUser id.UserID
	var gotRole requestcontext.Role
	chain := middleware.RegistrarKeyAuth(hash, serviceID, slog.Default())(
		middleware.RequireAuth(&stubValidator{err: assert.AnError}, slog.Default())(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = requestcontext.UserID(r.Context())
				gotRole = requestcontext.CallerRole(r.Context())
			}),
		),
	)

	t.Run("valid key bypasses bearer auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/parcels", nil)
		req.Header.Set("X-Registrar-Key", key)
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, serviceID, gotUser)
		assert.Equal(t, requestcontext.RoleRegistrar, gotRole)
	})

	t.Run("wrong key is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/parcels", nil)
		req.Header.Set("X-Registrar-Key", "wrong")
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("no key falls through to bearer auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/parcels", nil)
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	gate := middleware.RequireRole(requestcontext.RoleGovernment)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(role requestcontext.Role) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(requestcontext.WithRole(req.Context(), role))
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, serve(requestcontext.RoleGovernment))
	assert.Equal(t, http.StatusNoContent, serve(requestcontext.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, serve(requestcontext.RoleCitizen))
}

func TestContentTypeJSON(t *testing.T) {
	h := middleware.ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Content-Type", "text/xml")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
