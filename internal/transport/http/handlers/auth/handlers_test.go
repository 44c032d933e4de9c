package authhandler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refpay/internal/domain/auth"
	"refpay/internal/transport/http/middleware"
)

func newRouter(t *testing.T, email, password string) http.Handler {
	t.Helper()
	hash := ""
	if password != "" {
		var err error
		hash, err = auth.HashPassword(password)
		require.NoError(t, err)
	}
	svc := auth.NewService(email, hash, "secret", time.Hour)
	router := chi.NewRouter()
	router.Use(middleware.Auth(svc))
	NewHandler(svc).RegisterRoutes(router)
	return router
}

func TestLoginAndMe(t *testing.T) {
	router := newRouter(t, "ops@example.com", "pw")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"ops@example.com","password":"pw"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data auth.Token `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.AccessToken)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+body.Data.AccessToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ops@example.com")
}

func TestLoginFailures(t *testing.T) {
	router := newRouter(t, "ops@example.com", "pw")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"ops@example.com","password":"bad"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginDisabled(t *testing.T) {
	router := newRouter(t, "", "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"a","password":"b"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
