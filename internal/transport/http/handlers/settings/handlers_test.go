package settingshandler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refpay/internal/domain/payroll"
)

type fakeSettings struct {
	globals payroll.GlobalSettings
	rates   map[string]payroll.CategoryRate
}

func (f *fakeSettings) Globals(context.Context) (payroll.GlobalSettings, error) {
	return f.globals, nil
}

func (f *fakeSettings) UpdateGlobals(_ context.Context, settings payroll.GlobalSettings) (payroll.GlobalSettings, error) {
	if err := payroll.ValidateGlobals(settings); err != nil {
		return payroll.GlobalSettings{}, err
	}
	f.globals = settings
	return settings, nil
}

func (f *fakeSettings) ListRates(context.Context) ([]payroll.CategoryRate, error) {
	var out []payroll.CategoryRate
	for _, rate := range f.rates {
		out = append(out, rate)
	}
	return out, nil
}

func (f *fakeSettings) UpsertRate(_ context.Context, rate payroll.CategoryRate) (payroll.CategoryRate, error) {
	f.rates[payroll.CategoryKey(rate.Category)] = rate
	return rate, nil
}

func (f *fakeSettings) DeleteRate(_ context.Context, category string) error {
	key := payroll.CategoryKey(category)
	if _, ok := f.rates[key]; !ok {
		return payroll.ErrRateNotFound
	}
	delete(f.rates, key)
	return nil
}

func setup() (*fakeSettings, http.Handler) {
	fake := &fakeSettings{
		globals: payroll.GlobalSettings{HaciendaTaxRate: 0.1, AdminFeePerGame: 1},
		rates:   map[string]payroll.CategoryRate{},
	}
	router := chi.NewRouter()
	NewHandler(fake).RegisterRoutes(router)
	return fake, router
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, bytes.NewBufferString(body)))
	return rec
}

func TestGlobals(t *testing.T) {
	fake, router := setup()

	rec := do(router, http.MethodGet, "/settings/globals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"haciendaTaxRate":0.1`)

	rec = do(router, http.MethodPut, "/settings/globals", `{"haciendaTaxRate":0.15,"depositFee":2,"adminFeePerGame":1.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.15, fake.globals.HaciendaTaxRate)

	rec = do(router, http.MethodPut, "/settings/globals", `{"haciendaTaxRate":1.5,"depositFee":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "haciendaTaxRate") && strings.Contains(body, "depositFee"))
	assert.Equal(t, 0.15, fake.globals.HaciendaTaxRate)
}

func TestRates(t *testing.T) {
	fake, router := setup()

	rec := do(router, http.MethodGet, "/settings/rates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)

	rec = do(router, http.MethodPut, "/settings/rates", `{"category":"U12","rate":25}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, fake.rates, 1)

	rec = do(router, http.MethodPut, "/settings/rates", `{"category":"","rate":-3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodDelete, "/settings/rates/u12", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(router, http.MethodDelete, "/settings/rates/u12", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
