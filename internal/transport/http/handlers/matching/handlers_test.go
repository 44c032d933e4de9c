package matchinghandler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refpay/internal/domain/matching"
	"refpay/internal/domain/referees"
	"refpay/internal/platform/metrics"
)

type memMappings map[string]matching.Mapping

func (m memMappings) ListMappings(context.Context) ([]matching.Mapping, error) {
	out := make([]matching.Mapping, 0, len(m))
	for _, mapping := range m {
		out = append(out, mapping)
	}
	return out, nil
}

func (m memMappings) GetMapping(_ context.Context, key string) (matching.Mapping, error) {
	mapping, ok := m[key]
	if !ok {
		return matching.Mapping{}, matching.ErrMappingNotFound
	}
	return mapping, nil
}

func (m memMappings) UpsertMapping(_ context.Context, mapping matching.Mapping) error {
	m[matching.Normalize(mapping.ScheduleName)] = mapping
	return nil
}

func (m memMappings) DeleteMapping(_ context.Context, key string) error {
	if _, ok := m[key]; !ok {
		return matching.ErrMappingNotFound
	}
	delete(m, key)
	return nil
}

func (m memMappings) DeleteOrphanMappings(context.Context) (int64, error) {
	return 0, nil
}

type registry []referees.Referee

func (r registry) ListReferees(context.Context) ([]referees.Referee, error) {
	return r, nil
}

type fakePruner struct{ calls int }

func (f *fakePruner) PruneMappingsNow(context.Context) (any, error) {
	f.calls++
	return map[string]any{"removed": 2}, nil
}

func setup() (http.Handler, *metrics.Collector, *fakePruner) {
	reg := registry{
		{EmployeeNumber: "001", FullName: "John Smith"},
		{EmployeeNumber: "002", FullName: "Maria Garcia Lopez"},
	}
	collector := metrics.New()
	pruner := &fakePruner{}
	router := chi.NewRouter()
	NewHandler(matching.NewService(memMappings{}, reg), pruner, collector, nil).RegisterRoutes(router)
	return router, collector, pruner
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, bytes.NewBufferString(body)))
	return rec
}

func TestResolve(t *testing.T) {
	router, collector, _ := setup()

	rec := do(router, http.MethodPost, "/matching/resolve", `{"scheduleNames":["Smith, John","Zzz Qqq"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"employeeNumber":"001"`)
	assert.Equal(t, uint64(2), collector.Snapshot()["namesResolvedTotal"])

	rec = do(router, http.MethodPost, "/matching/resolve", `{"scheduleNames":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmAndMappings(t *testing.T) {
	router, _, _ := setup()

	rec := do(router, http.MethodPost, "/matching/confirm", `{"scheduleName":"M. Garcia","employeeNumber":"002","isManual":true,"dateProcessed":"2024-05-01"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"confidence":100`)

	rec = do(router, http.MethodPost, "/matching/resolve", `{"scheduleNames":["m garcia"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"isFromStorage":true`)

	rec = do(router, http.MethodGet, "/matching/mappings", "")
	assert.Contains(t, rec.Body.String(), `"employeeNumber":"002"`)

	rec = do(router, http.MethodGet, "/matching/mappings/M.%20Garcia", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodDelete, "/matching/mappings/m%20garcia", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(router, http.MethodGet, "/matching/mappings/m%20garcia", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfirmErrors(t *testing.T) {
	router, _, _ := setup()

	rec := do(router, http.MethodPost, "/matching/confirm", `{"scheduleName":"John","employeeNumber":"999"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(router, http.MethodPost, "/matching/confirm", `{"scheduleName":"!!!","employeeNumber":"001"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPost, "/matching/confirm", `{"scheduleName":"John","employeeNumber":"001","dateProcessed":"yesterday"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPrune(t *testing.T) {
	router, _, pruner := setup()

	rec := do(router, http.MethodPost, "/matching/prune", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"removed":2`)
	assert.Equal(t, 1, pruner.calls)
}
