package audithandler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refpay/internal/domain/audit"
)

type fakeLog struct {
	events     []audit.Event
	lastFilter audit.Filter
	lastLimit  int
	err        error
}

func (f *fakeLog) Count(_ context.Context, filter audit.Filter) (int, error) {
	return len(f.events), nil
}

func (f *fakeLog) List(_ context.Context, filter audit.Filter, limit, offset int) ([]audit.Event, error) {
	f.lastFilter = filter
	f.lastLimit = limit
	return f.events, f.err
}

func setup(log *fakeLog) http.Handler {
	router := chi.NewRouter()
	NewHandler(log).RegisterRoutes(router)
	return router
}

func TestListEvents(t *testing.T) {
	log := &fakeLog{events: []audit.Event{{ID: 7, Operator: "ops@example.com", Action: audit.ActionBatchSave, EntityType: "payroll_batch", EntityID: "b1"}}}
	router := setup(log)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/events?action=payroll.batch.save&operator=ops@example.com&limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))
	assert.Equal(t, audit.Filter{Action: audit.ActionBatchSave, Operator: "ops@example.com"}, log.lastFilter)
	assert.Equal(t, 5, log.lastLimit)
	assert.Contains(t, rec.Body.String(), `"entityId":"b1"`)
}

func TestListEventsFailure(t *testing.T) {
	router := setup(&fakeLog{err: errors.New("boom")})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/events", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestExportEvents(t *testing.T) {
	created := time.Date(2024, 6, 8, 12, 0, 0, 0, time.UTC)
	log := &fakeLog{events: []audit.Event{{ID: 3, Operator: "ops@example.com", Action: audit.ActionBatchDelete, EntityType: "payroll_batch", EntityID: "b2", CreatedAt: created}}}
	router := setup(log)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/events/export", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, 0, log.lastLimit)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "3,ops@example.com,payroll.batch.delete,payroll_batch,b2,,,2024-06-08T12:00:00Z", lines[1])
}
