package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memIdempotency struct {
	hashes    map[string]string
	responses map[string]StoredResponse
	releases  int
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{hashes: map[string]string{}, responses: map[string]StoredResponse{}}
}

func (m *memIdempotency) Reserve(_ context.Context, operator, endpoint, key, requestHash string) (StoredResponse, bool, error) {
	id := operator + "|" + endpoint + "|" + key
	hash, ok := m.hashes[id]
	if !ok {
		m.hashes[id] = requestHash
		return StoredResponse{}, false, nil
	}
	if hash != requestHash {
		return StoredResponse{}, false, ErrIdempotencyConflict
	}
	stored, done := m.responses[id]
	if !done {
		return StoredResponse{}, false, ErrIdempotencyInProgress
	}
	return stored, true, nil
}

func (m *memIdempotency) Save(_ context.Context, operator, endpoint, key, requestHash string, response StoredResponse) error {
	id := operator + "|" + endpoint + "|" + key
	if m.hashes[id] != requestHash {
		return ErrIdempotencyConflict
	}
	m.responses[id] = response
	return nil
}

func (m *memIdempotency) Release(_ context.Context, operator, endpoint, key string) error {
	id := operator + "|" + endpoint + "|" + key
	if _, done := m.responses[id]; !done {
		delete(m.hashes, id)
		m.releases++
	}
	return nil
}

func TestRequestHashDeterministic(t *testing.T) {
	assert.Equal(t, RequestHash([]byte("payload")), RequestHash([]byte("payload")))
	assert.NotEqual(t, RequestHash([]byte("payload")), RequestHash([]byte("other")))
}

func TestIdempotentReplaysFirstResponse(t *testing.T) {
	var calls int
	handler := Idempotent(newMemIdempotency())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"name":"week 1"}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/batches", bytes.NewBufferString(body))
		req.Header.Set(IdempotencyHeader, "k1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send(`{"name":"week 1"}`)
	assert.Equal(t, http.StatusCreated, first.Code)

	second := send(`{"name":"week 1"}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"success":true}`, second.Body.String())
	assert.Equal(t, 1, calls)

	conflict := send(`{"name":"week 2"}`)
	assert.Equal(t, http.StatusConflict, conflict.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotentSkipsFailures(t *testing.T) {
	var calls int
	backend := newMemIdempotency()
	handler := Idempotent(backend)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false}`))
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/x", bytes.NewBufferString(`{}`))
		req.Header.Set(IdempotencyHeader, "k")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, backend.releases)
}

func TestIdempotentRejectsDuplicateWhileRunning(t *testing.T) {
	var calls int
	var inner *httptest.ResponseRecorder
	var handler http.Handler
	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/batches", bytes.NewBufferString(body))
		req.Header.Set(IdempotencyHeader, "k1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}
	handler = Idempotent(newMemIdempotency())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			inner = send(`{"name":"week 1"}`)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))

	first := send(`{"name":"week 1"}`)
	assert.Equal(t, http.StatusCreated, first.Code)
	require.NotNil(t, inner)
	assert.Equal(t, http.StatusConflict, inner.Code)
	assert.Contains(t, inner.Body.String(), "idempotency_in_progress")
	assert.Equal(t, 1, calls)

	replay := send(`{"name":"week 1"}`)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, calls)
}

func TestIdempotentReleasesKeyAfterPanic(t *testing.T) {
	backend := newMemIdempotency()
	handler := Idempotent(backend)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodPost, "/x", bytes.NewBufferString(`{}`))
	req.Header.Set(IdempotencyHeader, "k")
	assert.Panics(t, func() { handler.ServeHTTP(httptest.NewRecorder(), req) })
	assert.Equal(t, 1, backend.releases)
	assert.Empty(t, backend.hashes)
}
