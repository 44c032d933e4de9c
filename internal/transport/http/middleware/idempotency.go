package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"refpay/internal/transport/http/api"
)

var (
	ErrIdempotencyConflict   = errors.New("idempotency key conflicts with existing request")
	ErrIdempotencyInProgress = errors.New("idempotency key is held by a request still in flight")
)

const (
	IdempotencyHeader = "Idempotency-Key"

	// pendingStatus marks a reserved key whose response is not stored yet.
	pendingStatus = 0
	// Reservations older than this are treated as abandoned and can be taken over.
	pendingTTL = 5 * time.Minute
)

type StoredResponse struct {
	Status int
	Body   json.RawMessage
}

// IdempotencyBackend reserves a key before the handler runs. Reserve returns
// the stored response with true for a completed request, and nothing for a
// fresh reservation the caller now owns.
type IdempotencyBackend interface {
	Reserve(ctx context.Context, operator, endpoint, key, requestHash string) (StoredResponse, bool, error)
	Save(ctx context.Context, operator, endpoint, key, requestHash string, response StoredResponse) error
	Release(ctx context.Context, operator, endpoint, key string) error
}

type IdempotencyStore struct {
	db *pgxpool.Pool
}

func NewIdempotencyStore(db *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (s *IdempotencyStore) Reserve(ctx context.Context, operator, endpoint, key, requestHash string) (StoredResponse, bool, error) {
	if s == nil || s.db == nil {
		return StoredResponse{}, false, nil
	}
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (operator, endpoint, key, request_hash, status, response_json)
    VALUES ($1, $2, $3, $4, $5, 'null'::jsonb)
    ON CONFLICT (operator, endpoint, key)
    DO UPDATE SET request_hash = EXCLUDED.request_hash, created_at = now()
    WHERE idempotency_keys.status = $5
      AND idempotency_keys.created_at < now() - make_interval(secs => $6)
  `, operator, endpoint, key, requestHash, pendingStatus, pendingTTL.Seconds())
	if err != nil {
		return StoredResponse{}, false, err
	}
	if tag.RowsAffected() == 1 {
		return StoredResponse{}, false, nil
	}

	var storedHash string
	var stored StoredResponse
	err = s.db.QueryRow(ctx, `
    SELECT request_hash, status, response_json
    FROM idempotency_keys
    WHERE operator = $1 AND endpoint = $2 AND key = $3
  `, operator, endpoint, key).Scan(&storedHash, &stored.Status, &stored.Body)
	if errors.Is(err, pgx.ErrNoRows) {
		// released between the insert and the read
		return StoredResponse{}, false, ErrIdempotencyInProgress
	}
	if err != nil {
		return StoredResponse{}, false, err
	}
	if storedHash != requestHash {
		return StoredResponse{}, false, ErrIdempotencyConflict
	}
	if stored.Status == pendingStatus {
		return StoredResponse{}, false, ErrIdempotencyInProgress
	}
	return stored, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, operator, endpoint, key, requestHash string, response StoredResponse) error {
	if s == nil || s.db == nil {
		return nil
	}
	tag, err := s.db.Exec(ctx, `
    UPDATE idempotency_keys
    SET status = $5, response_json = $6
    WHERE operator = $1 AND endpoint = $2 AND key = $3 AND request_hash = $4
  `, operator, endpoint, key, requestHash, response.Status, response.Body)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Release drops a reservation that never produced a stored response.
func (s *IdempotencyStore) Release(ctx context.Context, operator, endpoint, key string) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.Exec(ctx, `
    DELETE FROM idempotency_keys
    WHERE operator = $1 AND endpoint = $2 AND key = $3 AND status = $4
  `, operator, endpoint, key, pendingStatus)
	return err
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

// Idempotent replays the first successful response for a repeated
// Idempotency-Key with the same body. The key is reserved before the handler
// runs, so a concurrent duplicate gets 409 instead of a second execution.
// Failed responses release the key. Requests without the header run as usual.
func Idempotent(backend IdempotencyBackend) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if key == "" || backend == nil {
				next.ServeHTTP(w, r)
				return
			}
			requestID := GetRequestID(r.Context())
			payload, err := io.ReadAll(r.Body)
			if err != nil {
				api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(payload))

			operator := "anonymous"
			if user, ok := GetUser(r.Context()); ok {
				operator = user.Email
			}
			endpoint := r.Method + " " + r.URL.Path
			hash := RequestHash(payload)

			stored, found, err := backend.Reserve(r.Context(), operator, endpoint, key, hash)
			if errors.Is(err, ErrIdempotencyConflict) {
				api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different payload", requestID)
				return
			}
			if errors.Is(err, ErrIdempotencyInProgress) {
				api.Fail(w, http.StatusConflict, "idempotency_in_progress", "a request with this idempotency key is still running", requestID)
				return
			}
			if err != nil {
				api.Fail(w, http.StatusInternalServerError, "idempotency_failed", "idempotency check failed", requestID)
				return
			}
			if found {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(stored.Status)
				_, _ = w.Write(stored.Body)
				return
			}

			saved := false
			defer func() {
				if saved {
					return
				}
				if err := backend.Release(context.WithoutCancel(r.Context()), operator, endpoint, key); err != nil {
					slog.Warn("idempotency release failed", "endpoint", endpoint, "err", err)
				}
			}()

			capture := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			if capture.status < 200 || capture.status >= 300 || !json.Valid(capture.body.Bytes()) {
				return
			}
			response := StoredResponse{Status: capture.status, Body: bytes.TrimSpace(capture.body.Bytes())}
			if err := backend.Save(r.Context(), operator, endpoint, key, hash, response); err != nil {
				slog.Warn("idempotency save failed", "endpoint", endpoint, "err", err)
				return
			}
			saved = true
		})
	}
}
