package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"refpay/internal/transport/http/api"
	"refpay/internal/transport/http/shared"
)

const (
	maxPeekBytes = 64 * 1024
	sweepEvery   = 256
)

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*limiter)

// WithKeyFunc replaces the default operator-or-address key.
func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(l *limiter) {
		if fn != nil {
			l.keyFn = fn
		}
	}
}

type counter struct {
	hits    int
	resetAt time.Time
}

// limiter is a fixed-window counter per key. Expired windows are swept
// every sweepEvery calls so idle clients do not accumulate.
type limiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	keyFn    RateLimitKeyFunc
	counters map[string]*counter
	calls    int
}

func newLimiter(limit int, window time.Duration, keyFn RateLimitKeyFunc) *limiter {
	if keyFn == nil {
		keyFn = operatorOrAddress
	}
	return &limiter{limit: limit, window: window, keyFn: keyFn, counters: map[string]*counter{}}
}

// RateLimit caps requests per operator, or per client address for
// anonymous callers.
func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	l := newLimiter(limit, window, operatorOrAddress)
	for _, opt := range opts {
		opt(l)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.allow(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// SensitiveMutationRateLimit adds tighter limits on top of RateLimit: login
// attempts get a quarter of baseLimit per address and per email, and
// ledger-affecting writes get half of baseLimit per operator.
func SensitiveMutationRateLimit(baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	loginLimit := max(baseLimit/4, 1)
	writeLimit := max(baseLimit/2, 1)
	loginByAddress := newLimiter(loginLimit, window, shared.ClientIP)
	loginByEmail := newLimiter(loginLimit, window, AuthEmailOrIPKey("email"))
	writesByOperator := newLimiter(writeLimit, window, operatorOrAddress)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch classify(r) {
			case routeLogin:
				if !loginByAddress.allow(w, r) || !loginByEmail.allow(w, r) {
					return
				}
			case routeLedgerWrite:
				if !writesByOperator.allow(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthEmailOrIPKey keys on the lowercased JSON body field, falling back to
// the client address. The body is restored for the next handler.
func AuthEmailOrIPKey(field string) RateLimitKeyFunc {
	field = strings.TrimSpace(field)
	if field == "" {
		field = "email"
	}
	return func(r *http.Request) string {
		if value := peekJSONField(r, field); value != "" {
			return "email:" + strings.ToLower(value)
		}
		return shared.ClientIP(r)
	}
}

func operatorOrAddress(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.Email != "" {
		return "operator:" + user.Email
	}
	return shared.ClientIP(r)
}

func (l *limiter) allow(w http.ResponseWriter, r *http.Request) bool {
	if l.limit <= 0 {
		return true
	}
	key := l.keyFn(r)
	if key == "" {
		key = shared.ClientIP(r)
	}

	now := time.Now()
	l.mu.Lock()
	l.calls++
	if l.calls%sweepEvery == 0 {
		for k, c := range l.counters {
			if now.After(c.resetAt) {
				delete(l.counters, k)
			}
		}
	}
	c, ok := l.counters[key]
	if !ok || now.After(c.resetAt) {
		c = &counter{resetAt: now.Add(l.window)}
		l.counters[key] = c
	}
	c.hits++
	hits, resetAt := c.hits, c.resetAt
	l.mu.Unlock()

	resetIn := secondsUntil(now, resetAt)
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(max(l.limit-hits, 0)))
	headers.Set("X-RateLimit-Reset", strconv.Itoa(resetIn))
	if hits <= l.limit {
		return true
	}

	headers.Set("Retry-After", strconv.Itoa(max(resetIn, 1)))
	slog.Warn("rate limit exceeded", "key", key, "method", r.Method, "path", r.URL.Path, "limit", l.limit)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

func secondsUntil(now, t time.Time) int {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	return max(int(d.Seconds()), 1)
}

func peekJSONField(r *http.Request, field string) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	value, _ := payload[field].(string)
	return strings.TrimSpace(value)
}

type routeClass int

const (
	routeOther routeClass = iota
	routeLogin
	routeLedgerWrite
)

type routeRule struct {
	method string
	path   string
	prefix bool
	class  routeClass
}

// Routes that change the earnings ledger or the registry.
var sensitiveRoutes = []routeRule{
	{method: http.MethodPost, path: "/auth/login", class: routeLogin},
	{method: http.MethodPost, path: "/payroll/batches", class: routeLedgerWrite},
	{method: http.MethodDelete, path: "/payroll/batches/", prefix: true, class: routeLedgerWrite},
	{method: http.MethodPost, path: "/referees/import", class: routeLedgerWrite},
	{method: http.MethodPut, path: "/referees/", prefix: true, class: routeLedgerWrite},
	{method: http.MethodPost, path: "/matching/prune", class: routeLedgerWrite},
}

func classify(r *http.Request) routeClass {
	path := strings.TrimPrefix(strings.TrimSpace(r.URL.Path), "/api/v1")
	method := strings.ToUpper(r.Method)
	for _, rule := range sensitiveRoutes {
		if rule.method != method {
			continue
		}
		if rule.prefix {
			if strings.HasPrefix(path, rule.path) && !strings.HasSuffix(path, "/settings") {
				return rule.class
			}
			continue
		}
		if path == rule.path {
			return rule.class
		}
	}
	return routeOther
}
