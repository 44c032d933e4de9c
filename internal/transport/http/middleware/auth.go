package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"refpay/internal/domain/auth"
	"refpay/internal/requestctx"
	"refpay/internal/transport/http/api"
)

type ctxKeyType string

const ctxKeyUser ctxKeyType = "operator"

type TokenVerifier interface {
	Verify(token string) (auth.OperatorContext, error)
}

func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := requestctx.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetRequestID(ctx context.Context) string {
	return requestctx.GetRequestID(ctx)
}

// Auth attaches the operator from a valid bearer token. Requests without one
// pass through untouched; RequireOperator decides whether that is allowed.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.Split(authHeader, " ")
			if verifier == nil || len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}

			operator, err := verifier.Verify(parts[1])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyUser, operator)
			ctx = requestctx.WithOperator(ctx, operator.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUser(ctx context.Context) (auth.OperatorContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.OperatorContext)
	return user, ok
}

// RequireOperator rejects unauthenticated requests. With enforce false the
// deployment has no operator account and every request is let through.
func RequireOperator(enforce bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enforce {
				next.ServeHTTP(w, r)
				return
			}
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
				return
			}
			if user.Role != auth.RoleOperator {
				api.Fail(w, http.StatusForbidden, "forbidden", "operator role required", GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
