package requestctx

import "context"

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	operatorKey  ctxKey = "operator"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if value, ok := ctx.Value(requestIDKey).(string); ok {
		return value
	}
	return ""
}

// WithOperator records the email of the authenticated operator.
func WithOperator(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, operatorKey, email)
}

func GetOperator(ctx context.Context) string {
	if value, ok := ctx.Value(operatorKey).(string); ok {
		return value
	}
	return ""
}
