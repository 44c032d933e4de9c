package middleware

import (
	"log/slog"
	"net/http"

	"refpay/internal/domain/audit"
	"refpay/internal/transport/http/shared"
)

// RecordAudit stamps the entry with the caller's operator, request id and
// address. Failures are logged and never fail the request.
func RecordAudit(r *http.Request, recorder audit.Recorder, entry audit.Entry) {
	if recorder == nil {
		return
	}
	if user, ok := GetUser(r.Context()); ok {
		entry.Operator = user.Email
	}
	entry.RequestID = GetRequestID(r.Context())
	entry.IP = shared.ClientIP(r)
	if err := recorder.Record(r.Context(), entry); err != nil {
		slog.Warn("audit record failed", "action", entry.Action, "entityId", entry.EntityID, "err", err)
	}
}
