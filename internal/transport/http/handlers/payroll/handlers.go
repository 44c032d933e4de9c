package payrollhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"refpay/internal/domain/audit"
	"refpay/internal/domain/payroll"
	"refpay/internal/domain/referees"
	"refpay/internal/platform/metrics"
	"refpay/internal/transport/http/api"
	"refpay/internal/transport/http/middleware"
	"refpay/internal/transport/http/shared"
)

type PayrollService interface {
	Preview(ctx context.Context, req payroll.BatchRequest) (payroll.Batch, error)
	Save(ctx context.Context, req payroll.BatchRequest) (payroll.Batch, error)
	ListBatches(ctx context.Context, limit, offset int) ([]payroll.BatchSummary, int, error)
	GetBatch(ctx context.Context, id string) (payroll.Batch, error)
	RenameBatch(ctx context.Context, id, name string) (payroll.BatchSummary, error)
	DeleteBatch(ctx context.Context, id string) error
	Export(ctx context.Context, id, format string) (payroll.Report, error)
	Earnings(ctx context.Context, employeeNumber string) (payroll.EarningsStatus, error)
}

type Handler struct {
	Service     PayrollService
	Idempotency middleware.IdempotencyBackend
	Metrics     *metrics.Collector
	Audit       audit.Recorder
}

func NewHandler(service PayrollService, idempotency middleware.IdempotencyBackend, collector *metrics.Collector, recorder audit.Recorder) *Handler {
	return &Handler{Service: service, Idempotency: idempotency, Metrics: collector, Audit: recorder}
}

type batchPayload struct {
	Name        string                  `json:"name"`
	StartDate   string                  `json:"startDate"`
	EndDate     string                  `json:"endDate"`
	Entries     []payroll.ScheduleEntry `json:"entries"`
	Tallies     []payroll.Tally         `json:"tallies"`
	Adjustments []payroll.Adjustment    `json:"adjustments"`
}

type renamePayload struct {
	Name string `json:"name"`
}

var exportFormats = []string{payroll.FormatCSV, payroll.FormatPDF, payroll.FormatXLSX}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.Post("/preview", h.handlePreview)
		r.Get("/batches", h.handleListBatches)
		r.With(middleware.Idempotent(h.Idempotency)).Post("/batches", h.handleSaveBatch)
		r.Get("/batches/{batchID}", h.handleGetBatch)
		r.Patch("/batches/{batchID}", h.handleRenameBatch)
		r.Delete("/batches/{batchID}", h.handleDeleteBatch)
		r.Get("/batches/{batchID}/export", h.handleExportBatch)
		r.Get("/earnings/{employeeNumber}", h.handleEarnings)
	})
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBatch(w, r)
	if !ok {
		return
	}
	batch, err := h.Service.Preview(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, batch, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSaveBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBatch(w, r)
	if !ok {
		return
	}
	batch, err := h.Service.Save(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.BatchSaved()
	}
	slog.Info("payroll batch created", "batchID", batch.ID, "operator", operator(r), "requestID", middleware.GetRequestID(r.Context()))
	middleware.RecordAudit(r, h.Audit, audit.Entry{
		Action:     audit.ActionBatchSave,
		EntityType: "payroll_batch",
		EntityID:   batch.ID,
		Details:    batch.Totals,
	})
	api.Created(w, batch, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, shared.DefaultPageLimit, shared.MaxPageLimit)
	batches, total, err := h.Service.ListBatches(r.Context(), page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if batches == nil {
		batches = []payroll.BatchSummary{}
	}
	api.Success(w, api.Page{Items: batches, Total: total, Limit: page.Limit, Offset: page.Offset}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.Service.GetBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, batch, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRenameBatch(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload renamePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	validator := shared.NewValidator()
	validator.Required("name", payload.Name, "is required")
	if validator.Reject(w, requestID) {
		return
	}

	summary, err := h.Service.RenameBatch(r.Context(), chi.URLParam(r, "batchID"), payload.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.RecordAudit(r, h.Audit, audit.Entry{
		Action:     audit.ActionBatchRename,
		EntityType: "payroll_batch",
		EntityID:   summary.ID,
		Details:    map[string]string{"name": summary.Name},
	})
	api.Success(w, summary, requestID)
}

func (h *Handler) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	if err := h.Service.DeleteBatch(r.Context(), batchID); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("payroll batch removed", "batchID", batchID, "operator", operator(r))
	middleware.RecordAudit(r, h.Audit, audit.Entry{Action: audit.ActionBatchDelete, EntityType: "payroll_batch", EntityID: batchID})
	api.Success(w, map[string]bool{"deleted": true}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExportBatch(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = payroll.FormatCSV
	}
	validator := shared.NewValidator()
	validator.Enum("format", format, exportFormats, "must be one of csv, pdf, xlsx")
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	report, err := h.Service.Export(r.Context(), chi.URLParam(r, "batchID"), format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.ReportExported()
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(report.Data)))
	if report.Location != "" {
		w.Header().Set("X-Report-Location", report.Location)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(report.Data); err != nil {
		slog.Warn("report write failed", "file", report.FileName, "err", err)
	}
}

func (h *Handler) handleEarnings(w http.ResponseWriter, r *http.Request) {
	status, err := h.Service.Earnings(r.Context(), chi.URLParam(r, "employeeNumber"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, status, middleware.GetRequestID(r.Context()))
}

func decodeBatch(w http.ResponseWriter, r *http.Request) (payroll.BatchRequest, bool) {
	requestID := middleware.GetRequestID(r.Context())
	var payload batchPayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return payroll.BatchRequest{}, false
	}

	validator := shared.NewValidator()
	start := validator.OptionalDate("startDate", payload.StartDate)
	end := validator.OptionalDate("endDate", payload.EndDate)
	validator.DateOrder("startDate", start, "endDate", end)
	if len(payload.Entries) == 0 && len(payload.Tallies) == 0 {
		validator.Add("entries", "entries or tallies must be provided")
	}
	for i, entry := range payload.Entries {
		if entry.Games < 0 {
			validator.Add(fmt.Sprintf("entries[%d].games", i), "must not be negative")
		}
	}
	for i, tally := range payload.Tallies {
		for j, count := range tally.Categories {
			if count.Games < 0 {
				validator.Add(fmt.Sprintf("tallies[%d].categories[%d].games", i, j), "must not be negative")
			}
		}
	}
	for i, adjustment := range payload.Adjustments {
		validator.NonNegative(fmt.Sprintf("adjustments[%d].extraPay", i), adjustment.ExtraPay)
		validator.NonNegative(fmt.Sprintf("adjustments[%d].fines", i), adjustment.Fines)
	}
	if validator.Reject(w, requestID) {
		return payroll.BatchRequest{}, false
	}

	return payroll.BatchRequest{
		Name:        payload.Name,
		DateRange:   payroll.DateRange{Start: start, End: end},
		Entries:     payload.Entries,
		Tallies:     payload.Tallies,
		Adjustments: payload.Adjustments,
	}, true
}

func operator(r *http.Request) string {
	if user, ok := middleware.GetUser(r.Context()); ok {
		return user.Email
	}
	return ""
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, payroll.ErrBatchNotFound):
		api.Fail(w, http.StatusNotFound, "batch_not_found", "payroll batch not found", requestID)
	case errors.Is(err, referees.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "referee_not_found", "referee not found", requestID)
	case errors.Is(err, payroll.ErrUnknownReferee), errors.Is(err, payroll.ErrUnresolvedName):
		api.Fail(w, http.StatusUnprocessableEntity, "unresolved_referee", err.Error(), requestID)
	case errors.Is(err, payroll.ErrEmptyBatch),
		errors.Is(err, payroll.ErrInvalidDateRange),
		errors.Is(err, payroll.ErrInvalidAdjustment),
		errors.Is(err, payroll.ErrInvalidTally),
		errors.Is(err, payroll.ErrInvalidBatchName),
		errors.Is(err, payroll.ErrUnsupportedFormat):
		api.Fail(w, http.StatusBadRequest, "invalid_batch", err.Error(), requestID)
	default:
		slog.Error("payroll request failed", "path", r.URL.Path, "err", err)
		api.Fail(w, http.StatusInternalServerError, "payroll_failed", "payroll request failed", requestID)
	}
}
