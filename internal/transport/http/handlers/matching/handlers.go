package matchinghandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"refpay/internal/domain/audit"
	"refpay/internal/domain/matching"
	"refpay/internal/domain/referees"
	"refpay/internal/platform/metrics"
	"refpay/internal/transport/http/api"
	"refpay/internal/transport/http/middleware"
	"refpay/internal/transport/http/shared"
)

type Matcher interface {
	Resolve(ctx context.Context, scheduleNames []string) ([]matching.Result, error)
	Confirm(ctx context.Context, req matching.ConfirmRequest) (matching.Mapping, matching.Result, error)
	ListMappings(ctx context.Context) ([]matching.Mapping, error)
	GetMapping(ctx context.Context, scheduleName string) (matching.Mapping, error)
	DeleteMapping(ctx context.Context, scheduleName string) error
}

type Pruner interface {
	PruneMappingsNow(ctx context.Context) (any, error)
}

type Handler struct {
	Service Matcher
	Jobs    Pruner
	Metrics *metrics.Collector
	Audit   audit.Recorder
}

func NewHandler(service Matcher, jobs Pruner, collector *metrics.Collector, recorder audit.Recorder) *Handler {
	return &Handler{Service: service, Jobs: jobs, Metrics: collector, Audit: recorder}
}

type resolvePayload struct {
	ScheduleNames []string `json:"scheduleNames"`
}

type resolveResponse struct {
	Results     []matching.Result `json:"results"`
	NeedsReview int               `json:"needsReview"`
}

type confirmPayload struct {
	ScheduleName   string `json:"scheduleName"`
	EmployeeNumber string `json:"employeeNumber"`
	IsManual       bool   `json:"isManual"`
	DateProcessed  string `json:"dateProcessed"`
}

type confirmResponse struct {
	Mapping matching.Mapping `json:"mapping"`
	Result  matching.Result  `json:"result"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/matching", func(r chi.Router) {
		r.Post("/resolve", h.handleResolve)
		r.Post("/confirm", h.handleConfirm)
		r.Post("/prune", h.handlePrune)
		r.Get("/mappings", h.handleListMappings)
		r.Get("/mappings/{scheduleName}", h.handleGetMapping)
		r.Delete("/mappings/{scheduleName}", h.handleDeleteMapping)
	})
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload resolvePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	if len(payload.ScheduleNames) == 0 {
		validator := shared.NewValidator()
		validator.Add("scheduleNames", "must list at least one name")
		validator.Reject(w, requestID)
		return
	}

	results, err := h.Service.Resolve(r.Context(), payload.ScheduleNames)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var review, low int
	for _, result := range results {
		if result.NeedsReview() {
			review++
		}
		if result.MatchedReferee != nil && !result.IsFromStorage && result.Confidence < matching.ConfidenceThreshold {
			low++
		}
	}
	if h.Metrics != nil {
		h.Metrics.NamesResolved(len(results), low)
	}
	api.Success(w, resolveResponse{Results: results, NeedsReview: review}, requestID)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload confirmPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	validator := shared.NewValidator()
	validator.Required("scheduleName", payload.ScheduleName, "is required")
	validator.Required("employeeNumber", payload.EmployeeNumber, "is required")
	processed := validator.OptionalDate("dateProcessed", payload.DateProcessed)
	if validator.Reject(w, requestID) {
		return
	}

	mapping, result, err := h.Service.Confirm(r.Context(), matching.ConfirmRequest{
		ScheduleName:   payload.ScheduleName,
		EmployeeNumber: payload.EmployeeNumber,
		IsManual:       payload.IsManual,
		DateProcessed:  processed,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.RecordAudit(r, h.Audit, audit.Entry{
		Action:     audit.ActionMappingConfirm,
		EntityType: "name_mapping",
		EntityID:   mapping.ScheduleName,
		Details:    map[string]any{"employeeNumber": mapping.EmployeeNumber, "manual": payload.IsManual},
	})
	api.Success(w, confirmResponse{Mapping: mapping, Result: result}, requestID)
}

func (h *Handler) handlePrune(w http.ResponseWriter, r *http.Request) {
	if h.Jobs == nil {
		api.Fail(w, http.StatusServiceUnavailable, "jobs_unavailable", "job runner is not configured", middleware.GetRequestID(r.Context()))
		return
	}
	details, err := h.Jobs.PruneMappingsNow(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, details, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.Service.ListMappings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if mappings == nil {
		mappings = []matching.Mapping{}
	}
	api.Success(w, mappings, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetMapping(w http.ResponseWriter, r *http.Request) {
	mapping, err := h.Service.GetMapping(r.Context(), scheduleNameParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, mapping, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	scheduleName := scheduleNameParam(r)
	if err := h.Service.DeleteMapping(r.Context(), scheduleName); err != nil {
		writeError(w, r, err)
		return
	}
	middleware.RecordAudit(r, h.Audit, audit.Entry{Action: audit.ActionMappingDelete, EntityType: "name_mapping", EntityID: scheduleName})
	api.Success(w, map[string]bool{"deleted": true}, middleware.GetRequestID(r.Context()))
}

func scheduleNameParam(r *http.Request) string {
	raw := chi.URLParam(r, "scheduleName")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, matching.ErrMappingNotFound):
		api.Fail(w, http.StatusNotFound, "mapping_not_found", "match mapping not found", requestID)
	case errors.Is(err, referees.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "referee_not_found", "referee not found", requestID)
	case errors.Is(err, matching.ErrEmptyScheduleName):
		api.Fail(w, http.StatusBadRequest, "invalid_schedule_name", err.Error(), requestID)
	default:
		slog.Error("matching request failed", "path", r.URL.Path, "err", err)
		api.Fail(w, http.StatusInternalServerError, "matching_failed", "matching request failed", requestID)
	}
}
