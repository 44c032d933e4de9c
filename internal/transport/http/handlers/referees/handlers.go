package refereehandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"refpay/internal/domain/audit"
	"refpay/internal/domain/referees"
	"refpay/internal/transport/http/api"
	"refpay/internal/transport/http/middleware"
	"refpay/internal/transport/http/shared"
)

type RefereeService interface {
	ListReferees(ctx context.Context) ([]referees.Referee, error)
	GetReferee(ctx context.Context, employeeNumber string) (referees.Referee, error)
	CreateReferee(ctx context.Context, referee referees.Referee) (referees.Referee, error)
	UpdateReferee(ctx context.Context, employeeNumber string, referee referees.Referee) (referees.Referee, error)
	DeleteReferee(ctx context.Context, employeeNumber string) error
	Settings(ctx context.Context, employeeNumber string) (referees.Settings, error)
	UpdateSettings(ctx context.Context, settings referees.Settings) (referees.Settings, error)
	ResetSettings(ctx context.Context, employeeNumber string) (referees.Settings, error)
	Import(ctx context.Context, batch []referees.Referee) (referees.ImportResult, error)
}

type Handler struct {
	Service RefereeService
	Audit   audit.Recorder
}

func NewHandler(service RefereeService, recorder audit.Recorder) *Handler {
	return &Handler{Service: service, Audit: recorder}
}

type refereePayload struct {
	EmployeeNumber string `json:"employeeNumber"`
	FullName       string `json:"fullName"`
}

type settingsPayload struct {
	HasFixedRate bool    `json:"hasFixedRate"`
	FixedRate    float64 `json:"fixedRate"`
	HasAdminFee  bool    `json:"hasAdminFee"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/referees", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Post("/import", h.handleImport)
		r.Get("/{employeeNumber}", h.handleGet)
		r.Put("/{employeeNumber}", h.handleUpdate)
		r.Delete("/{employeeNumber}", h.handleDelete)
		r.Get("/{employeeNumber}/settings", h.handleGetSettings)
		r.Put("/{employeeNumber}/settings", h.handleUpdateSettings)
		r.Delete("/{employeeNumber}/settings", h.handleResetSettings)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListReferees(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []referees.Referee{}
	}
	api.Success(w, list, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeReferee(w, r)
	if !ok {
		return
	}
	created, err := h.Service.CreateReferee(r.Context(), referees.Referee{EmployeeNumber: payload.EmployeeNumber, FullName: payload.FullName})
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	batch, err := referees.ParseRegistryCSV(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_csv", err.Error(), middleware.GetRequestID(r.Context()))
		return
	}
	result, err := h.Service.Import(r.Context(), batch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.RecordAudit(r, h.Audit, audit.Entry{
		Action:     audit.ActionRefereeImport,
		EntityType: "referee",
		Details:    map[string]any{"created": result.Created, "skipped": result.Skipped},
	})
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	referee, err := h.Service.GetReferee(r.Context(), chi.URLParam(r, "employeeNumber"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, referee, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeReferee(w, r)
	if !ok {
		return
	}
	updated, err := h.Service.UpdateReferee(r.Context(), chi.URLParam(r, "employeeNumber"), referees.Referee{EmployeeNumber: payload.EmployeeNumber, FullName: payload.FullName})
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	employeeNumber := chi.URLParam(r, "employeeNumber")
	if err := h.Service.DeleteReferee(r.Context(), employeeNumber); err != nil {
		writeError(w, r, err)
		return
	}
	middleware.RecordAudit(r, h.Audit, audit.Entry{Action: audit.ActionRefereeDelete, EntityType: "referee", EntityID: employeeNumber})
	api.Success(w, map[string]bool{"deleted": true}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Service.Settings(r.Context(), chi.URLParam(r, "employeeNumber"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, settings, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var payload settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	validator := shared.NewValidator()
	validator.NonNegative("fixedRate", payload.FixedRate)
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	settings, err := h.Service.UpdateSettings(r.Context(), referees.Settings{
		EmployeeNumber: chi.URLParam(r, "employeeNumber"),
		HasFixedRate:   payload.HasFixedRate,
		FixedRate:      payload.FixedRate,
		HasAdminFee:    payload.HasAdminFee,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, settings, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleResetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Service.ResetSettings(r.Context(), chi.URLParam(r, "employeeNumber"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, settings, middleware.GetRequestID(r.Context()))
}

func decodeReferee(w http.ResponseWriter, r *http.Request) (refereePayload, bool) {
	var payload refereePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return refereePayload{}, false
	}
	validator := shared.NewValidator()
	validator.Required("employeeNumber", payload.EmployeeNumber, "is required")
	validator.Required("fullName", strings.TrimSpace(payload.FullName), "is required")
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return refereePayload{}, false
	}
	return payload, true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, referees.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "referee_not_found", "referee not found", requestID)
	case errors.Is(err, referees.ErrDuplicateKey):
		api.Fail(w, http.StatusConflict, "referee_duplicate", "employee number already registered", requestID)
	case errors.Is(err, referees.ErrInvalidReferee), errors.Is(err, referees.ErrInvalidRate):
		api.Fail(w, http.StatusBadRequest, "invalid_referee", err.Error(), requestID)
	default:
		slog.Error("referee request failed", "path", r.URL.Path, "err", err)
		api.Fail(w, http.StatusInternalServerError, "referee_failed", "referee request failed", requestID)
	}
}
