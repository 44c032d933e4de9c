package settingshandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"refpay/internal/domain/payroll"
	"refpay/internal/transport/http/api"
	"refpay/internal/transport/http/middleware"
	"refpay/internal/transport/http/shared"
)

type PayrollSettings interface {
	Globals(ctx context.Context) (payroll.GlobalSettings, error)
	UpdateGlobals(ctx context.Context, settings payroll.GlobalSettings) (payroll.GlobalSettings, error)
	ListRates(ctx context.Context) ([]payroll.CategoryRate, error)
	UpsertRate(ctx context.Context, rate payroll.CategoryRate) (payroll.CategoryRate, error)
	DeleteRate(ctx context.Context, category string) error
}

type Handler struct {
	Service PayrollSettings
}

func NewHandler(service PayrollSettings) *Handler {
	return &Handler{Service: service}
}

type globalsPayload struct {
	HaciendaTaxRate float64 `json:"haciendaTaxRate"`
	DepositFee      float64 `json:"depositFee"`
	AdminFeePerGame float64 `json:"adminFeePerGame"`
}

type ratePayload struct {
	Category string  `json:"category"`
	Rate     float64 `json:"rate"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.Get("/globals", h.handleGetGlobals)
		r.Put("/globals", h.handleUpdateGlobals)
		r.Get("/rates", h.handleListRates)
		r.Put("/rates", h.handleUpsertRate)
		r.Delete("/rates/{category}", h.handleDeleteRate)
	})
}

func (h *Handler) handleGetGlobals(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Service.Globals(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, settings, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateGlobals(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload globalsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	validator := shared.NewValidator()
	validator.Fraction("haciendaTaxRate", payload.HaciendaTaxRate)
	validator.NonNegative("depositFee", payload.DepositFee)
	validator.NonNegative("adminFeePerGame", payload.AdminFeePerGame)
	if validator.Reject(w, requestID) {
		return
	}

	settings, err := h.Service.UpdateGlobals(r.Context(), payroll.GlobalSettings{
		HaciendaTaxRate: payload.HaciendaTaxRate,
		DepositFee:      payload.DepositFee,
		AdminFeePerGame: payload.AdminFeePerGame,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("global payroll settings updated", "operator", operator(r), "taxRate", settings.HaciendaTaxRate)
	api.Success(w, settings, requestID)
}

func (h *Handler) handleListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Service.ListRates(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rates == nil {
		rates = []payroll.CategoryRate{}
	}
	api.Success(w, rates, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpsertRate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload ratePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	validator := shared.NewValidator()
	validator.Required("category", payload.Category, "is required")
	validator.NonNegative("rate", payload.Rate)
	if validator.Reject(w, requestID) {
		return
	}

	rate, err := h.Service.UpsertRate(r.Context(), payroll.CategoryRate{Category: payload.Category, Rate: payload.Rate})
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, rate, requestID)
}

func (h *Handler) handleDeleteRate(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteRate(r.Context(), chi.URLParam(r, "category")); err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, map[string]bool{"deleted": true}, middleware.GetRequestID(r.Context()))
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
	case errors.Is(err, payroll.ErrRateNotFound):
		api.Fail(w, http.StatusNotFound, "rate_not_found", "category rate not found", requestID)
	case errors.Is(err, payroll.ErrInvalidRate), errors.Is(err, payroll.ErrInvalidSettings):
		api.Fail(w, http.StatusBadRequest, "invalid_settings", err.Error(), requestID)
	default:
		slog.Error("settings request failed", "path", r.URL.Path, "err", err)
		api.Fail(w, http.StatusInternalServerError, "settings_failed", "settings request failed", requestID)
	}
}
