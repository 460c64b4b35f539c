// Package api exposes the alert management surface: CRUD, check history,
// snooze controls and manual checks, plus health and metrics endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"alertpulse/internal/alerts"
	"alertpulse/internal/detector"
	"alertpulse/internal/engine"
	"alertpulse/internal/storage"
)

// AlertStore is the slice of the repository the handlers use.
type AlertStore interface {
	ListAlerts(ctx context.Context) ([]alerts.Alert, error)
	GetAlert(ctx context.Context, id string) (alerts.Alert, error)
	CreateAlert(ctx context.Context, a alerts.Alert) error
	UpdateAlert(ctx context.Context, a alerts.Alert) error
	DeleteAlert(ctx context.Context, id string) error
	ListChecks(ctx context.Context, alertID string, limit int) ([]alerts.Check, error)
}

// Publisher emits configuration events so the worker reacts without polling.
type Publisher interface {
	Publish(subject string, payload any) error
}

// Jobs is the scheduler surface the handlers drive.
type Jobs interface {
	ForceCheck(ctx context.Context, id string) (engine.Outcome, error)
	Snooze(ctx context.Context, id string, until time.Time) error
	ClearSnooze(ctx context.Context, id string) error
	Inflight() []string
}

type Handler struct {
	Repo    AlertStore
	Bus     Publisher
	Jobs    Jobs
	Timeout time.Duration

	// AllowAdvancedDetectors gates zscore/mad at acceptance only.
	AllowAdvancedDetectors bool
}

type errorResponse struct {
	Ok      bool                 `json:"ok"`
	Code    string               `json:"code"`
	Message string               `json:"message"`
	Details []alerts.ErrorDetail `json:"details,omitempty"`
}

type snoozeRequest struct {
	Until time.Time `json:"until"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/alerts", func(r chi.Router) {
		r.Post("/", h.handleAlertCreate)
		r.Get("/", h.handleAlertList)
		r.Get("/{id}", h.handleAlertGet)
		r.Put("/{id}", h.handleAlertUpdate)
		r.Delete("/{id}", h.handleAlertDelete)
		r.Post("/{id}/enable", h.handleAlertEnable)
		r.Post("/{id}/disable", h.handleAlertDisable)
		r.Post("/{id}/snooze", h.handleAlertSnooze)
		r.Post("/{id}/unsnooze", h.handleAlertUnsnooze)
		r.Post("/{id}/check", h.handleAlertCheck)
		r.Get("/{id}/checks", h.handleAlertChecks)
	})
	r.Get("/jobs/inflight", h.handleJobsInflight)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// accept validates an incoming alert spec; nil return means accepted.
func (h *Handler) accept(a alerts.Alert) *alerts.ValidationError {
	if verr := alerts.Validate(a); verr != nil {
		return verr
	}
	if !h.AllowAdvancedDetectors && a.Detector != nil && a.Detector.Type != detector.TypeThreshold {
		return &alerts.ValidationError{
			Code:    "DETECTOR_NOT_ENABLED",
			Message: "advanced detectors are not enabled",
			Details: []alerts.ErrorDetail{{
				Field:   "detector.type",
				Problem: "not enabled",
				Hint:    "Only threshold detectors are accepted on this deployment",
			}},
		}
	}
	return nil
}

func (h *Handler) handleAlertCreate(w http.ResponseWriter, r *http.Request) {
	var alert alerts.Alert
	if err := decodeJSON(r, &alert); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}
	if verr := h.accept(alert); verr != nil {
		writeValidationError(w, verr)
		return
	}
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	if err := h.Repo.CreateAlert(ctx, alert); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "STORAGE_ERROR", Message: "failed to persist alert"})
		return
	}
	_ = h.Bus.Publish("alert.created", map[string]any{"alert_id": alert.ID})
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "alert": alert})
}

func (h *Handler) handleAlertList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	list, err := h.Repo.ListAlerts(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "STORAGE_ERROR", Message: "failed to list alerts"})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleAlertGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	alert, err := h.Repo.GetAlert(ctx, id)
	if err != nil {
		writeNotFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (h *Handler) handleAlertUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var alert alerts.Alert
	if err := decodeJSON(r, &alert); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}
	alert.ID = id
	if verr := h.accept(alert); verr != nil {
		writeValidationError(w, verr)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	if err := h.Repo.UpdateAlert(ctx, alert); err != nil {
		writeNotFound(w, err)
		return
	}
	_ = h.Bus.Publish("alert.updated", map[string]any{"alert_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "alert": alert})
}

func (h *Handler) handleAlertDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	if err := h.Repo.DeleteAlert(ctx, id); err != nil {
		writeNotFound(w, err)
		return
	}
	_ = h.Bus.Publish("alert.deleted", map[string]any{"alert_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool, subject string) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	alert, err := h.Repo.GetAlert(ctx, id)
	if err != nil {
		writeNotFound(w, err)
		return
	}
	alert.Enabled = enabled
	if err := h.Repo.UpdateAlert(ctx, alert); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "STORAGE_ERROR", Message: "failed to update alert"})
		return
	}
	_ = h.Bus.Publish(subject, map[string]any{"alert_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleAlertEnable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true, "alert.enabled")
}

func (h *Handler) handleAlertDisable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false, "alert.disabled")
}

func (h *Handler) handleAlertSnooze(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req snoozeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}
	if !req.Until.After(time.Now().UTC()) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "snooze until must be in the future"})
		return
	}
	if err := h.Jobs.Snooze(r.Context(), id, req.Until.UTC()); err != nil {
		writeNotFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "snoozedUntil": req.Until.UTC()})
}

func (h *Handler) handleAlertUnsnooze(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Jobs.ClearSnooze(r.Context(), id); err != nil {
		writeNotFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleAlertCheck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	outcome, err := h.Jobs.ForceCheck(r.Context(), id)
	if err != nil {
		writeCheckError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"skipped":  outcome.Skipped,
		"state":    outcome.State,
		"notified": outcome.Notified,
		"check":    outcome.Check,
	})
}

func (h *Handler) handleAlertChecks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid limit"})
			return
		}
		limit = parsed
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	checks, err := h.Repo.ListChecks(ctx, id, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "STORAGE_ERROR", Message: "failed to list checks"})
		return
	}
	writeJSON(w, http.StatusOK, checks)
}

func (h *Handler) handleJobsInflight(w http.ResponseWriter, r *http.Request) {
	ids := h.Jobs.Inflight()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"inflight": ids})
}

func writeValidationError(w http.ResponseWriter, verr *alerts.ValidationError) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Code:    verr.Code,
		Message: verr.Message,
		Details: verr.Details,
	})
}

func writeNotFound(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "alert not found"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "STORAGE_ERROR", Message: err.Error()})
}

func writeCheckError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "alert not found"})
	default:
		// Busy and disabled alerts are caller errors, not server faults.
		writeJSON(w, http.StatusConflict, errorResponse{Code: "CHECK_REJECTED", Message: err.Error()})
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
