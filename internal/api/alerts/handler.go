// Package alerts provides HTTP handlers for alert management.
package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brisk-orange-fox/querywatch/internal/alerting"
	"github.com/brisk-orange-fox/querywatch/internal/models"
)

// Response helpers
type errorResponse struct {
	Error errorBody `json:"error"`
}
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
type dataResponse struct {
	Data any `json:"data"`
}

const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeNotFound         = "NOT_FOUND"
	errCodeInternalError    = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Service is the alert engine surface the handler needs.
type Service interface {
	Create(ctx context.Context, f alerting.AlertFields) (*models.Alert, error)
	Edit(ctx context.Context, id string, f alerting.AlertFields) (*models.Alert, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Alert, error)
	List(ctx context.Context, contextTag string) ([]*models.Alert, error)
	History(ctx context.Context, id string) ([]*models.HistoryEntry, error)
	Run(ctx context.Context, id string) (*models.ExecutionOutcome, error)
}

// Handler handles alert endpoints.
type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Request and response types
type AlertRequest struct {
	Name         string `json:"name"`
	Context      string `json:"context"`
	Description  string `json:"description"`
	Query        string `json:"query"`
	Threshold    int    `json:"threshold"`
	Schedule     string `json:"schedule"`
	DataSourceID string `json:"data_source_id"`
}

type AlertResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Context         string `json:"context,omitempty"`
	Description     string `json:"description,omitempty"`
	Query           string `json:"query"`
	Threshold       int    `json:"threshold"`
	Schedule        string `json:"schedule,omitempty"`
	DataSourceID    string `json:"data_source_id"`
	Status          string `json:"status"`
	StatusLabel     string `json:"status_label"`
	LastRunAt       string `json:"last_run_at,omitempty"`
	LastResultCount *int   `json:"last_result_count,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type RunResponse struct {
	AlertID     string `json:"alert_id"`
	Status      string `json:"status"`
	ResultCount *int   `json:"result_count,omitempty"`
	Error       string `json:"error,omitempty"`
	StartedAt   string `json:"started_at"`
	DurationMS  int64  `json:"duration_ms"`
}

type HistoryEntryResponse struct {
	ID          string             `json:"id"`
	AlertID     string             `json:"alert_id"`
	Seq         int64              `json:"seq"`
	Kind        string             `json:"kind"`
	Diffs       []models.FieldDiff `json:"diffs,omitempty"`
	IsCurrent   bool               `json:"is_current"`
	Status      string             `json:"status,omitempty"`
	ResultCount *int               `json:"result_count,omitempty"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   string             `json:"created_at"`
}

// writeServiceError maps engine errors to HTTP responses. Validation
// rejections carry their reason verbatim so callers can see why the
// definition was refused.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var rej *alerting.Rejection
	var schedErr *alerting.ScheduleError

	switch {
	case errors.As(err, &rej):
		jsonError(w, http.StatusUnprocessableEntity, errCodeValidationFailed, rej.Reason)
	case errors.As(err, &schedErr):
		jsonError(w, http.StatusUnprocessableEntity, errCodeValidationFailed, schedErr.Error())
	case errors.Is(err, alerting.ErrNotFound):
		jsonError(w, http.StatusNotFound, errCodeNotFound, err.Error())
	default:
		log.Printf("%s error: %v", op, err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
	}
}

func (r *AlertRequest) fields() alerting.AlertFields {
	return alerting.AlertFields{
		Name:         strings.TrimSpace(r.Name),
		Context:      strings.TrimSpace(r.Context),
		Description:  strings.TrimSpace(r.Description),
		Query:        strings.TrimSpace(r.Query),
		Threshold:    r.Threshold,
		Schedule:     strings.TrimSpace(r.Schedule),
		DataSourceID: r.DataSourceID,
	}
}

// List returns all alerts, optionally filtered by ?context=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.List(r.Context(), r.URL.Query().Get("context"))
	if err != nil {
		writeServiceError(w, "list alerts", err)
		return
	}

	resp := make([]*AlertResponse, len(alerts))
	for i, a := range alerts {
		resp[i] = alertToResponse(a)
	}
	jsonOK(w, resp)
}

// Create creates a new alert after validating it against the live data source.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req AlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	f := req.fields()
	if err := validateFields(f); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	alert, err := h.service.Create(r.Context(), f)
	if err != nil {
		writeServiceError(w, "create alert", err)
		return
	}

	jsonCreated(w, alertToResponse(alert))
}

// GetByID returns an alert by ID.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	alert, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get alert", err)
		return
	}
	jsonOK(w, alertToResponse(alert))
}

// Update replaces the alert definition.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	var req AlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	f := req.fields()
	if err := validateFields(f); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	alert, err := h.service.Edit(r.Context(), id, f)
	if err != nil {
		writeServiceError(w, "update alert", err)
		return
	}
	jsonOK(w, alertToResponse(alert))
}

// Delete removes an alert and its history. Deleting twice is not an error.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, "delete alert", err)
		return
	}
	jsonNoContent(w)
}

// Run executes the alert now and returns the outcome. A failing query is a
// 200 with a broken outcome, not an error status.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	outcome, err := h.service.Run(r.Context(), id)
	if err != nil {
		writeServiceError(w, "run alert", err)
		return
	}

	jsonOK(w, &RunResponse{
		AlertID:     outcome.AlertID,
		Status:      string(outcome.Status),
		ResultCount: outcome.ResultCount,
		Error:       outcome.Error,
		StartedAt:   outcome.StartedAt.Format(time.RFC3339),
		DurationMS:  outcome.Duration.Milliseconds(),
	})
}

// History returns the alert's versioned ledger, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		writeServiceError(w, "alert history", err)
		return
	}

	resp := make([]*HistoryEntryResponse, len(entries))
	for i, e := range entries {
		resp[i] = historyToResponse(e)
	}
	jsonOK(w, resp)
}

func alertToResponse(a *models.Alert) *AlertResponse {
	resp := &AlertResponse{
		ID:              a.ID,
		Name:            a.Name,
		Context:         a.Context,
		Description:     a.Description,
		Query:           a.Query,
		Threshold:       a.Threshold,
		Schedule:        a.Schedule,
		DataSourceID:    a.DataSourceID,
		Status:          string(a.Status),
		StatusLabel:     a.StatusLabel(),
		LastResultCount: a.LastResultCount,
		CreatedAt:       a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       a.UpdatedAt.Format(time.RFC3339),
	}
	if a.LastRunAt != nil {
		resp.LastRunAt = a.LastRunAt.Format(time.RFC3339)
	}
	return resp
}

func historyToResponse(e *models.HistoryEntry) *HistoryEntryResponse {
	return &HistoryEntryResponse{
		ID:          e.ID,
		AlertID:     e.AlertID,
		Seq:         e.Seq,
		Kind:        string(e.Kind),
		Diffs:       e.Diffs,
		IsCurrent:   e.IsCurrent,
		Status:      string(e.Status),
		ResultCount: e.ResultCount,
		Error:       e.Error,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}
