// Package datasources provides HTTP handlers for data source management.
package datasources

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brisk-orange-fox/querywatch/internal/metrics"
	"github.com/brisk-orange-fox/querywatch/internal/models"
	"github.com/brisk-orange-fox/querywatch/internal/storage"
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
	errCodeConflict         = "CONFLICT"
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

// Prober checks live connectivity to a data source.
type Prober interface {
	Probe(ctx context.Context, ds *models.DataSource) error
}

// Handler handles data source endpoints.
type Handler struct {
	storage storage.Storage
	prober  Prober
}

func NewHandler(store storage.Storage, prober Prober) *Handler {
	return &Handler{storage: store, prober: prober}
}

// Request and response types
type DataSourceRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Driver      string `json:"driver"`
	Server      string `json:"server"`
	Port        int    `json:"port"`
	Database    string `json:"database"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

// DataSourceResponse never carries the password.
type DataSourceResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Driver      string `json:"driver"`
	Server      string `json:"server"`
	Port        int    `json:"port"`
	Database    string `json:"database,omitempty"`
	Username    string `json:"username,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type ProbeResponse struct {
	Status string `json:"status"` // ok or failed
	Error  string `json:"error,omitempty"`
}

func (req *DataSourceRequest) validate() (models.Driver, error) {
	if strings.TrimSpace(req.Name) == "" {
		return "", errRequired("name")
	}
	driver, err := models.ParseDriver(req.Driver)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Server) == "" {
		return "", errRequired("server")
	}
	if req.Port <= 0 || req.Port > 65535 {
		return "", errPort(req.Port)
	}
	return driver, nil
}

// List returns all registered data sources.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sources, err := h.storage.DataSources().List(r.Context())
	if err != nil {
		log.Printf("list data sources error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	resp := make([]*DataSourceResponse, len(sources))
	for i, ds := range sources {
		resp[i] = sourceToResponse(ds)
	}
	jsonOK(w, resp)
}

// Create registers a new data source. Connection parameters are stored as
// given; reachability is checked by Probe and at alert validation time, not
// here.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req DataSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	driver, err := req.validate()
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()
	name := strings.TrimSpace(req.Name)

	existing, err := h.storage.DataSources().GetByName(ctx, name)
	if err != nil {
		log.Printf("create data source error: check name: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, errCodeConflict, "data source name already in use")
		return
	}

	now := time.Now()
	ds := &models.DataSource{
		ID:          uuid.New().String(),
		Name:        name,
		DisplayName: strings.TrimSpace(req.DisplayName),
		Driver:      driver,
		Server:      strings.TrimSpace(req.Server),
		Port:        req.Port,
		Database:    strings.TrimSpace(req.Database),
		Username:    req.Username,
		Password:    req.Password,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.storage.DataSources().Create(ctx, ds); err != nil {
		log.Printf("create data source error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	log.Printf("data source created: %s (%s)", ds.Name, ds.ID)
	jsonCreated(w, sourceToResponse(ds))
}

// GetByID returns a data source by ID.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "data source id required")
		return
	}

	ds, err := h.storage.DataSources().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("get data source error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if ds == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "data source not found")
		return
	}
	jsonOK(w, sourceToResponse(ds))
}

// Update replaces the data source's connection parameters. Alerts
// referencing the source are deliberately not re-validated: their next
// execution will surface any breakage as a broken outcome.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "data source id required")
		return
	}

	var req DataSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	driver, err := req.validate()
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()
	ds, err := h.storage.DataSources().GetByID(ctx, id)
	if err != nil {
		log.Printf("update data source error: get: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if ds == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "data source not found")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name != ds.Name {
		existing, err := h.storage.DataSources().GetByName(ctx, name)
		if err != nil {
			log.Printf("update data source error: check name: %v", err)
			jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
			return
		}
		if existing != nil {
			jsonError(w, http.StatusConflict, errCodeConflict, "data source name already in use")
			return
		}
	}

	ds.Name = name
	ds.DisplayName = strings.TrimSpace(req.DisplayName)
	ds.Driver = driver
	ds.Server = strings.TrimSpace(req.Server)
	ds.Port = req.Port
	ds.Database = strings.TrimSpace(req.Database)
	ds.Username = req.Username
	if req.Password != "" {
		ds.Password = req.Password
	}
	ds.UpdatedAt = time.Now()

	if err := h.storage.DataSources().Update(ctx, ds); err != nil {
		log.Printf("update data source error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	log.Printf("data source updated: %s (%s)", ds.Name, ds.ID)
	jsonOK(w, sourceToResponse(ds))
}

// Delete removes a data source. Alerts referencing it are left in place and
// break at their next execution.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "data source id required")
		return
	}

	if err := h.storage.DataSources().Delete(r.Context(), id); err != nil {
		log.Printf("delete data source error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	log.Printf("data source deleted: %s", id)
	jsonNoContent(w)
}

// Probe checks live connectivity. The check result is the payload, so an
// unreachable backend is a 200 with status "failed", not an error status.
func (h *Handler) Probe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "data source id required")
		return
	}

	ctx := r.Context()
	ds, err := h.storage.DataSources().GetByID(ctx, id)
	if err != nil {
		log.Printf("probe data source error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if ds == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "data source not found")
		return
	}

	if err := h.prober.Probe(ctx, ds); err != nil {
		metrics.SourceProbesTotal.WithLabelValues("failed").Inc()
		jsonOK(w, &ProbeResponse{Status: "failed", Error: err.Error()})
		return
	}

	metrics.SourceProbesTotal.WithLabelValues("ok").Inc()
	jsonOK(w, &ProbeResponse{Status: "ok"})
}

func sourceToResponse(ds *models.DataSource) *DataSourceResponse {
	return &DataSourceResponse{
		ID:          ds.ID,
		Name:        ds.Name,
		DisplayName: ds.DisplayName,
		Driver:      string(ds.Driver),
		Server:      ds.Server,
		Port:        ds.Port,
		Database:    ds.Database,
		Username:    ds.Username,
		CreatedAt:   ds.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   ds.UpdatedAt.Format(time.RFC3339),
	}
}
