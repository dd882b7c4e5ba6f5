package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brisk-orange-fox/querywatch/internal/alerting"
	"github.com/brisk-orange-fox/querywatch/internal/models"
)

// fakeService is a canned Service implementation.
type fakeService struct {
	alert   *models.Alert
	alerts  []*models.Alert
	entries []*models.HistoryEntry
	outcome *models.ExecutionOutcome
	err     error

	lastFields alerting.AlertFields
	deleted    []string
}

func (f *fakeService) Create(ctx context.Context, fields alerting.AlertFields) (*models.Alert, error) {
	f.lastFields = fields
	return f.alert, f.err
}

func (f *fakeService) Edit(ctx context.Context, id string, fields alerting.AlertFields) (*models.Alert, error) {
	f.lastFields = fields
	return f.alert, f.err
}

func (f *fakeService) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeService) Get(ctx context.Context, id string) (*models.Alert, error) {
	return f.alert, f.err
}

func (f *fakeService) List(ctx context.Context, contextTag string) ([]*models.Alert, error) {
	return f.alerts, f.err
}

func (f *fakeService) History(ctx context.Context, id string) ([]*models.HistoryEntry, error) {
	return f.entries, f.err
}

func (f *fakeService) Run(ctx context.Context, id string) (*models.ExecutionOutcome, error) {
	return f.outcome, f.err
}

func testRouter(svc Service) *chi.Mux {
	h := NewHandler(svc)
	r := chi.NewRouter()
	r.Get("/alerts", h.List)
	r.Post("/alerts", h.Create)
	r.Get("/alerts/{id}", h.GetByID)
	r.Put("/alerts/{id}", h.Update)
	r.Delete("/alerts/{id}", h.Delete)
	r.Post("/alerts/{id}/run", h.Run)
	r.Get("/alerts/{id}/history", h.History)
	return r
}

func testAlert() *models.Alert {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.Alert{
		ID:           "a-1",
		Name:         "orphaned orders",
		Context:      "billing",
		Query:        "SELECT id FROM orders WHERE user_id IS NULL",
		Threshold:    5,
		DataSourceID: "ds-1",
		Status:       models.StatusNeverRun,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func validBody() string {
	return `{"name":"orphaned orders","context":"billing","query":"SELECT id FROM orders WHERE user_id IS NULL","threshold":5,"data_source_id":"ds-1"}`
}

func TestCreateAlert(t *testing.T) {
	svc := &fakeService{alert: testAlert()}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/alerts", strings.NewReader(validBody()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data AlertResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Status != "never run" {
		t.Errorf("status = %q, want %q", resp.Data.Status, "never run")
	}
	if resp.Data.StatusLabel != "never run" {
		t.Errorf("status label = %q, want %q", resp.Data.StatusLabel, "never run")
	}
	if svc.lastFields.Name != "orphaned orders" {
		t.Errorf("service received name %q", svc.lastFields.Name)
	}
}

func TestCreateAlertZeroThreshold(t *testing.T) {
	alert := testAlert()
	alert.Threshold = 0
	svc := &fakeService{alert: alert}
	router := testRouter(svc)

	body := `{"name":"any failed orders","query":"SELECT id FROM orders WHERE failed","threshold":0,"data_source_id":"ds-1"}`
	req := httptest.NewRequest(http.MethodPost, "/alerts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// Threshold zero means any row at all fires the alert.
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if svc.lastFields.Threshold != 0 {
		t.Errorf("service received threshold %d, want 0", svc.lastFields.Threshold)
	}
}

func TestCreateAlertValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"query":"SELECT 1","threshold":1,"data_source_id":"ds-1"}`},
		{"missing query", `{"name":"x","threshold":1,"data_source_id":"ds-1"}`},
		{"negative threshold", `{"name":"x","query":"SELECT 1","threshold":-1,"data_source_id":"ds-1"}`},
		{"missing data source", `{"name":"x","query":"SELECT 1","threshold":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{alert: testAlert()}
			router := testRouter(svc)

			req := httptest.NewRequest(http.MethodPost, "/alerts", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if !bytes.Contains(rec.Body.Bytes(), []byte("VALIDATION_FAILED")) {
				t.Errorf("expected VALIDATION_FAILED in body: %s", rec.Body.String())
			}
		})
	}
}

func TestCreateAlertRejectionIs422(t *testing.T) {
	svc := &fakeService{err: &alerting.Rejection{
		Reason: "could not connect to data source orders-db: connection refused",
	}}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/alerts", strings.NewReader(validBody()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "could not connect") {
		t.Errorf("rejection reason must be passed through verbatim: %s", rec.Body.String())
	}
}

func TestCreateAlertBadScheduleIs422(t *testing.T) {
	svc := &fakeService{err: &alerting.ScheduleError{
		Expr: "whenever",
		Err:  fmt.Errorf("expected 5 fields"),
	}}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/alerts", strings.NewReader(validBody()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "cron") {
		t.Errorf("schedule error should mention cron: %s", rec.Body.String())
	}
}

func TestGetAlertNotFound(t *testing.T) {
	svc := &fakeService{err: fmt.Errorf("alert a-9: %w", alerting.ErrNotFound)}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/alerts/a-9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetAlertStatusLabelAfterRun(t *testing.T) {
	alert := testAlert()
	runAt := time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)
	count := 7
	alert.Status = models.StatusBad
	alert.LastRunAt = &runAt
	alert.LastResultCount = &count

	svc := &fakeService{alert: alert}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/alerts/a-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data AlertResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.StatusLabel != "bad since 2025-03-02 09:30:00" {
		t.Errorf("status label = %q", resp.Data.StatusLabel)
	}
}

func TestDeleteAlert(t *testing.T) {
	svc := &fakeService{}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/alerts/a-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != "a-1" {
		t.Errorf("service deletes = %v", svc.deleted)
	}
}

func TestRunAlertReturnsOutcome(t *testing.T) {
	count := 12
	svc := &fakeService{outcome: &models.ExecutionOutcome{
		AlertID:     "a-1",
		Status:      models.StatusBad,
		ResultCount: &count,
		StartedAt:   time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC),
		Duration:    150 * time.Millisecond,
	}}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/alerts/a-1/run", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data RunResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Status != "bad" || resp.Data.ResultCount == nil || *resp.Data.ResultCount != 12 {
		t.Errorf("unexpected run response: %+v", resp.Data)
	}
	if resp.Data.DurationMS != 150 {
		t.Errorf("duration_ms = %d, want 150", resp.Data.DurationMS)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	count := 3
	svc := &fakeService{entries: []*models.HistoryEntry{
		{
			ID: "h-2", AlertID: "a-1", Seq: 2, Kind: models.EntryExecution,
			IsCurrent: true, Status: models.StatusUnderThreshold, ResultCount: &count,
			CreatedAt: time.Now(),
		},
		{
			ID: "h-1", AlertID: "a-1", Seq: 1, Kind: models.EntryDefinitionChange,
			Diffs:     []models.FieldDiff{{Field: "name", Old: "", New: "orphaned orders"}},
			CreatedAt: time.Now(),
		},
	}}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/alerts/a-1/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data []*HistoryEntryResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(resp.Data))
	}
	if resp.Data[0].Kind != "execution" || !resp.Data[0].IsCurrent {
		t.Errorf("unexpected first entry: %+v", resp.Data[0])
	}
	if resp.Data[1].Kind != "definition_change" || len(resp.Data[1].Diffs) != 1 {
		t.Errorf("unexpected second entry: %+v", resp.Data[1])
	}
}

func TestCreateAlertBadJSON(t *testing.T) {
	router := testRouter(&fakeService{})

	req := httptest.NewRequest(http.MethodPost, "/alerts", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
