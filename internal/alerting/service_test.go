package alerting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/brisk-orange-fox/querywatch/internal/models"
	"github.com/brisk-orange-fox/querywatch/internal/storage"
)

// memStore is an in-memory storage.Storage for service tests.
type memStore struct {
	alerts  map[string]*models.Alert
	sources map[string]*models.DataSource
	entries map[string][]*models.HistoryEntry
}

func newMemStore() *memStore {
	return &memStore{
		alerts:  make(map[string]*models.Alert),
		sources: make(map[string]*models.DataSource),
		entries: make(map[string][]*models.HistoryEntry),
	}
}

func (m *memStore) Open() error    { return nil }
func (m *memStore) Close() error   { return nil }
func (m *memStore) Migrate() error { return nil }

func (m *memStore) Alerts() storage.AlertRepository           { return &memAlerts{m} }
func (m *memStore) DataSources() storage.DataSourceRepository { return &memSources{m} }
func (m *memStore) History() storage.HistoryRepository        { return &memHistory{m} }

// appendEntry mimics the ledger invariants: 1-based monotonic sequence,
// exactly one current entry, always the newest.
func (m *memStore) appendEntry(entry *models.HistoryEntry) {
	list := m.entries[entry.AlertID]
	for _, e := range list {
		e.IsCurrent = false
	}
	e := *entry
	e.Seq = int64(len(list) + 1)
	e.IsCurrent = true
	m.entries[entry.AlertID] = append(list, &e)
}

type memAlerts struct{ s *memStore }

func (r *memAlerts) Create(ctx context.Context, alert *models.Alert, entry *models.HistoryEntry) error {
	a := *alert
	r.s.alerts[alert.ID] = &a
	r.s.appendEntry(entry)
	return nil
}

func (r *memAlerts) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	a, ok := r.s.alerts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *memAlerts) Update(ctx context.Context, alert *models.Alert, entry *models.HistoryEntry) error {
	if _, ok := r.s.alerts[alert.ID]; !ok {
		return fmt.Errorf("alert %s not found", alert.ID)
	}
	a := *alert
	r.s.alerts[alert.ID] = &a
	r.s.appendEntry(entry)
	return nil
}

func (r *memAlerts) CommitExecution(ctx context.Context, id string, status models.Status, runAt time.Time, resultCount *int, entry *models.HistoryEntry) error {
	a, ok := r.s.alerts[id]
	if !ok {
		return fmt.Errorf("alert %s not found", id)
	}
	a.Status = status
	a.LastRunAt = &runAt
	a.LastResultCount = resultCount
	r.s.appendEntry(entry)
	return nil
}

func (r *memAlerts) Delete(ctx context.Context, id string) error {
	delete(r.s.alerts, id)
	delete(r.s.entries, id)
	return nil
}

func (r *memAlerts) List(ctx context.Context) ([]*models.Alert, error) {
	var out []*models.Alert
	for _, a := range r.s.alerts {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memAlerts) ListByContext(ctx context.Context, contextTag string) ([]*models.Alert, error) {
	var out []*models.Alert
	for _, a := range r.s.alerts {
		if a.Context == contextTag {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memAlerts) ListScheduled(ctx context.Context) ([]*models.Alert, error) {
	var out []*models.Alert
	for _, a := range r.s.alerts {
		if a.Schedule != "" {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memSources struct{ s *memStore }

func (r *memSources) Create(ctx context.Context, ds *models.DataSource) error {
	cp := *ds
	r.s.sources[ds.ID] = &cp
	return nil
}

func (r *memSources) GetByID(ctx context.Context, id string) (*models.DataSource, error) {
	ds, ok := r.s.sources[id]
	if !ok {
		return nil, nil
	}
	cp := *ds
	return &cp, nil
}

func (r *memSources) GetByName(ctx context.Context, name string) (*models.DataSource, error) {
	for _, ds := range r.s.sources {
		if ds.Name == name {
			cp := *ds
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memSources) Update(ctx context.Context, ds *models.DataSource) error {
	cp := *ds
	r.s.sources[ds.ID] = &cp
	return nil
}

func (r *memSources) Delete(ctx context.Context, id string) error {
	delete(r.s.sources, id)
	return nil
}

func (r *memSources) List(ctx context.Context) ([]*models.DataSource, error) {
	var out []*models.DataSource
	for _, ds := range r.s.sources {
		cp := *ds
		out = append(out, &cp)
	}
	return out, nil
}

type memHistory struct{ s *memStore }

func (r *memHistory) ListByAlert(ctx context.Context, alertID string) ([]*models.HistoryEntry, error) {
	list := r.s.entries[alertID]
	out := make([]*models.HistoryEntry, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		cp := *list[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memHistory) LatestByKind(ctx context.Context, alertID string, kind models.EntryKind) (*models.HistoryEntry, error) {
	list := r.s.entries[alertID]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Kind == kind {
			cp := *list[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memHistory) Current(ctx context.Context, alertID string) (*models.HistoryEntry, error) {
	for _, e := range r.s.entries[alertID] {
		if e.IsCurrent {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

// fakeSourceClient is a canned SourceClient.
type fakeSourceClient struct {
	probeErr  error
	syntaxErr error
	count     int
	countErr  error

	probes       int
	syntaxChecks int
	counts       int
}

func (f *fakeSourceClient) Probe(ctx context.Context, ds *models.DataSource) error {
	f.probes++
	return f.probeErr
}

func (f *fakeSourceClient) CheckSyntax(ctx context.Context, ds *models.DataSource, query string) error {
	f.syntaxChecks++
	return f.syntaxErr
}

func (f *fakeSourceClient) Count(ctx context.Context, ds *models.DataSource, query string) (int, error) {
	f.counts++
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

func testService(t *testing.T) (*Service, *memStore, *fakeSourceClient) {
	t.Helper()
	store := newMemStore()
	store.sources["ds-1"] = &models.DataSource{
		ID:     "ds-1",
		Name:   "orders-db",
		Driver: models.DriverMySQL,
		Server: "127.0.0.1",
		Port:   3306,
	}
	client := &fakeSourceClient{}
	return NewService(store, client, 5*time.Second), store, client
}

func validFields() AlertFields {
	return AlertFields{
		Name:         "orphaned orders",
		Context:      "billing",
		Query:        "SELECT id FROM orders WHERE user_id IS NULL",
		Threshold:    5,
		DataSourceID: "ds-1",
	}
}

func TestCreateStartsNeverRun(t *testing.T) {
	svc, store, _ := testService(t)

	alert, err := svc.Create(context.Background(), validFields())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if alert.Status != models.StatusNeverRun {
		t.Errorf("new alert status = %q, want %q", alert.Status, models.StatusNeverRun)
	}
	if alert.LastRunAt != nil || alert.LastResultCount != nil {
		t.Error("new alert should have no execution fields set")
	}

	entries := store.entries[alert.ID]
	if len(entries) != 1 {
		t.Fatalf("expected 1 history entry after create, got %d", len(entries))
	}
	e := entries[0]
	if e.Kind != models.EntryDefinitionChange || e.Seq != 1 || !e.IsCurrent {
		t.Errorf("unexpected first entry: %+v", e)
	}
	if len(e.Diffs) == 0 {
		t.Error("first entry should record the initial definition")
	}
}

func TestCreateRejectedWhenSourceUnreachable(t *testing.T) {
	svc, store, client := testService(t)
	client.probeErr = errors.New("could not connect to data source orders-db: dial tcp 127.0.0.1:3306: connection refused")

	_, err := svc.Create(context.Background(), validFields())

	var rej *Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected *Rejection, got %v", err)
	}
	if !strings.Contains(rej.Reason, "could not connect") {
		t.Errorf("rejection reason %q should mention the connection failure", rej.Reason)
	}
	if len(store.alerts) != 0 || len(store.entries) != 0 {
		t.Error("rejected create must not persist anything")
	}
}

func TestCreateRejectedOnBadSyntax(t *testing.T) {
	svc, store, client := testService(t)
	client.syntaxErr = errors.New(`syntax error near "FORM"`)

	f := validFields()
	f.Query = "SELECT id FORM orders"
	_, err := svc.Create(context.Background(), f)

	var rej *Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected *Rejection, got %v", err)
	}
	if !strings.Contains(rej.Reason, "invalid query") {
		t.Errorf("rejection reason %q should mention the invalid query", rej.Reason)
	}
	if len(store.alerts) != 0 {
		t.Error("rejected create must not persist anything")
	}
}

func TestCreateRejectsBadSchedule(t *testing.T) {
	svc, _, client := testService(t)

	f := validFields()
	f.Schedule = "every 5 minutes"
	_, err := svc.Create(context.Background(), f)

	var schedErr *ScheduleError
	if !errors.As(err, &schedErr) {
		t.Fatalf("expected *ScheduleError, got %v", err)
	}
	if !strings.Contains(err.Error(), "cron") {
		t.Errorf("schedule error %q should mention cron", err.Error())
	}
	if client.probes != 0 {
		t.Error("schedule check must run before the data source is probed")
	}
}

func TestCreateUnknownDataSource(t *testing.T) {
	svc, _, _ := testService(t)

	f := validFields()
	f.DataSourceID = "nope"
	_, err := svc.Create(context.Background(), f)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEditRecordsOneEntryWithAllDiffs(t *testing.T) {
	svc, store, _ := testService(t)

	alert, err := svc.Create(context.Background(), validFields())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	f := validFields()
	f.Name = "orphaned orders v2"
	f.Threshold = 10
	updated, err := svc.Edit(context.Background(), alert.ID, f)
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}

	entries := store.entries[alert.ID]
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries after edit, got %d", len(entries))
	}
	e := entries[1]
	if e.Seq != 2 || !e.IsCurrent || e.Kind != models.EntryDefinitionChange {
		t.Errorf("unexpected edit entry: %+v", e)
	}
	if entries[0].IsCurrent {
		t.Error("previous entry must lose the current flag")
	}
	if len(e.Diffs) != 2 {
		t.Errorf("expected diffs for name and threshold, got %+v", e.Diffs)
	}
	if updated.Status != models.StatusNeverRun {
		t.Errorf("editing a never-run alert must not change its status, got %q", updated.Status)
	}
}

func TestEditAfterRunNeedsRefreshing(t *testing.T) {
	svc, _, _ := testService(t)

	alert, err := svc.Create(context.Background(), validFields())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Run(context.Background(), alert.ID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// A description-only edit still stales the last outcome.
	f := validFields()
	f.Description = "rows indicate a billing bug"
	updated, err := svc.Edit(context.Background(), alert.ID, f)
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}

	if updated.Status != models.StatusNeedsRefreshing {
		t.Errorf("status after post-run edit = %q, want %q", updated.Status, models.StatusNeedsRefreshing)
	}
	if !updated.CreatedAt.Equal(alert.CreatedAt) {
		t.Error("edit must not change created_at")
	}
}

func TestEditNoChangesIsNoOp(t *testing.T) {
	svc, store, _ := testService(t)

	alert, err := svc.Create(context.Background(), validFields())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := svc.Edit(context.Background(), alert.ID, validFields())
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if len(store.entries[alert.ID]) != 1 {
		t.Error("identical edit must not append a history entry")
	}
	if !got.UpdatedAt.Equal(alert.UpdatedAt) {
		t.Error("identical edit must not bump updated_at")
	}
}

func TestEditValidatesOnlyWhenQueryOrSourceChanges(t *testing.T) {
	svc, _, client := testService(t)

	alert, err := svc.Create(context.Background(), validFields())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	checksAfterCreate := client.syntaxChecks

	f := validFields()
	f.Name = "renamed"
	if _, err := svc.Edit(context.Background(), alert.ID, f); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if client.syntaxChecks != checksAfterCreate {
		t.Error("name-only edit must not re-validate the query")
	}

	f.Query = "SELECT id FROM orders WHERE user_id IS NULL AND total > 0"
	if _, err := svc.Edit(context.Background(), alert.ID, f); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if client.syntaxChecks != checksAfterCreate+1 {
		t.Error("query edit must re-validate against the data source")
	}
}

func TestEditUnknownAlert(t *testing.T) {
	svc, _, _ := testService(t)
	_, err := svc.Edit(context.Background(), "missing", validFields())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc, store, _ := testService(t)

	alert, err := svc.Create(context.Background(), validFields())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.Delete(context.Background(), alert.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(store.alerts) != 0 || len(store.entries) != 0 {
		t.Error("delete must remove the alert and its history")
	}
	if err := svc.Delete(context.Background(), alert.ID); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
}

func TestRunClassification(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		threshold int
		want      models.Status
	}{
		{"no rows", 0, 5, models.StatusGood},
		{"below threshold", 3, 5, models.StatusUnderThreshold},
		{"at threshold", 5, 5, models.StatusBad},
		{"zero threshold no rows", 0, 0, models.StatusGood},
		{"zero threshold one row", 1, 0, models.StatusBad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, client := testService(t)
			client.count = tt.count

			f := validFields()
			f.Threshold = tt.threshold
			alert, err := svc.Create(context.Background(), f)
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			outcome, err := svc.Run(context.Background(), alert.ID)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if outcome.Status != tt.want {
				t.Errorf("outcome status = %q, want %q", outcome.Status, tt.want)
			}
			if outcome.ResultCount == nil || *outcome.ResultCount != tt.count {
				t.Errorf("outcome result count = %v, want %d", outcome.ResultCount, tt.count)
			}

			stored := store.alerts[alert.ID]
			if stored.Status != tt.want {
				t.Errorf("stored status = %q, want %q", stored.Status, tt.want)
			}
			if stored.LastRunAt == nil {
				t.Error("last_run_at must be set after a run")
			}

			entries := store.entries[alert.ID]
			last := entries[len(entries)-1]
			if last.Kind != models.EntryExecution || !last.IsCurrent {
				t.Errorf("newest entry after run should be the current execution entry: %+v", last)
			}
		})
	}
}

func TestRunQueryFailureIsBrokenNotError(t *testing.T) {
	svc, store, client := testService(t)

	alert, err := svc.Create(context.Background(), validFields())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	client.countErr = errors.New("table orders does not exist")

	outcome, err := svc.Run(context.Background(), alert.ID)
	if err != nil {
		t.Fatalf("a failing query must not fail the run call: %v", err)
	}
	if outcome.Status != models.StatusBroken {
		t.Errorf("outcome status = %q, want %q", outcome.Status, models.StatusBroken)
	}
	if outcome.Error == "" {
		t.Error("broken outcome should carry the failure text")
	}
	if outcome.ResultCount != nil {
		t.Error("broken outcome must have no result count")
	}

	stored := store.alerts[alert.ID]
	if stored.Status != models.StatusBroken || stored.LastResultCount != nil {
		t.Errorf("stored alert after broken run: status=%q count=%v", stored.Status, stored.LastResultCount)
	}

	entries := store.entries[alert.ID]
	last := entries[len(entries)-1]
	if last.Error == "" {
		t.Error("execution entry should record the failure text")
	}
}

func TestRunMissingDataSourceIsBroken(t *testing.T) {
	svc, store, _ := testService(t)

	alert, err := svc.Create(context.Background(), validFields())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	delete(store.sources, "ds-1")

	outcome, err := svc.Run(context.Background(), alert.ID)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != models.StatusBroken {
		t.Errorf("outcome status = %q, want %q", outcome.Status, models.StatusBroken)
	}
}

func TestRunDoesNotTouchDefinitionTimestamps(t *testing.T) {
	svc, store, _ := testService(t)

	alert, err := svc.Create(context.Background(), validFields())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Run(context.Background(), alert.ID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	stored := store.alerts[alert.ID]
	if !stored.CreatedAt.Equal(alert.CreatedAt) || !stored.UpdatedAt.Equal(alert.UpdatedAt) {
		t.Error("execution must not modify created_at or updated_at")
	}
}

func TestRunUnknownAlert(t *testing.T) {
	svc, _, _ := testService(t)
	_, err := svc.Run(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	svc, _, _ := testService(t)

	alert, err := svc.Create(context.Background(), validFields())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Run(context.Background(), alert.ID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	entries, err := svc.History(context.Background(), alert.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Seq != 2 || entries[1].Seq != 1 {
		t.Errorf("history should be newest first: seqs %d, %d", entries[0].Seq, entries[1].Seq)
	}
	if !entries[0].IsCurrent || entries[1].IsCurrent {
		t.Error("only the newest entry may be current")
	}
}
