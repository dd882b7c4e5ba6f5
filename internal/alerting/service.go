// Package alerting implements the alert monitoring engine: pre-commit
// validation, definition versioning, execution, and status classification.
package alerting

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/brisk-orange-fox/querywatch/internal/models"
	"github.com/brisk-orange-fox/querywatch/internal/storage"
)

// Service owns the alert lifecycle. All mutations of a given alert are
// serialized through a per-alert lock, so history sequence numbers never
// collide and the current-entry flag is never ambiguous; operations on
// different alerts run concurrently.
type Service struct {
	store       storage.Storage
	sources     SourceClient
	validator   *Validator
	locks       *alertLocks
	execTimeout time.Duration
	onChange    func()
}

// NewService creates the alert service. execTimeout bounds a single query
// execution; a timed-out run is recorded as a broken outcome.
func NewService(store storage.Storage, sources SourceClient, execTimeout time.Duration) *Service {
	if execTimeout == 0 {
		execTimeout = 30 * time.Second
	}
	return &Service{
		store:       store,
		sources:     sources,
		validator:   NewValidator(store, sources),
		locks:       newAlertLocks(),
		execTimeout: execTimeout,
	}
}

// OnChange registers a hook invoked after every successful create, edit or
// delete. The scheduler uses it to pick up schedule changes.
func (s *Service) OnChange(fn func()) {
	s.onChange = fn
}

func (s *Service) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}

// AlertFields is the caller-supplied definition of an alert.
type AlertFields struct {
	Name         string
	Context      string
	Description  string
	Query        string
	Threshold    int
	Schedule     string // cron expression; empty = manual only
	DataSourceID string
}

// validateSchedule rejects non-cron schedule text before the query
// validator is consulted.
func validateSchedule(expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return &ScheduleError{Expr: expr, Err: err}
	}
	return nil
}

// Create validates the definition against the live data source and
// persists the alert in the never-run state together with history entry #1.
// On rejection nothing is written.
func (s *Service) Create(ctx context.Context, f AlertFields) (*models.Alert, error) {
	if err := validateSchedule(f.Schedule); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(ctx, f.DataSourceID, f.Query); err != nil {
		return nil, err
	}

	now := time.Now()
	alert := &models.Alert{
		ID:           uuid.New().String(),
		Name:         f.Name,
		Context:      f.Context,
		Description:  f.Description,
		Query:        f.Query,
		Threshold:    f.Threshold,
		Schedule:     f.Schedule,
		DataSourceID: f.DataSourceID,
		Status:       models.StatusNeverRun,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	entry := &models.HistoryEntry{
		AlertID:   alert.ID,
		Kind:      models.EntryDefinitionChange,
		Diffs:     creationDiffs(alert),
		CreatedAt: now,
	}

	if err := s.store.Alerts().Create(ctx, alert, entry); err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}

	log.Printf("alert created: %s (%s)", alert.Name, alert.ID)
	s.notifyChange()
	return alert, nil
}

// Edit replaces the alert definition. The schedule is checked first, the
// query validator runs only when the query or data source changed, and one
// history entry records all changed fields of this call. If the alert has
// ever run, any definition change marks it needs-refreshing until the next
// execution.
func (s *Service) Edit(ctx context.Context, id string, f AlertFields) (*models.Alert, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	cur, err := s.store.Alerts().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	if cur == nil {
		return nil, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}

	if err := validateSchedule(f.Schedule); err != nil {
		return nil, err
	}

	updated := *cur
	updated.Name = f.Name
	updated.Context = f.Context
	updated.Description = f.Description
	updated.Query = f.Query
	updated.Threshold = f.Threshold
	updated.Schedule = f.Schedule
	updated.DataSourceID = f.DataSourceID

	diffs := definitionDiffs(cur, &updated)
	if len(diffs) == 0 {
		return cur, nil
	}

	if updated.Query != cur.Query || updated.DataSourceID != cur.DataSourceID {
		if err := s.validator.Validate(ctx, updated.DataSourceID, updated.Query); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	updated.UpdatedAt = now
	if cur.HasRun() {
		// Any definition edit after at least one execution stales the last
		// known outcome, even a description-only change.
		updated.Status = models.StatusNeedsRefreshing
	}

	entry := &models.HistoryEntry{
		AlertID:   id,
		Kind:      models.EntryDefinitionChange,
		Diffs:     diffs,
		CreatedAt: now,
	}

	if err := s.store.Alerts().Update(ctx, &updated, entry); err != nil {
		return nil, fmt.Errorf("update alert: %w", err)
	}

	log.Printf("alert updated: %s (%s), %d field(s) changed", updated.Name, id, len(diffs))
	s.notifyChange()
	return &updated, nil
}

// Delete removes the alert and its entire history. Deleting an unknown id
// is a no-op, so double deletes are safe. The per-alert lock makes delete
// wait for any in-flight edit or run on the same alert.
func (s *Service) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	cur, err := s.store.Alerts().GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get alert: %w", err)
	}
	if cur == nil {
		return nil
	}

	if err := s.store.Alerts().Delete(ctx, id); err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}

	log.Printf("alert deleted: %s (%s)", cur.Name, id)
	s.notifyChange()
	return nil
}

// Get returns an alert by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Alert, error) {
	alert, err := s.store.Alerts().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	if alert == nil {
		return nil, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return alert, nil
}

// List returns all alerts, optionally filtered by context tag.
func (s *Service) List(ctx context.Context, contextTag string) ([]*models.Alert, error) {
	if contextTag != "" {
		return s.store.Alerts().ListByContext(ctx, contextTag)
	}
	return s.store.Alerts().List(ctx)
}

// History returns the alert's ledger, newest entry first.
func (s *Service) History(ctx context.Context, id string) ([]*models.HistoryEntry, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.History().ListByAlert(ctx, id)
}
