package alerting

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/brisk-orange-fox/querywatch/internal/metrics"
	"github.com/brisk-orange-fox/querywatch/internal/models"
)

// Run executes the alert's query against its data source and commits the
// outcome: status, last_run_at, last_result_count and the execution history
// entry change in a single atomic commit. A connectivity or SQL failure is
// captured in the outcome as a broken status, never returned as an error;
// the error return covers only engine-level problems (unknown alert,
// storage failure).
func (s *Service) Run(ctx context.Context, alertID string) (*models.ExecutionOutcome, error) {
	unlock := s.locks.Lock(alertID)
	defer unlock()

	alert, err := s.store.Alerts().GetByID(ctx, alertID)
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	if alert == nil {
		return nil, fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
	}

	start := time.Now()
	outcome := &models.ExecutionOutcome{
		AlertID:   alertID,
		StartedAt: start,
	}

	count, execErr := s.execute(ctx, alert)
	outcome.Duration = time.Since(start)

	if execErr != nil {
		outcome.Error = execErr.Error()
		outcome.Status = models.StatusBroken
	} else {
		outcome.ResultCount = &count
		outcome.Status = Classify(count, alert.Threshold)
	}

	prevExec, err := s.store.History().LatestByKind(ctx, alertID, models.EntryExecution)
	if err != nil {
		return nil, fmt.Errorf("load previous execution: %w", err)
	}

	entry := &models.HistoryEntry{
		AlertID:     alertID,
		Kind:        models.EntryExecution,
		Diffs:       executionDiffs(prevExec, outcome.Status, outcome.ResultCount),
		Status:      outcome.Status,
		ResultCount: outcome.ResultCount,
		Error:       outcome.Error,
		CreatedAt:   start,
	}

	if err := s.store.Alerts().CommitExecution(ctx, alertID, outcome.Status, start, outcome.ResultCount, entry); err != nil {
		return nil, fmt.Errorf("commit execution: %w", err)
	}

	metrics.ExecutionsTotal.WithLabelValues(string(outcome.Status)).Inc()
	metrics.ExecutionDuration.Observe(outcome.Duration.Seconds())

	if outcome.Failed() {
		log.Printf("alert run failed: %s (%s): %s", alert.Name, alertID, outcome.Error)
	} else {
		log.Printf("alert run: %s (%s) rows=%d status=%s", alert.Name, alertID, count, outcome.Status)
	}
	return outcome, nil
}

// execute resolves the data source and runs the query with the engine's
// execution timeout. A deadline hit is reported as a timeout error, which
// the caller records as a broken outcome.
func (s *Service) execute(ctx context.Context, alert *models.Alert) (int, error) {
	ds, err := s.store.DataSources().GetByID(ctx, alert.DataSourceID)
	if err != nil {
		return 0, fmt.Errorf("resolve data source: %w", err)
	}
	if ds == nil {
		return 0, fmt.Errorf("data source %s is not registered", alert.DataSourceID)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.execTimeout)
	defer cancel()

	count, err := s.sources.Count(runCtx, ds, alert.Query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("execution timed out after %s: %w", s.execTimeout, err)
		}
		return 0, err
	}
	return count, nil
}
