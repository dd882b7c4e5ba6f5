package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/brisk-orange-fox/querywatch/internal/models"
)

type sqliteAlertRepo struct {
	db *sql.DB
}

const alertColumns = `id, name, context, description, query, threshold, schedule,
		data_source_id, status, last_run_at, last_result_count, created_at, updated_at`

func (r *sqliteAlertRepo) Create(ctx context.Context, alert *models.Alert, entry *models.HistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create alert: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		alert.ID, alert.Name, alert.Context, alert.Description, alert.Query,
		alert.Threshold, alert.Schedule, alert.DataSourceID, alert.Status,
		alert.LastRunAt, alert.LastResultCount, alert.CreatedAt, alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}

	if err := appendHistoryTx(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *sqliteAlertRepo) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`
	return scanAlert(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteAlertRepo) Update(ctx context.Context, alert *models.Alert, entry *models.HistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update alert: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE alerts SET name = ?, context = ?, description = ?, query = ?,
			threshold = ?, schedule = ?, data_source_id = ?, status = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := tx.ExecContext(ctx, query,
		alert.Name, alert.Context, alert.Description, alert.Query,
		alert.Threshold, alert.Schedule, alert.DataSourceID, alert.Status,
		alert.UpdatedAt, alert.ID,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert not found: %s", alert.ID)
	}

	if err := appendHistoryTx(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *sqliteAlertRepo) CommitExecution(ctx context.Context, id string, status models.Status, runAt time.Time, resultCount *int, entry *models.HistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit execution: %w", err)
	}
	defer tx.Rollback()

	// Execution never touches created_at/updated_at.
	result, err := tx.ExecContext(ctx,
		"UPDATE alerts SET status = ?, last_run_at = ?, last_result_count = ? WHERE id = ?",
		status, runAt, resultCount, id,
	)
	if err != nil {
		return fmt.Errorf("commit execution: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert not found: %s", id)
	}

	if err := appendHistoryTx(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *sqliteAlertRepo) Delete(ctx context.Context, id string) error {
	// History entries cascade via foreign key.
	if _, err := r.db.ExecContext(ctx, "DELETE FROM alerts WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	return nil
}

func (r *sqliteAlertRepo) List(ctx context.Context) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts ORDER BY context, name`
	return r.queryAlerts(ctx, query)
}

func (r *sqliteAlertRepo) ListByContext(ctx context.Context, contextTag string) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE context = ? ORDER BY name`
	return r.queryAlerts(ctx, query, contextTag)
}

func (r *sqliteAlertRepo) ListScheduled(ctx context.Context) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE schedule IS NOT NULL AND schedule != '' ORDER BY context, name`
	return r.queryAlerts(ctx, query)
}

func (r *sqliteAlertRepo) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]*models.Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlertRow(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

func scanAlert(row *sql.Row) (*models.Alert, error) {
	alert := &models.Alert{}
	var description, schedule sql.NullString
	var lastRunAt sql.NullTime
	var lastResultCount sql.NullInt64

	err := row.Scan(
		&alert.ID, &alert.Name, &alert.Context, &description, &alert.Query,
		&alert.Threshold, &schedule, &alert.DataSourceID, &alert.Status,
		&lastRunAt, &lastResultCount, &alert.CreatedAt, &alert.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	fillAlertNullables(alert, description, schedule, lastRunAt, lastResultCount)
	return alert, nil
}

func scanAlertRow(rows *sql.Rows) (*models.Alert, error) {
	alert := &models.Alert{}
	var description, schedule sql.NullString
	var lastRunAt sql.NullTime
	var lastResultCount sql.NullInt64

	err := rows.Scan(
		&alert.ID, &alert.Name, &alert.Context, &description, &alert.Query,
		&alert.Threshold, &schedule, &alert.DataSourceID, &alert.Status,
		&lastRunAt, &lastResultCount, &alert.CreatedAt, &alert.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	fillAlertNullables(alert, description, schedule, lastRunAt, lastResultCount)
	return alert, nil
}

func fillAlertNullables(alert *models.Alert, description, schedule sql.NullString, lastRunAt sql.NullTime, lastResultCount sql.NullInt64) {
	alert.Description = description.String
	alert.Schedule = schedule.String
	if lastRunAt.Valid {
		t := lastRunAt.Time
		alert.LastRunAt = &t
	}
	if lastResultCount.Valid {
		n := int(lastResultCount.Int64)
		alert.LastResultCount = &n
	}
}
