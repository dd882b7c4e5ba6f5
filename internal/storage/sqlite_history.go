package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/brisk-orange-fox/querywatch/internal/models"
)

type sqliteHistoryRepo struct {
	db *sql.DB
}

const historyColumns = `id, alert_id, seq, kind, diffs_json, status, result_count, error, is_current, created_at`

// appendHistoryTx inserts a history entry inside an open transaction. It
// assigns the next per-alert sequence number and moves the current flag to
// the new entry, so the "exactly one current = max seq" invariant holds at
// every commit point.
func appendHistoryTx(ctx context.Context, tx *sql.Tx, entry *models.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	var maxSeq sql.NullInt64
	err := tx.QueryRowContext(ctx,
		"SELECT MAX(seq) FROM alert_history WHERE alert_id = ?", entry.AlertID,
	).Scan(&maxSeq)
	if err != nil {
		return fmt.Errorf("next history seq: %w", err)
	}
	entry.Seq = maxSeq.Int64 + 1
	entry.IsCurrent = true

	if _, err := tx.ExecContext(ctx,
		"UPDATE alert_history SET is_current = 0 WHERE alert_id = ? AND is_current = 1",
		entry.AlertID,
	); err != nil {
		return fmt.Errorf("clear current history entry: %w", err)
	}

	diffsJSON, err := json.Marshal(entry.Diffs)
	if err != nil {
		return fmt.Errorf("marshal diffs: %w", err)
	}

	query := `
		INSERT INTO alert_history (` + historyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		entry.ID, entry.AlertID, entry.Seq, entry.Kind, string(diffsJSON),
		nullStatus(entry.Status), entry.ResultCount, nullString(entry.Error),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

func (r *sqliteHistoryRepo) ListByAlert(ctx context.Context, alertID string) ([]*models.HistoryEntry, error) {
	query := `SELECT ` + historyColumns + ` FROM alert_history WHERE alert_id = ? ORDER BY seq DESC`
	rows, err := r.db.QueryContext(ctx, query, alertID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		entry, err := scanHistoryRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *sqliteHistoryRepo) LatestByKind(ctx context.Context, alertID string, kind models.EntryKind) (*models.HistoryEntry, error) {
	query := `
		SELECT ` + historyColumns + ` FROM alert_history
		WHERE alert_id = ? AND kind = ? ORDER BY seq DESC LIMIT 1
	`
	rows, err := r.db.QueryContext(ctx, query, alertID, kind)
	if err != nil {
		return nil, fmt.Errorf("query latest history entry: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanHistoryRow(rows)
}

func (r *sqliteHistoryRepo) Current(ctx context.Context, alertID string) (*models.HistoryEntry, error) {
	query := `SELECT ` + historyColumns + ` FROM alert_history WHERE alert_id = ? AND is_current = 1`
	rows, err := r.db.QueryContext(ctx, query, alertID)
	if err != nil {
		return nil, fmt.Errorf("query current history entry: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanHistoryRow(rows)
}

func scanHistoryRow(rows *sql.Rows) (*models.HistoryEntry, error) {
	entry := &models.HistoryEntry{}
	var diffsJSON string
	var status, errText sql.NullString
	var resultCount sql.NullInt64
	var isCurrent int

	err := rows.Scan(
		&entry.ID, &entry.AlertID, &entry.Seq, &entry.Kind, &diffsJSON,
		&status, &resultCount, &errText, &isCurrent, &entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan history entry: %w", err)
	}

	if err := json.Unmarshal([]byte(diffsJSON), &entry.Diffs); err != nil {
		return nil, fmt.Errorf("unmarshal diffs: %w", err)
	}
	entry.Status = models.Status(status.String)
	entry.Error = errText.String
	entry.IsCurrent = isCurrent != 0
	if resultCount.Valid {
		n := int(resultCount.Int64)
		entry.ResultCount = &n
	}
	return entry, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStatus(s models.Status) sql.NullString {
	return nullString(string(s))
}
