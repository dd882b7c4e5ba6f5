// Package models defines domain models for QueryWatch.
package models

import "time"

// EntryKind discriminates the two variants of a history entry.
type EntryKind string

const (
	EntryDefinitionChange EntryKind = "definition_change"
	EntryExecution        EntryKind = "execution"
)

// FieldDiff records one changed field between two versions of an alert,
// or between two execution summaries.
type FieldDiff struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// HistoryEntry is an immutable, sequenced audit record of either a
// definition change or an execution outcome. Sequence numbers are
// monotonic per alert and 1-based; exactly one entry per alert is
// current, and it is always the one with the highest sequence number.
type HistoryEntry struct {
	ID        string      `json:"id"`
	AlertID   string      `json:"alert_id"`
	Seq       int64       `json:"seq"`
	Kind      EntryKind   `json:"kind"`
	Diffs     []FieldDiff `json:"diffs,omitempty"`
	IsCurrent bool        `json:"is_current"`
	CreatedAt time.Time   `json:"created_at"`

	// Execution snapshot, set only for EntryExecution.
	Status      Status `json:"status,omitempty"`
	ResultCount *int   `json:"result_count,omitempty"`
	Error       string `json:"error,omitempty"`
}
