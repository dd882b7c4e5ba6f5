package models

import (
	"fmt"
	"time"
)

// Status is the derived classification of an alert's most recent execution,
// or its freshness relative to definition edits. The string values are the
// stable labels callers substring-match against.
type Status string

const (
	StatusNeverRun        Status = "never run"
	StatusNeedsRefreshing Status = "needs refreshing"
	StatusBroken          Status = "broken"
	StatusGood            Status = "good"
	StatusUnderThreshold  Status = "under threshold"
	StatusBad             Status = "bad"
)

// HasSince reports whether the status reflects a real completed execution
// and therefore carries a "since <timestamp>" qualifier when rendered.
func (s Status) HasSince() bool {
	switch s {
	case StatusBroken, StatusGood, StatusUnderThreshold, StatusBad:
		return true
	}
	return false
}

// ParseStatus converts a string to Status.
func ParseStatus(s string) Status {
	switch s {
	case "needs refreshing":
		return StatusNeedsRefreshing
	case "broken":
		return StatusBroken
	case "good":
		return StatusGood
	case "under threshold":
		return StatusUnderThreshold
	case "bad":
		return StatusBad
	default:
		return StatusNeverRun
	}
}

// Alert is a named SQL query with a pass/fail threshold, run against a
// registered data source on a schedule or on demand.
type Alert struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Context         string     `json:"context"` // free-text grouping tag, not unique
	Description     string     `json:"description,omitempty"`
	Query           string     `json:"query"`
	Threshold       int        `json:"threshold"`
	Schedule        string     `json:"schedule,omitempty"` // cron expression; empty = manual only
	DataSourceID    string     `json:"data_source_id"`
	Status          Status     `json:"status"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	LastResultCount *int       `json:"last_result_count,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewAlert creates an Alert in the never-run state with initialized timestamps.
func NewAlert(name, context string) *Alert {
	now := time.Now()
	return &Alert{
		Name:      name,
		Context:   context,
		Status:    StatusNeverRun,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasRun reports whether the alert has been executed at least once.
func (a *Alert) HasRun() bool {
	return a.LastRunAt != nil
}

// StatusLabel renders the status for display, appending the
// "since <timestamp>" qualifier for statuses backed by an execution.
func (a *Alert) StatusLabel() string {
	if a.Status.HasSince() && a.LastRunAt != nil {
		return fmt.Sprintf("%s since %s", a.Status, a.LastRunAt.Format("2006-01-02 15:04:05"))
	}
	return string(a.Status)
}
