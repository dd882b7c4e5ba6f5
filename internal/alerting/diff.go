package alerting

import (
	"strconv"

	"github.com/brisk-orange-fox/querywatch/internal/models"
)

// definitionFields flattens the versioned definition fields of an alert
// into string form for diffing. Derived fields (status, timestamps,
// last result) are not part of the definition.
func definitionFields(a *models.Alert) map[string]string {
	return map[string]string{
		"name":           a.Name,
		"context":        a.Context,
		"description":    a.Description,
		"query":          a.Query,
		"threshold":      strconv.Itoa(a.Threshold),
		"schedule":       a.Schedule,
		"data_source_id": a.DataSourceID,
	}
}

// fieldOrder fixes the order diffs are emitted in, so history entries are
// stable across runs.
var fieldOrder = []string{"name", "context", "description", "query", "threshold", "schedule", "data_source_id"}

// definitionDiffs returns one {field, old, new} pair per changed field
// between two versions of an alert definition. Unchanged fields are omitted.
func definitionDiffs(old, updated *models.Alert) []models.FieldDiff {
	oldFields := definitionFields(old)
	newFields := definitionFields(updated)

	var diffs []models.FieldDiff
	for _, field := range fieldOrder {
		if oldFields[field] != newFields[field] {
			diffs = append(diffs, models.FieldDiff{Field: field, Old: oldFields[field], New: newFields[field]})
		}
	}
	return diffs
}

// creationDiffs diffs a new alert against the empty baseline for history
// entry #1. Empty optional fields are omitted.
func creationDiffs(a *models.Alert) []models.FieldDiff {
	fields := definitionFields(a)

	var diffs []models.FieldDiff
	for _, field := range fieldOrder {
		if fields[field] != "" {
			diffs = append(diffs, models.FieldDiff{Field: field, Old: "", New: fields[field]})
		}
	}
	return diffs
}

// executionDiffs compares an execution summary against the previous
// execution entry, or against the never-run baseline when there is none.
func executionDiffs(prev *models.HistoryEntry, status models.Status, resultCount *int) []models.FieldDiff {
	oldStatus := string(models.StatusNeverRun)
	oldCount := ""
	if prev != nil {
		oldStatus = string(prev.Status)
		oldCount = formatCount(prev.ResultCount)
	}

	var diffs []models.FieldDiff
	if newStatus := string(status); newStatus != oldStatus {
		diffs = append(diffs, models.FieldDiff{Field: "status", Old: oldStatus, New: newStatus})
	}
	if newCount := formatCount(resultCount); newCount != oldCount {
		diffs = append(diffs, models.FieldDiff{Field: "result_count", Old: oldCount, New: newCount})
	}
	return diffs
}

func formatCount(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
