package alerting

import (
	"testing"

	"github.com/brisk-orange-fox/querywatch/internal/models"
)

func TestDefinitionDiffs(t *testing.T) {
	old := &models.Alert{
		Name:         "disk usage",
		Context:      "infra",
		Query:        "SELECT * FROM disks WHERE pct > 90",
		Threshold:    1,
		Schedule:     "0 * * * *",
		DataSourceID: "ds-1",
	}
	updated := *old
	updated.Name = "disk usage high"
	updated.Threshold = 3

	diffs := definitionDiffs(old, &updated)
	if len(diffs) != 2 {
		t.Fatalf("expected 2 diffs, got %d: %+v", len(diffs), diffs)
	}
	if diffs[0].Field != "name" || diffs[0].Old != "disk usage" || diffs[0].New != "disk usage high" {
		t.Errorf("unexpected name diff: %+v", diffs[0])
	}
	if diffs[1].Field != "threshold" || diffs[1].Old != "1" || diffs[1].New != "3" {
		t.Errorf("unexpected threshold diff: %+v", diffs[1])
	}
}

func TestDefinitionDiffsNoChange(t *testing.T) {
	a := &models.Alert{Name: "x", Query: "SELECT 1", Threshold: 1}
	b := *a
	if diffs := definitionDiffs(a, &b); len(diffs) != 0 {
		t.Errorf("expected no diffs, got %+v", diffs)
	}
}

func TestCreationDiffsOmitEmptyFields(t *testing.T) {
	a := &models.Alert{
		Name:         "orphans",
		Query:        "SELECT id FROM orders WHERE user_id IS NULL",
		Threshold:    1,
		DataSourceID: "ds-1",
	}

	diffs := creationDiffs(a)
	for _, d := range diffs {
		if d.Old != "" {
			t.Errorf("creation diff for %q has non-empty old value %q", d.Field, d.Old)
		}
		if d.Field == "context" || d.Field == "description" || d.Field == "schedule" {
			t.Errorf("empty field %q should be omitted", d.Field)
		}
	}
	if len(diffs) != 4 {
		t.Errorf("expected 4 diffs (name, query, threshold, data_source_id), got %d", len(diffs))
	}
}

func TestExecutionDiffsFirstRun(t *testing.T) {
	count := 7
	diffs := executionDiffs(nil, models.StatusBad, &count)

	if len(diffs) != 2 {
		t.Fatalf("expected 2 diffs, got %d: %+v", len(diffs), diffs)
	}
	if diffs[0].Field != "status" || diffs[0].Old != "never run" || diffs[0].New != "bad" {
		t.Errorf("unexpected status diff: %+v", diffs[0])
	}
	if diffs[1].Field != "result_count" || diffs[1].Old != "" || diffs[1].New != "7" {
		t.Errorf("unexpected result_count diff: %+v", diffs[1])
	}
}

func TestExecutionDiffsUnchangedOutcome(t *testing.T) {
	count := 0
	prev := &models.HistoryEntry{
		Kind:        models.EntryExecution,
		Status:      models.StatusGood,
		ResultCount: &count,
	}
	if diffs := executionDiffs(prev, models.StatusGood, &count); len(diffs) != 0 {
		t.Errorf("expected no diffs for identical outcome, got %+v", diffs)
	}
}
