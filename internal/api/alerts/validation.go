package alerts

import (
	"fmt"

	"github.com/brisk-orange-fox/querywatch/internal/alerting"
)

const (
	maxNameLength  = 255
	maxQueryLength = 16384
)

// validateFields checks the structural constraints of an alert definition.
// Semantic checks (schedule parsing, data source reachability, query syntax)
// belong to the engine.
func validateFields(f alerting.AlertFields) error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(f.Name) > maxNameLength {
		return fmt.Errorf("name must be at most %d characters", maxNameLength)
	}
	if f.Query == "" {
		return fmt.Errorf("query is required")
	}
	if len(f.Query) > maxQueryLength {
		return fmt.Errorf("query must be at most %d characters", maxQueryLength)
	}
	if f.Threshold < 0 {
		return fmt.Errorf("threshold must be non-negative")
	}
	if f.DataSourceID == "" {
		return fmt.Errorf("data_source_id is required")
	}
	return nil
}
