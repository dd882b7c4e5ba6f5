package models

import "time"

// ExecutionOutcome is the immutable record of a single alert execution.
// It is produced exclusively by the execution engine; a failed execution
// is an outcome with Error set, never an error returned to the caller.
type ExecutionOutcome struct {
	AlertID     string        `json:"alert_id"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	ResultCount *int          `json:"result_count,omitempty"` // nil on failure
	Error       string        `json:"error,omitempty"`
	Status      Status        `json:"status"`
}

// Failed reports whether the execution ended in a connectivity or SQL error.
func (o *ExecutionOutcome) Failed() bool {
	return o.Error != ""
}
