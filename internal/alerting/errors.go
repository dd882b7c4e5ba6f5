package alerting

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an alert or data source id is unknown.
var ErrNotFound = errors.New("not found")

// Rejection is a pre-commit validation failure. It is user-correctable and
// nothing is persisted when it is returned; the reason is propagated to the
// caller verbatim.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string {
	return r.Reason
}

// ScheduleError is a malformed cron expression. It is detected before the
// query validator runs.
type ScheduleError struct {
	Expr string
	Err  error
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("invalid schedule %q: cron format required: %v", e.Expr, e.Err)
}

func (e *ScheduleError) Unwrap() error {
	return e.Err
}
