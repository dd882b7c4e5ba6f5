package health

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteChecker checks metadata store connectivity.
type SQLiteChecker struct {
	db *sql.DB
}

// NewSQLiteChecker creates a new SQLite health checker.
func NewSQLiteChecker(db *sql.DB) *SQLiteChecker {
	return &SQLiteChecker{db: db}
}

// Name returns the checker name.
func (c *SQLiteChecker) Name() string {
	return "sqlite"
}

// Check verifies the SQLite database is accessible.
func (c *SQLiteChecker) Check(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return c.db.PingContext(ctx)
}

// SchedulerChecker reports whether the cron scheduler is running.
type SchedulerChecker struct {
	isRunning func() bool
}

// NewSchedulerChecker creates a scheduler health checker.
func NewSchedulerChecker(isRunning func() bool) *SchedulerChecker {
	return &SchedulerChecker{isRunning: isRunning}
}

// Name returns the checker name.
func (c *SchedulerChecker) Name() string {
	return "scheduler"
}

// Check verifies the scheduler is running.
func (c *SchedulerChecker) Check(ctx context.Context) error {
	if c.isRunning == nil || !c.isRunning() {
		return fmt.Errorf("scheduler not running")
	}
	return nil
}
