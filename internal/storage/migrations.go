package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Data source descriptors. Connection parameters are opaque to
			-- the engine except for the probe and may be edited at any time.
			CREATE TABLE IF NOT EXISTS data_sources (
				id TEXT PRIMARY KEY,
				name TEXT UNIQUE NOT NULL,
				display_name TEXT NOT NULL,
				driver TEXT NOT NULL,
				server TEXT NOT NULL,
				port INTEGER NOT NULL,
				database_name TEXT NOT NULL,
				username TEXT,
				password TEXT,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Alerts. data_source_id is a non-owning reference: deleting or
			-- breaking the data source must not touch the alert, so there is
			-- deliberately no foreign key on it.
			CREATE TABLE IF NOT EXISTS alerts (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				context TEXT NOT NULL,
				description TEXT,
				query TEXT NOT NULL,
				threshold INTEGER NOT NULL,
				schedule TEXT,
				data_source_id TEXT NOT NULL,
				status TEXT NOT NULL,
				last_run_at DATETIME,
				last_result_count INTEGER,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Append-only history ledger, owned by the alert (cascade delete).
			CREATE TABLE IF NOT EXISTS alert_history (
				id TEXT PRIMARY KEY,
				alert_id TEXT NOT NULL,
				seq INTEGER NOT NULL,
				kind TEXT NOT NULL,
				diffs_json TEXT NOT NULL,
				status TEXT,
				result_count INTEGER,
				error TEXT,
				is_current INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				UNIQUE (alert_id, seq),
				FOREIGN KEY (alert_id) REFERENCES alerts(id) ON DELETE CASCADE
			);

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_alerts_context ON alerts(context);
			CREATE INDEX IF NOT EXISTS idx_alerts_schedule ON alerts(schedule);
			CREATE INDEX IF NOT EXISTS idx_history_alert ON alert_history(alert_id);
			CREATE INDEX IF NOT EXISTS idx_data_sources_name ON data_sources(name);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	// Create migrations table if not exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	// Apply pending migrations
	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		// Run migration in transaction
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		_, err = tx.Exec(m.Up)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
