// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"time"

	"github.com/brisk-orange-fox/querywatch/internal/models"
)

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error

	// Repository accessors
	Alerts() AlertRepository
	DataSources() DataSourceRepository
	History() HistoryRepository
}

// AlertRepository defines operations for alert management.
//
// Mutations that must be audit-logged take the history entry alongside the
// alert and commit both in a single transaction, so the ledger can never
// drift from the alert row and the is_current flag is never ambiguous.
type AlertRepository interface {
	// Create persists a new alert together with history entry #1.
	Create(ctx context.Context, alert *models.Alert, entry *models.HistoryEntry) error
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	// Update persists definition changes plus the entry recording them.
	Update(ctx context.Context, alert *models.Alert, entry *models.HistoryEntry) error
	// CommitExecution records an execution outcome: status, last_run_at and
	// last_result_count change together with the execution history entry;
	// created_at and updated_at are left untouched.
	CommitExecution(ctx context.Context, id string, status models.Status, runAt time.Time, resultCount *int, entry *models.HistoryEntry) error
	// Delete removes the alert; history entries cascade.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Alert, error)
	ListByContext(ctx context.Context, contextTag string) ([]*models.Alert, error)
	// ListScheduled returns alerts with a non-empty cron schedule.
	ListScheduled(ctx context.Context) ([]*models.Alert, error)
}

// DataSourceRepository defines operations for data source descriptors.
type DataSourceRepository interface {
	Create(ctx context.Context, ds *models.DataSource) error
	GetByID(ctx context.Context, id string) (*models.DataSource, error)
	GetByName(ctx context.Context, name string) (*models.DataSource, error)
	Update(ctx context.Context, ds *models.DataSource) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.DataSource, error)
}

// HistoryRepository reads the append-only alert ledger. Entries are written
// only through AlertRepository mutations and are never modified afterwards.
type HistoryRepository interface {
	// ListByAlert returns all entries for an alert, newest first.
	ListByAlert(ctx context.Context, alertID string) ([]*models.HistoryEntry, error)
	// LatestByKind returns the newest entry of the given kind, or nil.
	LatestByKind(ctx context.Context, alertID string, kind models.EntryKind) (*models.HistoryEntry, error)
	// Current returns the single current entry for an alert, or nil.
	Current(ctx context.Context, alertID string) (*models.HistoryEntry, error)
}
