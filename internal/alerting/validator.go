package alerting

import (
	"context"
	"fmt"

	"github.com/brisk-orange-fox/querywatch/internal/metrics"
	"github.com/brisk-orange-fox/querywatch/internal/models"
	"github.com/brisk-orange-fox/querywatch/internal/storage"
)

// SourceClient is the data source access the engine needs: a connectivity
// probe, a syntax dry-run, and query execution. Implemented by
// source.Client; test code substitutes fakes.
type SourceClient interface {
	Probe(ctx context.Context, ds *models.DataSource) error
	CheckSyntax(ctx context.Context, ds *models.DataSource, query string) error
	Count(ctx context.Context, ds *models.DataSource, query string) (int, error)
}

// Validator gates alert creates and edits so that broken definitions are
// never persisted as valid. It runs synchronously and is not invoked again
// at execution time: a definition may still break later because the
// referenced data source can be mutated independently.
type Validator struct {
	store   storage.Storage
	sources SourceClient
}

// NewValidator creates a validator backed by the given store and client.
func NewValidator(store storage.Storage, sources SourceClient) *Validator {
	return &Validator{store: store, sources: sources}
}

// Validate checks connectivity to the data source, then dry-runs the query.
// On failure it returns a *Rejection whose reason contains "could not
// connect" or "invalid query" depending on the cause; callers propagate the
// message verbatim. No side effects on success or failure.
func (v *Validator) Validate(ctx context.Context, dataSourceID, query string) error {
	ds, err := v.store.DataSources().GetByID(ctx, dataSourceID)
	if err != nil {
		return fmt.Errorf("resolve data source: %w", err)
	}
	if ds == nil {
		return fmt.Errorf("data source %s: %w", dataSourceID, ErrNotFound)
	}

	if err := v.sources.Probe(ctx, ds); err != nil {
		metrics.ValidationRejectionsTotal.Inc()
		return &Rejection{Reason: err.Error()}
	}

	if err := v.sources.CheckSyntax(ctx, ds, query); err != nil {
		metrics.ValidationRejectionsTotal.Inc()
		return &Rejection{Reason: fmt.Sprintf("invalid query: %v", err)}
	}

	return nil
}
