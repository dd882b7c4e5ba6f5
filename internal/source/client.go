// Package source talks to registered data sources: connectivity probes,
// syntax checks, and alert query execution.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brisk-orange-fox/querywatch/internal/models"
)

// ConnectError is a failed connectivity probe. Its message is safe for
// user-facing error text and always contains "could not connect".
type ConnectError struct {
	DataSource string
	Err        error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("could not connect to data source %s: %v", e.DataSource, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Client executes probes and queries against data sources.
type Client struct {
	dialTimeout time.Duration
}

// NewClient creates a client with the given connect timeout.
func NewClient(dialTimeout time.Duration) *Client {
	if dialTimeout == 0 {
		dialTimeout = 5 * time.Second
	}
	return &Client{dialTimeout: dialTimeout}
}

// Probe opens a short-lived connection and pings the backend. A timeout is
// reported as a connectivity failure, not a hang.
func (c *Client) Probe(ctx context.Context, ds *models.DataSource) error {
	db, err := open(ds, c.dialTimeout)
	if err != nil {
		return &ConnectError{DataSource: ds.Name, Err: err}
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return &ConnectError{DataSource: ds.Name, Err: err}
	}
	return nil
}

// CheckSyntax dry-runs the query through the backend's EXPLAIN so broken
// SQL is rejected without paying the cost of a real execution. The
// driver-reported error is returned verbatim; a stalled backend is a
// connectivity failure, not a hang.
func (c *Client) CheckSyntax(ctx context.Context, ds *models.DataSource, query string) error {
	db, err := open(ds, c.dialTimeout)
	if err != nil {
		return &ConnectError{DataSource: ds.Name, Err: err}
	}
	defer db.Close()

	explain := "EXPLAIN " + query
	if ds.Driver == models.DriverClickHouse {
		explain = "EXPLAIN SYNTAX " + query
	}

	ctx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	rows, err := db.QueryContext(ctx, explain)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &ConnectError{DataSource: ds.Name, Err: err}
		}
		return err
	}
	return rows.Close()
}

// Count executes the query and returns the number of rows it produced.
func (c *Client) Count(ctx context.Context, ds *models.DataSource, query string) (int, error) {
	db, err := open(ds, c.dialTimeout)
	if err != nil {
		return 0, &ConnectError{DataSource: ds.Name, Err: err}
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return count, nil
}
