package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brisk-orange-fox/querywatch/internal/models"
)

type sqliteDataSourceRepo struct {
	db *sql.DB
}

const dataSourceColumns = `id, name, display_name, driver, server, port, database_name,
		username, password, created_at, updated_at`

func (r *sqliteDataSourceRepo) Create(ctx context.Context, ds *models.DataSource) error {
	query := `
		INSERT INTO data_sources (` + dataSourceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		ds.ID, ds.Name, ds.DisplayName, ds.Driver, ds.Server, ds.Port,
		ds.Database, nullString(ds.Username), nullString(ds.Password),
		ds.CreatedAt, ds.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert data source: %w", err)
	}
	return nil
}

func (r *sqliteDataSourceRepo) GetByID(ctx context.Context, id string) (*models.DataSource, error) {
	query := `SELECT ` + dataSourceColumns + ` FROM data_sources WHERE id = ?`
	return scanDataSource(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteDataSourceRepo) GetByName(ctx context.Context, name string) (*models.DataSource, error) {
	query := `SELECT ` + dataSourceColumns + ` FROM data_sources WHERE name = ?`
	return scanDataSource(r.db.QueryRowContext(ctx, query, name))
}

func (r *sqliteDataSourceRepo) Update(ctx context.Context, ds *models.DataSource) error {
	query := `
		UPDATE data_sources SET name = ?, display_name = ?, driver = ?, server = ?,
			port = ?, database_name = ?, username = ?, password = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		ds.Name, ds.DisplayName, ds.Driver, ds.Server, ds.Port, ds.Database,
		nullString(ds.Username), nullString(ds.Password), ds.UpdatedAt,
		ds.ID,
	)
	if err != nil {
		return fmt.Errorf("update data source: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("data source not found: %s", ds.ID)
	}
	return nil
}

func (r *sqliteDataSourceRepo) Delete(ctx context.Context, id string) error {
	// Referencing alerts are left untouched; a dangling data_source_id is
	// legal and surfaces as a broken outcome on the next run.
	if _, err := r.db.ExecContext(ctx, "DELETE FROM data_sources WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete data source: %w", err)
	}
	return nil
}

func (r *sqliteDataSourceRepo) List(ctx context.Context) ([]*models.DataSource, error) {
	query := `SELECT ` + dataSourceColumns + ` FROM data_sources ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query data sources: %w", err)
	}
	defer rows.Close()

	var sources []*models.DataSource
	for rows.Next() {
		ds, err := scanDataSourceRow(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, ds)
	}
	return sources, rows.Err()
}

func scanDataSource(row *sql.Row) (*models.DataSource, error) {
	ds := &models.DataSource{}
	var username, password sql.NullString

	err := row.Scan(
		&ds.ID, &ds.Name, &ds.DisplayName, &ds.Driver, &ds.Server, &ds.Port,
		&ds.Database, &username, &password, &ds.CreatedAt, &ds.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan data source: %w", err)
	}

	ds.Username = username.String
	ds.Password = password.String
	return ds, nil
}

func scanDataSourceRow(rows *sql.Rows) (*models.DataSource, error) {
	ds := &models.DataSource{}
	var username, password sql.NullString

	err := rows.Scan(
		&ds.ID, &ds.Name, &ds.DisplayName, &ds.Driver, &ds.Server, &ds.Port,
		&ds.Database, &username, &password, &ds.CreatedAt, &ds.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan data source: %w", err)
	}

	ds.Username = username.String
	ds.Password = password.String
	return ds, nil
}
