package models

import (
	"fmt"
	"time"
)

// Driver identifies the relational backend a data source connects to.
type Driver string

const (
	DriverMySQL      Driver = "mysql"
	DriverPostgres   Driver = "postgres"
	DriverClickHouse Driver = "clickhouse"
)

// ParseDriver converts a string to a Driver.
func ParseDriver(s string) (Driver, error) {
	switch s {
	case "mysql", "postgres", "clickhouse":
		return Driver(s), nil
	default:
		return "", fmt.Errorf("unknown driver %q (must be 'mysql', 'postgres', or 'clickhouse')", s)
	}
}

// DataSource is a registered connection descriptor for a relational backend.
// Connection parameters are opaque to the engine except for the probe; they
// may be mutated at any time, and alerts referencing the source are never
// re-validated on mutation.
type DataSource struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"` // unique
	DisplayName string    `json:"display_name"`
	Driver      Driver    `json:"driver"`
	Server      string    `json:"server"`
	Port        int       `json:"port"`
	Database    string    `json:"database"`
	Username    string    `json:"username"`
	Password    string    `json:"-"` // never exposed in JSON
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Addr returns the host:port address of the backend.
func (d *DataSource) Addr() string {
	return fmt.Sprintf("%s:%d", d.Server, d.Port)
}
