package source

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/go-sql-driver/mysql"
	// PostgreSQL driver registered as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/brisk-orange-fox/querywatch/internal/models"
)

// open creates a short-lived database handle for the data source. The
// caller owns the handle and must close it; connections are not pooled
// across operations because the descriptor may be edited between calls.
func open(ds *models.DataSource, dialTimeout time.Duration) (*sql.DB, error) {
	switch ds.Driver {
	case models.DriverMySQL:
		return sql.Open("mysql", mysqlDSN(ds, dialTimeout))
	case models.DriverPostgres:
		return sql.Open("pgx", postgresDSN(ds, dialTimeout))
	case models.DriverClickHouse:
		return clickhouse.OpenDB(&clickhouse.Options{
			Addr: []string{ds.Addr()},
			Auth: clickhouse.Auth{
				Database: ds.Database,
				Username: ds.Username,
				Password: ds.Password,
			},
			DialTimeout: dialTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", ds.Driver)
	}
}

func mysqlDSN(ds *models.DataSource, dialTimeout time.Duration) string {
	cfg := mysql.NewConfig()
	cfg.User = ds.Username
	cfg.Passwd = ds.Password
	cfg.Net = "tcp"
	cfg.Addr = ds.Addr()
	cfg.DBName = ds.Database
	cfg.Timeout = dialTimeout
	return cfg.FormatDSN()
}

func postgresDSN(ds *models.DataSource, dialTimeout time.Duration) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(ds.Username, ds.Password),
		Host:     ds.Addr(),
		Path:     "/" + ds.Database,
		RawQuery: fmt.Sprintf("connect_timeout=%d", int(dialTimeout.Seconds())),
	}
	return u.String()
}
