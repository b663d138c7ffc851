package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Supported driver names, as registered with database/sql.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite3"
)

// Config describes a database connection.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NormalizeDriver maps common aliases onto the registered driver names.
func NormalizeDriver(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pgsql":
		return DriverPostgres, nil
	case "mysql", "mariadb":
		return DriverMySQL, nil
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", name)
}

// Open connects, applies pool settings and pings the server.
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	driver, err := NormalizeDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is empty")
	}

	// SQLite connects through the driver with the Unicode LOWER but keeps the standard
	// name, so sqlx and the query builder still recognise it.
	sqlDriver := driver
	if driver == DriverSQLite {
		sqlDriver = sqliteDriver
	}
	raw, err := sql.Open(sqlDriver, prepareDSN(driver, cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	db := sqlx.NewDb(raw, driver)

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if driver == DriverSQLite {
		// One writer at a time; extra connections only produce SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	return db, nil
}

// prepareDSN adds the options the repositories rely on: parsed DATETIME columns on
// MySQL and enforced foreign keys on SQLite.
func prepareDSN(driver, dsn string) string {
	switch driver {
	case DriverMySQL:
		if !strings.Contains(dsn, "parseTime=") {
			dsn = appendParam(dsn, "parseTime=true")
		}
	case DriverSQLite:
		if !strings.Contains(dsn, "_foreign_keys=") && !strings.Contains(dsn, "_fk=") {
			dsn = appendParam(dsn, "_foreign_keys=on")
		}
	}
	return dsn
}

func appendParam(dsn, param string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}
