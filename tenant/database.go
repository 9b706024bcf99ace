// Package tenant provides database abstraction for multi-tenant support.
package tenant

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"                      // SQLite driver
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver

	defaults "github.com/CartPulse/cartpulse-go/config"
)

// Database is one tenant's event store connection. Every tenant gets its own
// database, so a webhook flood from one store never contends with another.
type Database struct {
	Conn     *sql.DB
	TenantID string
	UseTurso bool
}

// NewDatabase opens the tenant's store: Turso when credentials are present
// and reachable, otherwise a local SQLite file under the tenant's db dir.
func NewDatabase(config *Config) (*Database, error) {
	conn, useTurso := dialTurso(config)

	if conn == nil {
		var err error
		conn, err = openSQLite(config.SQLitePath)
		if err != nil {
			return nil, err
		}
	}

	conn.SetMaxOpenConns(defaults.DBMaxOpenConns)
	conn.SetMaxIdleConns(defaults.DBMaxIdleConns)
	conn.SetConnMaxLifetime(time.Duration(defaults.DBConnMaxLifetimeMinutes) * time.Minute)

	return &Database{
		Conn:     conn,
		TenantID: config.TenantID,
		UseTurso: useTurso,
	}, nil
}

// dialTurso returns a live Turso connection or nil. An unreachable Turso is
// not an error; the caller falls back to SQLite.
func dialTurso(config *Config) (*sql.DB, bool) {
	if config.TursoDatabase == "" || config.TursoToken == "" {
		return nil, false
	}

	conn, err := sql.Open("libsql", config.TursoDatabase+"?authToken="+config.TursoToken)
	if err != nil {
		return nil, false
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, false
	}
	return conn, true
}

func openSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("SQLite database ping failed: %w", err)
	}
	return conn, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	if db.Conn != nil {
		return db.Conn.Close()
	}
	return nil
}

// GetConnectionInfo describes the backing store for status output and logs.
func (db *Database) GetConnectionInfo() string {
	if db.UseTurso {
		return fmt.Sprintf("turso:%s", db.TenantID)
	}
	return fmt.Sprintf("sqlite3:%s", db.TenantID)
}
