package tenant

import (
	"path/filepath"
	"testing"
)

func TestNewDatabaseSQLiteFallback(t *testing.T) {
	config := &Config{
		TenantID:   "t1",
		SQLitePath: filepath.Join(t.TempDir(), "db", "t1", "cartpulse.db"),
	}

	db, err := NewDatabase(config)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if db.UseTurso {
		t.Error("no Turso credentials, expected SQLite fallback")
	}
	if got := db.GetConnectionInfo(); got != "sqlite3:t1" {
		t.Errorf("GetConnectionInfo() = %q", got)
	}

	if _, err := db.Conn.Exec(`CREATE TABLE smoke (id TEXT)`); err != nil {
		t.Fatalf("connection not usable: %v", err)
	}
}

func TestNewDatabaseBadTursoCredsFallBack(t *testing.T) {
	config := &Config{
		TenantID:      "t1",
		TursoDatabase: "libsql://nonexistent.example.turso.io",
		TursoToken:    "bogus",
		SQLitePath:    filepath.Join(t.TempDir(), "db", "t1", "cartpulse.db"),
	}

	db, err := NewDatabase(config)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if db.UseTurso {
		t.Error("unreachable Turso must fall back to SQLite")
	}
}
