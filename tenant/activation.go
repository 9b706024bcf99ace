// Package tenant provides tenant activation and status management.
package tenant

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// ActivateTenant creates tables and indexes for an inactive tenant
func ActivateTenant(ctx *Context) error {
	if ctx.Status == "active" {
		return nil // Already activated, trust it's correct
	}

	log.Printf("Activating tenant: %s", ctx.TenantID)
	start := time.Now()

	dbType := "sqlite3"
	if ctx.Database.UseTurso {
		dbType = "turso"
	}

	// Create tables idempotently
	if err := createTables(ctx.Database); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if err := createIndexes(ctx.Database); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	// Verify tables actually exist before marking as active
	tablesExist, err := CheckTablesExist(ctx.Database)
	if err != nil {
		return fmt.Errorf("failed to verify tables: %w", err)
	}
	if !tablesExist {
		return fmt.Errorf("tables creation failed - not all tables exist")
	}

	// Only mark as active after confirming tables exist
	if err := updateTenantStatus(ctx.TenantID, "active", dbType); err != nil {
		return fmt.Errorf("failed to update tenant status: %w", err)
	}

	log.Printf("Tenant %s activated (%s) in %v", ctx.TenantID, dbType, time.Since(start))
	ctx.Status = "active"
	return nil
}

func createTables(db *Database) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS visitors (
			id TEXT PRIMARY KEY,
			platform TEXT,
			first_seen DATETIME NOT NULL,
			last_seen DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			event TEXT NOT NULL,
			visitor_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			platform TEXT,
			user_agent TEXT,
			screen_resolution TEXT,
			campaign_id TEXT,
			payload TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS campaigns (
			id TEXT PRIMARY KEY,
			popup_title TEXT NOT NULL,
			popup_message TEXT,
			popup_delay_ms INTEGER NOT NULL DEFAULT 0,
			cta TEXT NOT NULL DEFAULT 'complete_purchase',
			button_color TEXT,
			cart_url TEXT,
			cart_items_display TEXT NOT NULL DEFAULT 'show_all',
			status TEXT NOT NULL DEFAULT 'draft',
			created_at DATETIME NOT NULL,
			updated_at DATETIME
		)`,
	}

	for _, statement := range statements {
		if _, err := db.Conn.Exec(statement); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func createIndexes(db *Database) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_events_visitor ON events(visitor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_event ON events(event)`,
		`CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status)`,
	}

	for _, statement := range statements {
		if _, err := db.Conn.Exec(statement); err != nil {
			return fmt.Errorf("failed to execute index statement: %w", err)
		}
	}
	return nil
}

// CheckTablesExist verifies if all required tables exist
func CheckTablesExist(db *Database) (bool, error) {
	requiredTables := []string{"visitors", "events", "campaigns"}

	for _, tableName := range requiredTables {
		var name string
		query := "SELECT name FROM sqlite_master WHERE type='table' AND name=?"

		err := db.Conn.QueryRow(query, tableName).Scan(&name)
		if err == sql.ErrNoRows {
			return false, nil // Table doesn't exist
		} else if err != nil {
			return false, fmt.Errorf("failed to check table %s: %w", tableName, err)
		}
	}

	return true, nil
}

func updateTenantStatus(tenantID, status, dbType string) error {
	registry, err := LoadRegistry()
	if err != nil {
		return err
	}

	info, exists := registry.Tenants[tenantID]
	if !exists {
		info = Info{TenantID: tenantID, Domains: []string{"*"}}
	}
	info.Status = status
	info.DatabaseType = dbType
	registry.Tenants[tenantID] = info

	return SaveRegistry(registry)
}

// PreActivateAllTenants activates all tenants in the registry during startup
func PreActivateAllTenants(manager *Manager) error {
	log.Println("=== Starting tenant pre-activation ===")
	start := time.Now().UTC()

	registry, err := LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load tenant registry for pre-activation: %w", err)
	}

	if len(registry.Tenants) == 0 {
		log.Println("No tenants found in registry - skipping pre-activation")
		return nil
	}

	log.Printf("Found %d tenants in registry", len(registry.Tenants))

	activatedCount := 0
	skippedCount := 0
	failedTenants := make([]string, 0)

	for tenantID, info := range registry.Tenants {
		if info.Status == "active" {
			skippedCount++
			continue
		}

		log.Printf("Pre-activating tenant: '%s' (current status: %s)", tenantID, info.Status)

		ctx, err := manager.GetContextByID(tenantID)
		if err != nil {
			log.Printf("ERROR: Failed to create context for tenant '%s': %v", tenantID, err)
			failedTenants = append(failedTenants, tenantID)
			continue
		}

		err = ActivateTenant(ctx)
		ctx.Close()
		if err != nil {
			log.Printf("ERROR: Failed to pre-activate tenant '%s': %v", tenantID, err)
			failedTenants = append(failedTenants, tenantID)
			continue
		}

		activatedCount++
	}

	// Update manager's detector cache after all activations
	if activatedCount > 0 {
		updatedRegistry, err := LoadRegistry()
		if err != nil {
			log.Printf("WARNING: Failed to reload registry for cache update: %v", err)
		} else {
			manager.detector.registry = updatedRegistry
		}
	}

	log.Printf("Pre-activation complete in %v: %d activated, %d skipped, %d failed",
		time.Since(start), activatedCount, skippedCount, len(failedTenants))

	if len(failedTenants) > 0 {
		return fmt.Errorf("failed to activate tenants: %v", failedTenants)
	}
	return nil
}
