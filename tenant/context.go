// Package tenant provides request context management for multi-tenant support.
package tenant

import (
	"log"

	"github.com/gin-gonic/gin"
)

// Context carries everything a handler needs for one tenant: config,
// store connection, and activation status. Built per request and closed
// when the request finishes.
type Context struct {
	TenantID string
	Config   *Config
	Database *Database
	Status   string
}

// Manager resolves requests to tenant contexts.
type Manager struct {
	detector *Detector
}

func NewManager() (*Manager, error) {
	detector, err := NewDetector()
	if err != nil {
		return nil, err
	}

	return &Manager{
		detector: detector,
	}, nil
}

// GetContext resolves the request's tenant and builds its context.
func (m *Manager) GetContext(c *gin.Context) (*Context, error) {
	tenantID, err := m.detector.DetectTenant(c)
	if err != nil {
		return nil, err
	}

	return m.GetContextByID(tenantID)
}

// GetContextByID builds a context for a tenant already known by id, used by
// registration and pre-activation where no request carries the tenant.
func (m *Manager) GetContextByID(tenantID string) (*Context, error) {
	config, err := LoadTenantConfig(tenantID)
	if err != nil {
		return nil, err
	}

	status := m.detector.GetTenantStatus(tenantID)

	database, err := NewDatabase(config)
	if err != nil {
		return nil, err
	}

	log.Printf("DEBUG: tenant context ready: %s (%s, status %s)",
		tenantID, database.GetConnectionInfo(), status)

	return &Context{
		TenantID: tenantID,
		Config:   config,
		Database: database,
		Status:   status,
	}, nil
}

// GetDetector returns the detector for cache updates
func (m *Manager) GetDetector() *Detector {
	return m.detector
}

// Close releases the context's store connection.
func (ctx *Context) Close() {
	if ctx.Database != nil {
		ctx.Database.Close()
	}
}
