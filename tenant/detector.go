// Package tenant provides multi-tenant detection and validation.
package tenant

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Detector handles tenant detection from HTTP requests
type Detector struct {
	registry    *Registry
	multiTenant bool
}

// NewDetector creates a new tenant detector
func NewDetector() (*Detector, error) {
	registry, err := LoadRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant registry: %w", err)
	}

	multiTenant := false
	if val := os.Getenv("ENABLE_MULTI_TENANT"); val != "" {
		multiTenant, _ = strconv.ParseBool(val)
	}

	return &Detector{
		registry:    registry,
		multiTenant: multiTenant,
	}, nil
}

// DetectTenant extracts the tenant ID from a request and auto-registers if
// needed. The tracking snippet identifies its tenant by clientId query
// param; dashboard calls use the X-CartPulse-Tenant header.
func (d *Detector) DetectTenant(c *gin.Context) (string, error) {
	var tenantID string

	if d.multiTenant {
		tenantID = c.GetHeader("X-CartPulse-Tenant")
		if tenantID == "" {
			// Snippet and SSE calls carry the tenant as a query param
			tenantID = c.Query("clientId")
		}

		if tenantID == "" {
			return "", fmt.Errorf("missing tenant identification in multi-tenant mode")
		}
	} else {
		// Single tenant mode - always use "default"
		tenantID = "default"
	}

	// Check if tenant exists in registry
	if _, exists := d.registry.Tenants[tenantID]; !exists {
		// Auto-register tenant if it has a config directory or if it's default
		if tenantID == "default" || d.hasConfigDirectory(tenantID) {
			if err := RegisterTenant(tenantID); err != nil {
				return "", fmt.Errorf("failed to auto-register tenant %s: %w", tenantID, err)
			}
			// Reload registry after registration
			registry, err := LoadRegistry()
			if err != nil {
				return "", fmt.Errorf("failed to reload registry after auto-registration: %w", err)
			}
			d.registry = registry
		} else {
			return "", fmt.Errorf("unknown tenant: %s", tenantID)
		}
	}

	return tenantID, nil
}

// hasConfigDirectory checks if a tenant has a config directory
func (d *Detector) hasConfigDirectory(tenantID string) bool {
	configDir := filepath.Join(baseDir(), "config", tenantID)
	if _, err := os.Stat(configDir); err == nil {
		return true
	}
	return false
}

// ValidateDomain checks if the request domain is allowed for the tenant
func (d *Detector) ValidateDomain(tenantID, domain string) bool {
	info, exists := d.registry.Tenants[tenantID]
	if !exists {
		return false
	}

	for _, allowedDomain := range info.Domains {
		if allowedDomain == "*" {
			return true
		}
		if strings.EqualFold(allowedDomain, domain) {
			return true
		}
	}

	return false
}

// GetTenantStatus returns the current status of a tenant
func (d *Detector) GetTenantStatus(tenantID string) string {
	if info, exists := d.registry.Tenants[tenantID]; exists {
		return info.Status
	}
	return "unknown"
}

// UpdateTenantStatus updates the cached registry status
func (d *Detector) UpdateTenantStatus(tenantID, status, dbType string) {
	if info, exists := d.registry.Tenants[tenantID]; exists {
		info.Status = status
		if dbType != "" {
			info.DatabaseType = dbType
		}
		d.registry.Tenants[tenantID] = info
	}
}

// TenantIDs lists all registered tenants
func (d *Detector) TenantIDs() []string {
	ids := make([]string, 0, len(d.registry.Tenants))
	for id := range d.registry.Tenants {
		ids = append(ids, id)
	}
	return ids
}
