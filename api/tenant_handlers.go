package api

import (
	"log"
	"net/http"
	"os"
	"regexp"

	"github.com/CartPulse/cartpulse-go/config"
	"github.com/CartPulse/cartpulse-go/email"
	"github.com/CartPulse/cartpulse-go/tenant"
	"github.com/gin-gonic/gin"
)

var tenantIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,38}[a-z0-9]$`)

// RegisterTenantHandler provisions a new tenant workspace: registry entry,
// generated secrets, activated schema, and a best-effort welcome email.
func RegisterTenantHandler(c *gin.Context) {
	var req struct {
		TenantID string `json:"tenantId" binding:"required"`
		Name     string `json:"name"`
		Email    string `json:"email"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if !tenantIDPattern.MatchString(req.TenantID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant id must be lowercase alphanumeric with hyphens"})
		return
	}

	registry, err := tenant.LoadRegistry()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if _, exists := registry.Tenants[req.TenantID]; exists {
		c.JSON(http.StatusConflict, gin.H{"error": "tenant already exists"})
		return
	}
	if len(registry.Tenants) >= config.MaxTenants {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tenant capacity reached"})
		return
	}

	if err := tenant.RegisterTenant(req.TenantID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	manager, err := getTenantManager(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx, err := manager.GetContextByID(req.TenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer ctx.Close()

	if err := tenant.ActivateTenant(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	dbType := "sqlite3"
	if ctx.Database.UseTurso {
		dbType = "turso"
	}
	manager.GetDetector().UpdateTenantStatus(req.TenantID, "active", dbType)

	if req.Email != "" {
		sendWelcomeEmail(req.TenantID, req.Name, req.Email)
	}

	c.JSON(http.StatusCreated, gin.H{
		"tenantId":      req.TenantID,
		"status":        "active",
		"webhookSecret": ctx.Config.WebhookSecret,
	})
}

// sendWelcomeEmail is best effort: registration succeeds even when email
// delivery is unavailable.
func sendWelcomeEmail(tenantID, name, toEmail string) {
	client, err := email.NewClient()
	if err != nil {
		log.Printf("WARNING: welcome email skipped for tenant %s: %v", tenantID, err)
		return
	}

	dashboardURL := os.Getenv("DASHBOARD_BASE_URL")
	if dashboardURL == "" {
		dashboardURL = "https://app.cartpulse.io"
	}

	if err := client.SendTenantWelcomeEmail(tenantID, name, toEmail, dashboardURL); err != nil {
		log.Printf("WARNING: welcome email failed for tenant %s: %v", tenantID, err)
	}
}
