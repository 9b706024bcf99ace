// Package api provides HTTP handlers and database connectivity for the application's API.
package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/CartPulse/cartpulse-go/config"
	"github.com/CartPulse/cartpulse-go/models"
	"github.com/CartPulse/cartpulse-go/tenant"
	"github.com/gin-gonic/gin"
)

// getTenantContext is a helper to extract tenant context from gin context
func getTenantContext(c *gin.Context) (*tenant.Context, error) {
	tenantCtx, exists := c.Get("tenant")
	if !exists {
		return nil, fmt.Errorf("no tenant context")
	}
	return tenantCtx.(*tenant.Context), nil
}

// getTenantManager is a helper to extract tenant manager from gin context
func getTenantManager(c *gin.Context) (*tenant.Manager, error) {
	manager, exists := c.Get("tenantManager")
	if !exists {
		return nil, fmt.Errorf("no tenant manager")
	}
	return manager.(*tenant.Manager), nil
}

// HealthHandler reports service liveness.
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// StatusHandler checks tenant status and activates if needed
func StatusHandler(c *gin.Context) {
	ctx, err := getTenantContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Only activate if status is inactive
	if ctx.Status == "inactive" {
		if err := tenant.ActivateTenant(ctx); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("tenant activation failed: %v", err)})
			return
		}

		manager, err := getTenantManager(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		dbType := "sqlite3"
		if ctx.Database.UseTurso {
			dbType = "turso"
		}
		manager.GetDetector().UpdateTenantStatus(ctx.TenantID, "active", dbType)
	}

	c.JSON(http.StatusOK, gin.H{
		"tenantId": ctx.TenantID,
		"status":   ctx.Status,
		"database": ctx.Database.GetConnectionInfo(),
	})
}

// LiveEventsHandler streams tracked events to admin dashboards over SSE.
// Connections are capped globally; idle streams are reaped so dead
// dashboards don't hold slots.
func LiveEventsHandler(c *gin.Context) {
	if models.Broadcaster.ClientCount() >= config.MaxStreamConnections {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream connection limit reached"})
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	ch := models.Broadcaster.AddClient()
	defer models.Broadcaster.RemoveClient(ch)

	heartbeat := time.Duration(config.SSEHeartbeatIntervalSeconds) * time.Second
	idle := time.Duration(config.SSEInactivityTimeoutMinutes) * time.Minute
	streamEvents(w, flusher, ch, c.Request.Context().Done(), heartbeat, idle)
}

// streamEvents pumps broadcast messages to one SSE client until the client
// disconnects or no event arrives within the idle window. Heartbeat comments
// keep proxies from closing quiet streams.
func streamEvents(w io.Writer, flusher http.Flusher, ch <-chan string, done <-chan struct{}, heartbeat, idle time.Duration) {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	idleTimer := time.NewTimer(idle)
	defer idleTimer.Stop()

	for {
		select {
		case msg := <-ch:
			fmt.Fprint(w, msg)
			flusher.Flush()
			if !idleTimer.Stop() {
				<-idleTimer.C
			}
			idleTimer.Reset(idle)
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-idleTimer.C:
			return
		case <-done:
			return
		}
	}
}
