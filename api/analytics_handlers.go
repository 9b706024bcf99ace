package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/CartPulse/cartpulse-go/cache"
	"github.com/CartPulse/cartpulse-go/models"
	"github.com/gin-gonic/gin"
)

// SiteSummaryHandler returns the rolled-up site analytics for the last N
// hours (default 24, capped at 672).
func SiteSummaryHandler(c *gin.Context) {
	ctx, err := getTenantContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	hours := parseHours(c.Query("hours"), 24)
	summary := cache.GetGlobalManager().GetSiteSummary(ctx.TenantID, hours)

	c.JSON(http.StatusOK, summary)
}

// CampaignPerformanceHandler reports popup funnel counts for one campaign
// over the last N hours, computed from the durable events table.
func CampaignPerformanceHandler(c *gin.Context) {
	ctx, err := getTenantContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	campaignID := c.Param("id")
	hours := parseHours(c.Query("hours"), 24)
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	counts := map[string]int{}
	rows, err := ctx.Database.Conn.Query(
		`SELECT event, COUNT(*) FROM events WHERE campaign_id = ? AND created_at >= ? GROUP BY event`,
		campaignID, since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer rows.Close()

	for rows.Next() {
		var event string
		var count int
		if err := rows.Scan(&event, &count); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		counts[event] = count
	}

	reasons := map[string]int{}
	reasonRows, err := ctx.Database.Conn.Query(
		`SELECT COALESCE(json_extract(payload, '$.properties.reason'), ''), COUNT(*)
		 FROM events WHERE campaign_id = ? AND event = ? AND created_at >= ?
		 GROUP BY 1`,
		campaignID, models.EventPopupClosed, since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer reasonRows.Close()

	for reasonRows.Next() {
		var reason string
		var count int
		if err := reasonRows.Scan(&reason, &count); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		reasons[reason] = count
	}

	shown := counts[models.EventPopupShown]
	clicked := counts[models.EventPopupClicked]
	var clickRate float64
	if shown > 0 {
		clickRate = float64(clicked) / float64(shown)
	}

	c.JSON(http.StatusOK, gin.H{
		"campaignId": campaignID,
		"hours":      hours,
		"shown":      shown,
		"clicked":    clicked,
		"dismissed":  reasons[models.CloseReasonUserDismissed] + reasons[models.CloseReasonUserClosed],
		"autoClosed": reasons[models.CloseReasonAutoClosed],
		"clickRate":  clickRate,
	})
}

func parseHours(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours < 1 {
		return fallback
	}
	if hours > 672 {
		hours = 672
	}
	return hours
}
