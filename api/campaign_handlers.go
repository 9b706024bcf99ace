package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/CartPulse/cartpulse-go/models"
	"github.com/CartPulse/cartpulse-go/utils"
	"github.com/gin-gonic/gin"
)

// CampaignSettingsHandler serves the active popup campaign to store
// frontends. Returns 404 when the tenant has no active campaign so trackers
// fall back to running without popups.
func CampaignSettingsHandler(c *gin.Context) {
	ctx, err := getTenantContext(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to resolve tenant"})
		return
	}

	query := `SELECT id, popup_title, popup_message, popup_delay_ms, cta, button_color, cart_url, cart_items_display
	          FROM campaigns WHERE status = 'active' ORDER BY updated_at DESC LIMIT 1`

	var campaign models.CampaignConfig
	var message, buttonColor, cartURL sql.NullString
	err = ctx.Database.Conn.QueryRow(query).Scan(
		&campaign.CampaignID,
		&campaign.PopupTitle,
		&message,
		&campaign.PopupDelayMs,
		&campaign.CTA,
		&buttonColor,
		&cartURL,
		&campaign.CartItemsDisplay,
	)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active campaign"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	campaign.PopupMessage = message.String
	campaign.ButtonColor = buttonColor.String
	campaign.CartURL = cartURL.String
	campaign.ConnectedSiteID = ctx.TenantID

	c.JSON(http.StatusOK, campaign)
}

// ListCampaignsHandler returns every campaign for the tenant, newest first.
func ListCampaignsHandler(c *gin.Context) {
	ctx, err := getTenantContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	query := `SELECT id, popup_title, popup_message, popup_delay_ms, cta, button_color, cart_url, cart_items_display, status, created_at, updated_at
	          FROM campaigns ORDER BY created_at DESC`

	rows, err := ctx.Database.Conn.Query(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer rows.Close()

	campaigns := make([]gin.H, 0)
	for rows.Next() {
		var id, title, status string
		var message, buttonColor, cartURL sql.NullString
		var delayMs int
		var cta, display string
		var createdAt time.Time
		var updatedAt sql.NullTime

		if err := rows.Scan(&id, &title, &message, &delayMs, &cta, &buttonColor, &cartURL, &display, &status, &createdAt, &updatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		campaigns = append(campaigns, gin.H{
			"campaignId":       id,
			"popupTitle":       title,
			"popupMessage":     message.String,
			"popupDelayMs":     delayMs,
			"cta":              cta,
			"buttonColor":      buttonColor.String,
			"cartUrl":          cartURL.String,
			"cartItemsDisplay": display,
			"status":           status,
			"createdAt":        createdAt,
			"updatedAt":        updatedAt.Time,
		})
	}

	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns})
}

// CreateCampaignHandler creates a campaign in draft status.
func CreateCampaignHandler(c *gin.Context) {
	ctx, err := getTenantContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var req models.CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	applyCampaignDefaults(&req)

	id := utils.GenerateULID()
	now := time.Now().UTC()

	query := `INSERT INTO campaigns
		(id, popup_title, popup_message, popup_delay_ms, cta, button_color, cart_url, cart_items_display, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'draft', ?, ?)`

	_, err = ctx.Database.Conn.Exec(query, id, req.PopupTitle, req.PopupMessage, req.PopupDelayMs,
		req.CTA, req.ButtonColor, req.CartURL, req.CartItemsDisplay, now, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"campaignId": id, "status": "draft"})
}

// UpdateCampaignHandler replaces a campaign's settings.
func UpdateCampaignHandler(c *gin.Context) {
	ctx, err := getTenantContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var req models.CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	applyCampaignDefaults(&req)

	query := `UPDATE campaigns SET popup_title = ?, popup_message = ?, popup_delay_ms = ?, cta = ?,
	          button_color = ?, cart_url = ?, cart_items_display = ?, updated_at = ? WHERE id = ?`

	result, err := ctx.Database.Conn.Exec(query, req.PopupTitle, req.PopupMessage, req.PopupDelayMs,
		req.CTA, req.ButtonColor, req.CartURL, req.CartItemsDisplay, time.Now().UTC(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ActivateCampaignHandler makes one campaign active and pauses any other
// active campaign, so at most one campaign serves popups at a time.
func ActivateCampaignHandler(c *gin.Context) {
	ctx, err := getTenantContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	now := time.Now().UTC()

	tx, err := ctx.Database.Conn.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE campaigns SET status = 'paused', updated_at = ? WHERE status = 'active'`, now); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result, err := tx.Exec(`UPDATE campaigns SET status = 'active', updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "campaignId": id, "status": "active"})
}

// DeleteCampaignHandler removes a campaign.
func DeleteCampaignHandler(c *gin.Context) {
	ctx, err := getTenantContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result, err := ctx.Database.Conn.Exec(`DELETE FROM campaigns WHERE id = ?`, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func applyCampaignDefaults(req *models.CampaignRequest) {
	if req.CTA == "" {
		req.CTA = models.CTACompletePurchase
	}
	if req.CartItemsDisplay == "" {
		req.CartItemsDisplay = models.DisplayShowAll
	}
}
