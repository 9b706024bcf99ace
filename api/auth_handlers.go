package api

import (
	"net/http"

	"github.com/CartPulse/cartpulse-go/models"
	"github.com/CartPulse/cartpulse-go/utils"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// LoginHandler handles admin authentication
func LoginHandler(c *gin.Context) {
	ctx, err := getTenantContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var loginReq models.LoginRequest
	if err := c.ShouldBindJSON(&loginReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if ctx.Config.AdminPasswordHash == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Admin access not configured"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(ctx.Config.AdminPasswordHash), []byte(loginReq.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := utils.GenerateAdminToken(ctx.TenantID, "admin", ctx.Config.JWTSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Token generation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"role":     "admin",
		"tenantId": ctx.TenantID,
	})
}
