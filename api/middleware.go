// Package api provides HTTP handlers and middleware.
package api

import (
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/CartPulse/cartpulse-go/utils"
	"github.com/gin-gonic/gin"
)

// isClientDisconnectError checks if the error is a common network error
// that occurs when a client closes the connection prematurely.
func isClientDisconnectError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.EPIPE) || errors.Is(opErr.Err, syscall.ECONNRESET) {
			return true
		}
	}

	return strings.Contains(strings.ToLower(err.Error()), "broken pipe")
}

// FilteredLogger creates a Gin logger middleware that mimics gin.Default()
// but drops benign client disconnect errors to reduce log noise.
func FilteredLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}

		c.Next()

		lastError := c.Errors.Last()
		if lastError != nil && isClientDisconnectError(lastError.Err) {
			return
		}

		latency := time.Since(start)
		var errorMsg string
		if lastError != nil {
			errorMsg = lastError.Error()
		}

		log.Printf("[GIN] %v | %3d | %13v | %15s | %-7s %#v %s",
			time.Now().Format("2006/01/02 - 15:04:05"),
			c.Writer.Status(),
			latency,
			c.ClientIP(),
			c.Request.Method,
			path,
			errorMsg,
		)
	}
}

// AdminAuth guards admin routes. It accepts a Bearer token issued by
// LoginHandler and requires the token's tenant to match the request tenant.
func AdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := getTenantContext(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		authHeader := c.GetHeader("Authorization")
		if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := utils.ValidateJWT(authHeader[7:], ctx.Config.JWTSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if tenantID, _ := claims["tenantId"].(string); tenantID != ctx.TenantID {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token tenant mismatch"})
			return
		}

		if role, _ := claims["role"].(string); role != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}

		c.Next()
	}
}
