package main

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/CartPulse/cartpulse-go/api"
	"github.com/CartPulse/cartpulse-go/cache"
	"github.com/CartPulse/cartpulse-go/config"
	"github.com/CartPulse/cartpulse-go/tenant"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var GlobalCacheManager *cache.Manager

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found -- config defaults will be used")
	}

	// Initialize global cache manager
	GlobalCacheManager = cache.NewManager()
	if GlobalCacheManager == nil {
		log.Fatal("Failed to create cache manager")
	}
	cache.GlobalInstance = GlobalCacheManager
	log.Println("Global cache manager initialized")

	cache.StartCleanupRoutine(GlobalCacheManager)

	// Initialize tenant manager
	tenantManager, err := tenant.NewManager()
	if err != nil {
		log.Fatalf("Failed to initialize tenant manager: %v", err)
	}

	log.Println("Starting tenant pre-activation...")
	if err := tenant.PreActivateAllTenants(tenantManager); err != nil {
		log.Fatalf("Tenant pre-activation failed: %v", err)
	}
	log.Println("All tenants pre-activated successfully!")

	r := gin.New()
	r.Use(api.FilteredLogger(), gin.Recovery())
	r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	// Configure CORS. Ingest endpoints are hit cross-origin from arbitrary
	// storefronts, so origins are validated per tenant by the domain
	// middleware rather than a global allowlist.
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET", "POST", "PUT", "DELETE", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			"X-CartPulse-Tenant", "X-Requested-With", "x-webhook-secret",
			"Cache-Control",
		},
		AllowCredentials: true,
		ExposeHeaders: []string{
			"Content-Type", "Cache-Control", "Connection",
		},
	}))

	// Routes that run before a tenant exists still need the manager.
	r.Use(func(c *gin.Context) {
		c.Set("tenantManager", tenantManager)
		c.Next()
	})

	r.GET("/api/v1/health", api.HealthHandler)
	r.POST("/api/v1/tenants/register", api.RegisterTenantHandler)

	// Everything else is tenant scoped.
	scoped := r.Group("/")
	scoped.Use(func(c *gin.Context) {
		tenantCtx, err := tenantManager.GetContext(c)
		if err != nil {
			log.Printf("Tenant context error for %s from %s: %v", c.Request.URL.Path, c.ClientIP(), err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "tenant context failed: " + err.Error()})
			c.Abort()
			return
		}
		defer tenantCtx.Close()

		if tenantCtx.Status != "active" {
			log.Printf("ERROR: Tenant %s is not active (status: %s) - should have been pre-activated",
				tenantCtx.TenantID, tenantCtx.Status)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": fmt.Sprintf("tenant %s not ready (status: %s)", tenantCtx.TenantID, tenantCtx.Status),
			})
			c.Abort()
			return
		}

		c.Set("tenant", tenantCtx)
		c.Next()
	})

	// Domain whitelist middleware (after tenant context)
	scoped.Use(func(c *gin.Context) {
		// Skip domain validation for OPTIONS requests (CORS preflight)
		if c.Request.Method == "OPTIONS" {
			c.Next()
			return
		}

		origin := c.GetHeader("Origin")
		host := c.Request.Host

		// Allow localhost by default for development
		if strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:") ||
			strings.HasPrefix(origin, "http://[::1]:") ||
			strings.HasPrefix(host, "localhost:") ||
			strings.HasPrefix(host, "127.0.0.1:") ||
			strings.HasPrefix(host, "[::1]:") {
			c.Next()
			return
		}

		tenantCtx, exists := c.Get("tenant")
		if !exists {
			c.JSON(http.StatusForbidden, gin.H{"error": "tenant context required"})
			c.Abort()
			return
		}

		var domain string
		if origin != "" {
			if originURL, err := url.Parse(origin); err == nil {
				domain = originURL.Hostname()
			}
		} else {
			domain = host
		}

		ctx := tenantCtx.(*tenant.Context)
		if !tenantManager.GetDetector().ValidateDomain(ctx.TenantID, domain) {
			log.Printf("Domain validation failed for %s (tenant: %s)", domain, ctx.TenantID)
			c.JSON(http.StatusForbidden, gin.H{"error": "domain not allowed for tenant"})
			c.Abort()
			return
		}

		c.Next()
	})

	// Ingest and tracker-facing routes
	scoped.POST("/api/v1/webhook", api.WebhookHandler)
	scoped.GET("/api/v1/campaign/settings", api.CampaignSettingsHandler)
	scoped.GET("/api/v1/db/status", api.StatusHandler)
	scoped.POST("/api/v1/auth/login", api.LoginHandler)

	// Admin routes (JWT required)
	admin := scoped.Group("/api/v1/admin")
	admin.Use(api.AdminAuth())
	{
		admin.GET("/campaigns", api.ListCampaignsHandler)
		admin.POST("/campaigns", api.CreateCampaignHandler)
		admin.PUT("/campaigns/:id", api.UpdateCampaignHandler)
		admin.POST("/campaigns/:id/activate", api.ActivateCampaignHandler)
		admin.DELETE("/campaigns/:id", api.DeleteCampaignHandler)
		admin.GET("/campaigns/:id/performance", api.CampaignPerformanceHandler)
		admin.GET("/analytics/summary", api.SiteSummaryHandler)
		admin.GET("/events/live", api.LiveEventsHandler)
	}

	log.Printf("Starting server on :%s", config.Port)
	if err := r.Run(":" + config.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
