// Package config provides centralized default values for CartPulse
package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

// loadEnvFile loads environment variables from .env file
func loadEnvFile() {
	envLoaded.Do(func() {
		loadEnvFileOnce()
	})
}

func loadEnvFileOnce() {
	file, err := os.Open(".env")
	if err != nil {
		// .env file is optional, don't error if it doesn't exist
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Split on first = sign
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Only set if not already set in environment
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

func init() {
	// Ensure .env is loaded before any config access
	loadEnvFile()
}

// getEnvInt reads environment variable with fallback to default
func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvString reads environment variable with string fallback
func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// getEnvDuration reads environment variable as duration with fallback
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		// Try as integer seconds
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

// Server Configuration
var (
	Port = getEnvString("PORT", "8080")
)

// Cache Configuration
var (
	// Memory Management
	MaxTenants           = getEnvInt("MAX_TENANTS", 5)
	MaxSessionsPerTenant = getEnvInt("MAX_SESSIONS_PER_TENANT", 5000)

	// Database Pool
	DBMaxOpenConns           = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns           = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)

	// SSE Configuration
	MaxStreamConnections        = getEnvInt("MAX_STREAM_CONNECTIONS", 500)
	SSEHeartbeatIntervalSeconds = getEnvInt("SSE_HEARTBEAT_INTERVAL_SECONDS", 30)
	SSEInactivityTimeoutMinutes = getEnvInt("SSE_INACTIVITY_TIMEOUT_MINUTES", 5)
)

// Tracker Timing Configuration
var (
	// Abandonment delay applied when a campaign omits popupDelayMs
	DefaultPopupDelay = getEnvDuration("DEFAULT_POPUP_DELAY", 15*time.Second)

	// Interval of the sustained-inactivity poll
	InactivityPollInterval = getEnvDuration("INACTIVITY_POLL_INTERVAL", 10*time.Second)

	// Debounce applied to document mouse-leave before it counts as an exit signal
	MouseLeaveDebounce = getEnvDuration("MOUSE_LEAVE_DEBOUNCE", 1500*time.Millisecond)

	// Popup auto-close timeout
	PopupAutoCloseTimeout = getEnvDuration("POPUP_AUTO_CLOSE_TIMEOUT", 30*time.Second)

	// Cap on events retained in the durable offline queue
	MaxQueuedEvents = getEnvInt("MAX_QUEUED_EVENTS", 500)
)

// TTL Configuration
var (
	UserStateTTL    = time.Duration(getEnvInt("USER_STATE_TTL_HOURS", 2)) * time.Hour
	AnalyticsBinTTL = time.Duration(getEnvInt("ANALYTICS_BIN_TTL_DAYS", 28)) * 24 * time.Hour
)

// Cleanup Intervals
var (
	CleanupInterval = time.Duration(getEnvInt("CACHE_CLEANUP_INTERVAL_MINUTES", 30)) * time.Minute
	TenantTimeout   = time.Duration(getEnvInt("TENANT_TIMEOUT_HOURS", 4)) * time.Hour
)
