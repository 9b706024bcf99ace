// Package models defines cache data structures for multi-tenant session and analytics state.
package models

import (
	"sync"
	"time"

	"github.com/CartPulse/cartpulse-go/config"
)

// CacheManager coordinates all tenant-isolated caches
type CacheManager struct {
	// All caches are tenant-isolated
	UserStateCache map[string]*TenantUserStateCache // tenantId -> user states
	AnalyticsCache map[string]*TenantAnalyticsCache // tenantId -> analytics

	// Cache metadata
	Mu           sync.RWMutex         // Exported for access
	LastAccessed map[string]time.Time // tenantId -> last access
}

// =============================================================================
// User State Cache Types
// =============================================================================

type TenantUserStateCache struct {
	// Persistent visitor state by visitor ID
	VisitorStates map[string]*VisitorState // visitorId -> state

	// Session state cache (ephemeral, one per page load)
	SessionStates map[string]*SessionData // sessionId -> session data

	// Cache metadata
	LastLoaded time.Time
	Mu         sync.RWMutex // Exported for access
}

type VisitorState struct {
	VisitorID    string    `json:"visitorId"`
	Platform     string    `json:"platform"`
	FirstSeen    time.Time `json:"firstSeen"`
	LastActivity time.Time `json:"lastActivity"`
}

type SessionData struct {
	SessionID    string    `json:"sessionId"`
	VisitorID    string    `json:"visitorId"`
	Platform     string    `json:"platform"`
	CurrentPage  string    `json:"currentPage"`
	LastActivity time.Time `json:"lastActivity"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsExpired reports whether the session has outlived the user state TTL.
func (s *SessionData) IsExpired() bool {
	return time.Since(s.LastActivity) > config.UserStateTTL
}

// UpdateActivity bumps the session's last activity timestamp.
func (s *SessionData) UpdateActivity() {
	s.LastActivity = time.Now().UTC()
}

// =============================================================================
// Analytics Cache Types
// =============================================================================

type TenantAnalyticsCache struct {
	// Site-wide analytics
	SiteBins map[string]*HourlySiteBin // "hourKey" -> bin

	// Campaign performance analytics
	CampaignBins map[string]*HourlyCampaignBin // "campaignId:hourKey" -> bin

	// Cache metadata
	LastFullHour string // Last processed hour key
	LastUpdated  time.Time
	Mu           sync.RWMutex // Exported for access
}

type HourlySiteBin struct {
	Data       *HourlySiteData `json:"data"`
	ComputedAt time.Time       `json:"computedAt"`
	TTL        time.Duration   `json:"ttl"`
}

type HourlySiteData struct {
	UniqueVisitors map[string]bool `json:"uniqueVisitors"` // Set of visitor IDs
	EventCounts    map[string]int  `json:"eventCounts"`    // eventName -> count
	CartValue      float64         `json:"cartValue"`      // sum of cart_updated totals
	OrderValue     float64         `json:"orderValue"`     // sum of purchase totals
}

type HourlyCampaignBin struct {
	Data       *HourlyCampaignData `json:"data"`
	ComputedAt time.Time           `json:"computedAt"`
	TTL        time.Duration       `json:"ttl"`
}

type HourlyCampaignData struct {
	Shown     int `json:"shown"`
	Clicked   int `json:"clicked"`
	Dismissed int `json:"dismissed"`
	AutoClose int `json:"autoClose"`
}
