// Package cache provides multi-tenant in-memory caching for session state and analytics.
package cache

import (
	"log"
	"sync"
	"time"

	"github.com/CartPulse/cartpulse-go/config"
	"github.com/CartPulse/cartpulse-go/models"
)

/*
Locking hierarchy (highest to lowest):
 1. Manager.Mu
 2. Individual tenant cache mutexes

Never acquire a higher-level lock while holding a lower-level one. Methods
ending in "Unsafe" assume the caller already holds Manager.Mu.
*/

var GlobalInstance *Manager

// GetGlobalManager returns the global cache manager instance
func GetGlobalManager() *Manager {
	return GlobalInstance
}

// Manager coordinates all tenant-isolated caches
type Manager struct {
	*models.CacheManager
}

// NewManager creates a new cache manager
func NewManager() *Manager {
	return &Manager{
		CacheManager: &models.CacheManager{
			UserStateCache: make(map[string]*models.TenantUserStateCache),
			AnalyticsCache: make(map[string]*models.TenantAnalyticsCache),
			LastAccessed:   make(map[string]time.Time),
			Mu:             sync.RWMutex{},
		},
	}
}

// EnsureTenant creates tenant cache entries if they don't exist
func (m *Manager) EnsureTenant(tenantID string) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.ensureTenantUnsafe(tenantID)
}

func (m *Manager) ensureTenantUnsafe(tenantID string) {
	if _, exists := m.UserStateCache[tenantID]; !exists {
		m.UserStateCache[tenantID] = &models.TenantUserStateCache{
			VisitorStates: make(map[string]*models.VisitorState),
			SessionStates: make(map[string]*models.SessionData),
			LastLoaded:    time.Now().UTC(),
		}
	}
	if _, exists := m.AnalyticsCache[tenantID]; !exists {
		m.AnalyticsCache[tenantID] = &models.TenantAnalyticsCache{
			SiteBins:     make(map[string]*models.HourlySiteBin),
			CampaignBins: make(map[string]*models.HourlyCampaignBin),
			LastUpdated:  time.Now().UTC(),
		}
	}
	m.LastAccessed[tenantID] = time.Now().UTC()
}

// GetSession retrieves session data from cache
func (m *Manager) GetSession(tenantID, sessionID string) (*models.SessionData, bool) {
	m.Mu.RLock()
	tenantCache, exists := m.UserStateCache[tenantID]
	m.Mu.RUnlock()

	if !exists {
		return nil, false
	}

	tenantCache.Mu.RLock()
	defer tenantCache.Mu.RUnlock()

	session, found := tenantCache.SessionStates[sessionID]
	if !found || session.IsExpired() {
		return nil, false
	}

	session.UpdateActivity()
	return session, true
}

// SetSession stores session data, evicting the stalest session when the
// per-tenant cap is reached.
func (m *Manager) SetSession(tenantID string, session *models.SessionData) {
	m.EnsureTenant(tenantID)

	m.Mu.RLock()
	tenantCache := m.UserStateCache[tenantID]
	m.Mu.RUnlock()

	tenantCache.Mu.Lock()
	defer tenantCache.Mu.Unlock()

	if len(tenantCache.SessionStates) >= config.MaxSessionsPerTenant {
		var oldestID string
		var oldestAt time.Time
		for id, existing := range tenantCache.SessionStates {
			if oldestID == "" || existing.LastActivity.Before(oldestAt) {
				oldestID = id
				oldestAt = existing.LastActivity
			}
		}
		if oldestID != "" {
			delete(tenantCache.SessionStates, oldestID)
		}
	}

	tenantCache.SessionStates[session.SessionID] = session
}

// GetVisitorState retrieves visitor state from cache
func (m *Manager) GetVisitorState(tenantID, visitorID string) (*models.VisitorState, bool) {
	m.Mu.RLock()
	tenantCache, exists := m.UserStateCache[tenantID]
	m.Mu.RUnlock()

	if !exists {
		return nil, false
	}

	tenantCache.Mu.RLock()
	defer tenantCache.Mu.RUnlock()

	state, found := tenantCache.VisitorStates[visitorID]
	return state, found
}

// SetVisitorState stores visitor state
func (m *Manager) SetVisitorState(tenantID string, state *models.VisitorState) {
	m.EnsureTenant(tenantID)

	m.Mu.RLock()
	tenantCache := m.UserStateCache[tenantID]
	m.Mu.RUnlock()

	tenantCache.Mu.Lock()
	defer tenantCache.Mu.Unlock()
	tenantCache.VisitorStates[state.VisitorID] = state
}

// StartCleanupRoutine periodically evicts expired sessions, stale bins, and
// idle tenants.
func StartCleanupRoutine(m *Manager) {
	go func() {
		ticker := time.NewTicker(config.CleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			m.cleanup()
		}
	}()
}

func (m *Manager) cleanup() {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	now := time.Now().UTC()
	for tenantID, lastAccess := range m.LastAccessed {
		if now.Sub(lastAccess) > config.TenantTimeout {
			delete(m.UserStateCache, tenantID)
			delete(m.AnalyticsCache, tenantID)
			delete(m.LastAccessed, tenantID)
			log.Printf("Cache: evicted idle tenant %s", tenantID)
			continue
		}

		if tenantCache, exists := m.UserStateCache[tenantID]; exists {
			tenantCache.Mu.Lock()
			for sessionID, session := range tenantCache.SessionStates {
				if session.IsExpired() {
					delete(tenantCache.SessionStates, sessionID)
				}
			}
			tenantCache.Mu.Unlock()
		}

		if analyticsCache, exists := m.AnalyticsCache[tenantID]; exists {
			analyticsCache.Mu.Lock()
			for key, bin := range analyticsCache.SiteBins {
				if now.Sub(bin.ComputedAt) > bin.TTL {
					delete(analyticsCache.SiteBins, key)
				}
			}
			for key, bin := range analyticsCache.CampaignBins {
				if now.Sub(bin.ComputedAt) > bin.TTL {
					delete(analyticsCache.CampaignBins, key)
				}
			}
			analyticsCache.Mu.Unlock()
		}
	}
}
