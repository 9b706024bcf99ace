// Package cache provides hourly analytics bin updates and range queries.
package cache

import (
	"fmt"
	"time"

	"github.com/CartPulse/cartpulse-go/config"
	"github.com/CartPulse/cartpulse-go/models"
	"github.com/CartPulse/cartpulse-go/utils"
)

// RecordSiteEvent folds one ingested event into the current hour's site bin.
func (m *Manager) RecordSiteEvent(tenantID, visitorID, event string, cartValue, orderValue float64) {
	m.EnsureTenant(tenantID)

	m.Mu.RLock()
	analyticsCache := m.AnalyticsCache[tenantID]
	m.Mu.RUnlock()

	hourKey := utils.GetCurrentHourKey()

	analyticsCache.Mu.Lock()
	defer analyticsCache.Mu.Unlock()

	bin, exists := analyticsCache.SiteBins[hourKey]
	if !exists {
		bin = &models.HourlySiteBin{
			Data: &models.HourlySiteData{
				UniqueVisitors: make(map[string]bool),
				EventCounts:    make(map[string]int),
			},
			ComputedAt: time.Now().UTC(),
			TTL:        config.AnalyticsBinTTL,
		}
		analyticsCache.SiteBins[hourKey] = bin
	}

	bin.Data.UniqueVisitors[visitorID] = true
	bin.Data.EventCounts[event]++
	bin.Data.CartValue += cartValue
	bin.Data.OrderValue += orderValue
	analyticsCache.LastUpdated = time.Now().UTC()
	analyticsCache.LastFullHour = hourKey
}

// RecordCampaignEvent folds a popup lifecycle event into the campaign's
// current hour bin.
func (m *Manager) RecordCampaignEvent(tenantID, campaignID, event, reason string) {
	if campaignID == "" {
		return
	}
	m.EnsureTenant(tenantID)

	m.Mu.RLock()
	analyticsCache := m.AnalyticsCache[tenantID]
	m.Mu.RUnlock()

	key := fmt.Sprintf("%s:%s", campaignID, utils.GetCurrentHourKey())

	analyticsCache.Mu.Lock()
	defer analyticsCache.Mu.Unlock()

	bin, exists := analyticsCache.CampaignBins[key]
	if !exists {
		bin = &models.HourlyCampaignBin{
			Data:       &models.HourlyCampaignData{},
			ComputedAt: time.Now().UTC(),
			TTL:        config.AnalyticsBinTTL,
		}
		analyticsCache.CampaignBins[key] = bin
	}

	switch event {
	case models.EventPopupShown:
		bin.Data.Shown++
	case models.EventPopupClicked:
		bin.Data.Clicked++
	case models.EventPopupClosed:
		switch reason {
		case models.CloseReasonUserDismissed, models.CloseReasonUserClosed:
			bin.Data.Dismissed++
		case models.CloseReasonAutoClosed:
			bin.Data.AutoClose++
		}
	}
}

// SiteSummary aggregates the last N hours of site bins.
type SiteSummary struct {
	Hours          int            `json:"hours"`
	UniqueVisitors int            `json:"uniqueVisitors"`
	EventCounts    map[string]int `json:"eventCounts"`
	CartValue      float64        `json:"cartValue"`
	OrderValue     float64        `json:"orderValue"`
}

// GetSiteSummary computes a rolled-up view over the last N hourly bins.
func (m *Manager) GetSiteSummary(tenantID string, hours int) *SiteSummary {
	summary := &SiteSummary{
		Hours:       hours,
		EventCounts: make(map[string]int),
	}

	m.Mu.RLock()
	analyticsCache, exists := m.AnalyticsCache[tenantID]
	m.Mu.RUnlock()
	if !exists {
		return summary
	}

	visitors := make(map[string]bool)

	analyticsCache.Mu.RLock()
	defer analyticsCache.Mu.RUnlock()

	for _, hourKey := range utils.GetHourKeysForTimeRange(hours) {
		bin, found := analyticsCache.SiteBins[hourKey]
		if !found {
			continue
		}
		for visitorID := range bin.Data.UniqueVisitors {
			visitors[visitorID] = true
		}
		for event, count := range bin.Data.EventCounts {
			summary.EventCounts[event] += count
		}
		summary.CartValue += bin.Data.CartValue
		summary.OrderValue += bin.Data.OrderValue
	}

	summary.UniqueVisitors = len(visitors)
	return summary
}
