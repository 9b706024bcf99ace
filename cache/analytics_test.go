package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/CartPulse/cartpulse-go/config"
	"github.com/CartPulse/cartpulse-go/models"
	"github.com/CartPulse/cartpulse-go/utils"
)

func TestRecordSiteEventFoldsIntoCurrentHour(t *testing.T) {
	m := NewManager()

	m.RecordSiteEvent("t1", "v1", models.EventPageView, 0, 0)
	m.RecordSiteEvent("t1", "v1", models.EventCartUpdated, 42.5, 0)
	m.RecordSiteEvent("t1", "v2", models.EventPurchase, 0, 99.9)

	summary := m.GetSiteSummary("t1", 1)
	if summary.UniqueVisitors != 2 {
		t.Errorf("UniqueVisitors = %d, want 2", summary.UniqueVisitors)
	}
	if summary.EventCounts[models.EventPageView] != 1 || summary.EventCounts[models.EventCartUpdated] != 1 {
		t.Errorf("EventCounts = %+v", summary.EventCounts)
	}
	if summary.CartValue != 42.5 {
		t.Errorf("CartValue = %v, want 42.5", summary.CartValue)
	}
	if summary.OrderValue != 99.9 {
		t.Errorf("OrderValue = %v, want 99.9", summary.OrderValue)
	}
}

func TestSiteSummaryIsolatedPerTenant(t *testing.T) {
	m := NewManager()

	m.RecordSiteEvent("t1", "v1", models.EventPageView, 0, 0)
	m.RecordSiteEvent("t2", "v1", models.EventPageView, 0, 0)
	m.RecordSiteEvent("t2", "v2", models.EventPageView, 0, 0)

	if got := m.GetSiteSummary("t1", 1).UniqueVisitors; got != 1 {
		t.Errorf("t1 UniqueVisitors = %d, want 1", got)
	}
	if got := m.GetSiteSummary("t2", 1).UniqueVisitors; got != 2 {
		t.Errorf("t2 UniqueVisitors = %d, want 2", got)
	}
	if got := m.GetSiteSummary("unknown", 1).UniqueVisitors; got != 0 {
		t.Errorf("unknown tenant UniqueVisitors = %d, want 0", got)
	}
}

func TestRecordCampaignEventBreakdown(t *testing.T) {
	m := NewManager()

	m.RecordCampaignEvent("t1", "cmp1", models.EventPopupShown, "")
	m.RecordCampaignEvent("t1", "cmp1", models.EventPopupShown, "")
	m.RecordCampaignEvent("t1", "cmp1", models.EventPopupClicked, "")
	m.RecordCampaignEvent("t1", "cmp1", models.EventPopupClosed, models.CloseReasonUserDismissed)
	m.RecordCampaignEvent("t1", "cmp1", models.EventPopupClosed, models.CloseReasonAutoClosed)

	// Missing campaign id is a silent no-op.
	m.RecordCampaignEvent("t1", "", models.EventPopupShown, "")

	key := fmt.Sprintf("cmp1:%s", utils.GetCurrentHourKey())

	m.Mu.RLock()
	analyticsCache := m.AnalyticsCache["t1"]
	m.Mu.RUnlock()

	analyticsCache.Mu.RLock()
	bin := analyticsCache.CampaignBins[key]
	analyticsCache.Mu.RUnlock()

	if bin == nil {
		t.Fatalf("no campaign bin under %q", key)
	}
	if bin.Data.Shown != 2 || bin.Data.Clicked != 1 || bin.Data.Dismissed != 1 || bin.Data.AutoClose != 1 {
		t.Errorf("bin = %+v", bin.Data)
	}
}

func TestSessionLifecycle(t *testing.T) {
	m := NewManager()

	session := &models.SessionData{
		SessionID:    "s1",
		VisitorID:    "v1",
		Platform:     "shopify",
		LastActivity: time.Now().UTC(),
	}
	m.SetSession("t1", session)

	got, ok := m.GetSession("t1", "s1")
	if !ok || got.VisitorID != "v1" {
		t.Fatalf("GetSession = %+v, %v", got, ok)
	}

	if _, ok := m.GetSession("t1", "missing"); ok {
		t.Error("missing session should not be found")
	}
	if _, ok := m.GetSession("other", "s1"); ok {
		t.Error("sessions must be tenant isolated")
	}
}

func TestExpiredSessionNotReturned(t *testing.T) {
	m := NewManager()

	m.SetSession("t1", &models.SessionData{
		SessionID:    "stale",
		VisitorID:    "v1",
		LastActivity: time.Now().UTC().Add(-config.UserStateTTL - time.Minute),
	})

	if _, ok := m.GetSession("t1", "stale"); ok {
		t.Error("expired session should read as missing")
	}
}

func TestVisitorStateLifecycle(t *testing.T) {
	m := NewManager()

	state := &models.VisitorState{VisitorID: "v1", Platform: "woocommerce"}
	m.SetVisitorState("t1", state)

	got, ok := m.GetVisitorState("t1", "v1")
	if !ok || got.Platform != "woocommerce" {
		t.Fatalf("GetVisitorState = %+v, %v", got, ok)
	}
	if _, ok := m.GetVisitorState("t2", "v1"); ok {
		t.Error("visitor state must be tenant isolated")
	}
}
