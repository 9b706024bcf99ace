package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CartPulse/cartpulse-go/cache"
	"github.com/CartPulse/cartpulse-go/models"
	"github.com/CartPulse/cartpulse-go/tenant"
	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
)

var testSchema = []string{
	`CREATE TABLE visitors (
		id TEXT PRIMARY KEY,
		platform TEXT,
		first_seen DATETIME NOT NULL,
		last_seen DATETIME NOT NULL
	)`,
	`CREATE TABLE events (
		id TEXT PRIMARY KEY,
		event TEXT NOT NULL,
		visitor_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		platform TEXT,
		user_agent TEXT,
		screen_resolution TEXT,
		campaign_id TEXT,
		payload TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE campaigns (
		id TEXT PRIMARY KEY,
		popup_title TEXT NOT NULL,
		popup_message TEXT,
		popup_delay_ms INTEGER NOT NULL DEFAULT 0,
		cta TEXT NOT NULL DEFAULT 'complete_purchase',
		button_color TEXT,
		cart_url TEXT,
		cart_items_display TEXT NOT NULL DEFAULT 'show_all',
		status TEXT NOT NULL DEFAULT 'draft',
		created_at DATETIME NOT NULL,
		updated_at DATETIME
	)`,
}

func newTestContext(t *testing.T) *tenant.Context {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "tenant.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	for _, statement := range testSchema {
		if _, err := db.Exec(statement); err != nil {
			t.Fatalf("failed to create schema: %v", err)
		}
	}

	return &tenant.Context{
		TenantID: "t1",
		Config: &tenant.Config{
			TenantID:      "t1",
			WebhookSecret: "shh",
			JWTSecret:     "jwt-secret",
		},
		Database: &tenant.Database{Conn: db, TenantID: "t1"},
		Status:   "active",
	}
}

func newTestRouter(ctx *tenant.Context) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cache.GlobalInstance = cache.NewManager()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("tenant", ctx)
		c.Next()
	})
	r.POST("/api/v1/webhook", WebhookHandler)
	r.GET("/api/v1/campaign/settings", CampaignSettingsHandler)
	return r
}

func postWebhook(r *gin.Engine, secret, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("x-webhook-secret", secret)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleEnvelopeJSON(event string) string {
	raw, _ := json.Marshal(models.Envelope{
		Event:     event,
		StoreID:   "t1",
		VisitorID: "v1",
		SessionID: "s1",
		Platform:  "shopify",
		Timestamp: time.Now().UTC(),
	})
	return string(raw)
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	r := newTestRouter(newTestContext(t))

	w := postWebhook(r, "wrong", sampleEnvelopeJSON(models.EventPageView))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}

	w = postWebhook(r, "", sampleEnvelopeJSON(models.EventPageView))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing secret status = %d, want 401", w.Code)
	}
}

func TestWebhookRejectsUnresolvedTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/webhook", WebhookHandler)

	w := postWebhook(r, "shh", sampleEnvelopeJSON(models.EventPageView))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestWebhookAcceptsAndPersistsEvent(t *testing.T) {
	ctx := newTestContext(t)
	r := newTestRouter(ctx)

	w := postWebhook(r, "shh", sampleEnvelopeJSON(models.EventPageView))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["success"] != true {
		t.Errorf("response = %v, want success true", resp)
	}

	var count int
	if err := ctx.Database.Conn.QueryRow(`SELECT COUNT(*) FROM events WHERE event = ?`, models.EventPageView).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("persisted events = %d, want 1", count)
	}

	if err := ctx.Database.Conn.QueryRow(`SELECT COUNT(*) FROM visitors WHERE id = 'v1'`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("upserted visitors = %d, want 1", count)
	}
}

func TestWebhookAcceptsBatch(t *testing.T) {
	ctx := newTestContext(t)
	r := newTestRouter(ctx)

	batch := "[" + sampleEnvelopeJSON(models.EventPageView) + "," + sampleEnvelopeJSON(models.EventCartUpdated) + "]"
	w := postWebhook(r, "shh", batch)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var count int
	ctx.Database.Conn.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count)
	if count != 2 {
		t.Errorf("persisted events = %d, want 2", count)
	}
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	r := newTestRouter(newTestContext(t))

	w := postWebhook(r, "shh", "{broken")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCampaignSettingsNoActiveCampaign(t *testing.T) {
	r := newTestRouter(newTestContext(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/campaign/settings?clientId=t1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestCampaignSettingsReturnsActiveCampaign(t *testing.T) {
	ctx := newTestContext(t)
	r := newTestRouter(ctx)

	now := time.Now().UTC()
	_, err := ctx.Database.Conn.Exec(
		`INSERT INTO campaigns (id, popup_title, popup_message, popup_delay_ms, cta, cart_items_display, status, created_at, updated_at)
		 VALUES ('cmp1', 'Wait!', 'Your cart misses you', 5000, 'go_to_checkout', 'show_2_plus', 'active', ?, ?)`, now, now)
	if err != nil {
		t.Fatal(err)
	}
	// Draft campaigns are never served.
	_, err = ctx.Database.Conn.Exec(
		`INSERT INTO campaigns (id, popup_title, popup_delay_ms, cta, cart_items_display, status, created_at, updated_at)
		 VALUES ('cmp2', 'Draft', 0, 'view_cart', 'show_all', 'draft', ?, ?)`, now, now)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/campaign/settings?clientId=t1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var campaign models.CampaignConfig
	if err := json.Unmarshal(w.Body.Bytes(), &campaign); err != nil {
		t.Fatal(err)
	}
	if campaign.CampaignID != "cmp1" || campaign.PopupDelayMs != 5000 {
		t.Errorf("campaign = %+v", campaign)
	}
	if campaign.CartItemsDisplay != models.DisplayShow2Plus {
		t.Errorf("CartItemsDisplay = %q", campaign.CartItemsDisplay)
	}
}
