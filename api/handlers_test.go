package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CartPulse/cartpulse-go/config"
	"github.com/gin-gonic/gin"
)

func TestLiveEventsConnectionLimit(t *testing.T) {
	prev := config.MaxStreamConnections
	config.MaxStreamConnections = 0
	defer func() { config.MaxStreamConnections = prev }()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/v1/admin/events/live", LiveEventsHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/events/live", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 at connection limit", w.Code)
	}
}

func TestStreamEventsDeliversAndReapsIdleClient(t *testing.T) {
	rec := httptest.NewRecorder()
	ch := make(chan string, 1)
	done := make(chan struct{})

	ch <- "event: tracked\ndata: {\"event\":\"page_view\"}\n\n"

	start := time.Now()
	streamEvents(rec, rec, ch, done, 10*time.Millisecond, 80*time.Millisecond)
	elapsed := time.Since(start)

	body := rec.Body.String()
	if !strings.Contains(body, "event: tracked") {
		t.Errorf("queued message not delivered: %q", body)
	}
	if !strings.Contains(body, ": heartbeat") {
		t.Errorf("no heartbeat written: %q", body)
	}
	if elapsed > 2*time.Second {
		t.Errorf("idle stream not reaped, ran %v", elapsed)
	}
}

func TestStreamEventsStopsOnDisconnect(t *testing.T) {
	rec := httptest.NewRecorder()
	ch := make(chan string)
	done := make(chan struct{})
	close(done)

	finished := make(chan struct{})
	go func() {
		streamEvents(rec, rec, ch, done, time.Minute, time.Minute)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop on client disconnect")
	}
}

func TestRegisterTenantCapacityReached(t *testing.T) {
	t.Setenv("CARTPULSE_HOME", t.TempDir())
	prev := config.MaxTenants
	config.MaxTenants = 1
	defer func() { config.MaxTenants = prev }()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/tenants/register", RegisterTenantHandler)

	// The default registry already carries one tenant, so a cap of one
	// leaves no room.
	body := `{"tenantId":"acme-store"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tenants/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 at tenant capacity", w.Code)
	}
}
