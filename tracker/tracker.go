// Package tracker wires the CartPulse in-page engine: platform detection,
// cart extraction, campaign fetch, the abandonment state machine, the popup
// controller, and event transport. One Tracker per page load; the instance
// is passed explicitly to whoever needs it, never looked up ambiently.
package tracker

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/CartPulse/cartpulse-go/config"
	"github.com/CartPulse/cartpulse-go/models"
	"github.com/CartPulse/cartpulse-go/tracker/campaign"
	"github.com/CartPulse/cartpulse-go/tracker/cart"
	"github.com/CartPulse/cartpulse-go/tracker/engine"
	"github.com/CartPulse/cartpulse-go/tracker/identity"
	"github.com/CartPulse/cartpulse-go/tracker/page"
	"github.com/CartPulse/cartpulse-go/tracker/platform"
	"github.com/CartPulse/cartpulse-go/tracker/popup"
	"github.com/CartPulse/cartpulse-go/tracker/storage"
	"github.com/CartPulse/cartpulse-go/tracker/transport"
)

// Config mirrors the data-* attributes of the embed script tag plus the
// endpoints the tracker talks to.
type Config struct {
	ClientID  string
	APIKey    string
	Debug     bool
	AutoTrack bool

	CampaignEndpoint string
	WebhookEndpoint  string
	WebhookSecret    string
	CheckoutURL      string

	HTTPClient *http.Client
}

// Tracker is the per-page-load engine instance.
type Tracker struct {
	cfg     Config
	enabled bool

	visitorID string
	sessionID string
	platform  platform.Platform
	snapshot  *page.Snapshot

	sched     *engine.TimerScheduler
	engine    *engine.Engine
	popup     *popup.Controller
	transport *transport.Transport
	extractor cart.Extractor
	fetcher   *campaign.Fetcher

	stopPoll chan struct{}
}

// New builds a tracker instance against a page snapshot. A missing ClientID
// disables the tracker entirely: every method becomes a no-op and no network
// call is ever made (logged in debug mode, never an error — the host page
// must not be disturbed).
func New(cfg Config, snap *page.Snapshot, surface popup.Surface, store storage.Store) *Tracker {
	if cfg.ClientID == "" {
		if cfg.Debug {
			log.Printf("DEBUG: Tracker - data-client-id missing, tracker disabled")
		}
		return &Tracker{cfg: cfg, enabled: false}
	}

	if store == nil {
		store = storage.NewMemoryStore()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	t := &Tracker{
		cfg:       cfg,
		enabled:   true,
		visitorID: identity.LoadVisitorID(store),
		sessionID: identity.NewSessionID(),
		platform:  platform.Detect(snap),
		snapshot:  snap,
		sched:     engine.NewTimerScheduler(),
		stopPoll:  make(chan struct{}),
	}

	t.transport = transport.New(transport.Config{
		Client:    cfg.HTTPClient,
		Endpoint:  cfg.WebhookEndpoint,
		Secret:    cfg.WebhookSecret,
		Store:     store,
		MaxQueued: config.MaxQueuedEvents,
		Debug:     cfg.Debug,
	})

	t.popup = popup.NewController(popup.Config{
		Surface:     surface,
		Report:      t.reportPopupEvent,
		OnResolved:  func(reason string) { t.engine.PopupResolved(reason) },
		Scheduler:   t.sched,
		AutoClose:   config.PopupAutoCloseTimeout,
		CheckoutURL: cfg.CheckoutURL,
		CartURL:     defaultCartURL(t.platform),
		Debug:       cfg.Debug,
	})

	t.engine = engine.New(engine.Config{
		Scheduler:          t.sched,
		Popup:              t.popup,
		DefaultDelay:       config.DefaultPopupDelay,
		MouseLeaveDebounce: config.MouseLeaveDebounce,
		Debug:              cfg.Debug,
	})

	t.extractor = t.selectExtractor()
	t.fetcher = campaign.NewFetcher(cfg.HTTPClient, cfg.CampaignEndpoint, cfg.Debug)

	if cfg.Debug {
		log.Printf("DEBUG: Tracker - initialized for client %s on %s platform", cfg.ClientID, t.platform)
	}
	return t
}

// selectExtractor picks the platform strategy, routing Shopify's async
// cart.js results back through the engine out-of-band.
func (t *Tracker) selectExtractor() cart.Extractor {
	if t.platform == platform.Shopify {
		return cart.NewShopifyExtractor(t.cfg.HTTPClient, t.cfg.Debug, func(snapshot *models.CartSnapshot) {
			t.engine.CartUpdated(snapshot)
		})
	}
	return cart.ForPlatform(t.platform)
}

// Start begins tracking: campaign fetch and page-view tracking run
// independently (a failed fetch never blocks analytics), and the
// inactivity poll starts ticking.
func (t *Tracker) Start(ctx context.Context) {
	if !t.enabled {
		return
	}

	go func() {
		if c := t.fetcher.FetchActive(ctx, t.cfg.ClientID); c != nil {
			t.engine.SetCampaign(c)
			if t.cfg.Debug {
				log.Printf("DEBUG: Tracker - campaign %s active", c.CampaignID)
			}
		}
	}()

	t.engine.StartInactivityPoll(config.InactivityPollInterval, t.stopPoll)

	if t.cfg.AutoTrack {
		t.PageView()
	}
}

// Stop tears the instance down, cancelling timers and the poll loop.
func (t *Tracker) Stop() {
	if !t.enabled {
		return
	}
	close(t.stopPoll)
	t.engine.Shutdown()
	t.sched.Stop()
}

// Enabled reports whether the tracker is live.
func (t *Tracker) Enabled() bool { return t.enabled }

// VisitorID returns the durable visitor identifier.
func (t *Tracker) VisitorID() string { return t.visitorID }

// SessionID returns the per-page-load session identifier.
func (t *Tracker) SessionID() string { return t.sessionID }

// Platform returns the detected storefront platform.
func (t *Tracker) Platform() platform.Platform { return t.platform }

// Engine exposes the abandonment engine for host event wiring.
func (t *Tracker) Engine() *engine.Engine {
	if !t.enabled {
		return nil
	}
	return t.engine
}

// Popup exposes the popup controller for host action wiring.
func (t *Tracker) Popup() *popup.Controller {
	if !t.enabled {
		return nil
	}
	return t.popup
}

// PageView tracks a page view.
func (t *Tracker) PageView() {
	if !t.enabled {
		return
	}
	envelope := t.newEnvelope(models.EventPageView)
	if t.snapshot != nil {
		envelope.Page = map[string]any{"url": t.snapshot.URL}
	}
	t.transport.Send(envelope)
}

// ProductViewed tracks a product detail view.
func (t *Tracker) ProductViewed(product map[string]any) {
	if !t.enabled {
		return
	}
	envelope := t.newEnvelope(models.EventProductViewed)
	envelope.Product = product
	t.transport.Send(envelope)
}

// CheckoutStarted tracks checkout entry with the current cart.
func (t *Tracker) CheckoutStarted() {
	if !t.enabled {
		return
	}
	envelope := t.newEnvelope(models.EventCheckoutStarted)
	envelope.Cart = t.engine.Cart()
	t.transport.Send(envelope)
}

// Purchase tracks a completed order.
func (t *Tracker) Purchase(order map[string]any) {
	if !t.enabled {
		return
	}
	envelope := t.newEnvelope(models.EventPurchase)
	envelope.Order = order
	t.transport.Send(envelope)
}

// Custom tracks an arbitrary named event.
func (t *Tracker) Custom(event string, properties map[string]any) {
	if !t.enabled {
		return
	}
	envelope := t.newEnvelope(event)
	envelope.Properties = properties
	t.transport.Send(envelope)
}

// CartEvent handles a cart-affecting DOM event: extract against the current
// snapshot, replace the engine's cart state, and ship cart_updated when a
// cart was actually found. A nil extraction is "unknown" and ships nothing.
func (t *Tracker) CartEvent() {
	if !t.enabled {
		return
	}

	snapshot := t.extractor.Extract(t.snapshot)
	t.engine.CartUpdated(snapshot)

	if snapshot != nil {
		envelope := t.newEnvelope(models.EventCartUpdated)
		envelope.Cart = snapshot
		t.transport.Send(envelope)
	}
}

// SetSnapshot replaces the page snapshot (a soft navigation or DOM refresh)
// and re-extracts.
func (t *Tracker) SetSnapshot(snap *page.Snapshot) {
	if !t.enabled {
		return
	}
	t.snapshot = snap
	t.CartEvent()
}

// UserInput records user activity for the inactivity heuristic.
func (t *Tracker) UserInput() {
	if !t.enabled {
		return
	}
	t.engine.UserInput(time.Now())
}

// MouseLeave forwards the document mouse-leave signal.
func (t *Tracker) MouseLeave() {
	if !t.enabled {
		return
	}
	t.engine.MouseLeave()
}

// SetOnline forwards connectivity transitions to the transport.
func (t *Tracker) SetOnline(online bool) {
	if !t.enabled {
		return
	}
	t.transport.SetOnline(online)
}

func (t *Tracker) reportPopupEvent(event, campaignID string, properties map[string]any) {
	envelope := t.newEnvelope(event)
	envelope.CampaignID = campaignID
	envelope.Properties = properties
	t.transport.Send(envelope)
}

func (t *Tracker) newEnvelope(event string) models.Envelope {
	envelope := models.Envelope{
		Event:     event,
		StoreID:   t.cfg.ClientID,
		VisitorID: t.visitorID,
		SessionID: t.sessionID,
		Platform:  string(t.platform),
		Timestamp: time.Now().UTC(),
	}
	if t.snapshot != nil {
		envelope.UserAgent = t.snapshot.UserAgent
		envelope.ScreenResolution = t.snapshot.ScreenResolution
	}
	return envelope
}

// defaultCartURL is the platform fallback used when a campaign has no
// configured cart URL.
func defaultCartURL(p platform.Platform) string {
	switch p {
	case platform.WooCommerce:
		return "/cart/"
	case platform.Magento:
		return "/checkout/cart/"
	case platform.BigCommerce:
		return "/cart.php"
	default:
		return "/cart"
	}
}
