// Package popup renders the abandonment popup and reports its lifecycle
// outcomes. At most one popup exists per controller; the mounted flag is the
// mutual-exclusion guard the engine checks before firing.
package popup

import (
	"log"
	"sync"
	"time"

	"github.com/CartPulse/cartpulse-go/models"
	"github.com/CartPulse/cartpulse-go/tracker/engine"
)

// View is the fully resolved popup content handed to the surface.
type View struct {
	Title       string
	Message     string
	ButtonColor string
	CTALabel    string
	CTAURL      string
	Items       []models.CartItem
	Total       float64
	Currency    string
}

// Surface renders and removes the popup in the host environment. Mount may
// refuse (non-nil error) when the host already shows one; the controller
// treats that as a lost singleton race.
type Surface interface {
	Mount(view View) error
	Unmount()
}

// Reporter ships an outcome event. Wired to the event transport.
type Reporter func(event, campaignID string, properties map[string]any)

// Controller drives one popup lifecycle at a time: exactly one popup_shown
// at mount, exactly one popup_closed-family outcome at resolution.
type Controller struct {
	mu sync.Mutex

	surface  Surface
	report   Reporter
	resolved func(reason string) // engine notification
	navigate func(url string)
	sched    engine.Scheduler

	autoClose   time.Duration
	checkoutURL string
	cartURL     string // platform-default cart URL fallback
	debug       bool

	mounted  bool
	done     bool
	autoID   string
	campaign *models.CampaignConfig
}

// Config wires a popup controller.
type Config struct {
	Surface     Surface
	Report      Reporter
	OnResolved  func(reason string)
	Navigate    func(url string)
	Scheduler   engine.Scheduler
	AutoClose   time.Duration
	CheckoutURL string
	CartURL     string
	Debug       bool
}

func NewController(cfg Config) *Controller {
	if cfg.AutoClose <= 0 {
		cfg.AutoClose = 30 * time.Second
	}
	if cfg.Navigate == nil {
		cfg.Navigate = func(string) {}
	}
	if cfg.OnResolved == nil {
		cfg.OnResolved = func(string) {}
	}
	if cfg.Report == nil {
		cfg.Report = func(string, string, map[string]any) {}
	}
	if cfg.CartURL == "" {
		cfg.CartURL = "/cart"
	}

	return &Controller{
		surface:     cfg.Surface,
		report:      cfg.Report,
		resolved:    cfg.OnResolved,
		navigate:    cfg.Navigate,
		sched:       cfg.Scheduler,
		autoClose:   cfg.AutoClose,
		checkoutURL: cfg.CheckoutURL,
		cartURL:     cfg.CartURL,
		debug:       cfg.Debug,
	}
}

// Mounted reports whether a popup currently exists. This is the engine's
// singleton guard.
func (c *Controller) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

// Show mounts the popup and emits popup_shown synchronously. Returns a
// non-nil error without side effects when a popup already exists.
func (c *Controller) Show(campaign *models.CampaignConfig, cart *models.CartSnapshot) error {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return ErrAlreadyMounted
	}
	c.mounted = true
	c.done = false
	c.campaign = campaign
	c.mu.Unlock()

	view := View{
		Title:       campaign.PopupTitle,
		Message:     campaign.PopupMessage,
		ButtonColor: campaign.ButtonColor,
		CTALabel:    ctaLabel(campaign.CTA),
		CTAURL:      c.resolveCTAURL(campaign),
		Total:       cart.Total,
		Currency:    cart.Currency,
		Items:       cart.Items,
	}

	if err := c.surface.Mount(view); err != nil {
		c.mu.Lock()
		c.mounted = false
		c.campaign = nil
		c.mu.Unlock()
		if c.debug {
			log.Printf("DEBUG: Popup - surface refused mount: %v", err)
		}
		return err
	}

	c.report(models.EventPopupShown, campaign.CampaignID, map[string]any{
		"itemCount": cart.ItemCount,
		"cartTotal": cart.Total,
	})

	c.mu.Lock()
	c.autoID = c.sched.ScheduleAfter(c.autoClose, c.autoTimeout)
	c.mu.Unlock()

	return nil
}

// CTAClicked handles the primary action: popup_clicked and the terminal
// popup_closed both ship before navigation so neither is lost to the
// redirect.
func (c *Controller) CTAClicked() {
	c.mu.Lock()
	if !c.mounted || c.done {
		c.mu.Unlock()
		return
	}
	campaign := c.campaign
	c.mu.Unlock()

	url := c.resolveCTAURL(campaign)
	c.report(models.EventPopupClicked, campaign.CampaignID, map[string]any{"url": url})
	c.resolve(models.CloseReasonCTAClicked)
	c.navigate(url)
}

// Dismiss handles the secondary "no thanks" action.
func (c *Controller) Dismiss() {
	c.resolve(models.CloseReasonUserDismissed)
}

// Close handles the explicit close control.
func (c *Controller) Close() {
	c.resolve(models.CloseReasonUserClosed)
}

func (c *Controller) autoTimeout() {
	c.resolve(models.CloseReasonAutoClosed)
}

// resolve emits the single terminal event, unmounts, and notifies the
// engine. The done flag guarantees one terminal outcome per lifecycle no
// matter how actions race.
func (c *Controller) resolve(reason string) {
	c.mu.Lock()
	if !c.mounted || c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	c.mounted = false
	campaign := c.campaign
	c.campaign = nil
	if c.autoID != "" {
		c.sched.Cancel(c.autoID)
		c.autoID = ""
	}
	c.mu.Unlock()

	c.surface.Unmount()

	campaignID := ""
	if campaign != nil {
		campaignID = campaign.CampaignID
	}
	c.report(models.EventPopupClosed, campaignID, map[string]any{"reason": reason})
	c.resolved(reason)
}

// resolveCTAURL maps the campaign CTA to its destination.
func (c *Controller) resolveCTAURL(campaign *models.CampaignConfig) string {
	switch campaign.CTA {
	case models.CTAViewCart:
		if campaign.CartURL != "" {
			return campaign.CartURL
		}
		return c.cartURL
	default:
		// complete_purchase and go_to_checkout both land on checkout
		if c.checkoutURL != "" {
			return c.checkoutURL
		}
		return "/checkout"
	}
}

func ctaLabel(cta string) string {
	switch cta {
	case models.CTAGoToCheckout:
		return "Go to Checkout"
	case models.CTAViewCart:
		return "View Cart"
	default:
		return "Complete Purchase"
	}
}
