package engine

import (
	"log"
	"sync"
	"time"

	"github.com/CartPulse/cartpulse-go/models"
)

// State is the engine's position in the abandonment lifecycle.
type State string

const (
	// StateIdle means no known non-empty cart. Entered at startup and
	// again after every popup resolution.
	StateIdle State = "IDLE"

	// StateCartActive means a cart interaction produced a non-empty
	// snapshot; the abandonment timer may be armed.
	StateCartActive State = "CART_ACTIVE"

	// StatePopupShown means the popup controller owns a mounted popup.
	StatePopupShown State = "POPUP_SHOWN"
)

// Trigger names the signal that initiated a popup evaluation.
type Trigger string

const (
	TriggerDelayTimer Trigger = "delay_timer"
	TriggerInactivity Trigger = "inactivity"
	TriggerMouseLeave Trigger = "mouse_leave"
)

// PopupPort is the engine's view of the popup controller. Mounted is the
// singleton guard; Show transfers ownership of the campaign and snapshot.
type PopupPort interface {
	Mounted() bool
	Show(campaign *models.CampaignConfig, cart *models.CartSnapshot) error
}

// Config wires an engine instance.
type Config struct {
	Scheduler          Scheduler
	Popup              PopupPort
	DefaultDelay       time.Duration
	MouseLeaveDebounce time.Duration
	Now                func() time.Time
	Debug              bool
}

// Engine decides exactly once per abandonment episode whether to surface a
// popup, fusing three independent signals: the armed delay timer, the
// sustained-inactivity poll, and debounced document mouse-leave. Invariants:
// at most one pending abandonment timer (cancel-before-arm) and at most one
// mounted popup (existence check in the evaluation gate).
type Engine struct {
	mu sync.Mutex

	state    State
	cart     *models.CartSnapshot
	campaign *models.CampaignConfig

	sched              Scheduler
	popup              PopupPort
	defaultDelay       time.Duration
	mouseLeaveDebounce time.Duration
	now                func() time.Time
	debug              bool

	timerID    string // pending abandonment timer, "" when none
	debounceID string // pending mouse-leave debounce, "" when none
	armed      bool   // triggers are eligible; cleared after any evaluation
	lastInput  time.Time
}

func New(cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DefaultDelay <= 0 {
		cfg.DefaultDelay = 15 * time.Second
	}
	if cfg.MouseLeaveDebounce <= 0 {
		cfg.MouseLeaveDebounce = 1500 * time.Millisecond
	}

	return &Engine{
		state:              StateIdle,
		sched:              cfg.Scheduler,
		popup:              cfg.Popup,
		defaultDelay:       cfg.DefaultDelay,
		mouseLeaveDebounce: cfg.MouseLeaveDebounce,
		now:                cfg.Now,
		debug:              cfg.Debug,
		lastInput:          cfg.Now(),
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Cart returns the engine's current cart snapshot, nil when unknown.
func (e *Engine) Cart() *models.CartSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart
}

// SetCampaign installs the campaign configuration once the fetch resolves.
// A nil campaign leaves all abandonment logic a no-op.
func (e *Engine) SetCampaign(campaign *models.CampaignConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.campaign = campaign
}

// delayLocked resolves the abandonment delay from the campaign, falling back
// to the configured default.
func (e *Engine) delayLocked() time.Duration {
	if e.campaign != nil && e.campaign.PopupDelayMs > 0 {
		return time.Duration(e.campaign.PopupDelayMs) * time.Millisecond
	}
	return e.defaultDelay
}

// CartUpdated receives a fresh extraction result. nil means "unknown" and
// changes nothing. A zero-item snapshot empties the cart and parks the
// engine in IDLE. A non-empty snapshot replaces the previous one wholesale,
// enters CART_ACTIVE, and re-arms the single abandonment timer,
// cancelling any pending one (last-write-wins).
func (e *Engine) CartUpdated(snapshot *models.CartSnapshot) {
	if snapshot == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastInput = e.now()

	if snapshot.ItemCount <= 0 {
		e.cart = snapshot
		e.cancelTimerLocked()
		e.armed = false
		if e.state == StateCartActive {
			e.state = StateIdle
		}
		return
	}

	e.cart = snapshot
	if e.state == StatePopupShown {
		// Popup owns the page; snapshot is kept for the next episode.
		return
	}

	e.state = StateCartActive
	e.armed = true
	e.cancelTimerLocked()
	e.timerID = e.sched.ScheduleAfter(e.delayLocked(), e.onDelayTimer)

	if e.debug {
		log.Printf("DEBUG: Engine - cart active with %d items, timer armed for %s", snapshot.ItemCount, e.delayLocked())
	}
}

// UserInput records user activity for the inactivity poll.
func (e *Engine) UserInput(at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if at.After(e.lastInput) {
		e.lastInput = at
	}
}

// PollInactivity compares wall-clock time since the last input against the
// campaign delay. Called on a fixed interval; see StartInactivityPoll.
func (e *Engine) PollInactivity() {
	e.mu.Lock()
	threshold := e.delayLocked()
	idleFor := e.now().Sub(e.lastInput)
	eligible := e.state == StateCartActive && e.armed && idleFor >= threshold
	e.mu.Unlock()

	if eligible {
		e.evaluate(TriggerInactivity)
	}
}

// StartInactivityPoll runs PollInactivity on the given interval until stop
// is closed.
func (e *Engine) StartInactivityPoll(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.PollInactivity()
			}
		}
	}()
}

// MouseLeave handles a document mouse-leave. The signal is debounced before
// evaluation so transient focus changes don't fire popups; a repeat leave
// within the window resets the debounce (last-write-wins).
func (e *Engine) MouseLeave() {
	e.mu.Lock()
	if e.state != StateCartActive || !e.armed {
		e.mu.Unlock()
		return
	}

	if e.debounceID != "" {
		e.sched.Cancel(e.debounceID)
	}
	e.debounceID = e.sched.ScheduleAfter(e.mouseLeaveDebounce, e.onMouseLeaveDebounced)
	e.mu.Unlock()
}

func (e *Engine) onDelayTimer() {
	e.mu.Lock()
	e.timerID = ""
	e.mu.Unlock()
	e.evaluate(TriggerDelayTimer)
}

func (e *Engine) onMouseLeaveDebounced() {
	e.mu.Lock()
	e.debounceID = ""
	e.mu.Unlock()
	e.evaluate(TriggerMouseLeave)
}

// evaluate is the single gate every trigger funnels through. All three
// conditions must hold: a campaign is loaded, the cart meets the campaign's
// display threshold, and no popup is mounted. A failed gate drops the
// trigger silently and disarms: the engine stays CART_ACTIVE but a new cart
// interaction is required before another evaluation, so one abandonment
// episode can never produce a popup storm.
func (e *Engine) evaluate(trigger Trigger) {
	e.mu.Lock()

	if e.state != StateCartActive || !e.armed {
		e.mu.Unlock()
		return
	}

	// One evaluation per armed episode, pass or fail.
	e.armed = false
	e.cancelTimerLocked()
	e.cancelDebounceLocked()

	campaign := e.campaign
	cart := e.cart

	if campaign == nil || cart == nil || !campaign.MeetsDisplayThreshold(cart.ItemCount) || e.popup.Mounted() {
		if e.debug {
			log.Printf("DEBUG: Engine - %s trigger dropped by evaluation gate", trigger)
		}
		e.mu.Unlock()
		return
	}

	e.state = StatePopupShown
	e.mu.Unlock()

	if err := e.popup.Show(campaign, cart); err != nil {
		// Mount was refused (lost a race with another instance); treat
		// like a gate failure.
		e.mu.Lock()
		if e.state == StatePopupShown {
			e.state = StateCartActive
		}
		e.mu.Unlock()
		return
	}

	if e.debug {
		log.Printf("DEBUG: Engine - popup shown via %s trigger", trigger)
	}
}

// PopupResolved returns the engine to IDLE after the popup controller
// reports a terminal outcome. The cart snapshot is discarded only when the
// visitor accepted the CTA; otherwise it is kept for a possible next episode.
func (e *Engine) PopupResolved(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePopupShown {
		return
	}

	e.state = StateIdle
	e.armed = false
	if reason == models.CloseReasonCTAClicked {
		e.cart = nil
	}
}

// Shutdown cancels all pending callbacks. Page navigation destroys the
// browser engine implicitly; Go hosts call this on teardown.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelTimerLocked()
	e.cancelDebounceLocked()
	e.armed = false
}

func (e *Engine) cancelTimerLocked() {
	if e.timerID != "" {
		e.sched.Cancel(e.timerID)
		e.timerID = ""
	}
}

func (e *Engine) cancelDebounceLocked() {
	if e.debounceID != "" {
		e.sched.Cancel(e.debounceID)
		e.debounceID = ""
	}
}
