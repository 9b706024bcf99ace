package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/CartPulse/cartpulse-go/models"
)

// manualScheduler lets tests fire callbacks by hand instead of waiting on
// real timers.
type manualScheduler struct {
	mu      sync.Mutex
	nextID  int
	pending map[string]func()
	order   []string
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{pending: make(map[string]func())}
}

func (s *manualScheduler) ScheduleAfter(delay time.Duration, fn func()) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("t%d", s.nextID)
	s.pending[id] = fn
	s.order = append(s.order, id)
	return id
}

func (s *manualScheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

func (s *manualScheduler) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// fireLatest runs the most recently scheduled callback that is still pending.
func (s *manualScheduler) fireLatest() bool {
	s.mu.Lock()
	var fn func()
	for i := len(s.order) - 1; i >= 0; i-- {
		if f, ok := s.pending[s.order[i]]; ok {
			fn = f
			delete(s.pending, s.order[i])
			break
		}
	}
	s.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}

type fakePopup struct {
	mu       sync.Mutex
	mounted  bool
	shows    int
	showErr  error
	lastCart *models.CartSnapshot
}

func (p *fakePopup) Mounted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mounted
}

func (p *fakePopup) Show(campaign *models.CampaignConfig, cart *models.CartSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.showErr != nil {
		return p.showErr
	}
	p.shows++
	p.mounted = true
	p.lastCart = cart
	return nil
}

func (p *fakePopup) showCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shows
}

func testCampaign(display string) *models.CampaignConfig {
	return &models.CampaignConfig{
		CampaignID:       "cmp1",
		PopupTitle:       "Wait!",
		PopupDelayMs:     1000,
		CTA:              models.CTAGoToCheckout,
		CartItemsDisplay: display,
	}
}

func cartWith(items int) *models.CartSnapshot {
	snapshot := &models.CartSnapshot{ItemCount: items, Currency: "USD"}
	for i := 0; i < items; i++ {
		snapshot.Items = append(snapshot.Items, models.CartItem{Name: "item", Price: 10, Quantity: 1})
		snapshot.Total += 10
	}
	return snapshot
}

func newTestEngine(popup *fakePopup, sched Scheduler, now func() time.Time) *Engine {
	return New(Config{
		Scheduler:          sched,
		Popup:              popup,
		DefaultDelay:       15 * time.Second,
		MouseLeaveDebounce: 1500 * time.Millisecond,
		Now:                now,
	})
}

func TestNilSnapshotIgnored(t *testing.T) {
	sched := newManualScheduler()
	popup := &fakePopup{}
	e := newTestEngine(popup, sched, nil)

	e.CartUpdated(nil)

	if e.State() != StateIdle {
		t.Errorf("expected IDLE after nil snapshot, got %s", e.State())
	}
	if sched.pendingCount() != 0 {
		t.Errorf("expected no timers armed, got %d", sched.pendingCount())
	}
}

func TestEmptyCartReturnsToIdle(t *testing.T) {
	sched := newManualScheduler()
	popup := &fakePopup{}
	e := newTestEngine(popup, sched, nil)
	e.SetCampaign(testCampaign(models.DisplayShowAll))

	e.CartUpdated(cartWith(2))
	if e.State() != StateCartActive {
		t.Fatalf("expected CART_ACTIVE, got %s", e.State())
	}
	if sched.pendingCount() != 1 {
		t.Fatalf("expected 1 armed timer, got %d", sched.pendingCount())
	}

	e.CartUpdated(cartWith(0))
	if e.State() != StateIdle {
		t.Errorf("expected IDLE after cart emptied, got %s", e.State())
	}
	if sched.pendingCount() != 0 {
		t.Errorf("expected timer cancelled on empty cart, got %d pending", sched.pendingCount())
	}

	// The cancelled timer must not fire a popup even if it were to run.
	if sched.fireLatest() {
		t.Error("expected no pending callbacks after cancel")
	}
	if popup.showCount() != 0 {
		t.Errorf("expected no popup, got %d", popup.showCount())
	}
}

func TestDelayTimerShowsPopup(t *testing.T) {
	sched := newManualScheduler()
	popup := &fakePopup{}
	e := newTestEngine(popup, sched, nil)
	e.SetCampaign(testCampaign(models.DisplayShowAll))

	e.CartUpdated(cartWith(2))
	if !sched.fireLatest() {
		t.Fatal("expected an armed abandonment timer")
	}

	if e.State() != StatePopupShown {
		t.Errorf("expected POPUP_SHOWN, got %s", e.State())
	}
	if popup.showCount() != 1 {
		t.Errorf("expected exactly 1 popup, got %d", popup.showCount())
	}
	if popup.lastCart == nil || popup.lastCart.ItemCount != 2 {
		t.Error("popup should receive the current cart snapshot")
	}
}

func TestCartUpdateRearmsSingleTimer(t *testing.T) {
	sched := newManualScheduler()
	popup := &fakePopup{}
	e := newTestEngine(popup, sched, nil)
	e.SetCampaign(testCampaign(models.DisplayShowAll))

	e.CartUpdated(cartWith(1))
	e.CartUpdated(cartWith(2))
	e.CartUpdated(cartWith(3))

	if sched.pendingCount() != 1 {
		t.Fatalf("expected exactly 1 pending timer after re-arms, got %d", sched.pendingCount())
	}

	sched.fireLatest()
	if popup.showCount() != 1 {
		t.Errorf("expected exactly 1 popup, got %d", popup.showCount())
	}
	if popup.lastCart.ItemCount != 3 {
		t.Errorf("popup should see the latest snapshot, got %d items", popup.lastCart.ItemCount)
	}
}

func TestGateRequiresCampaign(t *testing.T) {
	sched := newManualScheduler()
	popup := &fakePopup{}
	e := newTestEngine(popup, sched, nil)

	e.CartUpdated(cartWith(2))
	sched.fireLatest()

	if popup.showCount() != 0 {
		t.Errorf("expected no popup without campaign, got %d", popup.showCount())
	}
	if e.State() != StateCartActive {
		t.Errorf("gate failure should keep CART_ACTIVE, got %s", e.State())
	}
}

func TestGateFailureDisarmsUntilNextCartInteraction(t *testing.T) {
	sched := newManualScheduler()
	popup := &fakePopup{}
	now := time.Now()
	e := newTestEngine(popup, sched, func() time.Time { return now })

	e.CartUpdated(cartWith(2))
	sched.fireLatest() // no campaign loaded, gate fails and disarms

	// Campaign arrives late; inactivity would otherwise be eligible, but
	// the episode already consumed its evaluation.
	e.SetCampaign(testCampaign(models.DisplayShowAll))
	now = now.Add(time.Hour)
	e.PollInactivity()
	e.MouseLeave()
	if sched.pendingCount() != 0 {
		t.Error("mouse leave should not debounce after disarm")
	}
	if popup.showCount() != 0 {
		t.Errorf("expected no popup until a new cart interaction, got %d", popup.showCount())
	}

	// A fresh cart interaction re-arms.
	e.CartUpdated(cartWith(2))
	sched.fireLatest()
	if popup.showCount() != 1 {
		t.Errorf("expected popup after re-arm, got %d", popup.showCount())
	}
}

func TestDisplayThresholds(t *testing.T) {
	cases := []struct {
		display string
		items   int
		want    bool
	}{
		{models.DisplayShowAll, 1, true},
		{models.DisplayShow2Plus, 1, false},
		{models.DisplayShow2Plus, 2, true},
		{models.DisplayShow3Plus, 2, false},
		{models.DisplayShow3Plus, 3, true},
	}

	for _, tc := range cases {
		sched := newManualScheduler()
		popup := &fakePopup{}
		e := newTestEngine(popup, sched, nil)
		e.SetCampaign(testCampaign(tc.display))

		e.CartUpdated(cartWith(tc.items))
		sched.fireLatest()

		shown := popup.showCount() == 1
		if shown != tc.want {
			t.Errorf("%s with %d items: shown=%v, want %v", tc.display, tc.items, shown, tc.want)
		}
	}
}

func TestMountedPopupBlocksEvaluation(t *testing.T) {
	sched := newManualScheduler()
	popup := &fakePopup{mounted: true}
	e := newTestEngine(popup, sched, nil)
	e.SetCampaign(testCampaign(models.DisplayShowAll))

	e.CartUpdated(cartWith(2))
	sched.fireLatest()

	if popup.showCount() != 0 {
		t.Errorf("expected singleton guard to block, got %d popups", popup.showCount())
	}
}

func TestInactivityTrigger(t *testing.T) {
	sched := newManualScheduler()
	popup := &fakePopup{}
	now := time.Now()
	e := newTestEngine(popup, sched, func() time.Time { return now })
	e.SetCampaign(testCampaign(models.DisplayShowAll))

	e.CartUpdated(cartWith(2))

	e.PollInactivity()
	if popup.showCount() != 0 {
		t.Fatal("poll before threshold should not show")
	}

	now = now.Add(2 * time.Second) // campaign delay is 1000ms
	e.PollInactivity()
	if popup.showCount() != 1 {
		t.Errorf("expected popup from inactivity, got %d", popup.showCount())
	}
	if e.State() != StatePopupShown {
		t.Errorf("expected POPUP_SHOWN, got %s", e.State())
	}
}

func TestUserInputResetsInactivity(t *testing.T) {
	sched := newManualScheduler()
	popup := &fakePopup{}
	now := time.Now()
	e := newTestEngine(popup, sched, func() time.Time { return now })
	e.SetCampaign(testCampaign(models.DisplayShowAll))

	e.CartUpdated(cartWith(2))
	now = now.Add(900 * time.Millisecond)
	e.UserInput(now)
	now = now.Add(900 * time.Millisecond)

	e.PollInactivity()
	if popup.showCount() != 0 {
		t.Error("input inside the window should hold off the inactivity trigger")
	}
}

func TestMouseLeaveDebounce(t *testing.T) {
	sched := newManualScheduler()
	popup := &fakePopup{}
	e := newTestEngine(popup, sched, nil)
	e.SetCampaign(testCampaign(models.DisplayShowAll))

	e.CartUpdated(cartWith(2)) // arms delay timer (1 pending)

	e.MouseLeave()
	e.MouseLeave() // resets: previous debounce cancelled

	// One abandonment timer plus one live debounce.
	if sched.pendingCount() != 2 {
		t.Fatalf("expected delay timer + single debounce, got %d pending", sched.pendingCount())
	}

	sched.fireLatest() // debounce fires
	if popup.showCount() != 1 {
		t.Errorf("expected popup from mouse leave, got %d", popup.showCount())
	}

	// The abandonment timer was cancelled by the evaluation.
	if sched.pendingCount() != 0 {
		t.Errorf("expected no pending timers after evaluation, got %d", sched.pendingCount())
	}
}

func TestMouseLeaveIgnoredWhenIdle(t *testing.T) {
	sched := newManualScheduler()
	popup := &fakePopup{}
	e := newTestEngine(popup, sched, nil)
	e.SetCampaign(testCampaign(models.DisplayShowAll))

	e.MouseLeave()
	if sched.pendingCount() != 0 {
		t.Error("mouse leave without an active cart should not schedule anything")
	}
}

func TestPopupResolvedCTADiscardsCart(t *testing.T) {
	sched := newManualScheduler()
	popup := &fakePopup{}
	e := newTestEngine(popup, sched, nil)
	e.SetCampaign(testCampaign(models.DisplayShowAll))

	e.CartUpdated(cartWith(2))
	sched.fireLatest()

	e.PopupResolved(models.CloseReasonCTAClicked)
	if e.State() != StateIdle {
		t.Errorf("expected IDLE after resolution, got %s", e.State())
	}
	if e.Cart() != nil {
		t.Error("CTA resolution should discard the cart snapshot")
	}
}

func TestPopupResolvedDismissKeepsCart(t *testing.T) {
	sched := newManualScheduler()
	popup := &fakePopup{}
	e := newTestEngine(popup, sched, nil)
	e.SetCampaign(testCampaign(models.DisplayShowAll))

	e.CartUpdated(cartWith(2))
	sched.fireLatest()

	e.PopupResolved(models.CloseReasonUserDismissed)
	if e.State() != StateIdle {
		t.Errorf("expected IDLE after resolution, got %s", e.State())
	}
	if e.Cart() == nil {
		t.Error("dismissal should keep the cart snapshot for the next episode")
	}
}

func TestShowErrorRevertsToCartActive(t *testing.T) {
	sched := newManualScheduler()
	popup := &fakePopup{showErr: errors.New("already mounted")}
	e := newTestEngine(popup, sched, nil)
	e.SetCampaign(testCampaign(models.DisplayShowAll))

	e.CartUpdated(cartWith(2))
	sched.fireLatest()

	if e.State() != StateCartActive {
		t.Errorf("expected revert to CART_ACTIVE on mount refusal, got %s", e.State())
	}
}

func TestCartUpdateDuringPopupKeepsPopupState(t *testing.T) {
	sched := newManualScheduler()
	popup := &fakePopup{}
	e := newTestEngine(popup, sched, nil)
	e.SetCampaign(testCampaign(models.DisplayShowAll))

	e.CartUpdated(cartWith(2))
	sched.fireLatest()

	e.CartUpdated(cartWith(3))
	if e.State() != StatePopupShown {
		t.Errorf("cart update must not tear down a mounted popup, got %s", e.State())
	}
	if sched.pendingCount() != 0 {
		t.Errorf("no timer should arm while the popup is up, got %d", sched.pendingCount())
	}
}

func TestTimerSchedulerFiresAndCancels(t *testing.T) {
	s := NewTimerScheduler()
	defer s.Stop()

	fired := make(chan struct{})
	s.ScheduleAfter(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("scheduled callback never fired")
	}

	id := s.ScheduleAfter(time.Hour, func() { t.Error("cancelled callback fired") })
	s.Cancel(id)
	if s.PendingCount() != 0 {
		t.Errorf("expected 0 pending after cancel, got %d", s.PendingCount())
	}
}
