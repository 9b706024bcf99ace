// Package engine implements the cart-abandonment state machine and its
// cancellable timer scheduling.
package engine

import (
	"fmt"
	"sync"
	"time"
)

// Scheduler arms cancellable one-shot callbacks. All of the engine's timing
// (abandonment delay, mouse-leave debounce) goes through this one interface
// so the "at most one pending timer" invariant lives in a single code path
// and tests can drive time by hand.
type Scheduler interface {
	// ScheduleAfter runs fn after delay and returns a handle for Cancel.
	ScheduleAfter(delay time.Duration, fn func()) string

	// Cancel stops a pending callback. Cancelling an unknown or already
	// fired handle is a no-op.
	Cancel(id string)
}

// timerEntry tracks one scheduled callback
type timerEntry struct {
	timer     *time.Timer
	expiresAt time.Time
}

// TimerScheduler implements Scheduler on the standard time package.
type TimerScheduler struct {
	mu     sync.Mutex
	timers map[string]*timerEntry
	nextID int64
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[string]*timerEntry)}
}

func (s *TimerScheduler) ScheduleAfter(delay time.Duration, fn func()) string {
	s.mu.Lock()
	s.nextID++
	id := fmt.Sprintf("timer_%d", s.nextID)
	s.mu.Unlock()

	timer := time.AfterFunc(delay, func() {
		fn()
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
	})

	s.mu.Lock()
	s.timers[id] = &timerEntry{timer: timer, expiresAt: time.Now().Add(delay)}
	s.mu.Unlock()

	return id
}

func (s *TimerScheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, exists := s.timers[id]; exists {
		entry.timer.Stop()
		delete(s.timers, id)
	}
}

// Stop cancels every pending callback.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.timers {
		entry.timer.Stop()
	}
	s.timers = make(map[string]*timerEntry)
}

// PendingCount reports how many callbacks are currently scheduled.
func (s *TimerScheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
