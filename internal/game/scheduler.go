package game

import (
	"log"
	"sync"
	"time"
)

// Scheduler owns the per-round closure timers and countdown tickers. Tasks
// are keyed by round id so a startup reconciliation sweep cannot arm a second
// competing timer for a round that already has one.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	tickers map[string]chan struct{}
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		timers:  make(map[string]*time.Timer),
		tickers: make(map[string]chan struct{}),
	}
}

// Schedule arms fn to fire after delay, keyed by round id. If a task for the
// key is already armed the call is a no-op and reports false. A negative
// delay fires immediately (an already-elapsed round found at startup).
func (s *Scheduler) Schedule(roundID string, delay time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.timers[roundID]; exists {
		return false
	}
	if delay < 0 {
		delay = 0
	}

	s.timers[roundID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, roundID)
		s.mu.Unlock()
		fn()
	})
	return true
}

// Cancel stops the closure timer for a round, if one is armed.
func (s *Scheduler) Cancel(roundID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[roundID]; ok {
		t.Stop()
		delete(s.timers, roundID)
	}
}

// Scheduled reports whether a closure timer is armed for the round.
func (s *Scheduler) Scheduled(roundID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[roundID]
	return ok
}

// StartTicker invokes fn once per second, keyed by round id, until StopTicker
// is called. Duplicate starts for the same round are no-ops.
func (s *Scheduler) StartTicker(roundID string, fn func()) bool {
	s.mu.Lock()
	if _, exists := s.tickers[roundID]; exists {
		s.mu.Unlock()
		return false
	}
	stop := make(chan struct{})
	s.tickers[roundID] = stop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-stop:
				return
			}
		}
	}()
	return true
}

// StopTicker clears the countdown ticker for a round so no callback outlives
// a finished round.
func (s *Scheduler) StopTicker(roundID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stop, ok := s.tickers[roundID]; ok {
		close(stop)
		delete(s.tickers, roundID)
	}
}

// Stop cancels every timer and ticker. Used on shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	for id, stop := range s.tickers {
		close(stop)
		delete(s.tickers, id)
	}
	log.Println("[TIMER] Scheduler stopped")
}
