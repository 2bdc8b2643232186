package engine

import (
	"sync"
	"time"
)

// TimerKind names the delayed triggers a session can arm.
type TimerKind uint8

const (
	TimerHint TimerKind = iota + 1
	TimerWindow
	TimerAdvance
)

// TimerToken addresses one armed timer. The generation is bumped every time
// a session moves to a new question, so a firing that carries an old
// generation identifies itself as stale and is dropped by the session.
type TimerToken struct {
	Chat       string
	Generation uint64
	Kind       TimerKind
}

// Scheduler arms and cancels named delayed triggers. Arm is a no-op while a
// timer with the same token is pending; Cancel of an unknown token is a
// no-op. A canceled timer never fires.
type Scheduler interface {
	Arm(token TimerToken, d time.Duration, fire func(TimerToken))
	Cancel(token TimerToken)
}

// TimerScheduler is the wall-clock Scheduler used in production. It is the
// only part of the engine that touches real time.
type TimerScheduler struct {
	mu     sync.Mutex
	timers map[TimerToken]*time.Timer
}

func NewScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[TimerToken]*time.Timer)}
}

func (s *TimerScheduler) Arm(token TimerToken, d time.Duration, fire func(TimerToken)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[token]; ok {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.timers[token] != t {
			// Canceled between the clock firing and this callback running.
			s.mu.Unlock()
			return
		}
		delete(s.timers, token)
		s.mu.Unlock()
		fire(token)
	})
	s.timers[token] = t
}

func (s *TimerScheduler) Cancel(token TimerToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[token]; ok {
		t.Stop()
		delete(s.timers, token)
	}
}

// Pending reports how many timers are currently armed.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
