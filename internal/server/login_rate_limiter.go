package server

import (
	"sync"
	"time"
)

// loginRateLimiter blocks a client address for a while after too many
// failed password attempts inside one window.
type loginRateLimiter struct {
	mu          sync.Mutex
	clients     map[string]*loginAttempts
	maxFailures int
	window      time.Duration
	blockFor    time.Duration
	sweepEvery  int
	ops         int
}

type loginAttempts struct {
	failures     int
	windowStart  time.Time
	blockedUntil time.Time
	lastSeen     time.Time
}

func newLoginRateLimiter(maxFailures int, window, blockFor time.Duration) *loginRateLimiter {
	if maxFailures <= 0 || window <= 0 || blockFor <= 0 {
		return nil
	}
	return &loginRateLimiter{
		clients:     make(map[string]*loginAttempts),
		maxFailures: maxFailures,
		window:      window,
		blockFor:    blockFor,
		sweepEvery:  64,
	}
}

// Allow reports whether key may attempt a login at now. A nil limiter
// allows everything.
func (l *loginRateLimiter) Allow(key string, now time.Time) bool {
	if l == nil || key == "" {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(now)

	a, ok := l.clients[key]
	if !ok {
		return true
	}
	a.lastSeen = now
	return !now.Before(a.blockedUntil)
}

func (l *loginRateLimiter) RegisterFailure(key string, now time.Time) {
	if l == nil || key == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.clients[key]
	if !ok {
		a = &loginAttempts{}
		l.clients[key] = a
	}
	if a.windowStart.IsZero() || now.Sub(a.windowStart) > l.window {
		a.failures = 0
		a.windowStart = now
	}
	a.failures++
	a.lastSeen = now
	if a.failures >= l.maxFailures {
		a.blockedUntil = now.Add(l.blockFor)
		a.failures = 0
		a.windowStart = time.Time{}
	}
}

func (l *loginRateLimiter) Reset(key string) {
	if l == nil || key == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.clients, key)
}

// sweepLocked drops idle entries every sweepEvery calls.
func (l *loginRateLimiter) sweepLocked(now time.Time) {
	l.ops++
	if l.ops%l.sweepEvery != 0 {
		return
	}
	stale := 2 * max(l.window, l.blockFor)
	for key, a := range l.clients {
		if now.Sub(a.lastSeen) > stale && !now.Before(a.blockedUntil) {
			delete(l.clients, key)
		}
	}
}
