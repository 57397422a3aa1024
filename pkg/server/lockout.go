package server

import (
	"sync"
	"time"
)

// LockoutTracker tracks failed login attempts and temporary bans per
// connection identity (the remote endpoint, not the username — lockout
// applies before authentication). Expiry is a lazy wall-clock comparison on
// the next access; no timers run.
type LockoutTracker struct {
	mu       sync.Mutex
	failures map[string]int
	locked   map[string]time.Time // identity -> unlock time

	now func() time.Time // injectable for tests
}

func NewLockoutTracker() *LockoutTracker {
	return &LockoutTracker{
		failures: make(map[string]int),
		locked:   make(map[string]time.Time),
		now:      time.Now,
	}
}

// RecordFailure increments the consecutive-failure counter for the identity
// and returns the new count.
func (t *LockoutTracker) RecordFailure(identity string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures[identity]++
	return t.failures[identity]
}

// ClearFailures resets the consecutive-failure counter, called on a
// successful login.
func (t *LockoutTracker) ClearFailures(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.failures, identity)
}

// Lock bans the identity for the given duration and resets its failure
// counter. No explicit unlock exists; the ban lapses on its own.
func (t *LockoutTracker) Lock(identity string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.locked[identity] = t.now().Add(d)
	delete(t.failures, identity)
}

// IsLocked reports whether the identity is currently banned. Expired
// entries are removed on access.
func (t *LockoutTracker) IsLocked(identity string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	until, ok := t.locked[identity]
	if !ok {
		return false
	}
	if !t.now().Before(until) {
		delete(t.locked, identity)
		return false
	}
	return true
}
