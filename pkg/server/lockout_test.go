package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock drives the tracker's notion of now.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTracker() (*LockoutTracker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)}
	tracker := NewLockoutTracker()
	tracker.now = clock.now
	return tracker, clock
}

func TestLockoutFailureCounting(t *testing.T) {
	tracker, _ := newTestTracker()

	assert.Equal(t, 1, tracker.RecordFailure("a"))
	assert.Equal(t, 2, tracker.RecordFailure("a"))
	assert.Equal(t, 1, tracker.RecordFailure("b"))

	tracker.ClearFailures("a")
	assert.Equal(t, 1, tracker.RecordFailure("a"))
}

func TestLockoutExpiry(t *testing.T) {
	tracker, clock := newTestTracker()

	tracker.Lock("a", 10*time.Second)
	assert.True(t, tracker.IsLocked("a"))
	assert.False(t, tracker.IsLocked("b"))

	clock.advance(9 * time.Second)
	assert.True(t, tracker.IsLocked("a"))

	// The ban lapses exactly at the unlock time.
	clock.advance(1 * time.Second)
	assert.False(t, tracker.IsLocked("a"))
}

func TestLockResetsFailures(t *testing.T) {
	tracker, clock := newTestTracker()

	tracker.RecordFailure("a")
	tracker.RecordFailure("a")
	tracker.Lock("a", 10*time.Second)
	clock.advance(11 * time.Second)

	// Counting starts over after the ban lapses.
	assert.Equal(t, 1, tracker.RecordFailure("a"))
}
