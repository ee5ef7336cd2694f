package testutil

import (
	"fmt"
	"sync"
	"time"
)

// Epoch is the default instant of FixedClock.
var Epoch = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

// FixedClock is a manually advanced clock.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock starts the clock at t, or at Epoch when t is zero.
func NewFixedClock(t time.Time) *FixedClock {
	if t.IsZero() {
		t = Epoch
	}
	return &FixedClock{now: t}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *FixedClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// SequenceIDs hands out predictable UUID-shaped ids: ...0001, ...0002 and so on.
type SequenceIDs struct {
	mu   sync.Mutex
	next int
}

func (s *SequenceIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return NoteIDString(s.next)
}

// NoteIDString formats n as a valid, sortable UUID string.
func NoteIDString(n int) string {
	return fmt.Sprintf("00000000-0000-7000-8000-%012d", n)
}
