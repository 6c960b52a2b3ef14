package ratelimit

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is advanced by hand.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestNew(t *testing.T) {
	t.Parallel()
	l := New(10, 5)
	if l.maxTokens != 10 {
		t.Errorf("maxTokens = %v, want 10", l.maxTokens)
	}
	if l.refillRate != 5 {
		t.Errorf("refillRate = %v, want 5", l.refillRate)
	}
	if l.tokens != 10 {
		t.Errorf("initial tokens = %v, want 10", l.tokens)
	}
}

func TestAllow(t *testing.T) {
	t.Parallel()
	t.Run("allows burst", func(t *testing.T) {
		t.Parallel()
		l := New(5, 1)
		for i := range 5 {
			if ok, _ := l.Allow(); !ok {
				t.Errorf("Allow() = false on attempt %d, want true", i+1)
			}
		}
	})

	t.Run("denies when empty and reports wait", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		l := newWithClock(2, 2, clock.Now)
		l.Allow()
		l.Allow()

		ok, wait := l.Allow()
		if ok {
			t.Fatal("Allow() = true when no tokens, want false")
		}
		if wait != 500*time.Millisecond {
			t.Errorf("wait = %v, want 500ms", wait)
		}

		clock.Advance(500 * time.Millisecond)
		if ok, _ := l.Allow(); !ok {
			t.Error("Allow() = false after refill, want true")
		}
	})

	t.Run("never exceeds capacity", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		l := newWithClock(3, 10, clock.Now)
		clock.Advance(time.Hour)
		if got := l.Available(); got != 3 {
			t.Errorf("Available() = %v, want 3", got)
		}
		if !l.IsFull() {
			t.Error("IsFull() = false, want true")
		}
	})
}
