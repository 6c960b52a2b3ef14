// Package debounce provides a cancel-and-replace timer: only the last value
// triggered within a quiet window reaches the callback.
package debounce

import (
	"sync"
	"time"
)

// Outcome describes what happened to a triggered value.
type Outcome string

const (
	Fired     Outcome = "fired"     // callback ran with the value
	Coalesced Outcome = "coalesced" // replaced by a newer value
	Cancelled Outcome = "cancelled" // dropped by Cancel or Stop
)

// Timer is the part of a scheduled call the debouncer needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once adapted.
type AfterFunc func(d time.Duration, f func()) Timer

// Option configures a Debouncer.
type Option func(*options)

type options struct {
	afterFunc AfterFunc
	observe   func(Outcome)
}

// WithAfterFunc replaces the scheduler, letting tests fire timers by hand.
func WithAfterFunc(fn AfterFunc) Option {
	return func(o *options) { o.afterFunc = fn }
}

// WithObserver registers a hook called once per triggered value.
func WithObserver(fn func(Outcome)) Option {
	return func(o *options) { o.observe = fn }
}

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer delays calls to fn until window has passed without a new Trigger.
//
// Every Trigger bumps a generation counter. A timer callback only runs fn
// when its generation is still current, so a superseded timer that already
// started firing is a no-op.
type Debouncer[T any] struct {
	window  time.Duration
	fn      func(T)
	opts    options
	mu      sync.Mutex
	timer   Timer
	pending bool
	gen     uint64
	stopped bool
}

// New creates a debouncer calling fn with the last triggered value.
func New[T any](window time.Duration, fn func(T), opts ...Option) *Debouncer[T] {
	o := options{afterFunc: realAfterFunc}
	for _, opt := range opts {
		opt(&o)
	}
	return &Debouncer[T]{window: window, fn: fn, opts: o}
}

// Trigger schedules fn(v), replacing any pending value.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if d.pending {
		d.observe(Coalesced)
	}
	d.stopTimer()

	d.gen++
	gen := d.gen
	d.pending = true
	d.timer = d.opts.afterFunc(d.window, func() { d.fire(gen, v) })
}

// Cancel drops the pending value, if any. Returns true if one was dropped.
func (d *Debouncer[T]) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelLocked()
}

// Pending reports whether a value is waiting for the window to pass.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop cancels the pending value and ignores all later Triggers.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.stopped = true
}

func (d *Debouncer[T]) cancelLocked() bool {
	if !d.pending {
		return false
	}
	d.stopTimer()
	d.gen++
	d.pending = false
	d.observe(Cancelled)
	return true
}

func (d *Debouncer[T]) fire(gen uint64, v T) {
	d.mu.Lock()
	if gen != d.gen || !d.pending || d.stopped {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	d.observe(Fired)
	d.mu.Unlock()

	d.fn(v)
}

func (d *Debouncer[T]) stopTimer() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer[T]) observe(o Outcome) {
	if d.opts.observe != nil {
		d.opts.observe(o)
	}
}
