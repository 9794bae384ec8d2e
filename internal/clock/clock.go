// Package clock schedules fire-once callbacks that can be cancelled before they run.
package clock

import (
	"sync"
	"time"
)

type Handle interface {
	// Cancel stops the callback if it has not run yet. It reports whether this
	// call prevented the callback; calling it again is a no-op.
	Cancel() bool
}

type Clock interface {
	After(d time.Duration, fn func()) Handle
}

// Real runs callbacks on the runtime timer goroutine.
type Real struct{}

func (Real) After(d time.Duration, fn func()) Handle {
	return realHandle{t: time.AfterFunc(d, fn)}
}

type realHandle struct{ t *time.Timer }

func (h realHandle) Cancel() bool { return h.t.Stop() }

// Post wraps a clock so fired callbacks are handed to post instead of running
// in place. The hub uses this to run timer expiries on its own loop.
func Post(base Clock, post func(fn func())) Clock {
	return posted{base: base, post: post}
}

type posted struct {
	base Clock
	post func(fn func())
}

func (p posted) After(d time.Duration, fn func()) Handle {
	return p.base.After(d, func() { p.post(fn) })
}

// Manual is a test clock. Nothing fires until Advance is called.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	pending []*manualHandle
	cancels int
}

func NewManual() *Manual { return &Manual{} }

type manualHandle struct {
	m    *Manual
	at   time.Duration
	fn   func()
	done bool
}

func (m *Manual) After(d time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := &manualHandle{m: m, at: m.now + d, fn: fn}
	m.pending = append(m.pending, h)
	return h
}

func (h *manualHandle) Cancel() bool {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	if h.done {
		return false
	}
	h.done = true
	h.m.cancels++
	return true
}

// Advance moves time forward and runs every callback that came due, in order.
// Callbacks run without the lock held so they may schedule or cancel.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	var due []*manualHandle
	keep := m.pending[:0]
	for _, h := range m.pending {
		switch {
		case h.done:
		case h.at <= m.now:
			h.done = true
			due = append(due, h)
		default:
			keep = append(keep, h)
		}
	}
	m.pending = keep
	m.mu.Unlock()

	for _, h := range due {
		h.fn()
	}
}

// Pending counts callbacks that are scheduled and not yet cancelled or fired.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, h := range m.pending {
		if !h.done {
			n++
		}
	}
	return n
}

// Cancelled counts handles cancelled before they fired.
func (m *Manual) Cancelled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancels
}
