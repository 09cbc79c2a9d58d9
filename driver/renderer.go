package driver

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Render is the driver-supplied sink a Renderer coalesces updates into —
// HTML in a notebook, plain text on a terminal, whatever the embedder
// wants. It receives the full current task list and the latest message.
type Render func(tasks []TaskInfo, message string)

// Renderer rate-limits calls to a Render sink: the first change after a
// quiet window renders immediately, and any further changes before the
// configured interval elapses are coalesced into a single trailing
// render, scheduled for when the window reopens.
type Renderer struct {
	render Render
	period time.Duration

	mu           sync.Mutex
	tasks        []TaskInfo
	message      string
	lastRender   time.Time
	pendingTimer *time.Timer
}

// NewRenderer constructs a Renderer that calls render at most once per
// period.
func NewRenderer(render Render, period time.Duration) *Renderer {
	return &Renderer{
		render: render,
		period: period,
		// Seed lastRender in the past so the very first Update renders
		// immediately rather than waiting out a full period.
		lastRender: time.Now().Add(-period),
	}
}

// Update records new tasks and/or a new message and renders per the rate
// limit. Either argument may be left at its zero value (nil tasks, empty
// message) to mean "unchanged".
func (r *Renderer) Update(tasks []TaskInfo, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tasks != nil {
		r.tasks = tasks
	}
	if message != "" {
		r.message = strings.TrimSpace(message)
	}

	if r.pendingTimer != nil {
		// An update is already scheduled; it will pick up this data too.
		return
	}

	now := time.Now()
	if now.Sub(r.lastRender) >= r.period {
		r.lastRender = now
		r.render(r.tasks, r.message)
		return
	}

	delay := r.period - now.Sub(r.lastRender)
	r.pendingTimer = time.AfterFunc(delay, r.flush)
}

func (r *Renderer) flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastRender = time.Now()
	r.render(r.tasks, r.message)
	r.pendingTimer = nil
}

// Observer adapts Renderer to the TaskObserver contract the TaskTracker
// pushes into.
func (r *Renderer) Observer() TaskObserver {
	return func(tasks []TaskInfo) { r.Update(tasks, "") }
}

// Stop cancels any pending coalesced render. Safe to call even if nothing
// is pending.
func (r *Renderer) Stop(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pendingTimer != nil {
		r.pendingTimer.Stop()
		r.pendingTimer = nil
	}
}
