// Package ratelimit holds the per-address request counters used to cap
// inbound throughput.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetIn    time.Duration
	RetryAfter time.Duration // zero when allowed
}

type window struct {
	start time.Time
	count int
}

// FixedWindow admits at most limit requests per key in each window. A key's
// window opens on its first request and closes window later; the next
// request after that opens a fresh one. Counters live in memory only.
type FixedWindow struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string]*window
}

type Option func(*FixedWindow)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *FixedWindow) { l.now = now }
}

func NewFixedWindow(limit int, every time.Duration, opts ...Option) *FixedWindow {
	if limit <= 0 {
		limit = 20
	}
	if every <= 0 {
		every = time.Minute
	}
	l := &FixedWindow{
		limit:   limit,
		window:  every,
		now:     time.Now,
		windows: make(map[string]*window),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Allow counts one request for key and reports whether it may proceed.
// Rejected requests do not extend or refill the window.
func (l *FixedWindow) Allow(key string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.start.Add(l.window)) {
		w = &window{start: now}
		l.windows[key] = w
	}
	resetAt := w.start.Add(l.window)

	if w.count >= l.limit {
		return Decision{
			Allowed:    false,
			Limit:      l.limit,
			Remaining:  0,
			ResetIn:    resetAt.Sub(now),
			RetryAfter: resetAt.Sub(now),
		}
	}
	w.count++
	return Decision{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - w.count,
		ResetIn:   resetAt.Sub(now),
	}
}

// Sweep drops windows that have already closed and returns how many.
func (l *FixedWindow) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for k, w := range l.windows {
		if !now.Before(w.start.Add(l.window)) {
			delete(l.windows, k)
			n++
		}
	}
	return n
}

// Len is the number of tracked keys.
func (l *FixedWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Run sweeps once per window until ctx is done.
func (l *FixedWindow) Run(ctx context.Context) {
	t := time.NewTicker(l.window)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Sweep()
		}
	}
}
