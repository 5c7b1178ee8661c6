package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestAllowCapsEachWindow(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewFixedWindow(20, time.Minute, WithClock(clk.Now))

	for i := 1; i <= 20; i++ {
		d := l.Allow("10.0.0.1")
		require.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 20-i, d.Remaining)
		clk.Advance(time.Second)
	}

	d := l.Allow("10.0.0.1")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 40*time.Second, d.RetryAfter)

	// another address has its own counter
	assert.True(t, l.Allow("10.0.0.2").Allowed)

	clk.Advance(41 * time.Second) // second 61
	d = l.Allow("10.0.0.1")
	assert.True(t, d.Allowed)
	assert.Equal(t, 19, d.Remaining)
}

func TestSweepDropsClosedWindows(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewFixedWindow(5, time.Minute, WithClock(clk.Now))

	l.Allow("a")
	clk.Advance(30 * time.Second)
	l.Allow("b")
	clk.Advance(31 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
}

func TestAllowIsAtomicUnderConcurrency(t *testing.T) {
	l := NewFixedWindow(50, time.Hour)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("burst").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestRunStopsWithContext(t *testing.T) {
	l := NewFixedWindow(1, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
