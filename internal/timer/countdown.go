package timer

import (
	"context"
	"sync"
	"time"
)

// Countdown is a one-second resolution clock tied to an attempt.
// It is driven by an external scheduler calling Tick.
type Countdown struct {
	mu        sync.Mutex
	limited   bool
	remaining int
	running   bool
	expired   bool
	onExpire  func()
}

// NewCountdown returns a stopped countdown. onExpire may be nil.
func NewCountdown(onExpire func()) *Countdown {
	return &Countdown{onExpire: onExpire}
}

// Start arms the countdown. A limit of zero or less means the attempt is untimed.
func (c *Countdown) Start(limitSeconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limited = limitSeconds > 0
	c.remaining = limitSeconds
	if !c.limited {
		c.remaining = 0
	}
	c.expired = false
	c.running = true
}

// Tick advances the clock by one second. The expire callback runs at most once
// per Start, outside the lock.
func (c *Countdown) Tick() {
	c.mu.Lock()
	if !c.running || !c.limited || c.expired {
		c.mu.Unlock()
		return
	}
	if c.remaining > 0 {
		c.remaining--
	}
	fire := c.remaining == 0
	if fire {
		c.expired = true
		c.running = false
	}
	cb := c.onExpire
	c.mu.Unlock()

	if fire && cb != nil {
		cb()
	}
}

// Remaining returns the seconds left; ok is false when the countdown is unbounded.
func (c *Countdown) Remaining() (seconds int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining, c.limited
}

// Stop pauses the clock. Calling it on a stopped countdown is a no-op.
func (c *Countdown) Stop() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// Resume restarts a paused countdown unless it already expired.
func (c *Countdown) Resume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired {
		return false
	}
	c.running = true
	return true
}

func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// Scheduler invokes fn every interval until ctx is cancelled.
type Scheduler interface {
	Every(ctx context.Context, interval time.Duration, fn func())
}

// TickerScheduler runs fn on a background goroutine backed by time.Ticker.
type TickerScheduler struct{}

func (TickerScheduler) Every(ctx context.Context, interval time.Duration, fn func()) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// A tick racing with cancellation must not reach fn.
				if ctx.Err() != nil {
					return
				}
				fn()
			}
		}
	}()
}
