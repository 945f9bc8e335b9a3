package timer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestCountdownExpiresExactlyOnce(t *testing.T) {
	fired := 0
	c := NewCountdown(func() { fired++ })
	c.Start(3)

	for i := 0; i < 3; i++ {
		c.Tick()
	}
	if fired != 1 {
		t.Fatalf("expected expire after 3 ticks, fired=%d", fired)
	}
	for i := 0; i < 10; i++ {
		c.Tick()
	}
	if fired != 1 {
		t.Fatalf("expected single expire, fired=%d", fired)
	}
	if remaining, ok := c.Remaining(); !ok || remaining != 0 {
		t.Fatalf("expected 0 remaining, got %d ok=%v", remaining, ok)
	}
	if !c.Expired() || c.Running() {
		t.Fatalf("expected expired, stopped countdown")
	}
}

func TestCountdownUnlimitedNeverExpires(t *testing.T) {
	fired := false
	c := NewCountdown(func() { fired = true })
	c.Start(0)
	for i := 0; i < 100; i++ {
		c.Tick()
	}
	if fired {
		t.Fatalf("unlimited countdown must not expire")
	}
	if _, ok := c.Remaining(); ok {
		t.Fatalf("expected unbounded remaining")
	}
}

func TestCountdownStopIsIdempotent(t *testing.T) {
	c := NewCountdown(nil)
	c.Start(5)
	c.Tick()
	c.Stop()
	c.Stop()
	c.Tick()
	if remaining, _ := c.Remaining(); remaining != 4 {
		t.Fatalf("ticks after stop must not count, remaining=%d", remaining)
	}
	if !c.Resume() {
		t.Fatalf("expected resume of paused countdown")
	}
	c.Tick()
	if remaining, _ := c.Remaining(); remaining != 3 {
		t.Fatalf("expected 3 remaining after resume, got %d", remaining)
	}
}

func TestCountdownResumeAfterExpiry(t *testing.T) {
	c := NewCountdown(nil)
	c.Start(1)
	c.Tick()
	if c.Resume() {
		t.Fatalf("expired countdown must not resume")
	}
}

func TestTickerSchedulerStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	TickerScheduler{}.Every(ctx, 5*time.Millisecond, func() { calls.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if calls.Load() < 2 {
		t.Fatalf("expected ticks, got %d", calls.Load())
	}
	cancel()
	time.Sleep(20 * time.Millisecond)
	settled := calls.Load()
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != settled {
		t.Fatalf("ticks continued after cancel: %d -> %d", settled, calls.Load())
	}
}
