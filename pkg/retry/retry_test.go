package retry

import (
	"context"
	"testing"
	"time"
)

func TestDelayWithinJitterBounds(t *testing.T) {
	p := New(5, time.Second, time.Minute, 0.2)
	for attempt := 0; attempt < 5; attempt++ {
		base := time.Second << attempt
		lo := time.Duration(0.8 * float64(base))
		hi := time.Duration(1.2 * float64(base))
		for i := 0; i < 100; i++ {
			d := p.Delay(attempt)
			if d < lo || d > hi {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, lo, hi)
			}
		}
	}
}

func TestDelayCappedAtMax(t *testing.T) {
	p := New(10, time.Second, 4*time.Second, 0.2)
	hi := time.Duration(1.2 * float64(4*time.Second))
	for i := 0; i < 100; i++ {
		if d := p.Delay(8); d > hi {
			t.Fatalf("delay %v exceeds cap with jitter %v", d, hi)
		}
	}
}

func TestNewDefaults(t *testing.T) {
	p := New(0, 0, 0, -1)
	if p.MaxAttempts != 3 || p.BaseDelay != time.Second || p.MaxDelay != time.Minute {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if p.JitterFrac != 0.2 {
		t.Fatalf("unexpected jitter: %v", p.JitterFrac)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	p := New(3, time.Hour, time.Hour, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Wait(ctx, 0); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestSleepInjection(t *testing.T) {
	p := New(3, time.Second, time.Minute, 0)
	var got time.Duration
	p.Sleep = func(_ context.Context, d time.Duration) error {
		got = d
		return nil
	}
	if err := p.WaitFor(context.Background(), 30*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 30*time.Second {
		t.Fatalf("expected 30s, got %v", got)
	}
}
