package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy describes an exponential backoff schedule with jitter.
// The zero value is not usable; construct with New.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	JitterFrac  float64

	// Sleep is injectable for tests. Defaults to a context-aware timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Policy with sane fallbacks for unset fields.
func New(maxAttempts int, base, max time.Duration, jitterFrac float64) *Policy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = time.Minute
	}
	if jitterFrac < 0 || jitterFrac >= 1 {
		jitterFrac = 0.2
	}
	return &Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   base,
		MaxDelay:    max,
		JitterFrac:  jitterFrac,
		Sleep:       sleepCtx,
	}
}

// Delay returns the wait before retry number attempt (0-based):
// base*2^attempt randomized within ±JitterFrac, capped at MaxDelay.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return Jitter(d, p.JitterFrac)
}

// Wait sleeps for the attempt's backoff delay, honoring ctx cancellation.
func (p *Policy) Wait(ctx context.Context, attempt int) error {
	return p.sleep(ctx, p.Delay(attempt))
}

// WaitFor sleeps for an externally dictated duration (e.g. Retry-After),
// honoring ctx cancellation.
func (p *Policy) WaitFor(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}

func (p *Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

// Jitter randomizes d within ±frac.
func Jitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 || d <= 0 {
		return d
	}
	j := 1 + (rand.Float64()*2-1)*frac
	return time.Duration(j * float64(d))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
