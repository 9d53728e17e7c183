package runtime

import (
	"context"
	"time"
)

// Default retry backoff bounds.
const (
	DefaultBackoffBase = time.Second
	DefaultBackoffCap  = 5 * time.Second
)

// Backoff computes exponential retry delays.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay returns the wait before retry number attempt (1-based):
// Base doubled per previous attempt, never above Cap.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.Cap {
			return b.Cap
		}
	}
	return min(d, b.Cap)
}

// Sleeper waits for d or until ctx is done. It is the only point where a run blocks.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-time Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
