package poll

import (
	"context"
	"time"
)

// Clock abstracts time for the poller so timeout behavior is testable
// without wall-clock delays.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is cancelled, returning ctx.Err()
	// in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ManualClock advances only when Sleep is called. Tests use it to step
// through poll loops instantly.
type ManualClock struct {
	now    time.Time
	Slept  []time.Duration
	Cancel func() // invoked before each sleep, if set
}

// NewManualClock returns a manual clock starting at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time { return c.now }

func (c *ManualClock) Sleep(ctx context.Context, d time.Duration) error {
	if c.Cancel != nil {
		c.Cancel()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	c.Slept = append(c.Slept, d)
	return nil
}
