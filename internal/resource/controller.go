// Package resource throttles the store's maintenance work: a bounded pool
// of background-job slots and an optional IO rate limit shared by snapshot
// and restore streams.
package resource

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxBackgroundJobs is the maximum number of concurrent background
	// jobs. If 0, defaults to 1.
	MaxBackgroundJobs int64

	// IOLimitBytesPerSec is the maximum IO throughput for background
	// tasks. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages background concurrency and IO throughput.
type Controller struct {
	bgSem     *semaphore.Weighted
	ioLimiter *rate.Limiter
}

// NewController creates a controller enforcing cfg.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundJobs <= 0 {
		cfg.MaxBackgroundJobs = 1
	}
	c := &Controller{
		bgSem: semaphore.NewWeighted(cfg.MaxBackgroundJobs),
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// AcquireBackground reserves a background-job slot, blocking while all
// slots are busy.
func (c *Controller) AcquireBackground(ctx context.Context) error {
	return c.bgSem.Acquire(ctx, 1)
}

// TryAcquireBackground reserves a slot without blocking.
func (c *Controller) TryAcquireBackground() bool {
	return c.bgSem.TryAcquire(1)
}

// ReleaseBackground releases a background-job slot.
func (c *Controller) ReleaseBackground() {
	c.bgSem.Release(1)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than the limiter's burst are served in burst-sized waves.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := bytes
		if n > burst {
			n = burst
		}
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
