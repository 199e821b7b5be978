package monitor

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Countdown drives the scheduled refresh. It counts down in tick steps and
// fires when it reaches zero. Only Reset restarts it; a real refresh calls
// Reset through a RefreshHook, a fake refresh does not.
type Countdown struct {
	interval time.Duration
	tick     time.Duration
	fire     func(ctx context.Context)

	mu        sync.Mutex
	remaining time.Duration
	onTick    []func(remaining time.Duration)
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewCountdown(interval, tick time.Duration, fire func(ctx context.Context)) *Countdown {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if tick <= 0 {
		tick = time.Second
	}
	return &Countdown{
		interval:  interval,
		tick:      tick,
		fire:      fire,
		remaining: interval,
	}
}

// OnTick registers a listener called after every step with the remaining time.
func (c *Countdown) OnTick(fn func(remaining time.Duration)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTick = append(c.onTick, fn)
}

// Start runs the ticker until Stop or ctx is done. Calling Start twice is a no-op.
func (c *Countdown) Start(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.step(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the ticker and waits for the loop to exit.
func (c *Countdown) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Reset restarts the countdown from the full interval.
func (c *Countdown) Reset() {
	c.mu.Lock()
	c.remaining = c.interval
	c.mu.Unlock()
}

func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func (c *Countdown) step(ctx context.Context) {
	c.mu.Lock()
	c.remaining -= c.tick
	if c.remaining < 0 {
		c.remaining = 0
	}
	due := c.remaining == 0
	listeners := slices.Clone(c.onTick)
	remaining := c.remaining
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(remaining)
	}
	if !due {
		return
	}

	if c.fire != nil {
		c.fire(ctx)
	}

	// 刷新失败时没有 Reset，从完整间隔重新计时
	c.mu.Lock()
	if c.remaining == 0 {
		c.remaining = c.interval
	}
	c.mu.Unlock()
}
