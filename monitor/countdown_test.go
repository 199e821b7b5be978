package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdown_StepsAndFires(t *testing.T) {
	var fired int
	c := NewCountdown(3*time.Second, time.Second, func(ctx context.Context) { fired++ })

	var ticks []time.Duration
	c.OnTick(func(r time.Duration) { ticks = append(ticks, r) })

	ctx := context.Background()
	c.step(ctx)
	c.step(ctx)
	assert.Equal(t, 0, fired)
	assert.Equal(t, time.Second, c.Remaining())

	c.step(ctx)
	assert.Equal(t, 1, fired)
	assert.Equal(t, []time.Duration{2 * time.Second, time.Second, 0}, ticks)
}

func TestCountdown_ResetByRealRefresh(t *testing.T) {
	var c *Countdown
	var sawZero bool
	c = NewCountdown(2*time.Second, time.Second, func(ctx context.Context) {
		sawZero = c.Remaining() == 0
		c.Reset()
	})
	ctx := context.Background()

	c.step(ctx)
	c.step(ctx)
	assert.True(t, sawZero)
	assert.Equal(t, 2*time.Second, c.Remaining())
}

func TestCountdown_FailedRefreshRestartsInterval(t *testing.T) {
	var fired int
	c := NewCountdown(2*time.Second, time.Second, func(ctx context.Context) { fired++ })
	ctx := context.Background()

	c.step(ctx)
	c.step(ctx)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 2*time.Second, c.Remaining())

	c.step(ctx)
	assert.Equal(t, 1, fired)
}

func TestCountdown_ResetMidway(t *testing.T) {
	c := NewCountdown(5*time.Second, time.Second, nil)
	ctx := context.Background()

	c.step(ctx)
	c.step(ctx)
	require.Equal(t, 3*time.Second, c.Remaining())

	c.Reset()
	assert.Equal(t, 5*time.Second, c.Remaining())
}

func TestCountdown_StartStop(t *testing.T) {
	var fired atomic.Int32
	c := NewCountdown(30*time.Millisecond, 10*time.Millisecond, func(ctx context.Context) { fired.Add(1) })

	c.Start(context.Background())
	c.Start(context.Background())
	assert.True(t, c.Running())

	require.Eventually(t, func() bool { return fired.Load() >= 1 }, time.Second, 5*time.Millisecond)

	c.Stop()
	assert.False(t, c.Running())
	n := fired.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, fired.Load())

	c.Stop()
}

func TestCountdown_StopsWithContext(t *testing.T) {
	c := NewCountdown(time.Hour, 5*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	cancel()
	require.Eventually(t, func() bool {
		before := c.Remaining()
		time.Sleep(20 * time.Millisecond)
		return c.Remaining() == before
	}, time.Second, time.Millisecond)
	c.Stop()
}

func TestCountdown_Defaults(t *testing.T) {
	c := NewCountdown(0, 0, nil)
	assert.Equal(t, 5*time.Minute, c.interval)
	assert.Equal(t, time.Second, c.tick)
	assert.Equal(t, 5*time.Minute, c.Remaining())
}
