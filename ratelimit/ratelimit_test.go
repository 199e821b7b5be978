package ratelimit

import (
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

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestNew_Defaults(t *testing.T) {
	l := New(Config{})
	assert.Equal(t, 10, l.maxRequests)
	assert.Equal(t, time.Minute, l.window)
	assert.Equal(t, 10, l.MaxRequests())
}

func TestCheckLimit_Empty(t *testing.T) {
	l := New(Config{MaxRequests: 10, Window: time.Minute, Now: newFakeClock().Now})

	st := l.CheckLimit()

	assert.True(t, st.Allowed)
	assert.Equal(t, 10, st.Remaining)
	assert.Equal(t, 10, st.Total)
	assert.Zero(t, st.ResetIn)
}

func TestCheckLimit_ExhaustsAfterMaxRequests(t *testing.T) {
	clock := newFakeClock()
	l := New(Config{MaxRequests: 10, Window: time.Minute, Now: clock.Now})

	for i := 0; i < 10; i++ {
		require.True(t, l.CheckLimit().Allowed, "request %d should be allowed", i+1)
		l.RecordRequest()
		clock.Advance(time.Second)
	}

	st := l.CheckLimit()
	assert.False(t, st.Allowed)
	assert.Equal(t, 0, st.Remaining)
	// First request was 10s ago, so it leaves the window in 50s.
	assert.Equal(t, 50*time.Second, st.ResetIn)
	assert.Equal(t, int64(50000), st.ResetMillis)
}

func TestCheckLimit_WindowElapses(t *testing.T) {
	clock := newFakeClock()
	l := New(Config{MaxRequests: 3, Window: time.Minute, Now: clock.Now})

	for i := 0; i < 3; i++ {
		l.RecordRequest()
	}
	require.False(t, l.CheckLimit().Allowed)

	clock.Advance(59 * time.Second)
	assert.False(t, l.CheckLimit().Allowed)

	clock.Advance(time.Second)
	st := l.CheckLimit()
	assert.True(t, st.Allowed)
	assert.Equal(t, 3, st.Remaining)
	assert.Zero(t, st.ResetIn)
}

func TestCheckLimit_SlidingPrune(t *testing.T) {
	clock := newFakeClock()
	l := New(Config{MaxRequests: 2, Window: time.Minute, Now: clock.Now})

	l.RecordRequest()
	clock.Advance(30 * time.Second)
	l.RecordRequest()
	require.False(t, l.CheckLimit().Allowed)

	clock.Advance(31 * time.Second)
	st := l.CheckLimit()
	assert.True(t, st.Allowed)
	assert.Equal(t, 1, st.Remaining)
	assert.Equal(t, 29*time.Second, st.ResetIn)
}

func TestRemainingAndReset(t *testing.T) {
	l := New(Config{MaxRequests: 5, Window: time.Minute, Now: newFakeClock().Now})

	l.RecordRequest()
	assert.Equal(t, 4, l.Remaining())

	l.Reset()
	assert.Equal(t, 5, l.Remaining())
}

func TestRecordRequest_Concurrent(t *testing.T) {
	l := New(Config{MaxRequests: 100, Window: time.Minute, Now: newFakeClock().Now})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.RecordRequest()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, l.Remaining())
}
