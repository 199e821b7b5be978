package monitor

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"uptime-status/config"
	"uptime-status/model"
	"uptime-status/ratelimit"
	"uptime-status/uptimerobot"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
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

type fakeUpstream struct {
	ready    bool
	calls    atomic.Int32
	monitors []uptimerobot.Monitor
	err      error
	started  chan struct{}
	release  chan struct{}
}

func (f *fakeUpstream) Ready() bool { return f.ready }

func (f *fakeUpstream) GetMonitors(ctx context.Context) ([]uptimerobot.Monitor, error) {
	f.calls.Add(1)
	if f.started != nil {
		close(f.started)
		f.started = nil
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.monitors, nil
}

type memStore struct {
	mu      sync.Mutex
	entry   *model.CacheEntry
	notice  *model.RateLimitNotice
	saves   int
	now     func() time.Time
	cleared int
}

func (m *memStore) SaveSnapshot(ctx context.Context, entry model.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := entry.Clone()
	m.entry = &c
	m.saves++
	return nil
}

func (m *memStore) LoadSnapshot(ctx context.Context) (*model.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entry == nil {
		return nil, nil
	}
	c := m.entry.Clone()
	return &c, nil
}

func (m *memStore) SaveRateLimitNotice(ctx context.Context, n model.RateLimitNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notice = &n
	return nil
}

func (m *memStore) RateLimitNotice(ctx context.Context, ttl time.Duration) (*model.RateLimitNotice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notice == nil || m.now().Sub(m.notice.Timestamp) >= ttl {
		m.notice = nil
		return nil, nil
	}
	n := *m.notice
	return &n, nil
}

func (m *memStore) ClearRateLimitNotice(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notice = nil
	m.cleared++
	return nil
}

func sampleMonitor() uptimerobot.Monitor {
	d := uptimerobot.Number{Value: 600, Valid: true}
	return uptimerobot.Monitor{
		ID:                  1,
		FriendlyName:        "API",
		URL:                 "https://api.example.com",
		Type:                1,
		Status:              2,
		Interval:            300,
		CreateDatetime:      "1700000000",
		AverageResponseTime: uptimerobot.Number{Value: 120, Valid: true},
		CustomUptimeRatio:   "99.9-99.5-99.0",
		Logs: []uptimerobot.Log{
			{Type: 1, Datetime: uptimerobot.RawTimestamp("1718400000"), Duration: d},
			{Type: 2, Datetime: uptimerobot.RawTimestamp("1718400600")},
		},
	}
}

type harness struct {
	svc      *Service
	clock    *fakeClock
	upstream *fakeUpstream
	store    *memStore
	limiter  *ratelimit.Limiter
	slept    []time.Duration
}

func newHarness(t *testing.T, maxRequests int) *harness {
	t.Helper()
	clock := &fakeClock{t: testNow}
	cfg := &config.Config{}
	cfg.Aggregation.DailyWindowDays = 30
	cfg.Aggregation.Timezone = "UTC"
	cfg.RateLimit.MaxRequests = maxRequests
	cfg.Validate()

	h := &harness{
		clock:    clock,
		upstream: &fakeUpstream{ready: true, monitors: []uptimerobot.Monitor{sampleMonitor()}},
		store:    &memStore{now: clock.Now},
		limiter:  ratelimit.New(ratelimit.Config{MaxRequests: maxRequests, Window: time.Minute, Now: clock.Now}),
	}
	h.svc = NewService(Options{
		Config:   cfg,
		Upstream: h.upstream,
		Limiter:  h.limiter,
		Store:    h.store,
		Now:      clock.Now,
		Rand:     rand.New(rand.NewSource(1)),
	})
	var mu sync.Mutex
	h.svc.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		h.slept = append(h.slept, d)
		mu.Unlock()
		return ctx.Err()
	}
	return h
}
