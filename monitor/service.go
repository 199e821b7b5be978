package monitor

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"uptime-status/config"
	"uptime-status/model"
	apperrors "uptime-status/pkg/errors"
	"uptime-status/ratelimit"
	"uptime-status/uptimerobot"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// State of the refresh orchestrator.
type State int

const (
	StateIdle State = iota
	StateServingCache
	StateFetching
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateServingCache:
		return "serving_cache"
	case StateFetching:
		return "fetching"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Upstream is the monitoring API.
type Upstream interface {
	Ready() bool
	GetMonitors(ctx context.Context) ([]uptimerobot.Monitor, error)
}

// Store persists the last good snapshot and the rate-limit notice.
type Store interface {
	SaveSnapshot(ctx context.Context, entry model.CacheEntry) error
	LoadSnapshot(ctx context.Context) (*model.CacheEntry, error)
	SaveRateLimitNotice(ctx context.Context, n model.RateLimitNotice) error
	RateLimitNotice(ctx context.Context, ttl time.Duration) (*model.RateLimitNotice, error)
	ClearRateLimitNotice(ctx context.Context) error
}

// Result is what one Fetch call hands to the presentation layer. Monitors is
// always a private copy.
type Result struct {
	Monitors    []model.MonitorSnapshot `json:"monitors"`
	FetchedAt   time.Time               `json:"fetchedAt"`
	FromCache   bool                    `json:"fromCache"`
	FakeRefresh bool                    `json:"fakeRefresh"`
	RateLimit   *model.RateLimitNotice  `json:"rateLimit,omitempty"`
}

// Quota is the answer to CheckQuota.
type Quota struct {
	Remaining int                    `json:"remaining"`
	Total     int                    `json:"total"`
	IsLimited bool                   `json:"isLimited"`
	ResetIn   int64                  `json:"resetIn"` // milliseconds
	Notice    *model.RateLimitNotice `json:"notice,omitempty"`
}

// RefreshHook runs after every successful real fetch. prev is nil on the first one.
type RefreshHook func(prev *model.CacheEntry, next model.CacheEntry)

type Options struct {
	Config   *config.Config
	Upstream Upstream
	Limiter  *ratelimit.Limiter
	Store    Store // optional
	Prober   *Prober
	Metrics  *Metrics
	Logger   *zap.Logger
	Now      func() time.Time
	Rand     *rand.Rand
}

// Service owns the monitor cache. One instance per process, injected into
// the HTTP layer.
type Service struct {
	cfg      *config.Config
	location *time.Location
	upstream Upstream
	limiter  *ratelimit.Limiter
	store    Store
	prober   *Prober
	metrics  *Metrics
	log      *zap.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	group singleflight.Group

	mu      sync.RWMutex
	cache   *model.CacheEntry
	state   State
	lastErr error
	hooks   []RefreshHook
	rng     *rand.Rand
}

func NewService(opts Options) *Service {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
		cfg.Validate()
	}
	s := &Service{
		cfg:      cfg,
		location: cfg.Location(),
		upstream: opts.Upstream,
		limiter:  opts.Limiter,
		store:    opts.Store,
		prober:   opts.Prober,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		now:      opts.Now,
		sleep:    sleepContext,
		rng:      opts.Rand,
		state:    StateIdle,
	}
	if s.limiter == nil {
		s.limiter = ratelimit.New(ratelimit.Config{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      cfg.RateLimit.Window,
			Now:         opts.Now,
		})
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.prober == nil {
		s.prober = NewProber(cfg.Probe, s.log.Named("probe"))
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnRealRefresh registers a hook. Hooks run synchronously in registration order.
func (s *Service) OnRealRefresh(h RefreshHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
}

func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastError is the error of the most recent failed fetch, cleared by a successful one.
func (s *Service) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Service) setState(st State, err error) {
	s.mu.Lock()
	s.state = st
	if err != nil {
		s.lastErr = err
	}
	s.mu.Unlock()
}

// Cached returns a copy of the current cache entry, or nil.
func (s *Service) Cached() *model.CacheEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cache == nil {
		return nil
	}
	c := s.cache.Clone()
	return &c
}

// Monitor returns one monitor from the cache.
func (s *Service) Monitor(id int) (model.MonitorSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cache == nil {
		return model.MonitorSnapshot{}, false
	}
	for _, m := range s.cache.Monitors {
		if m.ID == id {
			return m.Clone(), true
		}
	}
	return model.MonitorSnapshot{}, false
}

// WarmStart seeds the cache from the store. The persisted fetch time is kept,
// so an old entry does not suppress the next real fetch.
func (s *Service) WarmStart(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	entry, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}
	s.mu.Lock()
	if s.cache == nil {
		s.cache = entry
		s.state = StateServingCache
	}
	s.mu.Unlock()
	s.observeSnapshot(*entry)
	s.log.Info("Loaded cached snapshot",
		zap.Int("monitors", len(entry.Monitors)),
		zap.Time("fetched_at", entry.FetchedAt))
	return nil
}

// Fetch returns monitors, fetching from upstream only when needed:
//   - not forced and the last real fetch is younger than the client TTL:
//     the cache is returned after a short artificial delay, no upstream call;
//   - not forced and the quota is used up: the cache is returned with a
//     rate-limit notice, or a rate-limit error without a cache;
//   - otherwise one upstream fetch, shared by concurrent callers.
func (s *Service) Fetch(ctx context.Context, force bool) (*Result, error) {
	now := s.now()

	s.mu.RLock()
	cache := s.cache
	s.mu.RUnlock()

	if !force && cache != nil && now.Sub(cache.FetchedAt) < s.cfg.Refresh.ClientTTL {
		s.setState(StateServingCache, nil)
		s.metrics.RefreshTotal.WithLabelValues(outcomeFake).Inc()
		if err := s.sleep(ctx, s.cfg.Refresh.FakeRefreshDelay); err != nil {
			return nil, err
		}
		return s.cachedResult(true), nil
	}

	if !s.upstream.Ready() {
		s.setState(StateError, apperrors.ErrMissingAPIKey)
		s.metrics.RefreshTotal.WithLabelValues(outcomeError).Inc()
		return nil, apperrors.ErrMissingAPIKey
	}

	if !force {
		if st := s.limiter.CheckLimit(); !st.Allowed {
			return s.rateLimited(ctx, st.ResetIn)
		}
	}

	v, err, shared := s.group.Do("monitors", func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		if apperrors.IsRateLimited(err) {
			if s.Cached() != nil {
				return s.rateLimited(ctx, apperrors.As(err).ResetIn)
			}
		}
		return nil, err
	}
	entry := v.(model.CacheEntry)
	if shared {
		s.log.Debug("Joined in-flight fetch")
	}
	return &Result{Monitors: model.CloneSnapshots(entry.Monitors), FetchedAt: entry.FetchedAt}, nil
}

func (s *Service) cachedResult(fake bool) *Result {
	c := s.Cached()
	if c == nil {
		return &Result{Monitors: []model.MonitorSnapshot{}, FromCache: true, FakeRefresh: fake}
	}
	return &Result{Monitors: c.Monitors, FetchedAt: c.FetchedAt, FromCache: true, FakeRefresh: fake}
}

func (s *Service) rateLimited(ctx context.Context, resetIn time.Duration) (*Result, error) {
	s.metrics.RefreshTotal.WithLabelValues(outcomeRateLimited).Inc()
	notice := model.RateLimitNotice{
		IsLimited: true,
		ResetIn:   resetIn.Milliseconds(),
		Message:   fmt.Sprintf("Rate limit reached, try again in %d seconds", int(resetIn.Round(time.Second)/time.Second)),
		Timestamp: s.now(),
	}
	if s.store != nil {
		if err := s.store.SaveRateLimitNotice(ctx, notice); err != nil {
			s.log.Warn("Failed to persist rate limit notice", zap.Error(err))
		}
	}

	if s.Cached() == nil {
		err := apperrors.RateLimited(notice.Message, resetIn)
		s.setState(StateError, err)
		return nil, err
	}
	s.setState(StateServingCache, nil)
	res := s.cachedResult(false)
	res.RateLimit = &notice
	return res, nil
}

func (s *Service) refresh(ctx context.Context) (model.CacheEntry, error) {
	log := s.log.With(zap.String("fetch_id", uuid.NewString()))
	s.setState(StateFetching, nil)

	s.limiter.RecordRequest()
	s.metrics.QuotaRemaining.Set(float64(s.limiter.Remaining()))

	start := s.now()
	raw, err := s.upstream.GetMonitors(ctx)
	s.metrics.FetchDuration.Observe(s.now().Sub(start).Seconds())
	if err != nil {
		s.setState(StateError, err)
		if apperrors.IsRateLimited(err) {
			s.metrics.RefreshTotal.WithLabelValues(outcomeRateLimited).Inc()
		} else {
			s.metrics.RefreshTotal.WithLabelValues(outcomeError).Inc()
		}
		log.Warn("Upstream fetch failed", zap.Error(err))
		return model.CacheEntry{}, err
	}

	now := s.now()
	entry := model.CacheEntry{Monitors: s.build(ctx, log, raw, now), FetchedAt: now}

	s.mu.Lock()
	prev := s.cache
	s.cache = &entry
	s.state = StateServingCache
	s.lastErr = nil
	hooks := append([]RefreshHook(nil), s.hooks...)
	s.mu.Unlock()

	s.metrics.RefreshTotal.WithLabelValues(outcomeFetched).Inc()
	s.observeSnapshot(entry)
	log.Info("Fetched monitors", zap.Int("count", len(entry.Monitors)), zap.Duration("took", now.Sub(start)))

	if s.store != nil {
		if err := s.store.SaveSnapshot(ctx, entry); err != nil {
			log.Warn("Failed to persist snapshot", zap.Error(err))
		}
		if err := s.store.ClearRateLimitNotice(ctx); err != nil {
			log.Warn("Failed to clear rate limit notice", zap.Error(err))
		}
	}

	for _, h := range hooks {
		h(prev, entry.Clone())
	}
	return entry, nil
}

func (s *Service) build(ctx context.Context, log *zap.Logger, raw []uptimerobot.Monitor, now time.Time) []model.MonitorSnapshot {
	snaps := make([]model.MonitorSnapshot, 0, len(raw))
	var targets []ProbeTarget
	for _, m := range raw {
		s.mu.Lock()
		opts := BuildOptions{
			Now:        now,
			Location:   s.location,
			WindowDays: s.cfg.Aggregation.DailyWindowDays,
			Rand:       rand.New(rand.NewSource(s.rng.Int63())),
		}
		s.mu.Unlock()

		snap, rejected := BuildSnapshot(m, opts)
		for _, r := range rejected {
			log.Debug("Dropped log entry",
				zap.Int("monitor", m.ID),
				zap.Int("index", r.Index),
				zap.Int("type", r.Raw.Type),
				zap.String("datetime", r.Raw.Timestamp),
				zap.Error(r.Err))
		}
		if n := len(rejected); n > 0 {
			s.metrics.RejectedEntries.Add(float64(n))
			log.Warn("Dropped malformed log entries", zap.Int("monitor", m.ID), zap.Int("count", n))
		}
		if snap.ResponseTimeSource == model.SourceNone && snap.URL != "" {
			targets = append(targets, ProbeTarget{ID: snap.ID, URL: snap.URL, Type: snap.Type})
		}
		snaps = append(snaps, snap)
	}

	if len(targets) > 0 && s.cfg.Probe.Enabled {
		results := s.prober.CheckAll(ctx, targets)
		for i := range snaps {
			if r, ok := results[snaps[i].ID]; ok {
				applyProbe(&snaps[i], r)
			}
		}
	}
	return snaps
}

func (s *Service) observeSnapshot(entry model.CacheEntry) {
	counts := map[model.MonitorStatus]int{
		model.StatusUp:      0,
		model.StatusDown:    0,
		model.StatusPaused:  0,
		model.StatusUnknown: 0,
	}
	for _, m := range entry.Monitors {
		counts[m.Status]++
	}
	for st, n := range counts {
		s.metrics.MonitorsByState.WithLabelValues(string(st)).Set(float64(n))
	}
}

// CheckQuota reports the limiter state plus any persisted rate-limit notice.
func (s *Service) CheckQuota(ctx context.Context) Quota {
	st := s.limiter.CheckLimit()
	s.metrics.QuotaRemaining.Set(float64(st.Remaining))
	q := Quota{
		Remaining: st.Remaining,
		Total:     st.Total,
		IsLimited: !st.Allowed,
		ResetIn:   st.ResetIn.Milliseconds(),
	}
	if s.store != nil {
		n, err := s.store.RateLimitNotice(ctx, s.cfg.RateLimit.NoticeTTL)
		if err != nil {
			s.log.Warn("Failed to read rate limit notice", zap.Error(err))
		}
		q.Notice = n
	}
	return q
}

// Probe runs a custom probe batch.
func (s *Service) Probe(ctx context.Context, targets []ProbeTarget) map[int]ProbeResult {
	return s.prober.CheckAll(ctx, targets)
}

// HealthCheck summarizes the orchestrator for /health.
func (s *Service) HealthCheck() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]any{
		"status":     "healthy",
		"state":      s.state.String(),
		"configured": s.upstream != nil && s.upstream.Ready(),
	}
	if s.cache != nil {
		out["monitors"] = len(s.cache.Monitors)
		out["fetched_at"] = s.cache.FetchedAt
	}
	if s.lastErr != nil {
		out["last_error"] = s.lastErr.Error()
	}
	return out
}
