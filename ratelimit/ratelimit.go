package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks upstream requests in a sliding window against a fixed quota.
// Only real upstream calls are recorded; cache hits and fake refreshes are not.
type Limiter struct {
	mu          sync.Mutex
	requests    []time.Time
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

// Config for creating a new rate limiter
type Config struct {
	MaxRequests int           // Requests allowed per window
	Window      time.Duration // Length of the sliding window
	Now         func() time.Time
}

// Status is the answer to CheckLimit.
type Status struct {
	Allowed     bool          `json:"allowed"`
	Remaining   int           `json:"remainingRequests"`
	Total       int           `json:"total"`
	ResetIn     time.Duration `json:"-"`
	ResetMillis int64         `json:"resetIn"`
}

// New creates a new rate limiter. UptimeRobot's free plan allows 10 requests a minute.
func New(cfg Config) *Limiter {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Limiter{
		maxRequests: cfg.MaxRequests,
		window:      cfg.Window,
		now:         cfg.Now,
	}
}

// prune drops requests that left the window. Caller holds mu.
func (l *Limiter) prune(now time.Time) {
	windowStart := now.Add(-l.window)
	i := 0
	for i < len(l.requests) && !l.requests[i].After(windowStart) {
		i++
	}
	if i > 0 {
		l.requests = append(l.requests[:0], l.requests[i:]...)
	}
}

// CheckLimit reports whether another upstream request fits the quota.
func (l *Limiter) CheckLimit() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	count := len(l.requests)
	remaining := l.maxRequests - count
	if remaining < 0 {
		remaining = 0
	}

	var resetIn time.Duration
	if count > 0 {
		resetIn = l.requests[0].Add(l.window).Sub(now)
		if resetIn < 0 {
			resetIn = 0
		}
	}

	return Status{
		Allowed:     count < l.maxRequests,
		Remaining:   remaining,
		Total:       l.maxRequests,
		ResetIn:     resetIn,
		ResetMillis: resetIn.Milliseconds(),
	}
}

// RecordRequest appends the current instant. Call it once per real upstream call.
func (l *Limiter) RecordRequest() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, l.now())
}

// Remaining returns the number of requests left in the current window.
func (l *Limiter) Remaining() int {
	return l.CheckLimit().Remaining
}

// MaxRequests is the configured quota.
func (l *Limiter) MaxRequests() int {
	return l.maxRequests
}

// Reset forgets every recorded request.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = nil
}
