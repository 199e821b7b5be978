package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"uptime-status/config"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultProbeTimeout = 30 * time.Second
	probeConcurrency    = 8
)

// ProbeTarget is one entry of a custom probe request. Timeout is in milliseconds.
type ProbeTarget struct {
	ID      int               `json:"id"`
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Timeout int               `json:"timeout,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Type    string            `json:"type,omitempty"`
}

// ProbeResult: ResponseTime is in milliseconds.
type ProbeResult struct {
	Success      bool      `json:"success"`
	ResponseTime int64     `json:"responseTime"`
	StatusCode   int       `json:"statusCode,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Prober measures response times directly when the upstream has none.
type Prober struct {
	client    *http.Client
	timeout   time.Duration
	pingCount int
	now       func() time.Time
	log       *zap.Logger
}

var defaultTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	DialContext: (&net.Dialer{
		Timeout:   0, // Rely on context timeout
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

func NewProber(cfg config.ProbeConfig, log *zap.Logger) *Prober {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	count := cfg.PingCount
	if count <= 0 {
		count = 3
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Prober{
		client:    &http.Client{Transport: defaultTransport},
		timeout:   timeout,
		pingCount: count,
		now:       time.Now,
		log:       log,
	}
}

func (p *Prober) targetTimeout(t ProbeTarget) time.Duration {
	// 请求方给的超时只能收紧，不能超过配置上限
	if d := time.Duration(t.Timeout) * time.Millisecond; t.Timeout > 0 && d < p.timeout {
		return d
	}
	return p.timeout
}

// Check dispatches on the monitor type: Ping monitors use ICMP, everything else HTTP.
func (p *Prober) Check(ctx context.Context, t ProbeTarget) ProbeResult {
	if strings.EqualFold(t.Type, "Ping") {
		return p.CheckPing(ctx, t)
	}
	return p.CheckHTTP(ctx, t)
}

// CheckHTTP counts any HTTP response as success, 4xx and 5xx included; only
// transport failures and timeouts fail.
func (p *Prober) CheckHTTP(ctx context.Context, t ProbeTarget) ProbeResult {
	timeout := p.targetTimeout(t)
	start := p.now()
	res := ProbeResult{Timestamp: start.UTC()}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := strings.ToUpper(t.Method)
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, t.URL, nil)
	if err != nil {
		res.Error = fmt.Sprintf("Create request failed: %v", err)
		return res
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Cache-Control", "no-store")
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	elapsed := p.now().Sub(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			res.ResponseTime = timeout.Milliseconds()
			res.Error = fmt.Sprintf("Timeout after %dms", timeout.Milliseconds())
			return res
		}
		res.ResponseTime = elapsed.Milliseconds()
		res.Error = simplifyError(err)
		p.log.Debug("probe failed", zap.String("url", t.URL), zap.Error(err))
		return res
	}
	resp.Body.Close()

	res.Success = true
	res.ResponseTime = elapsed.Milliseconds()
	res.StatusCode = resp.StatusCode
	return res
}

func simplifyError(err error) string {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return "Connection Refused"
	case strings.Contains(errStr, "no such host"):
		return "DNS Resolution Failed"
	case strings.Contains(errStr, "remote error: tls"):
		return "TLS Error"
	}
	if len(errStr) > 80 {
		return errStr[:77] + "..."
	}
	return errStr
}

// CheckPing sends ICMP echo requests to the target's host.
func (p *Prober) CheckPing(ctx context.Context, t ProbeTarget) ProbeResult {
	res := ProbeResult{Timestamp: p.now().UTC()}

	host := t.URL
	if u, err := url.Parse(t.URL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}

	pinger, err := probing.NewPinger(host)
	if err != nil {
		res.Error = fmt.Sprintf("Init ping failed: %v", err)
		return res
	}
	// Windows 需要管理员权限使用 raw socket
	if os.Getenv("OS") == "Windows_NT" {
		pinger.SetPrivileged(true)
	}
	pinger.Count = p.pingCount
	pinger.Interval = 100 * time.Millisecond
	pinger.Timeout = p.targetTimeout(t)

	if err := pinger.RunWithContext(ctx); err != nil {
		res.Error = fmt.Sprintf("Ping failed: %v", err)
		return res
	}

	st := pinger.Statistics()
	if st.PacketsRecv == 0 {
		res.Error = "100% packet loss"
		return res
	}
	res.Success = true
	res.ResponseTime = st.AvgRtt.Milliseconds()
	return res
}

// CheckAll probes every target concurrently. Targets without an id or url are skipped.
func (p *Prober) CheckAll(ctx context.Context, targets []ProbeTarget) map[int]ProbeResult {
	results := make(map[int]ProbeResult, len(targets))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeConcurrency)
	for _, t := range targets {
		if t.ID == 0 || t.URL == "" {
			continue
		}
		t := t
		g.Go(func() error {
			r := p.Check(gctx, t)
			mu.Lock()
			results[t.ID] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
