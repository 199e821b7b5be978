package uptimerobot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"uptime-status/config"
	apperrors "uptime-status/pkg/errors"
	"uptime-status/stats"

	"go.uber.org/zap"
)

const (
	// LogTypes 1=down, 2=up, 98=started, 99=paused
	LogTypes = "1-2-98-99"
	// CustomUptimeRatios must stay in the same order as CustomUptimeRanges.
	CustomUptimeRatios = "7-30-90"

	defaultRetryAfter = 60 * time.Second
)

// Client talks to the UptimeRobot v2 API.
type Client struct {
	apiKey             string
	endpoint           string
	logsLimit          int
	responseTimesLimit int
	httpClient         *http.Client
	location           *time.Location
	now                func() time.Time
	log                *zap.Logger
}

type Options struct {
	Config     config.UpstreamConfig
	Location   *time.Location
	HTTPClient *http.Client
	Now        func() time.Time
	Logger     *zap.Logger
}

func New(opts Options) *Client {
	c := &Client{
		apiKey:             strings.TrimSpace(opts.Config.APIKey),
		endpoint:           opts.Config.Endpoint,
		logsLimit:          opts.Config.LogsLimit,
		responseTimesLimit: opts.Config.ResponseTimesLimit,
		httpClient:         opts.HTTPClient,
		location:           opts.Location,
		now:                opts.Now,
		log:                opts.Logger,
	}
	if c.endpoint == "" {
		c.endpoint = config.DefaultEndpoint
	}
	if c.logsLimit <= 0 {
		c.logsLimit = 300
	}
	if c.responseTimesLimit <= 0 {
		c.responseTimesLimit = 50
	}
	if c.httpClient == nil {
		timeout := opts.Config.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.location == nil {
		c.location = time.Local
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Ready reports whether an API key is configured.
func (c *Client) Ready() bool {
	return c.apiKey != ""
}

// CustomUptimeRanges builds "start_end-start_end-start_end" for the 7, 30 and
// 90 days ending at local midnight of now.
func CustomUptimeRanges(now time.Time, loc *time.Location) string {
	today := stats.DayStart(now, loc)
	parts := make([]string, 0, len(stats.PeriodWindows))
	for _, days := range stats.PeriodWindows {
		start := today.AddDate(0, 0, -days)
		parts = append(parts, fmt.Sprintf("%d_%d", start.Unix(), today.Unix()))
	}
	return strings.Join(parts, "-")
}

// Params is the form body of one getMonitors call.
func (c *Client) Params(now time.Time) url.Values {
	v := url.Values{}
	v.Set("api_key", c.apiKey)
	v.Set("format", "json")
	v.Set("logs", "1")
	v.Set("logs_limit", strconv.Itoa(c.logsLimit))
	v.Set("log_types", LogTypes)
	v.Set("logs_start_date", strconv.FormatInt(stats.RetentionCutoff(now).Unix(), 10))
	v.Set("logs_end_date", strconv.FormatInt(now.Unix(), 10))
	v.Set("response_times", "1")
	v.Set("response_times_limit", strconv.Itoa(c.responseTimesLimit))
	v.Set("custom_uptime_ranges", CustomUptimeRanges(now, c.location))
	v.Set("custom_uptime_ratios", CustomUptimeRatios)
	return v
}

// GetMonitors fetches every monitor with logs and response times.
func (c *Client) GetMonitors(ctx context.Context) ([]Monitor, error) {
	if !c.Ready() {
		return nil, apperrors.ErrMissingAPIKey
	}

	body := c.Params(c.now()).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(err, "Create request failed")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Upstream("UptimeRobot API request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperrors.RateLimited("UptimeRobot API rate limit reached", retryAfter(resp.Header.Get("Retry-After")))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10240))
		return nil, apperrors.Upstream(fmt.Sprintf("UptimeRobot API request failed: %s", resp.Status), nil)
	}

	var data Response
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, apperrors.Upstream("Decode UptimeRobot response failed", err)
	}
	if data.Stat != "ok" {
		msg := "UptimeRobot API returned an error, check the API key"
		if data.Error != nil && data.Error.Message != "" {
			msg = data.Error.Message
		}
		return nil, apperrors.Upstream(msg, nil)
	}

	if c.log.Core().Enabled(zap.DebugLevel) {
		for _, m := range data.Monitors {
			c.log.Debug("upstream monitor",
				zap.Int("id", m.ID),
				zap.String("name", m.FriendlyName),
				zap.Int("response_times", len(m.ResponseTimes)),
				zap.Int("logs", len(m.Logs)))
		}
	}

	if data.Monitors == nil {
		return []Monitor{}, nil
	}
	return data.Monitors, nil
}

func retryAfter(h string) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
		return 0
	}
	return defaultRetryAfter
}
