package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultEndpoint = "https://api.uptimerobot.com/v2/getMonitors"

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Upstream     UpstreamConfig     `yaml:"upstream"`
	Refresh      RefreshConfig      `yaml:"refresh"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Aggregation  AggregationConfig  `yaml:"aggregation"`
	Probe        ProbeConfig        `yaml:"probe"`
	Notification NotificationConfig `yaml:"notification"`
	Storage      StorageConfig      `yaml:"storage"`
	Groups       []MonitorGroup     `yaml:"groups"`
}

type ServerConfig struct {
	Port  int  `yaml:"port"`
	Debug bool `yaml:"debug"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// UpstreamConfig 上游 UptimeRobot API 配置
type UpstreamConfig struct {
	APIKey             string        `yaml:"api_key"`
	Endpoint           string        `yaml:"endpoint"`
	LogsLimit          int           `yaml:"logs_limit"`
	ResponseTimesLimit int           `yaml:"response_times_limit"`
	Timeout            time.Duration `yaml:"timeout"`
}

// RefreshConfig 刷新与缓存策略
type RefreshConfig struct {
	ClientTTL        time.Duration `yaml:"client_ttl"`         // 假刷新窗口，默认 30s
	FakeRefreshDelay time.Duration `yaml:"fake_refresh_delay"` // 假刷新的人为延迟，默认 300ms
	AutoInterval     time.Duration `yaml:"auto_interval"`      // 自动刷新倒计时，默认 5m
	Tick             time.Duration `yaml:"tick"`               // 倒计时分辨率，默认 1s
}

type RateLimitConfig struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
	NoticeTTL   time.Duration `yaml:"notice_ttl"`
}

type AggregationConfig struct {
	DailyWindowDays int    `yaml:"daily_window_days"`
	Timezone        string `yaml:"timezone"`
}

type ProbeConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Timeout   time.Duration `yaml:"timeout"`
	PingCount int           `yaml:"ping_count"`
}

type NotificationConfig struct {
	ResendAPIKey string `yaml:"resend_api_key"`
	Email        string `yaml:"email"` // 逗号分隔多个收件人
	FromEmail    string `yaml:"from_email"`
	FromName     string `yaml:"from_name"`
	DailyReport  bool   `yaml:"daily_report"`
	ReportTime   string `yaml:"report_time"` // HH:MM，聚合时区
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

// MonitorGroup 静态监控分组
type MonitorGroup struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`
	Color       string `yaml:"color" json:"color,omitempty"`
	Icon        string `yaml:"icon" json:"icon,omitempty"`
	Monitors    []int  `yaml:"monitors" json:"monitors"`
}

// Load reads .env, then the YAML file at path, then environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	cfg.Validate()
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if apiKey := os.Getenv("UPTIMEROBOT_API_KEY"); apiKey != "" {
		cfg.Upstream.APIKey = apiKey
	}
	if apiKey := os.Getenv("RESEND_API_KEY"); apiKey != "" {
		cfg.Notification.ResendAPIKey = apiKey
	}
	if email := os.Getenv("NOTIFICATION_EMAIL"); email != "" {
		cfg.Notification.Email = email
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		cfg.Aggregation.Timezone = tz
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p != 0 {
			cfg.Server.Port = p
		}
	}
	if os.Getenv("DEBUG") == "true" {
		cfg.Server.Debug = true
	}
}

// Validate fills zero values with defaults. A missing API key is reported at
// fetch time, not here.
func (c *Config) Validate() {
	if c.Server.Port == 0 {
		c.Server.Port = 3001
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Upstream.Endpoint == "" {
		c.Upstream.Endpoint = DefaultEndpoint
	}
	if c.Upstream.LogsLimit <= 0 {
		c.Upstream.LogsLimit = 300
	}
	if c.Upstream.ResponseTimesLimit <= 0 {
		c.Upstream.ResponseTimesLimit = 50
	}
	if c.Upstream.Timeout <= 0 {
		c.Upstream.Timeout = 30 * time.Second
	}
	if c.Refresh.ClientTTL <= 0 {
		c.Refresh.ClientTTL = 30 * time.Second
	}
	if c.Refresh.FakeRefreshDelay < 0 {
		c.Refresh.FakeRefreshDelay = 0
	} else if c.Refresh.FakeRefreshDelay == 0 {
		c.Refresh.FakeRefreshDelay = 300 * time.Millisecond
	}
	if c.Refresh.AutoInterval <= 0 {
		c.Refresh.AutoInterval = 5 * time.Minute
	}
	if c.Refresh.Tick <= 0 {
		c.Refresh.Tick = time.Second
	}
	if c.RateLimit.MaxRequests <= 0 {
		c.RateLimit.MaxRequests = 10
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.RateLimit.NoticeTTL <= 0 {
		c.RateLimit.NoticeTTL = time.Minute
	}
	if c.Aggregation.DailyWindowDays <= 0 {
		c.Aggregation.DailyWindowDays = 90
	}
	if c.Probe.Timeout <= 0 {
		c.Probe.Timeout = 30 * time.Second
	}
	if c.Probe.PingCount <= 0 {
		c.Probe.PingCount = 3
	}
	if c.Notification.FromEmail == "" {
		c.Notification.FromEmail = "onboarding@resend.dev"
	}
	if c.Notification.FromName == "" {
		c.Notification.FromName = "Uptime Status"
	}
	if c.Notification.ReportTime == "" {
		c.Notification.ReportTime = "09:00"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "uptime-status.db"
	}
}

// Location resolves the aggregation timezone, falling back to the process local zone.
func (c *Config) Location() *time.Location {
	if c.Aggregation.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Aggregation.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
