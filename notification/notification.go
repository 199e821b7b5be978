package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"uptime-status/config"
	"uptime-status/model"
	"uptime-status/stats"

	"github.com/resend/resend-go/v3"
	"go.uber.org/zap"
)

const (
	maxRetries = 3
	queueSize  = 16
)

// Sender is the part of the resend client the notifier uses.
type Sender interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Change is one monitor that flipped between up and down across two real fetches.
type Change struct {
	Monitor model.MonitorSnapshot
	From    model.MonitorStatus
	To      model.MonitorStatus
}

type refresh struct {
	prev *model.CacheEntry
	next model.CacheEntry
}

// Notifier emails status changes and an optional daily report.
type Notifier struct {
	cfg      config.NotificationConfig
	sender   Sender
	location *time.Location
	log      *zap.Logger
	now      func() time.Time
	backoff  func(attempt int) time.Duration

	queue chan refresh

	mu         sync.Mutex
	latest     *model.CacheEntry
	lastReport string
}

func New(cfg config.NotificationConfig, loc *time.Location, log *zap.Logger) *Notifier {
	var sender Sender
	if key := strings.TrimSpace(cfg.ResendAPIKey); key != "" && key != "YOUR_RESEND_API_KEY" {
		sender = resend.NewClient(key).Emails
	}
	return NewWithSender(cfg, sender, loc, log)
}

func NewWithSender(cfg config.NotificationConfig, sender Sender, loc *time.Location, log *zap.Logger) *Notifier {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		cfg:      cfg,
		sender:   sender,
		location: loc,
		log:      log,
		now:      time.Now,
		backoff:  func(attempt int) time.Duration { return time.Duration(2*(attempt+1)) * time.Second },
		queue:    make(chan refresh, queueSize),
	}
}

// Enabled reports whether both a resend key and a recipient are configured.
func (n *Notifier) Enabled() bool {
	return n.sender != nil && len(n.recipients()) > 0
}

func (n *Notifier) recipients() []string {
	var out []string
	for _, addr := range strings.Split(n.cfg.Email, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// HandleRefresh queues a real refresh for the worker. It never blocks the fetch path.
func (n *Notifier) HandleRefresh(prev *model.CacheEntry, next model.CacheEntry) {
	n.mu.Lock()
	n.latest = &next
	n.mu.Unlock()

	if !n.Enabled() || prev == nil {
		return
	}
	select {
	case n.queue <- refresh{prev: prev, next: next}:
	default:
		n.log.Warn("Notification queue full, dropping refresh")
	}
}

// Run processes queued refreshes and the daily report until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	n.log.Info("Notification worker started")
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case r := <-n.queue:
			for _, c := range DetectChanges(r.prev, r.next) {
				if err := n.SendChange(ctx, c); err != nil {
					n.log.Error("Failed to send status change", zap.Int("monitor", c.Monitor.ID), zap.Error(err))
				}
			}
		case <-ticker.C:
			n.checkReport(ctx)
		case <-ctx.Done():
			n.log.Info("Notification worker stopped")
			return
		}
	}
}

// DetectChanges lists monitors whose status went from up to down or back.
// Paused and unknown transitions are not reported.
func DetectChanges(prev *model.CacheEntry, next model.CacheEntry) []Change {
	if prev == nil {
		return nil
	}
	before := make(map[int]model.MonitorStatus, len(prev.Monitors))
	for _, m := range prev.Monitors {
		before[m.ID] = m.Status
	}

	var out []Change
	for _, m := range next.Monitors {
		old, ok := before[m.ID]
		if !ok || old == m.Status {
			continue
		}
		if (old == model.StatusUp && m.Status == model.StatusDown) ||
			(old == model.StatusDown && m.Status == model.StatusUp) {
			out = append(out, Change{Monitor: m, From: old, To: m.Status})
		}
	}
	return out
}

// SendChange renders and sends one status change email.
func (n *Notifier) SendChange(ctx context.Context, c Change) error {
	data := StatusChangeData{
		Name:      c.Monitor.Name,
		URL:       c.Monitor.URL,
		OldStatus: strings.ToUpper(string(c.From)),
		NewStatus: strings.ToUpper(string(c.To)),
		DateTime:  n.now().In(n.location).Format("2006-01-02 15:04:05"),
	}
	if c.To == model.StatusDown {
		data.Color = "#e74c3c"
		data.StatusText = "服务异常"
		data.Message = "UptimeRobot reports the monitor as down."
	} else {
		data.Color = "#2ecc71"
		data.StatusText = "服务恢复"
		data.Message = "UptimeRobot reports the monitor as up again."
		if d, ok := lastDowntime(c.Monitor.Logs); ok {
			data.Message += " Downtime: " + stats.FormatDuration(float64(d))
		}
	}

	html, err := RenderStatusChangeEmail(data)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("[%s] %s", data.NewStatus, c.Monitor.Name)
	return n.SendEmail(ctx, n.recipients(), subject, html)
}

func lastDowntime(events []model.NormalizedEvent) (int64, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == model.EventDown && events[i].DurationSeconds != nil {
			return *events[i].DurationSeconds, true
		}
	}
	return 0, false
}

func (n *Notifier) checkReport(ctx context.Context) {
	if !n.cfg.DailyReport || !n.Enabled() {
		return
	}
	now := n.now().In(n.location)
	if now.Format("15:04") != n.cfg.ReportTime {
		return
	}
	today := now.Format("2006-01-02")

	n.mu.Lock()
	latest := n.latest
	already := n.lastReport == today
	if latest != nil && !already {
		n.lastReport = today
	}
	n.mu.Unlock()

	if latest == nil || already {
		return
	}
	if err := n.SendReport(ctx, *latest); err != nil {
		n.log.Error("Failed to send daily report", zap.Error(err))
	}
}

// BuildReport summarizes the previous calendar day of every monitor.
func BuildReport(entry model.CacheEntry) DailyReportData {
	data := DailyReportData{TotalCount: len(entry.Monitors), DownColor: "#2ecc71"}

	var sum float64
	var counted int
	for i, m := range entry.Monitors {
		row := ReportRow{
			Name:        m.Name,
			Type:        m.Type,
			Uptime:      "-",
			AvgResponse: "-",
			Downtime:    "-",
			Status:      strings.ToUpper(string(m.Status)),
			Color:       statusColor(m.Status),
			UptimeColor: "#64748b",
		}
		if i%2 == 1 {
			row.RowBg = "#fafafa"
		} else {
			row.RowBg = "#ffffff"
		}
		if m.Status == model.StatusDown {
			data.DownCount++
		}
		if m.AverageResponseTime != nil {
			row.AvgResponse = fmt.Sprintf("%.0f ms", *m.AverageResponseTime)
		}
		if n := len(m.DailyStatus); n >= 2 {
			day := m.DailyStatus[n-2]
			if data.Date == "" {
				data.Date = day.Date.Format("2006-01-02")
			}
			if day.State != model.DayNoData {
				row.Uptime = fmt.Sprintf("%.1f%%", day.Uptime)
				row.UptimeColor = uptimeColor(day.Uptime)
				row.Downtime = stats.FormatDuration(float64(day.Down.Duration))
				sum += day.Uptime
				counted++
			}
		}
		data.Monitors = append(data.Monitors, row)
	}
	if counted > 0 {
		data.UptimePercent = sum / float64(counted)
	}
	if data.DownCount > 0 {
		data.DownColor = "#e74c3c"
	}
	return data
}

func statusColor(s model.MonitorStatus) string {
	switch s {
	case model.StatusUp:
		return "#2ecc71"
	case model.StatusDown:
		return "#e74c3c"
	case model.StatusPaused:
		return "#f39c12"
	default:
		return "#94a3b8"
	}
}

func uptimeColor(u float64) string {
	switch {
	case u >= 99:
		return "#2ecc71"
	case u >= 90:
		return "#f39c12"
	default:
		return "#e74c3c"
	}
}

// SendReport renders and sends the daily report.
func (n *Notifier) SendReport(ctx context.Context, entry model.CacheEntry) error {
	data := BuildReport(entry)
	html, err := RenderDailyReportEmail(data)
	if err != nil {
		return err
	}
	return n.SendEmail(ctx, n.recipients(), "Uptime Status 每日速报 "+data.Date, html)
}

// SendEmail sends with up to three attempts and linear backoff.
func (n *Notifier) SendEmail(ctx context.Context, to []string, subject, htmlContent string) error {
	if n.sender == nil {
		return fmt.Errorf("RESEND_API_KEY is not set correctly")
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipient configured")
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", n.cfg.FromName, n.cfg.FromEmail),
		To:      to,
		Subject: subject,
		Html:    htmlContent,
	}

	var err error
	for i := 0; i < maxRetries; i++ {
		var resp *resend.SendEmailResponse
		resp, err = n.sender.Send(params)
		if err == nil {
			id := ""
			if resp != nil {
				id = resp.Id
			}
			n.log.Info("Email sent", zap.Strings("to", to), zap.String("id", id))
			return nil
		}
		n.log.Warn("Failed to send email", zap.Int("attempt", i+1), zap.Error(err))
		if i < maxRetries-1 {
			select {
			case <-time.After(n.backoff(i)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, err)
}
