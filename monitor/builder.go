package monitor

import (
	"math/rand"
	"time"

	"uptime-status/model"
	"uptime-status/stats"
	"uptime-status/uptimerobot"
)

// PlaceholderHours is the span of the synthesized series for monitors that
// report an average but no samples.
const PlaceholderHours = 24

type BuildOptions struct {
	Now        time.Time
	Location   *time.Location
	WindowDays int
	Rand       *rand.Rand
}

// BuildSnapshot turns one upstream monitor into a complete snapshot. Entries
// the normalizer rejected are returned for logging.
func BuildSnapshot(m uptimerobot.Monitor, opts BuildOptions) (model.MonitorSnapshot, []stats.Rejected) {
	now := opts.Now
	snap := model.MonitorSnapshot{
		ID:         m.ID,
		Name:       m.FriendlyName,
		URL:        m.URL,
		Type:       model.MonitorTypeLabel(m.Type),
		TypeCode:   m.Type,
		Interval:   m.Interval,
		Status:     model.StatusFromCode(m.Status),
		StatusCode: m.Status,
	}

	createdAt := m.CreatedAt()
	if !createdAt.IsZero() {
		snap.CreatedAt = &createdAt
	}

	// 响应时间
	samples := stats.NormalizeResponseTimes(m.RawResponseTimes(), now)
	snap.AverageResponseTime = m.AverageResponseTime.Ptr()
	if snap.AverageResponseTime == nil {
		snap.AverageResponseTime = stats.AverageResponseTime(samples)
	}
	switch {
	case len(samples) > 0:
		last := samples[len(samples)-1]
		v := last.Value
		at := last.At
		snap.ResponseTimes = samples
		snap.ResponseTimeSource = model.SourceUpstream
		snap.LastResponseTime = &v
		snap.LastCheckedAt = &at
	case snap.AverageResponseTime != nil:
		rng := opts.Rand
		if rng == nil {
			rng = rand.New(rand.NewSource(now.UnixNano()))
		}
		snap.ResponseTimes = stats.PlaceholderSeries(*snap.AverageResponseTime, PlaceholderHours, now, rng)
		snap.ResponseTimeSource = model.SourcePlaceholder
	default:
		snap.ResponseTimes = []model.ResponseTime{}
		snap.ResponseTimeSource = model.SourceNone
	}

	// 日志与统计
	logs := stats.NormalizeLogs(m.RawEvents(), now)
	snap.Logs = logs.Events
	snap.Incidents = logs.Incidents

	snap.ComputedUptime = stats.PeriodUptimes(logs.Events, createdAt, now)
	snap.UptimeRatio = upstreamRatios(m, snap.ComputedUptime)

	snap.DailyStatus = stats.DailyStatuses(logs.Events, stats.DailyOptions{
		Now:           now,
		CreatedAt:     createdAt,
		CurrentStatus: snap.Status,
		WindowDays:    opts.WindowDays,
		Location:      opts.Location,
	})

	return snap, logs.Rejected
}

// upstreamRatios prefers the upstream custom ratios and fills missing
// segments from the computed values.
func upstreamRatios(m uptimerobot.Monitor, computed model.UptimeRatio) model.UptimeRatio {
	segs := uptimerobot.ParseCustomRatios(m.CustomUptimeRatio)
	pick := func(up, fallback *float64) *float64 {
		if up != nil {
			return up
		}
		if fallback == nil {
			return nil
		}
		v := *fallback
		return &v
	}
	return model.UptimeRatio{
		Last7Days:  pick(segs[0], computed.Last7Days),
		Last30Days: pick(segs[1], computed.Last30Days),
		Last90Days: pick(segs[2], computed.Last90Days),
		AllTime:    m.AllTimeUptimeRatio.Ptr(),
	}
}

// applyProbe fills a snapshot that had no response-time data from an active probe.
func applyProbe(snap *model.MonitorSnapshot, res ProbeResult) {
	if !res.Success {
		return
	}
	v := int(res.ResponseTime)
	at := res.Timestamp.UTC()
	avg := float64(v)
	snap.ResponseTimes = []model.ResponseTime{{At: at, Value: v}}
	snap.ResponseTimeSource = model.SourceProbe
	snap.LastResponseTime = &v
	snap.LastCheckedAt = &at
	snap.AverageResponseTime = &avg
}
