package model

import (
	"strconv"
	"time"
)

type MonitorStatus string

const (
	StatusUp      MonitorStatus = "up"
	StatusDown    MonitorStatus = "down"
	StatusPaused  MonitorStatus = "paused"
	StatusUnknown MonitorStatus = "unknown"
)

// StatusFromCode maps the upstream numeric monitor status.
func StatusFromCode(code int) MonitorStatus {
	switch code {
	case 0:
		return StatusPaused
	case 1:
		return StatusUnknown
	case 2:
		return StatusUp
	case 8, 9:
		return StatusDown
	default:
		return StatusUnknown
	}
}

var monitorTypeLabels = map[int]string{
	1: "HTTP",
	2: "Keyword",
	3: "Ping",
	4: "Port",
	5: "Heartbeat",
}

func MonitorTypeLabel(code int) string {
	if label, ok := monitorTypeLabels[code]; ok {
		return label
	}
	return "Type " + strconv.Itoa(code)
}

type ResponseTime struct {
	At    time.Time `json:"at"`
	Value int       `json:"value"`
}

// RawResponseTime is an upstream sample before timestamp parsing.
type RawResponseTime struct {
	Timestamp string
	Value     int
}

// ResponseTimeSource says where a snapshot's response-time series came from.
type ResponseTimeSource string

const (
	SourceUpstream    ResponseTimeSource = "upstream"
	SourcePlaceholder ResponseTimeSource = "placeholder"
	SourceProbe       ResponseTimeSource = "probe"
	SourceNone        ResponseTimeSource = "none"
)

type UptimeRatio struct {
	Last7Days  *float64 `json:"last7Days"`
	Last30Days *float64 `json:"last30Days"`
	Last90Days *float64 `json:"last90Days"`
	AllTime    *float64 `json:"allTime"`
}

type EventTally struct {
	Times    int   `json:"times"`
	Duration int64 `json:"duration"`
}

// DayState is the display bucket of one day on the uptime bar.
type DayState string

const (
	DayNoData DayState = "nodata"
	DayNormal DayState = "normal"
	DayWarn   DayState = "warn"
	DayError  DayState = "error"
	DayPaused DayState = "paused"
)

// NoDataUptime marks a day before the monitor existed.
const NoDataUptime = -1.0

type DailyStatus struct {
	Date        time.Time  `json:"date"`
	Uptime      float64    `json:"uptime"`
	State       DayState   `json:"state"`
	FullyPaused bool       `json:"fullyPaused"`
	Down        EventTally `json:"down"`
	Pause       EventTally `json:"pause"`
}

type MonitorSnapshot struct {
	ID         int           `json:"id"`
	Name       string        `json:"name"`
	URL        string        `json:"url"`
	Type       string        `json:"type"`
	TypeCode   int           `json:"typeCode"`
	Interval   int           `json:"interval"`
	Status     MonitorStatus `json:"status"`
	StatusCode int           `json:"statusCode"`
	CreatedAt  *time.Time    `json:"createdAt"`

	AverageResponseTime *float64           `json:"averageResponseTime"`
	LastResponseTime    *int               `json:"lastResponseTime"`
	LastCheckedAt       *time.Time         `json:"lastCheckedAt"`
	ResponseTimes       []ResponseTime     `json:"responseTimes"`
	ResponseTimeSource  ResponseTimeSource `json:"responseTimeSource"`

	Logs           []NormalizedEvent `json:"logs"`
	Incidents      IncidentSummary   `json:"incidents"`
	UptimeRatio    UptimeRatio       `json:"uptimeRatio"`
	ComputedUptime UptimeRatio       `json:"computedUptime"`
	DailyStatus    []DailyStatus     `json:"dailyStatus"`
}

// Clone returns a deep copy so cache readers never share slices with the cache.
func (m MonitorSnapshot) Clone() MonitorSnapshot {
	out := m
	out.CreatedAt = cloneTime(m.CreatedAt)
	out.LastCheckedAt = cloneTime(m.LastCheckedAt)
	out.AverageResponseTime = cloneFloat(m.AverageResponseTime)
	if m.LastResponseTime != nil {
		v := *m.LastResponseTime
		out.LastResponseTime = &v
	}
	if m.ResponseTimes != nil {
		out.ResponseTimes = append([]ResponseTime(nil), m.ResponseTimes...)
	}
	if m.Logs != nil {
		out.Logs = make([]NormalizedEvent, len(m.Logs))
		for i, e := range m.Logs {
			out.Logs[i] = e
			if e.DurationSeconds != nil {
				d := *e.DurationSeconds
				out.Logs[i].DurationSeconds = &d
			}
		}
	}
	if m.DailyStatus != nil {
		out.DailyStatus = append([]DailyStatus(nil), m.DailyStatus...)
	}
	out.UptimeRatio = m.UptimeRatio.clone()
	out.ComputedUptime = m.ComputedUptime.clone()
	return out
}

func (u UptimeRatio) clone() UptimeRatio {
	return UptimeRatio{
		Last7Days:  cloneFloat(u.Last7Days),
		Last30Days: cloneFloat(u.Last30Days),
		Last90Days: cloneFloat(u.Last90Days),
		AllTime:    cloneFloat(u.AllTime),
	}
}

func CloneSnapshots(in []MonitorSnapshot) []MonitorSnapshot {
	if in == nil {
		return nil
	}
	out := make([]MonitorSnapshot, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// CacheEntry is one complete result of a real upstream fetch.
type CacheEntry struct {
	Monitors  []MonitorSnapshot `json:"monitors"`
	FetchedAt time.Time         `json:"fetchedAt"`
}

func (c CacheEntry) Clone() CacheEntry {
	return CacheEntry{Monitors: CloneSnapshots(c.Monitors), FetchedAt: c.FetchedAt}
}
