package uptimerobot

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"uptime-status/model"
	"uptime-status/stats"
)

// Response is the getMonitors v2 envelope.
type Response struct {
	Stat     string    `json:"stat"`
	Monitors []Monitor `json:"monitors"`
	Error    *APIError `json:"error,omitempty"`
}

type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Monitor is one upstream monitor as returned by getMonitors (snake_case).
type Monitor struct {
	ID                  int            `json:"id"`
	FriendlyName        string         `json:"friendly_name"`
	URL                 string         `json:"url"`
	Type                int            `json:"type"`
	Status              int            `json:"status"`
	Interval            int            `json:"interval"`
	CreateDatetime      RawTimestamp   `json:"create_datetime"`
	AverageResponseTime Number         `json:"average_response_time"`
	CustomUptimeRatio   string         `json:"custom_uptime_ratio"`
	AllTimeUptimeRatio  Number         `json:"all_time_uptime_ratio"`
	ResponseTimes       []ResponseTime `json:"response_times"`
	Logs                []Log          `json:"logs"`
}

type ResponseTime struct {
	Datetime RawTimestamp `json:"datetime"`
	Value    Number       `json:"value"`
}

type Log struct {
	Type     int          `json:"type"`
	Datetime RawTimestamp `json:"datetime"`
	Duration Number       `json:"duration"`
}

// RawTimestamp keeps an upstream datetime as text. The API sends unix seconds
// as numbers, but strings and millisecond values show up too; parsing is left
// to stats.ParseTimestamp.
type RawTimestamp string

func (r *RawTimestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RawTimestamp(s)
		return nil
	}
	n := json.Number(data)
	if i, err := n.Int64(); err == nil {
		*r = RawTimestamp(strconv.FormatInt(i, 10))
		return nil
	}
	f, err := n.Float64()
	if err != nil || !finite(f) {
		// 单条记录的时间无法识别时留空，由归一化阶段丢弃
		*r = ""
		return nil
	}
	*r = RawTimestamp(strconv.FormatInt(int64(f), 10))
	return nil
}

// finite rejects NaN and ±Inf, which strconv accepts but JSON cannot carry.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Number accepts a JSON number, a numeric string or null. Valid is false for
// null, empty strings and anything that does not parse.
type Number struct {
	Value float64
	Valid bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !finite(v) {
		return nil
	}
	*n = Number{Value: v, Valid: true}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Ptr returns nil for an invalid number.
func (n Number) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// RawEvents converts the monitor's log into normalizer input.
func (m Monitor) RawEvents() []model.RawEvent {
	out := make([]model.RawEvent, 0, len(m.Logs))
	for _, l := range m.Logs {
		ev := model.RawEvent{Type: l.Type, Timestamp: string(l.Datetime)}
		if l.Duration.Valid {
			d := int64(l.Duration.Value)
			ev.Duration = &d
		}
		out = append(out, ev)
	}
	return out
}

func (m Monitor) RawResponseTimes() []model.RawResponseTime {
	out := make([]model.RawResponseTime, 0, len(m.ResponseTimes))
	for _, rt := range m.ResponseTimes {
		if !rt.Value.Valid {
			continue
		}
		out = append(out, model.RawResponseTime{Timestamp: string(rt.Datetime), Value: int(rt.Value.Value)})
	}
	return out
}

// CreatedAt returns the zero time when the creation date is missing or zero.
func (m Monitor) CreatedAt() time.Time {
	if m.CreateDatetime == "" || m.CreateDatetime == "0" {
		return time.Time{}
	}
	t, err := stats.ParseTimestamp(string(m.CreateDatetime))
	if err != nil {
		return time.Time{}
	}
	return t
}

// ParseCustomRatios splits custom_uptime_ratio ("99.9-98.5-97.0"). Segment
// order is the order of custom_uptime_ratios in the request: 7, 30 and 90
// days. Missing or malformed segments are nil.
func ParseCustomRatios(s string) [3]*float64 {
	var out [3]*float64
	if strings.TrimSpace(s) == "" {
		return out
	}
	segments := strings.Split(s, "-")
	for i := 0; i < len(out) && i < len(segments); i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(segments[i]), 64)
		if err != nil || !finite(v) {
			continue
		}
		out[i] = &v
	}
	return out
}
