package stats

import (
	"strconv"
	"time"

	"uptime-status/model"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func int64p(v int64) *int64 { return &v }

func unixStr(t time.Time) string { return strconv.FormatInt(t.Unix(), 10) }

func ev(typ model.EventType, at time.Time, dur *int64) model.NormalizedEvent {
	return model.NormalizedEvent{Type: typ, At: at, DurationSeconds: dur}
}

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 6, day, hour, minute, 0, 0, time.UTC)
}
