package stats

import (
	"time"

	"uptime-status/model"
)

// Period windows reported for every monitor, in the upstream's positional order.
var PeriodWindows = [3]int{7, 30, 90}

// PeriodUptime returns the percentage of [max(createdAt, now-windowDays), now]
// not covered by down or paused events. Paused time counts against uptime so
// long pauses stay visible. An empty period is fully up.
func PeriodUptime(events []model.NormalizedEvent, createdAt time.Time, windowDays int, now time.Time) float64 {
	start := now.Add(-time.Duration(windowDays) * 24 * time.Hour)
	if !createdAt.IsZero() && createdAt.After(start) {
		start = createdAt
	}
	total := now.Sub(start).Seconds()
	if total <= 0 {
		return 100
	}

	var down, paused float64
	for _, e := range events {
		var bucket *float64
		switch e.Type {
		case model.EventDown:
			bucket = &down
		case model.EventPaused:
			bucket = &paused
		case model.EventUp, model.EventStarted:
			continue
		default:
			// 未知类型不计入
			continue
		}

		from := maxTime(e.At, start)
		to := minTime(e.End(now), now)
		if to.After(from) {
			*bucket += to.Sub(from).Seconds()
		}
	}

	pct := (total - down - paused) / total * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// PeriodUptimes fills the 7/30/90 day ratios.
func PeriodUptimes(events []model.NormalizedEvent, createdAt, now time.Time) model.UptimeRatio {
	var vals [3]float64
	for i, days := range PeriodWindows {
		vals[i] = PeriodUptime(events, createdAt, days, now)
	}
	return model.UptimeRatio{
		Last7Days:  &vals[0],
		Last30Days: &vals[1],
		Last90Days: &vals[2],
	}
}
