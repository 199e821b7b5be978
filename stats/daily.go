package stats

import (
	"time"

	"uptime-status/model"
)

// FullyPausedSeconds is the pause total at which a day is shown as paused
// outright instead of as a reduced uptime.
const FullyPausedSeconds = 86000

// DailyOptions configures one DailyStatuses run.
type DailyOptions struct {
	Now           time.Time
	CreatedAt     time.Time // zero means unknown; no day is then marked as no data
	CurrentStatus model.MonitorStatus
	WindowDays    int
	Location      *time.Location
}

type dayBucket struct {
	start, end  time.Time
	noData      bool
	downSecs    int64
	pauseSecs   int64
	downTimes   int
	pauseTimes  int
	hasPauseEv  bool
	hasResumeEv bool
}

// DailyStatuses spreads a monitor's normalized events over one record per
// calendar day, oldest first, ending with today. Events must be sorted and
// have their durations filled, as NormalizeLogs returns them.
func DailyStatuses(events []model.NormalizedEvent, opts DailyOptions) []model.DailyStatus {
	if opts.WindowDays <= 0 {
		return []model.DailyStatus{}
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now

	days := makeDays(now, opts.WindowDays, loc)
	if !opts.CreatedAt.IsZero() {
		createdDay := DayStart(opts.CreatedAt, loc)
		for i := range days {
			if days[i].start.Before(createdDay) {
				days[i].noData = true
			}
		}
	}

	for _, e := range events {
		switch e.Type {
		case model.EventDown, model.EventPaused:
			distribute(days, e, now)
		case model.EventUp, model.EventStarted:
			markResume(days, e)
		default:
			// 未知类型跳过
		}
	}

	today := &days[len(days)-1]
	if opts.CurrentStatus == model.StatusPaused && !today.noData && !today.hasResumeEv && !today.hasPauseEv {
		// The pause began before today and is still open.
		if open := int64(now.Sub(today.start) / time.Second); open > today.pauseSecs {
			today.pauseSecs = open
		}
	}

	out := make([]model.DailyStatus, len(days))
	for i, d := range days {
		out[i] = finishDay(d, now, i == len(days)-1)
	}
	return out
}

func makeDays(now time.Time, window int, loc *time.Location) []dayBucket {
	todayStart := DayStart(now, loc)
	days := make([]dayBucket, window)
	for i := 0; i < window; i++ {
		start := todayStart.AddDate(0, 0, -(window - 1 - i))
		days[i] = dayBucket{start: start, end: start.AddDate(0, 0, 1)}
	}
	return days
}

func distribute(days []dayBucket, e model.NormalizedEvent, now time.Time) {
	start := e.At
	end := e.End(now)
	if end.After(now) {
		end = now
	}

	for i := range days {
		d := &days[i]
		if !d.start.After(start) && start.Before(d.end) {
			if d.noData {
				continue
			}
			if e.Type == model.EventDown {
				d.downTimes++
			} else {
				d.pauseTimes++
				d.hasPauseEv = true
			}
		}
		if d.noData || !end.After(d.start) || !start.Before(d.end) {
			continue
		}

		from := maxTime(start, d.start)
		to := minTime(end, d.end)
		secs := int64(to.Sub(from) / time.Second)
		if secs <= 0 {
			continue
		}
		if e.Type == model.EventDown {
			d.downSecs += secs
		} else {
			d.pauseSecs += secs
		}
	}
}

func markResume(days []dayBucket, e model.NormalizedEvent) {
	for i := range days {
		if !days[i].start.After(e.At) && e.At.Before(days[i].end) {
			days[i].hasResumeEv = true
			return
		}
	}
}

func finishDay(d dayBucket, now time.Time, isToday bool) model.DailyStatus {
	ds := model.DailyStatus{
		Date:  d.start,
		Down:  model.EventTally{Times: d.downTimes, Duration: d.downSecs},
		Pause: model.EventTally{Times: d.pauseTimes, Duration: d.pauseSecs},
	}
	if d.noData {
		ds.Uptime = model.NoDataUptime
		ds.Down = model.EventTally{}
		ds.Pause = model.EventTally{}
		ds.State = model.DayNoData
		return ds
	}

	total := int64(d.end.Sub(d.start) / time.Second)
	if isToday {
		if elapsed := int64(now.Sub(d.start) / time.Second); elapsed < total {
			total = elapsed
		}
	}

	switch {
	case total <= 0:
		ds.Uptime = 100
	case d.downSecs > 0:
		if d.downSecs >= total {
			ds.Uptime = 0
		} else {
			ds.Uptime = float64(total-d.downSecs) / float64(total) * 100
		}
	case d.pauseSecs > 0:
		if d.pauseSecs >= FullyPausedSeconds {
			ds.FullyPaused = true
			ds.Uptime = 0
		} else {
			ds.Uptime = float64(total-d.pauseSecs) / float64(total) * 100
			if ds.Uptime < 0 {
				ds.Uptime = 0
			}
		}
	default:
		ds.Uptime = 100
	}

	ds.State = dayState(ds)
	return ds
}

func dayState(ds model.DailyStatus) model.DayState {
	switch {
	case ds.Uptime < 0:
		return model.DayNoData
	case ds.Pause.Duration > 0 || ds.Pause.Times > 0:
		return model.DayPaused
	case ds.Down.Times > 0 || ds.Down.Duration > 0:
		if ds.Uptime < 90 {
			return model.DayError
		}
		return model.DayWarn
	default:
		return model.DayNormal
	}
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
