package stats

import (
	"sort"
	"time"

	"uptime-status/model"
)

// RetentionDays is how far back logs and response-time samples are kept.
const RetentionDays = 90

// Rejected describes one raw entry dropped during normalization.
type Rejected struct {
	Index int
	Raw   model.RawEvent
	Err   error
}

type LogResult struct {
	Events    []model.NormalizedEvent
	Incidents model.IncidentSummary
	Rejected  []Rejected
}

// RetentionCutoff is the oldest instant still kept at now.
func RetentionCutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -RetentionDays)
}

// NormalizeLogs parses, filters, orders and completes a monitor's raw log.
// Entries with a bad timestamp or an unknown type are returned in Rejected and
// otherwise ignored. Down and paused events without a positive duration get
// one reconstructed from the next up/started event, or from now when the
// incident is still open.
func NormalizeLogs(raw []model.RawEvent, now time.Time) LogResult {
	var res LogResult
	if len(raw) == 0 {
		res.Events = []model.NormalizedEvent{}
		return res
	}

	cutoff := RetentionCutoff(now)
	events := make([]model.NormalizedEvent, 0, len(raw))
	for i, r := range raw {
		typ, err := model.ParseEventType(r.Type)
		if err != nil {
			res.Rejected = append(res.Rejected, Rejected{Index: i, Raw: r, Err: err})
			continue
		}
		at, err := ParseTimestamp(r.Timestamp)
		if err != nil {
			res.Rejected = append(res.Rejected, Rejected{Index: i, Raw: r, Err: err})
			continue
		}
		if !at.After(cutoff) {
			continue
		}
		ev := model.NormalizedEvent{Type: typ, At: at}
		if r.Duration != nil {
			d := *r.Duration
			ev.DurationSeconds = &d
		}
		events = append(events, ev)
	}

	SortEvents(events)
	fillDurations(events, now)

	res.Events = events
	res.Incidents = Summarize(events)
	return res
}

// tieRank orders events sharing an instant: a resolution happens before a new
// outage, an outage before a pause, and a pause before the monitor is started.
// Unknown types sort last.
func tieRank(t model.EventType) int {
	switch t {
	case model.EventUp:
		return 0
	case model.EventDown:
		return 1
	case model.EventPaused:
		return 2
	case model.EventStarted:
		return 3
	default:
		return 4
	}
}

// SortEvents orders events ascending by instant with the tie rules above.
func SortEvents(events []model.NormalizedEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].At.Equal(events[j].At) {
			return events[i].At.Before(events[j].At)
		}
		return tieRank(events[i].Type) < tieRank(events[j].Type)
	})
}

func fillDurations(events []model.NormalizedEvent, now time.Time) {
	for i := range events {
		e := &events[i]
		if !e.Type.IsIncident() {
			continue
		}
		if e.DurationSeconds != nil && *e.DurationSeconds > 0 {
			continue
		}

		end := now
		for j := i + 1; j < len(events); j++ {
			if events[j].Type.IsResolution() {
				end = events[j].At
				break
			}
		}
		d := int64(end.Sub(e.At) / time.Second)
		if d < 0 {
			d = 0
		}
		e.DurationSeconds = &d
	}
}

// Summarize counts incidents and totals their durations by type.
func Summarize(events []model.NormalizedEvent) model.IncidentSummary {
	var s model.IncidentSummary
	for _, e := range events {
		switch e.Type {
		case model.EventDown:
			s.Total++
			s.DownCount++
			if e.DurationSeconds != nil {
				s.TotalDowntimeSeconds += *e.DurationSeconds
			}
		case model.EventPaused:
			s.Total++
			s.PauseCount++
			if e.DurationSeconds != nil {
				s.TotalPausedSeconds += *e.DurationSeconds
			}
		case model.EventUp, model.EventStarted:
		default:
			// 未知类型不计入
		}
	}
	return s
}
