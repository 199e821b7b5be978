package model

import (
	"fmt"
	"time"
)

// EventType is the closed set of upstream log codes this service understands.
type EventType int

const (
	EventDown    EventType = 1
	EventUp      EventType = 2
	EventStarted EventType = 98
	EventPaused  EventType = 99
)

// ParseEventType rejects codes outside the known set so a new upstream code is
// dropped loudly instead of being aggregated as something else.
func ParseEventType(code int) (EventType, error) {
	switch EventType(code) {
	case EventDown, EventUp, EventStarted, EventPaused:
		return EventType(code), nil
	default:
		return 0, fmt.Errorf("unknown event type %d", code)
	}
}

func (t EventType) String() string {
	switch t {
	case EventDown:
		return "down"
	case EventUp:
		return "up"
	case EventStarted:
		return "started"
	case EventPaused:
		return "paused"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// IsIncident reports whether the event opens a down or paused period.
func (t EventType) IsIncident() bool {
	return t == EventDown || t == EventPaused
}

// IsResolution reports whether the event closes an open incident.
func (t EventType) IsResolution() bool {
	return t == EventUp || t == EventStarted
}

// RawEvent is one upstream log entry before parsing. Timestamp keeps the
// upstream encoding as text: unix seconds, unix millis or a calendar string.
type RawEvent struct {
	Type      int
	Timestamp string
	Duration  *int64
}

type NormalizedEvent struct {
	Type            EventType `json:"type"`
	At              time.Time `json:"datetime"`
	DurationSeconds *int64    `json:"duration"`
}

// End returns the instant the event stops counting, using now for open events.
func (e NormalizedEvent) End(now time.Time) time.Time {
	if e.DurationSeconds == nil {
		return now
	}
	return e.At.Add(time.Duration(*e.DurationSeconds) * time.Second)
}

type IncidentSummary struct {
	Total                int   `json:"total"`
	DownCount            int   `json:"downCount"`
	PauseCount           int   `json:"pauseCount"`
	TotalDowntimeSeconds int64 `json:"totalDowntimeSeconds"`
	TotalPausedSeconds   int64 `json:"totalPausedSeconds"`
}
