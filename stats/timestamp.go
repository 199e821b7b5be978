package stats

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

// MillisThreshold separates unix seconds from unix milliseconds. Integers
// below it are seconds (good until year 33658), integers at or above it are
// milliseconds (anything from 2001-09-09 onward). It is a heuristic: a
// millisecond value before September 2001 is read as seconds.
const MillisThreshold int64 = 1_000_000_000_000

var ErrEmptyTimestamp = errors.New("empty timestamp")

var calendarParser = &now.Config{
	WeekStartDay: time.Monday,
	TimeLocation: time.UTC,
	TimeFormats: []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05Z07:00",
		"2006/01/02 15:04:05",
		"2006/01/02",
	},
}

// ParseTimestamp reads an upstream timestamp in any of its encodings and
// returns it in UTC. Calendar strings without a zone are read as UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrEmptyTimestamp
	}

	if isDigits(s) {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q: %w", raw, err)
		}
		if v < MillisThreshold {
			return time.Unix(v, 0).UTC(), nil
		}
		return time.UnixMilli(v).UTC(), nil
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}

	// now.Parse happily fills a bare clock time with today's date; only hand
	// it strings that start with a year.
	if !startsWithYear(s) {
		return time.Time{}, fmt.Errorf("timestamp %q: unrecognized format", raw)
	}
	t, err := calendarParser.Parse(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", raw, err)
	}
	return t.UTC(), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func startsWithYear(s string) bool {
	return len(s) >= 8 && isDigits(s[:4]) && (s[4] == '-' || s[4] == '/')
}

// DayStart returns local midnight of the day containing t.
func DayStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return now.With(t.In(loc)).BeginningOfDay()
}
