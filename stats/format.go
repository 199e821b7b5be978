package stats

import (
	"math"
	"strconv"
	"strings"
)

// FormatDuration renders seconds with the two most significant units, e.g.
// "1d 2h", "3h 4m", "5m 6s" or "7s".
func FormatDuration(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return "0s"
	}

	total := int64(seconds)
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	secs := total % 60

	var parts []string
	unit := func(v int64, suffix string) string { return strconv.FormatInt(v, 10) + suffix }
	switch {
	case days > 0:
		parts = append(parts, unit(days, "d"))
		if hours > 0 {
			parts = append(parts, unit(hours, "h"))
		}
	case hours > 0:
		parts = append(parts, unit(hours, "h"))
		if minutes > 0 {
			parts = append(parts, unit(minutes, "m"))
		}
	case minutes > 0:
		parts = append(parts, unit(minutes, "m"))
		if secs > 0 {
			parts = append(parts, unit(secs, "s"))
		}
	default:
		parts = append(parts, unit(secs, "s"))
	}
	return strings.Join(parts, " ")
}
