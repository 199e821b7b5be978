package stats

import (
	"math/rand"
	"sort"
	"time"

	"uptime-status/model"
)

// NormalizeResponseTimes parses sample timestamps, drops unparseable or
// expired samples and sorts the rest ascending.
func NormalizeResponseTimes(raw []model.RawResponseTime, now time.Time) []model.ResponseTime {
	cutoff := RetentionCutoff(now)
	out := make([]model.ResponseTime, 0, len(raw))
	for _, r := range raw {
		at, err := ParseTimestamp(r.Timestamp)
		if err != nil || at.Before(cutoff) {
			continue
		}
		out = append(out, model.ResponseTime{At: at, Value: r.Value})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// AverageResponseTime is the mean sample value, or nil without samples.
func AverageResponseTime(samples []model.ResponseTime) *float64 {
	if len(samples) == 0 {
		return nil
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s.Value)
	}
	avg := sum / float64(len(samples))
	return &avg
}

// PlaceholderSeries synthesizes a chart series around a known average: two
// points per hour over the given hours, each within 20% of the average.
func PlaceholderSeries(average float64, hours int, now time.Time, rng *rand.Rand) []model.ResponseTime {
	if hours <= 0 {
		hours = 24
	}
	points := hours * 2
	out := make([]model.ResponseTime, 0, points+1)
	for i := points; i >= 0; i-- {
		variance := average * 0.2
		offset := (rng.Float64() - 0.5) * 2 * variance
		value := int(average + offset + 0.5)
		if value < 0 {
			value = 0
		}
		out = append(out, model.ResponseTime{
			At:    now.Add(-time.Duration(i) * 30 * time.Minute).UTC(),
			Value: value,
		})
	}
	return out
}
