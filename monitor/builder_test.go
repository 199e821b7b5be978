package monitor

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"
	"time"

	"uptime-status/model"
	"uptime-status/uptimerobot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildOpts() BuildOptions {
	return BuildOptions{
		Now:        testNow,
		Location:   time.UTC,
		WindowDays: 90,
		Rand:       rand.New(rand.NewSource(7)),
	}
}

func TestBuildSnapshot_Identity(t *testing.T) {
	snap, rejected := BuildSnapshot(sampleMonitor(), buildOpts())
	assert.Empty(t, rejected)

	assert.Equal(t, 1, snap.ID)
	assert.Equal(t, "API", snap.Name)
	assert.Equal(t, "HTTP", snap.Type)
	assert.Equal(t, 1, snap.TypeCode)
	assert.Equal(t, model.StatusUp, snap.Status)
	assert.Equal(t, 2, snap.StatusCode)
	require.NotNil(t, snap.CreatedAt)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), *snap.CreatedAt)
}

func TestBuildSnapshot_LogsAndUptime(t *testing.T) {
	snap, _ := BuildSnapshot(sampleMonitor(), buildOpts())

	require.Len(t, snap.Logs, 2)
	assert.Equal(t, model.EventDown, snap.Logs[0].Type)
	assert.Equal(t, 1, snap.Incidents.DownCount)
	assert.Equal(t, int64(600), snap.Incidents.TotalDowntimeSeconds)

	require.NotNil(t, snap.UptimeRatio.Last7Days)
	assert.InDelta(t, 99.9, *snap.UptimeRatio.Last7Days, 1e-9)
	assert.InDelta(t, 99.0, *snap.UptimeRatio.Last90Days, 1e-9)
	assert.Nil(t, snap.UptimeRatio.AllTime)

	require.NotNil(t, snap.ComputedUptime.Last7Days)
	assert.InDelta(t, (7*86400.0-600)/(7*86400.0)*100, *snap.ComputedUptime.Last7Days, 1e-9)

	require.Len(t, snap.DailyStatus, 90)
	day := snap.DailyStatus[88]
	assert.Equal(t, time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), day.Date)
	assert.Equal(t, model.EventTally{Times: 1, Duration: 600}, day.Down)
	assert.InDelta(t, (86400.0-600)/86400*100, day.Uptime, 1e-9)
	assert.Equal(t, model.DayWarn, day.State)
}

func TestBuildSnapshot_ResponseTimeSources(t *testing.T) {
	t.Run("upstream samples", func(t *testing.T) {
		m := sampleMonitor()
		m.ResponseTimes = []uptimerobot.ResponseTime{
			{Datetime: "1718445600", Value: uptimerobot.Number{Value: 150, Valid: true}},
			{Datetime: "1718442000", Value: uptimerobot.Number{Value: 90, Valid: true}},
		}
		snap, _ := BuildSnapshot(m, buildOpts())

		assert.Equal(t, model.SourceUpstream, snap.ResponseTimeSource)
		require.Len(t, snap.ResponseTimes, 2)
		require.NotNil(t, snap.LastResponseTime)
		assert.Equal(t, 150, *snap.LastResponseTime)
		require.NotNil(t, snap.LastCheckedAt)
		assert.Equal(t, time.Unix(1718445600, 0).UTC(), *snap.LastCheckedAt)
		require.NotNil(t, snap.AverageResponseTime)
		assert.Equal(t, 120.0, *snap.AverageResponseTime)
	})

	t.Run("mean when upstream has no average", func(t *testing.T) {
		m := sampleMonitor()
		m.AverageResponseTime = uptimerobot.Number{}
		m.ResponseTimes = []uptimerobot.ResponseTime{
			{Datetime: "1718445600", Value: uptimerobot.Number{Value: 150, Valid: true}},
			{Datetime: "1718442000", Value: uptimerobot.Number{Value: 90, Valid: true}},
		}
		snap, _ := BuildSnapshot(m, buildOpts())
		require.NotNil(t, snap.AverageResponseTime)
		assert.Equal(t, 120.0, *snap.AverageResponseTime)
	})

	t.Run("placeholder from average", func(t *testing.T) {
		snap, _ := BuildSnapshot(sampleMonitor(), buildOpts())

		assert.Equal(t, model.SourcePlaceholder, snap.ResponseTimeSource)
		assert.Len(t, snap.ResponseTimes, PlaceholderHours*2+1)
		assert.Nil(t, snap.LastResponseTime)
		for _, rt := range snap.ResponseTimes {
			assert.GreaterOrEqual(t, rt.Value, 96)
			assert.LessOrEqual(t, rt.Value, 144)
		}
	})

	t.Run("nothing", func(t *testing.T) {
		m := sampleMonitor()
		m.AverageResponseTime = uptimerobot.Number{}
		snap, _ := BuildSnapshot(m, buildOpts())

		assert.Equal(t, model.SourceNone, snap.ResponseTimeSource)
		assert.NotNil(t, snap.ResponseTimes)
		assert.Empty(t, snap.ResponseTimes)
		assert.Nil(t, snap.AverageResponseTime)
	})
}

func TestBuildSnapshot_RatioFallback(t *testing.T) {
	m := sampleMonitor()
	m.CustomUptimeRatio = "99.9"
	m.AllTimeUptimeRatio = uptimerobot.Number{Value: 98.5, Valid: true}
	snap, _ := BuildSnapshot(m, buildOpts())

	assert.InDelta(t, 99.9, *snap.UptimeRatio.Last7Days, 1e-9)
	require.NotNil(t, snap.UptimeRatio.Last30Days)
	assert.Equal(t, *snap.ComputedUptime.Last30Days, *snap.UptimeRatio.Last30Days)
	assert.NotSame(t, snap.ComputedUptime.Last30Days, snap.UptimeRatio.Last30Days)
	require.NotNil(t, snap.UptimeRatio.AllTime)
	assert.Equal(t, 98.5, *snap.UptimeRatio.AllTime)
}

func TestBuildSnapshot_RejectedEntries(t *testing.T) {
	m := sampleMonitor()
	m.Logs = append(m.Logs,
		uptimerobot.Log{Type: 1, Datetime: "yesterday"},
		uptimerobot.Log{Type: 5, Datetime: "1718400000"},
	)
	snap, rejected := BuildSnapshot(m, buildOpts())
	assert.Len(t, rejected, 2)
	assert.Len(t, snap.Logs, 2)
}

func TestBuildSnapshot_PausedMonitor(t *testing.T) {
	m := sampleMonitor()
	m.Status = 0
	m.Logs = nil
	snap, _ := BuildSnapshot(m, buildOpts())

	assert.Equal(t, model.StatusPaused, snap.Status)
	today := snap.DailyStatus[len(snap.DailyStatus)-1]
	assert.Equal(t, int64(12*3600), today.Pause.Duration)
	assert.Equal(t, model.DayPaused, today.State)
}

func TestApplyProbe(t *testing.T) {
	snap := model.MonitorSnapshot{ResponseTimeSource: model.SourceNone, ResponseTimes: []model.ResponseTime{}}

	applyProbe(&snap, ProbeResult{Success: false, ResponseTime: 30000})
	assert.Equal(t, model.SourceNone, snap.ResponseTimeSource)

	applyProbe(&snap, ProbeResult{Success: true, ResponseTime: 87, StatusCode: 200, Timestamp: testNow})
	assert.Equal(t, model.SourceProbe, snap.ResponseTimeSource)
	require.Len(t, snap.ResponseTimes, 1)
	assert.Equal(t, 87, snap.ResponseTimes[0].Value)
	assert.Equal(t, 87, *snap.LastResponseTime)
	assert.Equal(t, 87.0, *snap.AverageResponseTime)
	assert.Equal(t, testNow, *snap.LastCheckedAt)
}

func TestBuildSnapshot_NonFiniteUpstreamValues(t *testing.T) {
	var m uptimerobot.Monitor
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 5, "friendly_name": "Odd", "type": 1, "status": 2,
		"custom_uptime_ratio": "NaN-99.1-Inf",
		"average_response_time": "Infinity"
	}`), &m))

	snap, _ := BuildSnapshot(m, buildOpts())
	assert.Nil(t, snap.AverageResponseTime)
	for _, v := range []*float64{snap.UptimeRatio.Last7Days, snap.UptimeRatio.Last30Days, snap.UptimeRatio.Last90Days} {
		require.NotNil(t, v)
		assert.False(t, math.IsNaN(*v) || math.IsInf(*v, 0))
	}
	assert.InDelta(t, 99.1, *snap.UptimeRatio.Last30Days, 1e-9)

	_, err := json.Marshal(model.CacheEntry{Monitors: []model.MonitorSnapshot{snap}, FetchedAt: testNow})
	assert.NoError(t, err)
}
