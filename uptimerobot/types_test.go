package uptimerobot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawTimestamp_Unmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want RawTimestamp
	}{
		{"seconds", `1718400000`, "1718400000"},
		{"millis", `1718400000000`, "1718400000000"},
		{"float", `1718400000.0`, "1718400000"},
		{"string", `"2024-06-14 21:30:00"`, "2024-06-14 21:30:00"},
		{"null", `null`, ""},
		{"bool", `true`, ""},
		{"object", `{"bad":1}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got RawTimestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResponse_BadDatetimeKeepsBatch(t *testing.T) {
	body := `{"stat":"ok","monitors":[
		{"id":1,"logs":[{"type":1,"datetime":1773100800,"duration":60},{"type":2,"datetime":{"bad":1}}]},
		{"id":2}
	]}`
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.Len(t, resp.Monitors, 2)

	events := resp.Monitors[0].RawEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "1773100800", events[0].Timestamp)
	assert.Empty(t, events[1].Timestamp)
}

func TestNumber_Unmarshal(t *testing.T) {
	var v struct {
		A Number `json:"a"`
		B Number `json:"b"`
		C Number `json:"c"`
		D Number `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 1.5, "b": "99.9", "c": null, "d": "n/a"}`), &v))

	assert.Equal(t, Number{Value: 1.5, Valid: true}, v.A)
	assert.Equal(t, Number{Value: 99.9, Valid: true}, v.B)
	assert.False(t, v.C.Valid)
	assert.False(t, v.D.Valid)
	assert.Nil(t, v.D.Ptr())

	for _, in := range []string{`"NaN"`, `"Inf"`, `"-Infinity"`, `"+Inf"`} {
		var n Number
		require.NoError(t, json.Unmarshal([]byte(in), &n))
		assert.False(t, n.Valid, in)
	}
}

func TestParseCustomRatios(t *testing.T) {
	t.Run("three segments", func(t *testing.T) {
		r := ParseCustomRatios("99.900-99.500-98.000")
		require.NotNil(t, r[0])
		require.NotNil(t, r[1])
		require.NotNil(t, r[2])
		assert.InDelta(t, 99.9, *r[0], 1e-9)
		assert.InDelta(t, 99.5, *r[1], 1e-9)
		assert.InDelta(t, 98.0, *r[2], 1e-9)
	})

	t.Run("short", func(t *testing.T) {
		r := ParseCustomRatios("100.000-99.000")
		assert.NotNil(t, r[0])
		assert.NotNil(t, r[1])
		assert.Nil(t, r[2])
	})

	t.Run("invalid segment", func(t *testing.T) {
		r := ParseCustomRatios("abc-99.000-")
		assert.Nil(t, r[0])
		assert.NotNil(t, r[1])
		assert.Nil(t, r[2])
	})

	t.Run("non-finite segments", func(t *testing.T) {
		r := ParseCustomRatios("NaN-99.1-Inf")
		assert.Nil(t, r[0])
		require.NotNil(t, r[1])
		assert.InDelta(t, 99.1, *r[1], 1e-9)
		assert.Nil(t, r[2])
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, [3]*float64{}, ParseCustomRatios(""))
	})
}

func TestMonitor_CreatedAtUnknown(t *testing.T) {
	assert.True(t, Monitor{}.CreatedAt().IsZero())
	assert.True(t, Monitor{CreateDatetime: "0"}.CreatedAt().IsZero())
	assert.True(t, Monitor{CreateDatetime: "garbage"}.CreatedAt().IsZero())
}

func TestMonitor_RawResponseTimesSkipsInvalid(t *testing.T) {
	m := Monitor{ResponseTimes: []ResponseTime{
		{Datetime: "1718400000", Value: Number{Value: 100, Valid: true}},
		{Datetime: "1718400060"},
	}}
	got := m.RawResponseTimes()
	require.Len(t, got, 1)
	assert.Equal(t, 100, got[0].Value)
}
