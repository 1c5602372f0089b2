// Package chart builds plotly.js figure JSON for the telemetry page.
package chart

import "time"

// TimeLayout is how timestamps are written into traces; plotly parses it as a
// date axis value.
const TimeLayout = "2006-01-02 15:04:05"

const (
	ModeLinesMarkers = "lines+markers"
	TypeScatter      = "scatter"

	AltitudeName = "Altitude"
	TrackName    = "Longitude vs Latitude"
)

// Trace is one plotly scatter trace.
type Trace struct {
	X     []any     `json:"x"`
	Y     []float64 `json:"y"`
	Text  []string  `json:"text,omitempty"`
	Name  string    `json:"name"`
	Mode  string    `json:"mode"`
	Type  string    `json:"type"`
	XAxis string    `json:"xaxis,omitempty"`
	YAxis string    `json:"yaxis,omitempty"`
}

// NewAltitudeTrace plots altitude (km) against sample time.
func NewAltitudeTrace(times []time.Time, altitudes []float64) Trace {
	x := make([]any, len(times))
	for i, t := range times {
		x[i] = FormatTime(t)
	}
	return Trace{
		X:     x,
		Y:     nonNil(altitudes),
		Name:  AltitudeName,
		Mode:  ModeLinesMarkers,
		Type:  TypeScatter,
		XAxis: "x",
		YAxis: "y",
	}
}

// NewTrackTrace plots the ground track, latitude against longitude, with the
// sample time as hover text.
func NewTrackTrace(longitudes, latitudes []float64, times []time.Time) Trace {
	x := make([]any, len(longitudes))
	for i, lon := range longitudes {
		x[i] = lon
	}
	text := make([]string, len(times))
	for i, t := range times {
		text[i] = FormatTime(t)
	}
	return Trace{
		X:     x,
		Y:     nonNil(latitudes),
		Text:  text,
		Name:  TrackName,
		Mode:  ModeLinesMarkers,
		Type:  TypeScatter,
		XAxis: "x2",
		YAxis: "y2",
	}
}

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}
