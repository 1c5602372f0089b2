package telemetry

import (
	"time"

	"github.com/star/orbitdash/internal/chart"
)

// Series is a trailing window of samples, most recent first, with the two
// chart traces built from it.
type Series struct {
	Samples  []Sample    `json:"-"`
	Altitude chart.Trace `json:"altitude"`
	Track    chart.Trace `json:"track"`
}

// NewSeries builds the altitude and ground-track traces for samples, keeping
// their order.
func NewSeries(samples []Sample) Series {
	if samples == nil {
		samples = []Sample{}
	}
	times := make([]time.Time, len(samples))
	lons := make([]float64, len(samples))
	lats := make([]float64, len(samples))
	alts := make([]float64, len(samples))
	for i, s := range samples {
		times[i] = s.Time
		lons[i] = s.Longitude
		lats[i] = s.Latitude
		alts[i] = s.Altitude
	}
	return Series{
		Samples:  samples,
		Altitude: chart.NewAltitudeTrace(times, alts),
		Track:    chart.NewTrackTrace(lons, lats, times),
	}
}

// Figure stacks the altitude trace above the ground track.
func (s Series) Figure() chart.Figure {
	return chart.NewFigure(s.Altitude, s.Track)
}
