package telemetry

import (
	"fmt"

	"github.com/golang/geo/s2"
)

const earthMeanRadiusKm = 6371.0088

// Snapshot is the current position plus the readout strings shown on the page.
type Snapshot struct {
	Sample
	Body          string `json:"body"`
	LongitudeText string `json:"longitude_text"`
	LatitudeText  string `json:"latitude_text"`
	AltitudeText  string `json:"altitude_text"`

	// GroundSpeed is the speed of the sub-satellite point in km/s, or zero
	// when the previous second could not be sampled.
	GroundSpeed float64 `json:"ground_speed_kms,omitempty"`
}

func newSnapshot(body string, s Sample) Snapshot {
	return Snapshot{
		Sample:        s,
		Body:          body,
		LongitudeText: fmt.Sprintf("%.2f", s.Longitude),
		LatitudeText:  fmt.Sprintf("%.2f", s.Latitude),
		AltitudeText:  fmt.Sprintf("%.2f", s.Altitude),
	}
}

// groundSpeed returns the great-circle speed in km/s between two samples.
func groundSpeed(prev, cur Sample) float64 {
	dt := cur.Time.Sub(prev.Time).Seconds()
	if dt <= 0 {
		return 0
	}
	a := s2.LatLngFromDegrees(prev.Latitude, prev.Longitude)
	b := s2.LatLngFromDegrees(cur.Latitude, cur.Longitude)
	return a.Distance(b).Radians() * earthMeanRadiusKm / dt
}
