// Package telemetry samples a body's position on demand and shapes the
// readout and chart payloads the dashboard renders each tick.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/star/orbitdash/internal/transform"
)

var (
	// ErrNoData marks every failure to obtain a position from the Sampler.
	ErrNoData = errors.New("no data available")

	// ErrInvalidConfig is returned for a negative count or non-positive step.
	ErrInvalidConfig = errors.New("invalid telemetry configuration")
)

// Sampler returns the sub-satellite point of a body at t.
type Sampler interface {
	Position(ctx context.Context, t time.Time) (transform.Geodetic, error)
}

// SampleError reports a Sampler failure at a given time. It matches ErrNoData
// and the underlying Sampler error with errors.Is.
type SampleError struct {
	Time time.Time
	Err  error
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("sampling position at %s: %v", e.Time.UTC().Format(time.RFC3339), e.Err)
}

func (e *SampleError) Unwrap() []error {
	return []error{ErrNoData, e.Err}
}

// Sample is the geodetic position of the body at Time. Longitude and latitude
// are degrees, altitude is km.
type Sample struct {
	Time      time.Time `json:"time"`
	Longitude float64   `json:"longitude"`
	Latitude  float64   `json:"latitude"`
	Altitude  float64   `json:"altitude"`
}

func sampleAt(ctx context.Context, s Sampler, t time.Time) (Sample, error) {
	geo, err := s.Position(ctx, t)
	if err != nil {
		return Sample{}, &SampleError{Time: t, Err: err}
	}
	return Sample{
		Time:      t,
		Longitude: geo.Longitude,
		Latitude:  geo.Latitude,
		Altitude:  geo.Altitude,
	}, nil
}
