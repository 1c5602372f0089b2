// Package propagation turns the TLE entry of a named body into its
// sub-satellite point at a given time.
package propagation

import (
	"errors"
	"time"
)

var (
	// ErrNoDataset is returned before the first TLE dataset has loaded.
	ErrNoDataset = errors.New("no TLE dataset loaded")

	// ErrUnknownBody is returned when the dataset has no entry for the body.
	ErrUnknownBody = errors.New("body not found in TLE dataset")

	// ErrInvalidElements is returned when a body's TLE lines cannot seed SGP4.
	ErrInvalidElements = errors.New("invalid orbital elements")

	// ErrStaleElements is returned when the requested time is further from
	// the TLE epoch than Config.MaxElementAge.
	ErrStaleElements = errors.New("orbital elements too far from epoch")

	// ErrPropagation is returned when SGP4 produces an unusable position.
	ErrPropagation = errors.New("sgp4 propagation failed")
)

// Config holds sampler configuration loaded from environment variables.
type Config struct {
	// MaxElementAge bounds |t - epoch|. Zero disables the check.
	MaxElementAge time.Duration

	// RegistrySize is the number of per-body samplers kept by a Registry.
	RegistrySize int
}
