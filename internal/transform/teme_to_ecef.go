// Package transform turns SGP4 output into the sub-satellite point shown on the
// dashboard: TEME (True Equator Mean Equinox) is rotated into ECEF (Earth-Centered
// Earth-Fixed) by GMST, and ECEF is projected onto the WGS-84 ellipsoid.
//
// The TEME -> ECEF step uses GMST only (TEME -> PEF ~ ECEF). Polar motion and the
// equation of the equinoxes are ignored, which is well below chart resolution.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"
	"time"
)

// PositionTEME is a satellite position in the TEME frame, in km.
type PositionTEME struct {
	X, Y, Z float64
}

// PositionECEF is a satellite position in the ECEF frame, in meters.
type PositionECEF struct {
	X, Y, Z float64
}

// Magnitude returns the distance from Earth's center in km.
func (p PositionTEME) Magnitude() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// TEMEToECEF rotates a TEME position (km) into ECEF (m) at the given UTC time.
func TEMEToECEF(teme PositionTEME, t time.Time) PositionECEF {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST applies r_ECEF = R3(θ) * r_TEME for a precomputed GMST
// angle θ in radians.
func TEMEToECEFWithGMST(teme PositionTEME, gmst float64) PositionECEF {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	return PositionECEF{
		X: (teme.X*cosG + teme.Y*sinG) * 1000.0,
		Y: (-teme.X*sinG + teme.Y*cosG) * 1000.0,
		Z: teme.Z * 1000.0,
	}
}

// ValidateECEF reports whether pos is finite and between 6200 km and
// 50000 km from Earth's center. SGP4 drifting out of that shell means the
// elements no longer describe a bound orbit.
func ValidateECEF(pos PositionECEF) bool {
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) {
		return false
	}
	if math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return false
	}

	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)

	const minRadius = 6200.0 * 1000.0
	const maxRadius = 50000.0 * 1000.0

	return mag >= minRadius && mag <= maxRadius
}
