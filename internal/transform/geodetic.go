package transform

import "math"

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// Geodetic is a sub-satellite point relative to the WGS-84 ellipsoid.
type Geodetic struct {
	Longitude float64 // degrees, (-180, 180]
	Latitude  float64 // degrees, [-90, 90]
	Altitude  float64 // km above the ellipsoid
}

// ECEFToGeodetic converts an ECEF position (meters) to geodetic coordinates
// using the iterative Bowring method. Converges in 2-3 iterations for Earth orbits.
func ECEFToGeodetic(pos PositionECEF) Geodetic {
	x, y, z := pos.X, pos.Y, pos.Z
	lon := math.Atan2(y, x)

	p := math.Sqrt(x*x + y*y)

	// Initial estimate using Bowring's method.
	lat := math.Atan2(z, p*(1-wgs84E2))

	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(z+wgs84E2*N*sinLat, p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - N
	} else {
		alt = math.Abs(z)/math.Abs(sinLat) - N*(1-wgs84E2)
	}

	return Geodetic{
		Longitude: NormalizeLongitude(lon * 180.0 / math.Pi),
		Latitude:  lat * 180.0 / math.Pi,
		Altitude:  alt / 1000.0,
	}
}

// NormalizeLongitude wraps a longitude in degrees into (-180, 180].
func NormalizeLongitude(deg float64) float64 {
	deg = math.Mod(deg, 360.0)
	if deg > 180.0 {
		deg -= 360.0
	} else if deg <= -180.0 {
		deg += 360.0
	}
	return deg
}

// Valid reports whether g is a usable sub-satellite point: finite, in range,
// and not below the ellipsoid.
func (g Geodetic) Valid() bool {
	for _, v := range []float64{g.Longitude, g.Latitude, g.Altitude} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return g.Longitude > -180 && g.Longitude <= 180 &&
		g.Latitude >= -90 && g.Latitude <= 90 &&
		g.Altitude >= 0
}
