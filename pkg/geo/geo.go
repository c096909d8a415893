// Package geo provides the geodesic primitives used throughout HeatQuest:
// great-circle distance, degree/meter conversion, bounding-box construction,
// and Web Mercator (EPSG:3857) projection for raster alignment.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	// EarthRadiusM is the mean Earth radius used for haversine distances.
	EarthRadiusM = 6371000.0

	// MetersPerDegree is the approximate ground length of one degree of
	// latitude.  Cell sizing uses this constant for both axes; at city scale
	// the resulting longitudinal stretch is accepted in exchange for square
	// degree-space cells.
	MetersPerDegree = 111000.0

	// mercatorRadius is the WGS84 semi-major axis used by EPSG:3857.
	mercatorRadius = 6378137.0
)

// MetersToDegrees converts a ground distance to degrees using the fixed
// city-scale approximation.
func MetersToDegrees(m float64) float64 {
	return m / MetersPerDegree
}

// Haversine returns the great-circle distance in meters between two WGS84
// coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const deg2rad = math.Pi / 180.0
	phi1 := lat1 * deg2rad
	phi2 := lat2 * deg2rad
	dPhi := (lat2 - lat1) * deg2rad
	dLambda := (lon2 - lon1) * deg2rad

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusM * c
}

// BoundFromRadius returns the bounding box covering a circle of radiusM meters
// around (lat, lon).  The longitudinal half-width is corrected by cos(lat) so
// the box stays approximately square on the ground.
func BoundFromRadius(lat, lon, radiusM float64) orb.Bound {
	latOffset := radiusM / MetersPerDegree
	lonOffset := radiusM / (MetersPerDegree * math.Cos(lat*math.Pi/180.0))
	return orb.Bound{
		Min: orb.Point{lon - lonOffset, lat - latOffset},
		Max: orb.Point{lon + lonOffset, lat + latOffset},
	}
}

// ToWebMercator projects a WGS84 point into EPSG:3857 meters.
func ToWebMercator(p orb.Point) orb.Point {
	x := mercatorRadius * p[0] * math.Pi / 180.0
	y := mercatorRadius * math.Log(math.Tan(math.Pi/4.0+p[1]*math.Pi/360.0))
	return orb.Point{x, y}
}

// FromWebMercator unprojects an EPSG:3857 point back to WGS84 degrees.
func FromWebMercator(p orb.Point) orb.Point {
	lon := p[0] / mercatorRadius * 180.0 / math.Pi
	lat := (2.0*math.Atan(math.Exp(p[1]/mercatorRadius)) - math.Pi/2.0) * 180.0 / math.Pi
	return orb.Point{lon, lat}
}

// BoundToWebMercator projects a WGS84 bound into EPSG:3857.
func BoundToWebMercator(b orb.Bound) orb.Bound {
	return orb.Bound{Min: ToWebMercator(b.Min), Max: ToWebMercator(b.Max)}
}
