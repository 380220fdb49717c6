// Package geo works with coordinates: it converts the Lambert-93 projected
// coordinates found in IDFM exports to WGS84, measures great-circle
// distances, and geocodes free-form addresses through the national BAN API.
package geo

import "math"

// Lambert-93 (EPSG:2154) projection constants for the RGF93 datum on the
// GRS80 ellipsoid, as published by IGN in NT/G 71.
const (
	lambertN  = 0.7256077650532670 // projection exponent
	lambertC  = 11754255.426096    // projection constant, meters
	lambertXs = 700000.0           // false easting, meters
	lambertYs = 12655612.049876    // false northing, meters
	lambertE  = 0.0818191910428158 // GRS80 first eccentricity

	lambertLon0 = 3.0 * math.Pi / 180.0 // central meridian, 3°E
)

// LambertToWGS84 converts EPSG:2154 easting/northing to a WGS84 latitude and
// longitude in degrees.
func LambertToWGS84(x, y float64) (lat, lon float64) {
	dx := x - lambertXs
	dy := y - lambertYs

	r := math.Hypot(dx, dy)
	gamma := math.Atan2(dx, -dy)

	lonRad := lambertLon0 + gamma/lambertN
	isoLat := -math.Log(r/lambertC) / lambertN
	latRad := latitudeFromIsometric(isoLat)

	return latRad * 180.0 / math.Pi, lonRad * 180.0 / math.Pi
}

// latitudeFromIsometric inverts the isometric latitude by fixed-point
// iteration (IGN ALG0002). Convergence is better than 1e-12 rad well within
// the iteration cap for any latitude in mainland France.
func latitudeFromIsometric(iso float64) float64 {
	expIso := math.Exp(iso)
	lat := 2*math.Atan(expIso) - math.Pi/2
	for range 12 {
		es := lambertE * math.Sin(lat)
		next := 2*math.Atan(expIso*math.Pow((1+es)/(1-es), lambertE/2)) - math.Pi/2
		if math.Abs(next-lat) < 1e-12 {
			return next
		}
		lat = next
	}
	return lat
}
