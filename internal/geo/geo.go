// Package geo contains pure geographic computation helpers.
package geo

import "math"

const earthRadiusM = 6371000.0

// DistanceMeters returns the haversine great-circle distance in meters between
// two points given in decimal degrees. Total for any finite inputs; callers
// validate coordinate ranges before use.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}
