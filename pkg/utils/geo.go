package utils

import "math"

const (
	// EarthRadiusKm is the mean Earth radius used for great-circle math
	EarthRadiusKm = 6371.0
	// KmPerNauticalMile converts between kilometres and nautical miles
	KmPerNauticalMile = 1.852
)

func toRadians(deg float64) float64 { return deg * math.Pi / 180.0 }
func toDegrees(rad float64) float64 { return rad * 180.0 / math.Pi }

// Haversine returns the great-circle distance in kilometres between two points
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := toRadians(lat1)
	lat2Rad := toRadians(lat2)
	dLat := lat2Rad - lat1Rad
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// Bearing returns the initial great-circle bearing from point 1 to point 2,
// normalized to [0, 360)
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := toRadians(lat1)
	lat2Rad := toRadians(lat2)
	dLon := toRadians(lon2 - lon1)

	y := math.Sin(dLon) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) -
		math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(dLon)

	b := math.Mod(toDegrees(math.Atan2(y, x))+360, 360)
	if b >= 360 {
		b = 0
	}
	return b
}

// KmhToKnots converts kilometres per hour to knots
func KmhToKnots(kmh float64) float64 {
	return kmh / KmPerNauticalMile
}

// KnotsToKmh converts knots to kilometres per hour
func KnotsToKmh(knots float64) float64 {
	return knots * KmPerNauticalMile
}

// AverageSpeedKnots returns distance/duration in knots, or 0 for a
// non-positive duration
func AverageSpeedKnots(distanceKm, durationHours float64) float64 {
	if durationHours <= 0 {
		return 0
	}
	return KmhToKnots(distanceKm / durationHours)
}
