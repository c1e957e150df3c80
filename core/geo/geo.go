// Package geo provides great-circle distance computation for dispatch
// decisions. All distances are expressed in kilometers.
package geo

import "math"

// EarthRadiusKm is the mean radius of the Earth in kilometers.
const EarthRadiusKm = 6371.0

// Distance returns the haversine distance in kilometers between two
// coordinates given in decimal degrees. Coordinates outside the valid
// latitude/longitude ranges are accepted but yield undefined results;
// callers are expected to validate input beforehand.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
