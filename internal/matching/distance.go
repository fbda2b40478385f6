// internal/matching/distance.go
package matching

import "math"

// EarthRadiusMiles is the spherical earth radius used for all distances.
const EarthRadiusMiles = 3959.0

// Distance tiers, evaluated in ascending order.
const (
	veryCloseMiles  = 5.0
	closeMiles      = 10.0
	reasonableMiles = 15.0
)

// Haversine returns the great-circle distance between a and b in miles.
func Haversine(a, b Coordinate) float64 {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Latitude))*math.Cos(toRadians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return EarthRadiusMiles * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// locationOf treats a caregiver without a recorded location as sitting at (0,0).
func locationOf(c Candidate) Coordinate {
	if c.Location == nil {
		return Coordinate{}
	}
	return *c.Location
}

func distanceScore(miles float64) (int, string) {
	switch {
	case miles <= veryCloseMiles:
		return 20, ReasonVeryClose
	case miles <= closeMiles:
		return 15, ReasonClose
	case miles <= reasonableMiles:
		return 10, ReasonReasonableDistance
	default:
		return 0, ""
	}
}
