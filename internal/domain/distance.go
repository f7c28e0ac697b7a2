package domain

import "math"

// EarthRadiusMiles is the mean Earth radius used by the haversine
// formula. All distances in this service are in statute miles.
const EarthRadiusMiles = 3959.0

// DistanceMethod identifies how a road distance estimate was produced
type DistanceMethod string

const (
	// DistanceMethodMultiplier is the deterministic estimate:
	// great-circle distance scaled by the configured road multiplier.
	DistanceMethodMultiplier DistanceMethod = "multiplier"

	// DistanceMethodExternalAPI is a live routing-provider distance.
	DistanceMethodExternalAPI DistanceMethod = "externalApi"

	// DistanceMethodFallback is the multiplier estimate used after a
	// routing-provider failure.
	DistanceMethodFallback DistanceMethod = "fallback-after-error"
)

// DistanceResult holds both distance figures for a computed route.
// RoadMiles is never less than StraightLineMiles.
type DistanceResult struct {
	StraightLineMiles float64        `json:"straightLineMiles"`
	RoadMiles         float64        `json:"roadMiles"`
	Method            DistanceMethod `json:"method"`
}

// Haversine computes the great-circle distance in miles between two
// coordinates. The intermediate term is clamped to [0,1] so that
// floating-point overshoot at identical or antipodal points cannot
// push math.Sqrt/Atan2 out of domain.
func Haversine(from, to Coordinate) float64 {
	lat1 := toRadians(from.Latitude())
	lat2 := toRadians(to.Latitude())
	dLat := toRadians(to.Latitude() - from.Latitude())
	dLon := toRadians(to.Longitude() - from.Longitude())

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	if a < 0 {
		a = 0
	}
	if a > 1 {
		a = 1
	}

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMiles * c
}

// RoadFromMultiplier scales a great-circle distance by the road
// multiplier to approximate actual driving distance.
func RoadFromMultiplier(straightLineMiles, multiplier float64) float64 {
	return straightLineMiles * multiplier
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
