package domain

import (
	"errors"
	"math"
	"time"
)

// ErrNonPositiveDistance signals a zero or negative distance reaching
// the pricing step. That is an upstream validation gap, not a free
// delivery.
var ErrNonPositiveDistance = errors.New("distance must be positive to price a delivery")

// PriceQuote is the immutable result of pricing a delivery distance
type PriceQuote struct {
	DistanceMiles float64        `bson:"distanceMiles" json:"distanceMiles"`
	RatePerMile   float64        `bson:"ratePerMile" json:"ratePerMile"`
	Amount        float64        `bson:"amount" json:"amount"`
	Method        DistanceMethod `bson:"method" json:"method"`
	QuotedAt      time.Time      `bson:"quotedAt" json:"quotedAt"`
}

// NewPriceQuote prices a road distance at the configured rate.
// The amount is rounded half-up to cents.
func NewPriceQuote(distance DistanceResult, ratePerMile float64) (PriceQuote, error) {
	if distance.RoadMiles <= 0 {
		return PriceQuote{}, ErrNonPositiveDistance
	}

	return PriceQuote{
		DistanceMiles: distance.RoadMiles,
		RatePerMile:   ratePerMile,
		Amount:        roundCurrency(distance.RoadMiles * ratePerMile),
		Method:        distance.Method,
		QuotedAt:      time.Now().UTC(),
	}, nil
}

// roundCurrency rounds half-up to two decimal places
func roundCurrency(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
