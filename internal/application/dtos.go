package application

import "time"

// DeliveryLineDTO represents a delivery line in responses
type DeliveryLineDTO struct {
	LineID        string         `json:"lineId"`
	OrderID       string         `json:"orderId"`
	CustomerName  string         `json:"customerName"`
	Address       AddressDTO     `json:"address"`
	Latitude      *float64       `json:"latitude,omitempty"`
	Longitude     *float64       `json:"longitude,omitempty"`
	DistanceMiles float64        `json:"distanceMiles"`
	Quote         *PriceQuoteDTO `json:"quote,omitempty"`
	PriceLocked   bool           `json:"priceLocked"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	QuotedAt      *time.Time     `json:"quotedAt,omitempty"`
}

// AddressDTO represents a delivery address
type AddressDTO struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// PriceQuoteDTO represents a computed price quote
type PriceQuoteDTO struct {
	DistanceMiles float64   `json:"distanceMiles"`
	RatePerMile   float64   `json:"ratePerMile"`
	Amount        float64   `json:"amount"`
	Method        string    `json:"method"`
	QuotedAt      time.Time `json:"quotedAt"`
}

// QuoteResultDTO is the outcome of a quote or recalculate operation.
// Recomputed is false when a locked quote was returned as-is.
type QuoteResultDTO struct {
	Line       *DeliveryLineDTO `json:"line"`
	Quote      PriceQuoteDTO    `json:"quote"`
	Recomputed bool             `json:"recomputed"`
}

// AvailabilityDTO is the outcome of a self-service availability check.
// It never carries an error; an unresolvable address is just an
// unavailable verdict.
type AvailabilityDTO struct {
	Available       bool     `json:"available"`
	Reason          string   `json:"reason"`
	DistanceMiles   *float64 `json:"distanceMiles,omitempty"`
	EstimatedAmount *float64 `json:"estimatedAmount,omitempty"`
}
