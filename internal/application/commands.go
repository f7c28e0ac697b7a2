package application

import (
	"github.com/delivery-platform/delivery-rate-service/internal/domain"
)

// CreateLineCommand represents the command to create a new delivery line
type CreateLineCommand struct {
	LineID       string
	OrderID      string
	CustomerName string
	Address      domain.Address
	Latitude     *float64
	Longitude    *float64
}

// QuoteLineCommand represents the command to compute a price quote for a line.
// When the line already carries a locked quote, the stored quote is
// returned unchanged.
type QuoteLineCommand struct {
	LineID string
}

// RecalculateLineCommand represents the command to recompute a quote,
// replacing a locked one
type RecalculateLineCommand struct {
	LineID string
}

// RecalculateOrderCommand represents the command to recompute quotes
// for every delivery line of an order
type RecalculateOrderCommand struct {
	OrderID string
}

// CheckAvailabilityCommand represents the self-service availability check.
// Either a coordinate pair or an address must be supplied.
type CheckAvailabilityCommand struct {
	Latitude  *float64
	Longitude *float64
	Address   *domain.Address
	Items     []domain.CartItem
}

// GetLineQuery represents the query to get a delivery line by ID
type GetLineQuery struct {
	LineID string
}

// GetByOrderQuery represents the query to get all delivery lines of an order
type GetByOrderQuery struct {
	OrderID string
}
