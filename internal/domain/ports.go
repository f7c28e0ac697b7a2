package domain

import (
	"context"
	"fmt"
	"strings"
)

// RoutingProvider is the port for external road-distance providers.
// Implementations translate the two coordinates into a provider
// request and the response back into miles.
type RoutingProvider interface {
	// RouteDistance returns the driving distance in miles between
	// origin and destination. Any transport, auth, quota or payload
	// problem is returned as a *RoutingError.
	RouteDistance(ctx context.Context, origin, destination Coordinate, apiKey string) (float64, error)
}

// RoutingError represents a failure of the external routing provider.
// The engine never surfaces these to callers; they only select the
// fallback path and are logged for operational visibility.
type RoutingError struct {
	Code        string
	Message     string
	Retryable   bool
	OriginalErr error
}

func (e *RoutingError) Error() string {
	if e.OriginalErr != nil {
		return e.Message + ": " + e.OriginalErr.Error()
	}
	return e.Message
}

func (e *RoutingError) Unwrap() error {
	return e.OriginalErr
}

// NewRoutingError creates a new RoutingError
func NewRoutingError(code, message string, retryable bool, originalErr error) *RoutingError {
	return &RoutingError{
		Code:        code,
		Message:     message,
		Retryable:   retryable,
		OriginalErr: originalErr,
	}
}

// Address is a postal address for geocoding. All five fields are
// required for a resolution attempt.
type Address struct {
	Street     string `bson:"street" json:"street"`
	City       string `bson:"city" json:"city"`
	State      string `bson:"state" json:"state"`
	PostalCode string `bson:"postalCode" json:"postalCode"`
	Country    string `bson:"country" json:"country"`
}

// Validate reports the missing fields of a partial address
func (a Address) Validate() error {
	var missing []string
	if strings.TrimSpace(a.Street) == "" {
		missing = append(missing, "street")
	}
	if strings.TrimSpace(a.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(a.State) == "" {
		missing = append(missing, "state")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		missing = append(missing, "postal code")
	}
	if strings.TrimSpace(a.Country) == "" {
		missing = append(missing, "country")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: address is incomplete, missing %s", ErrMissingCoordinate, strings.Join(missing, ", "))
	}
	return nil
}

func (a Address) String() string {
	parts := []string{a.Street, a.City, a.State, a.PostalCode, a.Country}
	var nonEmpty []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

// GeocodingError wraps provider-side geocoding failures. Address is
// the formatted query string the provider was asked to resolve.
type GeocodingError struct {
	Address     string
	Message     string
	OriginalErr error
}

func (e *GeocodingError) Error() string {
	if e.OriginalErr != nil {
		return e.Message + ": " + e.OriginalErr.Error()
	}
	return e.Message
}

func (e *GeocodingError) Unwrap() error {
	return e.OriginalErr
}

// Geocoder is the port for resolving a free-text address to
// coordinates
type Geocoder interface {
	// Resolve converts an address into coordinates. The address must
	// pass Address.Validate first. Failures are *GeocodingError.
	Resolve(ctx context.Context, address Address) (Coordinate, error)
}

// DeliveryLineRepository persists DeliveryLine aggregates
type DeliveryLineRepository interface {
	Save(ctx context.Context, line *DeliveryLine) error
	FindByID(ctx context.Context, lineID string) (*DeliveryLine, error)
	FindByOrderID(ctx context.Context, orderID string) ([]*DeliveryLine, error)
	Delete(ctx context.Context, lineID string) error
}
