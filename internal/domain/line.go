package domain

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Aggregate errors
var (
	ErrPriceLocked     = errors.New("delivery price is locked")
	ErrMissingCustomer = errors.New("delivery line has no customer")
)

// DeliveryLine is the aggregate root for one delivery charge on an
// order. Its central invariant is the price lock: once a quote is
// applied, address edits and other recomputation triggers must not
// silently change the price. Only the explicit recalculate action may.
type DeliveryLine struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	LineID        string             `bson:"lineId"`
	OrderID       string             `bson:"orderId"`
	CustomerName  string             `bson:"customerName"`
	Address       Address            `bson:"address"`
	Latitude      *float64           `bson:"latitude,omitempty"`
	Longitude     *float64           `bson:"longitude,omitempty"`
	DistanceMiles float64            `bson:"distanceMiles"`
	Quote         *PriceQuote        `bson:"quote,omitempty"`
	PriceLocked   bool               `bson:"priceLocked"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
	QuotedAt      *time.Time         `bson:"quotedAt,omitempty"`
	DomainEvents  []DomainEvent      `bson:"-"`
}

// NewDeliveryLine creates a new, unlocked DeliveryLine
func NewDeliveryLine(lineID, orderID, customerName string, address Address) *DeliveryLine {
	now := time.Now().UTC()
	l := &DeliveryLine{
		LineID:       lineID,
		OrderID:      orderID,
		CustomerName: customerName,
		Address:      address,
		PriceLocked:  false,
		CreatedAt:    now,
		UpdatedAt:    now,
		DomainEvents: make([]DomainEvent, 0),
	}

	l.AddDomainEvent(&DeliveryLineCreatedEvent{
		LineID:    lineID,
		OrderID:   orderID,
		CreatedAt: now,
	})

	return l
}

// Coordinate returns the stored customer coordinate, validating it
func (l *DeliveryLine) Coordinate() (Coordinate, error) {
	return CoordinateFromParts(l.Latitude, l.Longitude)
}

// SetCoordinate stores a resolved customer coordinate
func (l *DeliveryLine) SetCoordinate(coord Coordinate) {
	lat, lon := coord.Latitude(), coord.Longitude()
	l.Latitude = &lat
	l.Longitude = &lon
	l.UpdatedAt = time.Now().UTC()
}

// HasCoordinate reports whether both components are present
func (l *DeliveryLine) HasCoordinate() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// ApplyQuote applies a computed quote and locks the line. Returns
// ErrPriceLocked when a quote is already locked in; callers that want
// the stored quote should use it instead of recomputing.
func (l *DeliveryLine) ApplyQuote(quote PriceQuote) error {
	if l.PriceLocked {
		return ErrPriceLocked
	}
	l.applyQuote(quote)

	l.AddDomainEvent(&QuoteComputedEvent{
		LineID:        l.LineID,
		OrderID:       l.OrderID,
		DistanceMiles: quote.DistanceMiles,
		RatePerMile:   quote.RatePerMile,
		Amount:        quote.Amount,
		Method:        string(quote.Method),
		QuotedAt:      quote.QuotedAt,
	})

	return nil
}

// ForceApplyQuote replaces the stored quote regardless of the lock and
// re-locks the line. Only the explicit recalculate action uses this.
func (l *DeliveryLine) ForceApplyQuote(quote PriceQuote) {
	l.applyQuote(quote)

	l.AddDomainEvent(&QuoteRecalculatedEvent{
		LineID:        l.LineID,
		OrderID:       l.OrderID,
		DistanceMiles: quote.DistanceMiles,
		RatePerMile:   quote.RatePerMile,
		Amount:        quote.Amount,
		Method:        string(quote.Method),
		QuotedAt:      quote.QuotedAt,
	})
}

func (l *DeliveryLine) applyQuote(quote PriceQuote) {
	now := time.Now().UTC()
	l.Quote = &quote
	l.DistanceMiles = quote.DistanceMiles
	l.PriceLocked = true
	l.QuotedAt = &now
	l.UpdatedAt = now
}

// AddDomainEvent adds a domain event
func (l *DeliveryLine) AddDomainEvent(event DomainEvent) {
	l.DomainEvents = append(l.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (l *DeliveryLine) ClearDomainEvents() {
	l.DomainEvents = make([]DomainEvent, 0)
}

// GetDomainEvents returns all domain events
func (l *DeliveryLine) GetDomainEvents() []DomainEvent {
	return l.DomainEvents
}

// CartItem is one line of a self-service cart, as presented by the
// checkout layer
type CartItem struct {
	ProductName string  `json:"productName"`
	ProductType string  `json:"productType"`
	Quantity    float64 `json:"quantity"`
}

// IsPhysical reports whether the item counts toward the delivery
// quantity cap. Only stocked goods count; service items do not.
func (i CartItem) IsPhysical() bool {
	switch i.ProductType {
	case "product", "consu":
		return true
	}
	return false
}

// IsDeliveryProduct reports whether the item is the delivery charge
// itself: an active service product named "Delivery", compared
// case-insensitively.
func IsDeliveryProduct(name, productType string, active bool) bool {
	return active &&
		productType == "service" &&
		strings.EqualFold(strings.TrimSpace(name), "Delivery")
}

// PhysicalQuantity totals the physical units in a cart
func PhysicalQuantity(items []CartItem) int {
	total := 0.0
	for _, item := range items {
		if item.IsPhysical() {
			total += item.Quantity
		}
	}
	return int(total)
}
