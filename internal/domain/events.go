package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// DeliveryLineCreatedEvent is published when a delivery line is created
type DeliveryLineCreatedEvent struct {
	LineID    string    `json:"lineId"`
	OrderID   string    `json:"orderId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (e *DeliveryLineCreatedEvent) EventType() string     { return "delivery.line-created" }
func (e *DeliveryLineCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// QuoteComputedEvent is published on the first successful quote of a line
type QuoteComputedEvent struct {
	LineID        string    `json:"lineId"`
	OrderID       string    `json:"orderId"`
	DistanceMiles float64   `json:"distanceMiles"`
	RatePerMile   float64   `json:"ratePerMile"`
	Amount        float64   `json:"amount"`
	Method        string    `json:"method"`
	QuotedAt      time.Time `json:"quotedAt"`
}

func (e *QuoteComputedEvent) EventType() string     { return "delivery.quote-computed" }
func (e *QuoteComputedEvent) OccurredAt() time.Time { return e.QuotedAt }

// QuoteRecalculatedEvent is published when a locked quote is explicitly recomputed
type QuoteRecalculatedEvent struct {
	LineID        string    `json:"lineId"`
	OrderID       string    `json:"orderId"`
	DistanceMiles float64   `json:"distanceMiles"`
	RatePerMile   float64   `json:"ratePerMile"`
	Amount        float64   `json:"amount"`
	Method        string    `json:"method"`
	QuotedAt      time.Time `json:"quotedAt"`
}

func (e *QuoteRecalculatedEvent) EventType() string     { return "delivery.quote-recalculated" }
func (e *QuoteRecalculatedEvent) OccurredAt() time.Time { return e.QuotedAt }
