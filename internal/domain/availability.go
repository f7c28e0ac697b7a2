package domain

// QuoteContext distinguishes who is asking for a delivery quote
type QuoteContext string

const (
	// ContextManual is a staff-entered order or ad-hoc quote. Failures
	// must surface as descriptive errors.
	ContextManual QuoteContext = "manual"

	// ContextSelfService is website checkout. Failures never surface;
	// the delivery option is simply not offered.
	ContextSelfService QuoteContext = "selfService"
)

// AvailabilityReason explains an availability verdict
type AvailabilityReason string

const (
	ReasonWithinLimits        AvailabilityReason = "withinLimits"
	ReasonDistanceExceeded    AvailabilityReason = "distanceExceeded"
	ReasonQuantityExceeded    AvailabilityReason = "quantityExceeded"
	ReasonAddressUnresolvable AvailabilityReason = "addressUnresolvable"
)

// AvailabilityVerdict is the outcome of an availability evaluation
type AvailabilityVerdict struct {
	Available bool               `json:"available"`
	Reason    AvailabilityReason `json:"reason"`
}

// AvailabilityPolicy applies the per-context distance and quantity
// limits. Boundary semantics are deliberate and asymmetric: a distance
// exactly at the cap is deliverable, a quantity exactly at the cap is
// not.
type AvailabilityPolicy struct{}

// Evaluate decides whether distance-based delivery is offered.
// physicalQuantity counts stocked goods only; service items are
// excluded by the caller.
func (AvailabilityPolicy) Evaluate(ctx QuoteContext, roadMiles float64, physicalQuantity int, cfg RateConfig) AvailabilityVerdict {
	switch ctx {
	case ContextSelfService:
		if physicalQuantity >= cfg.MaxQuantitySelfService {
			return AvailabilityVerdict{Available: false, Reason: ReasonQuantityExceeded}
		}
		if roadMiles > cfg.MaxDistanceSelfService {
			return AvailabilityVerdict{Available: false, Reason: ReasonDistanceExceeded}
		}
	default:
		if roadMiles > cfg.MaxDistanceManual {
			return AvailabilityVerdict{Available: false, Reason: ReasonDistanceExceeded}
		}
	}

	return AvailabilityVerdict{Available: true, Reason: ReasonWithinLimits}
}

// Unavailable builds a negative verdict with the given reason
func Unavailable(reason AvailabilityReason) AvailabilityVerdict {
	return AvailabilityVerdict{Available: false, Reason: reason}
}
