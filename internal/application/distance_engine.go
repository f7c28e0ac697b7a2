package application

import (
	"context"
	"time"

	"github.com/delivery-platform/delivery-rate-service/internal/domain"
	"github.com/delivery-platform/delivery-rate-service/pkg/logging"
	"github.com/delivery-platform/delivery-rate-service/pkg/metrics"
	"github.com/delivery-platform/delivery-rate-service/pkg/resilience"
)

// RoutingTimeout bounds a single external routing call. There is no
// retry; a slow provider falls back to the multiplier estimate.
const RoutingTimeout = 3 * time.Second

// DistanceEngine computes the road distance between two coordinates.
// It never fails: when external routing is disabled, unavailable or
// errors, it degrades to the straight-line distance scaled by the
// configured road multiplier.
type DistanceEngine struct {
	routing domain.RoutingProvider
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewDistanceEngine creates a DistanceEngine. routing, breaker and
// metrics may be nil; the engine then always uses the multiplier
// estimate.
func NewDistanceEngine(
	routing domain.RoutingProvider,
	breaker *resilience.CircuitBreaker,
	m *metrics.Metrics,
	logger *logging.Logger,
) *DistanceEngine {
	return &DistanceEngine{
		routing: routing,
		breaker: breaker,
		metrics: m,
		logger:  logger,
	}
}

// RoadDistance resolves the road distance from origin to destination
// under the given config snapshot.
func (e *DistanceEngine) RoadDistance(ctx context.Context, origin, destination domain.Coordinate, cfg domain.RateConfig) domain.DistanceResult {
	straight := domain.Haversine(origin, destination)

	if !cfg.RoutingEnabled() || e.routing == nil {
		result := domain.DistanceResult{
			StraightLineMiles: straight,
			RoadMiles:         domain.RoadFromMultiplier(straight, cfg.RoadMultiplier),
			Method:            domain.DistanceMethodMultiplier,
		}
		e.observe(result)
		return result
	}

	routeCtx, cancel := context.WithTimeout(ctx, RoutingTimeout)
	defer cancel()

	miles, err := e.routeDistance(routeCtx, origin, destination, cfg.ExternalRoutingAPIKey)
	if err != nil {
		e.logger.WithError(err).Warn("External routing failed, using multiplier estimate",
			"origin", origin.String(),
			"destination", destination.String(),
		)
		if e.metrics != nil {
			e.metrics.RecordDistanceFallback("routing_error")
		}

		result := domain.DistanceResult{
			StraightLineMiles: straight,
			RoadMiles:         domain.RoadFromMultiplier(straight, cfg.RoadMultiplier),
			Method:            domain.DistanceMethodFallback,
		}
		e.observe(result)
		return result
	}

	// A road route can never be shorter than the great-circle path;
	// a provider response below it is treated as imprecision.
	if miles < straight {
		miles = straight
	}

	result := domain.DistanceResult{
		StraightLineMiles: straight,
		RoadMiles:         miles,
		Method:            domain.DistanceMethodExternalAPI,
	}
	e.observe(result)
	return result
}

func (e *DistanceEngine) routeDistance(ctx context.Context, origin, destination domain.Coordinate, apiKey string) (float64, error) {
	if e.breaker == nil {
		return e.routing.RouteDistance(ctx, origin, destination, apiKey)
	}

	result, err := e.breaker.Execute(ctx, func() (interface{}, error) {
		return e.routing.RouteDistance(ctx, origin, destination, apiKey)
	})
	if err != nil {
		return 0, err
	}

	miles, ok := result.(float64)
	if !ok {
		return 0, domain.NewRoutingError("BAD_RESULT", "routing provider returned unexpected result type", false, nil)
	}
	return miles, nil
}

func (e *DistanceEngine) observe(result domain.DistanceResult) {
	if e.metrics != nil {
		e.metrics.ObserveDistance(string(result.Method), result.RoadMiles)
	}
}
