package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/delivery-platform/delivery-rate-service/internal/domain"
	"github.com/delivery-platform/delivery-rate-service/pkg/errors"
	"github.com/delivery-platform/delivery-rate-service/pkg/logging"
	"github.com/delivery-platform/delivery-rate-service/pkg/metrics"
)

// EventPublisher publishes domain events to the message broker.
// Publishing is best effort; a failed publish never fails the request.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, event domain.DomainEvent) error
}

// RatingApplicationService handles quoting, recalculation and
// availability use cases for delivery lines.
type RatingApplicationService struct {
	repo      domain.DeliveryLineRepository
	settings  domain.SettingsProvider
	geocoder  domain.Geocoder
	engine    *DistanceEngine
	publisher EventPublisher
	policy    domain.AvailabilityPolicy
	metrics   *metrics.Metrics
	logger    *logging.Logger

	// Per-line serialization so concurrent quote requests cannot both
	// observe an unlocked line and write competing quotes.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRatingApplicationService creates a new RatingApplicationService.
// publisher and metrics may be nil.
func NewRatingApplicationService(
	repo domain.DeliveryLineRepository,
	settings domain.SettingsProvider,
	geocoder domain.Geocoder,
	engine *DistanceEngine,
	publisher EventPublisher,
	m *metrics.Metrics,
	logger *logging.Logger,
) *RatingApplicationService {
	return &RatingApplicationService{
		repo:      repo,
		settings:  settings,
		geocoder:  geocoder,
		engine:    engine,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

// CreateLine creates a new delivery line
func (s *RatingApplicationService) CreateLine(ctx context.Context, cmd CreateLineCommand) (*DeliveryLineDTO, error) {
	if cmd.CustomerName == "" {
		return nil, errors.ErrMissingCustomer()
	}

	line := domain.NewDeliveryLine(cmd.LineID, cmd.OrderID, cmd.CustomerName, cmd.Address)

	if cmd.Latitude != nil && cmd.Longitude != nil {
		coord, err := domain.CoordinateFromParts(cmd.Latitude, cmd.Longitude)
		if err != nil {
			return nil, s.coordinateError(err)
		}
		line.SetCoordinate(coord)
	}

	if err := s.repo.Save(ctx, line); err != nil {
		s.logger.WithError(err).Error("Failed to create delivery line", "lineId", cmd.LineID)
		return nil, fmt.Errorf("failed to create delivery line: %w", err)
	}

	s.publishEvents(ctx, line)

	s.logger.Info("Created delivery line", "lineId", cmd.LineID, "orderId", cmd.OrderID)
	return ToDeliveryLineDTO(line), nil
}

// GetLine retrieves a delivery line by ID
func (s *RatingApplicationService) GetLine(ctx context.Context, query GetLineQuery) (*DeliveryLineDTO, error) {
	line, err := s.repo.FindByID(ctx, query.LineID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get delivery line", "lineId", query.LineID)
		return nil, fmt.Errorf("failed to get delivery line: %w", err)
	}

	if line == nil {
		return nil, errors.ErrNotFoundWithID("delivery line", query.LineID)
	}

	return ToDeliveryLineDTO(line), nil
}

// GetLinesByOrder retrieves all delivery lines of an order
func (s *RatingApplicationService) GetLinesByOrder(ctx context.Context, query GetByOrderQuery) ([]*DeliveryLineDTO, error) {
	lines, err := s.repo.FindByOrderID(ctx, query.OrderID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get delivery lines", "orderId", query.OrderID)
		return nil, fmt.Errorf("failed to get delivery lines: %w", err)
	}

	dtos := make([]*DeliveryLineDTO, 0, len(lines))
	for _, line := range lines {
		dtos = append(dtos, ToDeliveryLineDTO(line))
	}
	return dtos, nil
}

// QuoteLine computes and locks a price quote for a line. A line that
// already carries a locked quote is returned unchanged: the stored
// price survives address edits and config changes until an explicit
// recalculate.
func (s *RatingApplicationService) QuoteLine(ctx context.Context, cmd QuoteLineCommand) (*QuoteResultDTO, error) {
	unlock := s.lockLine(cmd.LineID)
	defer unlock()

	line, err := s.repo.FindByID(ctx, cmd.LineID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get delivery line", "lineId", cmd.LineID)
		return nil, fmt.Errorf("failed to get delivery line: %w", err)
	}
	if line == nil {
		return nil, errors.ErrNotFoundWithID("delivery line", cmd.LineID)
	}

	if line.PriceLocked && line.Quote != nil {
		s.logger.Info("Quote already locked, returning stored price",
			"lineId", cmd.LineID, "amount", line.Quote.Amount)
		return &QuoteResultDTO{
			Line:       ToDeliveryLineDTO(line),
			Quote:      ToPriceQuoteDTO(*line.Quote),
			Recomputed: false,
		}, nil
	}

	quote, err := s.computeQuote(ctx, line)
	if err != nil {
		s.recordQuote("", false)
		return nil, err
	}

	if err := line.ApplyQuote(*quote); err != nil {
		// Lost a race with another writer; honor the stored price.
		if line.Quote != nil {
			return &QuoteResultDTO{
				Line:       ToDeliveryLineDTO(line),
				Quote:      ToPriceQuoteDTO(*line.Quote),
				Recomputed: false,
			}, nil
		}
		return nil, errors.ErrPriceLocked(cmd.LineID)
	}

	if err := s.repo.Save(ctx, line); err != nil {
		s.logger.WithError(err).Error("Failed to save delivery line", "lineId", cmd.LineID)
		return nil, fmt.Errorf("failed to save delivery line: %w", err)
	}

	s.publishEvents(ctx, line)
	s.recordQuote(string(quote.Method), true)

	s.logger.Info("Computed delivery quote",
		"lineId", cmd.LineID,
		"distanceMiles", quote.DistanceMiles,
		"amount", quote.Amount,
		"method", quote.Method,
	)

	return &QuoteResultDTO{
		Line:       ToDeliveryLineDTO(line),
		Quote:      ToPriceQuoteDTO(*quote),
		Recomputed: true,
	}, nil
}

// RecalculateLine recomputes a quote, replacing the stored one even
// when locked. The line ends up locked on the new price.
func (s *RatingApplicationService) RecalculateLine(ctx context.Context, cmd RecalculateLineCommand) (*QuoteResultDTO, error) {
	unlock := s.lockLine(cmd.LineID)
	defer unlock()

	line, err := s.repo.FindByID(ctx, cmd.LineID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get delivery line", "lineId", cmd.LineID)
		return nil, fmt.Errorf("failed to get delivery line: %w", err)
	}
	if line == nil {
		return nil, errors.ErrNotFoundWithID("delivery line", cmd.LineID)
	}

	quote, err := s.computeQuote(ctx, line)
	if err != nil {
		s.recordQuote("", false)
		return nil, err
	}

	line.ForceApplyQuote(*quote)

	if err := s.repo.Save(ctx, line); err != nil {
		s.logger.WithError(err).Error("Failed to save delivery line", "lineId", cmd.LineID)
		return nil, fmt.Errorf("failed to save delivery line: %w", err)
	}

	s.publishEvents(ctx, line)
	s.recordQuote(string(quote.Method), true)

	s.logger.Info("Recalculated delivery quote",
		"lineId", cmd.LineID,
		"distanceMiles", quote.DistanceMiles,
		"amount", quote.Amount,
		"method", quote.Method,
	)

	return &QuoteResultDTO{
		Line:       ToDeliveryLineDTO(line),
		Quote:      ToPriceQuoteDTO(*quote),
		Recomputed: true,
	}, nil
}

// RecalculateOrder force-recomputes every delivery line of an order.
// Lines that fail to recompute are skipped and logged; the rest still
// get fresh quotes.
func (s *RatingApplicationService) RecalculateOrder(ctx context.Context, cmd RecalculateOrderCommand) ([]*QuoteResultDTO, error) {
	lines, err := s.repo.FindByOrderID(ctx, cmd.OrderID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get delivery lines", "orderId", cmd.OrderID)
		return nil, fmt.Errorf("failed to get delivery lines: %w", err)
	}

	results := make([]*QuoteResultDTO, 0, len(lines))
	for _, line := range lines {
		result, err := s.RecalculateLine(ctx, RecalculateLineCommand{LineID: line.LineID})
		if err != nil {
			s.logger.WithError(err).Warn("Skipping line during order recalculation",
				"orderId", cmd.OrderID, "lineId", line.LineID)
			continue
		}
		results = append(results, result)
	}

	return results, nil
}

// CheckSelfServiceAvailability evaluates whether distance-based
// delivery can be offered at website checkout. It never returns a
// business error: any failure to resolve the destination collapses
// into an unavailable verdict so the storefront silently hides the
// option.
func (s *RatingApplicationService) CheckSelfServiceAvailability(ctx context.Context, cmd CheckAvailabilityCommand) *AvailabilityDTO {
	cfg, err := s.settings.GetRateConfig(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load rate config for availability check")
		return s.unavailable(domain.ReasonAddressUnresolvable)
	}

	coord, err := s.resolveDestination(ctx, cmd)
	if err != nil {
		s.logger.WithError(err).Info("Self-service destination unresolvable")
		return s.unavailable(domain.ReasonAddressUnresolvable)
	}

	quantity := domain.PhysicalQuantity(cmd.Items)
	distance := s.engine.RoadDistance(ctx, cfg.Origin(), coord, cfg)

	verdict := s.policy.Evaluate(domain.ContextSelfService, distance.RoadMiles, quantity, cfg)
	if s.metrics != nil {
		s.metrics.RecordAvailabilityCheck(string(domain.ContextSelfService), string(verdict.Reason))
	}

	if !verdict.Available {
		s.logger.Info("Delivery not offered at checkout",
			"reason", verdict.Reason,
			"distanceMiles", distance.RoadMiles,
			"physicalQuantity", quantity,
		)
		return ToAvailabilityDTO(verdict, nil, nil)
	}

	quote, err := domain.NewPriceQuote(distance, cfg.RatePerMile)
	if err != nil {
		s.logger.WithError(err).Error("Self-service quote not priceable",
			"roadMiles", distance.RoadMiles)
		return s.unavailable(domain.ReasonAddressUnresolvable)
	}

	miles := distance.RoadMiles
	amount := quote.Amount
	return ToAvailabilityDTO(verdict, &miles, &amount)
}

// computeQuote runs the manual-context pipeline on a line: resolve the
// coordinate, compute the road distance under a fresh config snapshot,
// enforce the manual distance cap and price the result.
func (s *RatingApplicationService) computeQuote(ctx context.Context, line *domain.DeliveryLine) (*domain.PriceQuote, error) {
	if line.CustomerName == "" {
		return nil, errors.ErrMissingCustomer()
	}

	cfg, err := s.settings.GetRateConfig(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load rate config", "lineId", line.LineID)
		return nil, fmt.Errorf("failed to load rate config: %w", err)
	}

	if !line.HasCoordinate() {
		if err := s.geocodeLine(ctx, line); err != nil {
			return nil, err
		}
	}

	coord, err := line.Coordinate()
	if err != nil {
		return nil, s.coordinateError(err)
	}

	distance := s.engine.RoadDistance(ctx, cfg.Origin(), coord, cfg)

	verdict := s.policy.Evaluate(domain.ContextManual, distance.RoadMiles, 0, cfg)
	if s.metrics != nil {
		s.metrics.RecordAvailabilityCheck(string(domain.ContextManual), string(verdict.Reason))
	}
	if !verdict.Available {
		return nil, errors.ErrDistanceExceeded(distance.RoadMiles, cfg.MaxDistanceManual)
	}

	quote, err := domain.NewPriceQuote(distance, cfg.RatePerMile)
	if err != nil {
		s.logger.WithError(err).Error("Quote not priceable",
			"lineId", line.LineID, "roadMiles", distance.RoadMiles)
		return nil, errors.ErrValidation(err.Error())
	}

	return &quote, nil
}

func (s *RatingApplicationService) geocodeLine(ctx context.Context, line *domain.DeliveryLine) error {
	if err := line.Address.Validate(); err != nil {
		return errors.ErrCoordinateMissing(err.Error())
	}

	coord, err := s.geocoder.Resolve(ctx, line.Address)
	if err != nil {
		s.logger.WithError(err).Warn("Geocoding failed", "lineId", line.LineID)
		return errors.ErrGeocodingFailed(line.Address.String())
	}

	line.SetCoordinate(coord)
	return nil
}

func (s *RatingApplicationService) resolveDestination(ctx context.Context, cmd CheckAvailabilityCommand) (domain.Coordinate, error) {
	if cmd.Latitude != nil && cmd.Longitude != nil {
		return domain.CoordinateFromParts(cmd.Latitude, cmd.Longitude)
	}

	if cmd.Address == nil {
		return domain.Coordinate{}, domain.ErrMissingCoordinate
	}

	if err := cmd.Address.Validate(); err != nil {
		return domain.Coordinate{}, err
	}

	return s.geocoder.Resolve(ctx, *cmd.Address)
}

func (s *RatingApplicationService) coordinateError(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, domain.ErrZeroCoordinate):
		return errors.ErrCoordinateZero()
	case stderrors.Is(err, domain.ErrOutOfRangeCoordinate):
		return errors.ErrCoordinateOutOfRange(0, 0).Wrap(err)
	default:
		return errors.ErrCoordinateMissing(err.Error())
	}
}

func (s *RatingApplicationService) unavailable(reason domain.AvailabilityReason) *AvailabilityDTO {
	if s.metrics != nil {
		s.metrics.RecordAvailabilityCheck(string(domain.ContextSelfService), string(reason))
	}
	return ToAvailabilityDTO(domain.Unavailable(reason), nil, nil)
}

func (s *RatingApplicationService) publishEvents(ctx context.Context, line *domain.DeliveryLine) {
	if s.publisher == nil {
		line.ClearDomainEvents()
		return
	}

	for _, event := range line.GetDomainEvents() {
		if err := s.publisher.Publish(ctx, line.LineID, event); err != nil {
			s.logger.WithError(err).Warn("Failed to publish domain event",
				"lineId", line.LineID, "eventType", event.EventType())
		}
	}
	line.ClearDomainEvents()
}

func (s *RatingApplicationService) recordQuote(method string, success bool) {
	if s.metrics != nil {
		s.metrics.RecordQuoteComputed(method, success)
	}
}

// lockLine serializes access to a single line across requests. The
// lock map grows one mutex per distinct lineId and is never evicted;
// entries are a few dozen bytes and the id space is bounded by the
// order volume of a single deployment, so eviction would cost more
// bookkeeping than it saves.
func (s *RatingApplicationService) lockLine(lineID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[lineID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[lineID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
