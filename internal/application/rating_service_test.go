package application

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delivery-platform/delivery-rate-service/internal/domain"
	apperrors "github.com/delivery-platform/delivery-rate-service/pkg/errors"
	"github.com/delivery-platform/delivery-rate-service/pkg/logging"
)

// captureLogger collects JSON log lines for assertions on severity
func captureLogger() (*logging.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logging.New(&logging.Config{
		Level:       logging.LevelDebug,
		ServiceName: "test",
		Output:      &buf,
	})
	return logger, &buf
}

// fakes

type fakeRouting struct {
	miles      float64
	err        error
	calls      int
	lastAPIKey string
}

func (f *fakeRouting) RouteDistance(_ context.Context, _, _ domain.Coordinate, apiKey string) (float64, error) {
	f.calls++
	f.lastAPIKey = apiKey
	if f.err != nil {
		return 0, f.err
	}
	return f.miles, nil
}

type fakeGeocoder struct {
	coord domain.Coordinate
	err   error
	calls int
}

func (f *fakeGeocoder) Resolve(_ context.Context, address domain.Address) (domain.Coordinate, error) {
	f.calls++
	if f.err != nil {
		return domain.Coordinate{}, f.err
	}
	return f.coord, nil
}

type memoryRepo struct {
	mu    sync.Mutex
	lines map[string]*domain.DeliveryLine
	saves int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{lines: make(map[string]*domain.DeliveryLine)}
}

func (r *memoryRepo) Save(_ context.Context, line *domain.DeliveryLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.lines[line.LineID] = line
	return nil
}

func (r *memoryRepo) FindByID(_ context.Context, lineID string) (*domain.DeliveryLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lines[lineID], nil
}

func (r *memoryRepo) FindByOrderID(_ context.Context, orderID string) ([]*domain.DeliveryLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.DeliveryLine
	for _, line := range r.lines {
		if line.OrderID == orderID {
			result = append(result, line)
		}
	}
	return result, nil
}

func (r *memoryRepo) Delete(_ context.Context, lineID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lines, lineID)
	return nil
}

type staticSettings struct {
	cfg domain.RateConfig
	err error
}

func (s *staticSettings) GetRateConfig(_ context.Context) (domain.RateConfig, error) {
	return s.cfg, s.err
}

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.DomainEvent
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event domain.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.EventType())
	}
	return types
}

type testEnv struct {
	service   *RatingApplicationService
	repo      *memoryRepo
	routing   *fakeRouting
	geocoder  *fakeGeocoder
	settings  *staticSettings
	publisher *capturePublisher
}

func newTestEnv(cfg domain.RateConfig) *testEnv {
	return newTestEnvWithLogger(cfg, testLogger())
}

func newTestEnvWithLogger(cfg domain.RateConfig, logger *logging.Logger) *testEnv {
	repo := newMemoryRepo()
	routing := &fakeRouting{}
	geocoder := &fakeGeocoder{}
	settings := &staticSettings{cfg: cfg}
	publisher := &capturePublisher{}
	engine := NewDistanceEngine(routing, nil, nil, logger)

	return &testEnv{
		service:   NewRatingApplicationService(repo, settings, geocoder, engine, publisher, nil, logger),
		repo:      repo,
		routing:   routing,
		geocoder:  geocoder,
		settings:  settings,
		publisher: publisher,
	}
}

// seedLine stores a line ten miles from the configured origin with its
// creation event already consumed.
func (e *testEnv) seedLine(t *testing.T, lineID, orderID string) *domain.DeliveryLine {
	t.Helper()
	line := domain.NewDeliveryLine(lineID, orderID, "Ada Marsh", domain.Address{
		Street: "12 Elm St", City: "Grayson", State: "KY", PostalCode: "41143", Country: "US",
	})
	dest := tenMilesNorth(t, e.settings.cfg.Origin())
	line.SetCoordinate(dest)
	line.ClearDomainEvents()
	e.repo.lines[lineID] = line
	return line
}

func testConfig() domain.RateConfig {
	cfg := domain.DefaultRateConfig()
	cfg.RatePerMile = 2.50
	return cfg
}

func TestQuoteLine_ComputesAndLocks(t *testing.T) {
	env := newTestEnv(testConfig())
	env.seedLine(t, "LINE-0001", "ORD-9000")

	result, err := env.service.QuoteLine(context.Background(), QuoteLineCommand{LineID: "LINE-0001"})
	require.NoError(t, err)

	assert.True(t, result.Recomputed)
	// 10 straight miles x 1.3 multiplier = 13 road miles at $2.50
	assert.InDelta(t, 13.0, result.Quote.DistanceMiles, 0.02)
	assert.InDelta(t, 32.50, result.Quote.Amount, 0.05)
	assert.Equal(t, string(domain.DistanceMethodMultiplier), result.Quote.Method)
	assert.True(t, result.Line.PriceLocked)

	stored := env.repo.lines["LINE-0001"]
	assert.True(t, stored.PriceLocked)
	require.NotNil(t, stored.Quote)
	assert.Equal(t, []string{"delivery.quote-computed"}, env.publisher.types())
}

func TestQuoteLine_LockedReturnsStoredQuote(t *testing.T) {
	env := newTestEnv(testConfig())
	line := env.seedLine(t, "LINE-0001", "ORD-9000")

	first, err := env.service.QuoteLine(context.Background(), QuoteLineCommand{LineID: "LINE-0001"})
	require.NoError(t, err)
	require.True(t, first.Recomputed)

	// Operator edits that would change the price must not leak through
	// the lock.
	env.settings.cfg.RatePerMile = 9.99
	line.Address.Street = "99 Oak Ave"

	second, err := env.service.QuoteLine(context.Background(), QuoteLineCommand{LineID: "LINE-0001"})
	require.NoError(t, err)

	assert.False(t, second.Recomputed)
	assert.Equal(t, first.Quote.Amount, second.Quote.Amount)
	assert.Equal(t, 0, env.geocoder.calls, "locked lines must not trigger geocoding")
	assert.Equal(t, []string{"delivery.quote-computed"}, env.publisher.types(), "no second event for a stored quote")
}

func TestQuoteLine_NotFound(t *testing.T) {
	env := newTestEnv(testConfig())

	_, err := env.service.QuoteLine(context.Background(), QuoteLineCommand{LineID: "LINE-MISSING"})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
}

func TestQuoteLine_MissingCustomer(t *testing.T) {
	env := newTestEnv(testConfig())
	line := env.seedLine(t, "LINE-0001", "ORD-9000")
	line.CustomerName = ""

	_, err := env.service.QuoteLine(context.Background(), QuoteLineCommand{LineID: "LINE-0001"})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeMissingCustomer, appErr.Code)
}

func TestQuoteLine_GeocodesMissingCoordinate(t *testing.T) {
	env := newTestEnv(testConfig())
	line := env.seedLine(t, "LINE-0001", "ORD-9000")
	line.Latitude = nil
	line.Longitude = nil
	env.geocoder.coord = tenMilesNorth(t, env.settings.cfg.Origin())

	result, err := env.service.QuoteLine(context.Background(), QuoteLineCommand{LineID: "LINE-0001"})
	require.NoError(t, err)

	assert.Equal(t, 1, env.geocoder.calls)
	assert.True(t, result.Recomputed)
	assert.True(t, env.repo.lines["LINE-0001"].HasCoordinate(), "resolved coordinate must be persisted")
}

func TestQuoteLine_GeocodingFailure(t *testing.T) {
	env := newTestEnv(testConfig())
	line := env.seedLine(t, "LINE-0001", "ORD-9000")
	line.Latitude = nil
	line.Longitude = nil
	env.geocoder.err = &domain.GeocodingError{Address: "12 Elm St", Message: "no match"}

	_, err := env.service.QuoteLine(context.Background(), QuoteLineCommand{LineID: "LINE-0001"})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeGeocodingFailed, appErr.Code)
	assert.False(t, env.repo.lines["LINE-0001"].PriceLocked)
}

func TestQuoteLine_ZeroCoordinateSentinel(t *testing.T) {
	env := newTestEnv(testConfig())
	line := env.seedLine(t, "LINE-0001", "ORD-9000")
	zero := 0.0
	line.Latitude = &zero
	line.Longitude = &zero

	_, err := env.service.QuoteLine(context.Background(), QuoteLineCommand{LineID: "LINE-0001"})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeCoordinateZero, appErr.Code)
}

func TestQuoteLine_DistanceExceeded(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDistanceManual = 12.0 // road distance will be ~13 miles
	env := newTestEnv(cfg)
	env.seedLine(t, "LINE-0001", "ORD-9000")

	_, err := env.service.QuoteLine(context.Background(), QuoteLineCommand{LineID: "LINE-0001"})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeDistanceExceeded, appErr.Code)
	assert.False(t, env.repo.lines["LINE-0001"].PriceLocked, "a rejected quote must not lock the line")
}

func TestRecalculateLine_ReplacesLockedQuote(t *testing.T) {
	env := newTestEnv(testConfig())
	env.seedLine(t, "LINE-0001", "ORD-9000")

	first, err := env.service.QuoteLine(context.Background(), QuoteLineCommand{LineID: "LINE-0001"})
	require.NoError(t, err)

	env.settings.cfg.RatePerMile = 5.00

	result, err := env.service.RecalculateLine(context.Background(), RecalculateLineCommand{LineID: "LINE-0001"})
	require.NoError(t, err)

	assert.True(t, result.Recomputed)
	assert.Greater(t, result.Quote.Amount, first.Quote.Amount)
	assert.InDelta(t, 65.00, result.Quote.Amount, 0.10)
	assert.True(t, result.Line.PriceLocked, "recalculation re-locks the line")
	assert.Equal(t, []string{"delivery.quote-computed", "delivery.quote-recalculated"}, env.publisher.types())
}

func TestRecalculateOrder_RecomputesAllLines(t *testing.T) {
	env := newTestEnv(testConfig())
	env.seedLine(t, "LINE-0001", "ORD-9000")
	env.seedLine(t, "LINE-0002", "ORD-9000")
	env.seedLine(t, "LINE-0003", "ORD-other")

	results, err := env.service.RecalculateOrder(context.Background(), RecalculateOrderCommand{OrderID: "ORD-9000"})
	require.NoError(t, err)

	assert.Len(t, results, 2)
	for _, result := range results {
		assert.True(t, result.Recomputed)
		assert.True(t, result.Line.PriceLocked)
	}
}

func TestCreateLine(t *testing.T) {
	env := newTestEnv(testConfig())

	t.Run("creates and publishes", func(t *testing.T) {
		lat, lon := 38.4, -82.7
		dto, err := env.service.CreateLine(context.Background(), CreateLineCommand{
			LineID:       "LINE-1000",
			OrderID:      "ORD-1000",
			CustomerName: "Ada Marsh",
			Address:      domain.Address{Street: "12 Elm St", City: "Grayson", State: "KY", PostalCode: "41143", Country: "US"},
			Latitude:     &lat,
			Longitude:    &lon,
		})
		require.NoError(t, err)

		assert.Equal(t, "LINE-1000", dto.LineID)
		assert.False(t, dto.PriceLocked)
		require.NotNil(t, dto.Latitude)
		assert.InDelta(t, 38.4, *dto.Latitude, 0.0001)
	})

	t.Run("rejects missing customer", func(t *testing.T) {
		_, err := env.service.CreateLine(context.Background(), CreateLineCommand{
			LineID:  "LINE-1001",
			OrderID: "ORD-1000",
		})
		require.Error(t, err)

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.CodeMissingCustomer, appErr.Code)
	})

	t.Run("rejects zero coordinates", func(t *testing.T) {
		zero := 0.0
		_, err := env.service.CreateLine(context.Background(), CreateLineCommand{
			LineID:       "LINE-1002",
			OrderID:      "ORD-1000",
			CustomerName: "Ada Marsh",
			Latitude:     &zero,
			Longitude:    &zero,
		})
		require.Error(t, err)

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.CodeCoordinateZero, appErr.Code)
	})
}

func TestCheckSelfServiceAvailability(t *testing.T) {
	physicalItems := func(qty float64) []domain.CartItem {
		return []domain.CartItem{
			{ProductName: "Mulch", ProductType: "product", Quantity: qty},
			{ProductName: "Delivery", ProductType: "service", Quantity: 1},
		}
	}

	t.Run("within limits includes price", func(t *testing.T) {
		env := newTestEnv(testConfig())
		lat := tenMilesNorth(t, env.settings.cfg.Origin())
		latV, lonV := lat.Latitude(), lat.Longitude()

		result := env.service.CheckSelfServiceAvailability(context.Background(), CheckAvailabilityCommand{
			Latitude:  &latV,
			Longitude: &lonV,
			Items:     physicalItems(3),
		})

		assert.True(t, result.Available)
		assert.Equal(t, string(domain.ReasonWithinLimits), result.Reason)
		require.NotNil(t, result.EstimatedAmount)
		assert.InDelta(t, 32.50, *result.EstimatedAmount, 0.05)
		require.NotNil(t, result.DistanceMiles)
		assert.InDelta(t, 13.0, *result.DistanceMiles, 0.02)
	})

	t.Run("quantity at cap is unavailable", func(t *testing.T) {
		env := newTestEnv(testConfig())
		coord := tenMilesNorth(t, env.settings.cfg.Origin())
		latV, lonV := coord.Latitude(), coord.Longitude()

		result := env.service.CheckSelfServiceAvailability(context.Background(), CheckAvailabilityCommand{
			Latitude:  &latV,
			Longitude: &lonV,
			Items:     physicalItems(8),
		})

		assert.False(t, result.Available)
		assert.Equal(t, string(domain.ReasonQuantityExceeded), result.Reason)
		assert.Nil(t, result.EstimatedAmount)
	})

	t.Run("distance beyond self-service cap", func(t *testing.T) {
		cfg := testConfig()
		cfg.MaxDistanceSelfService = 12.0
		env := newTestEnv(cfg)
		coord := tenMilesNorth(t, env.settings.cfg.Origin())
		latV, lonV := coord.Latitude(), coord.Longitude()

		result := env.service.CheckSelfServiceAvailability(context.Background(), CheckAvailabilityCommand{
			Latitude:  &latV,
			Longitude: &lonV,
			Items:     physicalItems(1),
		})

		assert.False(t, result.Available)
		assert.Equal(t, string(domain.ReasonDistanceExceeded), result.Reason)
	})

	t.Run("geocoding failure is a silent verdict", func(t *testing.T) {
		env := newTestEnv(testConfig())
		env.geocoder.err = &domain.GeocodingError{Address: "nowhere", Message: "no match"}

		result := env.service.CheckSelfServiceAvailability(context.Background(), CheckAvailabilityCommand{
			Address: &domain.Address{Street: "1 Nowhere Ln", City: "X", State: "KY", PostalCode: "00000", Country: "US"},
			Items:   physicalItems(1),
		})

		assert.False(t, result.Available)
		assert.Equal(t, string(domain.ReasonAddressUnresolvable), result.Reason)
	})

	t.Run("zero coordinates are unresolvable", func(t *testing.T) {
		env := newTestEnv(testConfig())
		zero := 0.0

		result := env.service.CheckSelfServiceAvailability(context.Background(), CheckAvailabilityCommand{
			Latitude:  &zero,
			Longitude: &zero,
			Items:     physicalItems(1),
		})

		assert.False(t, result.Available)
		assert.Equal(t, string(domain.ReasonAddressUnresolvable), result.Reason)
	})

	t.Run("routing failure falls back silently", func(t *testing.T) {
		cfg := testConfig()
		cfg.UseExternalRouting = true
		cfg.ExternalRoutingAPIKey = "test-key"
		env := newTestEnv(cfg)
		env.routing.err = domain.NewRoutingError("TIMEOUT", "deadline exceeded", true, nil)

		coord := tenMilesNorth(t, env.settings.cfg.Origin())
		latV, lonV := coord.Latitude(), coord.Longitude()

		result := env.service.CheckSelfServiceAvailability(context.Background(), CheckAvailabilityCommand{
			Latitude:  &latV,
			Longitude: &lonV,
			Items:     physicalItems(1),
		})

		assert.True(t, result.Available, "routing outages must not hide the delivery option")
		require.NotNil(t, result.EstimatedAmount)
		assert.InDelta(t, 32.50, *result.EstimatedAmount, 0.05)
	})
}

func TestQuoteLine_ZeroDistanceLoggedAsError(t *testing.T) {
	logger, logs := captureLogger()
	env := newTestEnvWithLogger(testConfig(), logger)

	// A destination identical to the origin yields a zero road distance,
	// which cannot be priced.
	line := env.seedLine(t, "LINE-0001", "ORD-9000")
	line.SetCoordinate(env.settings.cfg.Origin())

	_, err := env.service.QuoteLine(context.Background(), QuoteLineCommand{LineID: "LINE-0001"})
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeValidationError, appErr.Code)
	assert.False(t, env.repo.lines["LINE-0001"].PriceLocked)

	assert.Contains(t, logs.String(), `"level":"ERROR"`)
	assert.Contains(t, logs.String(), "not priceable")
}

func TestCheckSelfServiceAvailability_ZeroDistanceLoggedAsError(t *testing.T) {
	logger, logs := captureLogger()
	env := newTestEnvWithLogger(testConfig(), logger)

	origin := env.settings.cfg.Origin()
	latV, lonV := origin.Latitude(), origin.Longitude()

	result := env.service.CheckSelfServiceAvailability(context.Background(), CheckAvailabilityCommand{
		Latitude:  &latV,
		Longitude: &lonV,
	})

	assert.False(t, result.Available)
	assert.Equal(t, string(domain.ReasonAddressUnresolvable), result.Reason)

	assert.Contains(t, logs.String(), `"level":"ERROR"`)
	assert.Contains(t, logs.String(), "not priceable")
}
