package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/delivery-platform/delivery-rate-service/internal/domain"
	"github.com/delivery-platform/delivery-rate-service/pkg/logging"
	"github.com/delivery-platform/delivery-rate-service/pkg/metrics"
)

// NominatimAdapter resolves free-text addresses through a
// Nominatim-compatible geocoding API. Results that decode to the (0,0)
// sentinel or out-of-range values are rejected before they ever reach
// the domain.
type NominatimAdapter struct {
	baseURL   string
	userAgent string
	client    *http.Client
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

// NewNominatimAdapter creates a geocoding adapter. Nominatim's usage
// policy requires an identifying User-Agent. metrics may be nil.
func NewNominatimAdapter(baseURL, userAgent string, m *metrics.Metrics, logger *logging.Logger) *NominatimAdapter {
	return &NominatimAdapter{
		baseURL:   baseURL,
		userAgent: userAgent,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		metrics: m,
		logger:  logger,
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Resolve implements domain.Geocoder
func (a *NominatimAdapter) Resolve(ctx context.Context, address domain.Address) (domain.Coordinate, error) {
	start := time.Now()
	coord, err := a.resolve(ctx, address)
	if a.metrics != nil {
		a.metrics.RecordProviderRequest("nominatim", err == nil, time.Since(start))
	}
	return coord, err
}

func (a *NominatimAdapter) resolve(ctx context.Context, address domain.Address) (domain.Coordinate, error) {
	query := url.Values{}
	query.Set("q", address.String())
	query.Set("format", "json")
	query.Set("limit", "1")

	reqURL := a.baseURL + "/search?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.Coordinate{}, a.geocodingError(address, "failed to build geocoding request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return domain.Coordinate{}, a.geocodingError(address, "geocoding request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Coordinate{}, a.geocodingError(address,
			fmt.Sprintf("geocoding API returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Coordinate{}, a.geocodingError(address, "failed to read geocoding response", err)
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return domain.Coordinate{}, a.geocodingError(address, "geocoding response is not valid JSON", err)
	}

	if len(results) == 0 {
		return domain.Coordinate{}, a.geocodingError(address, "no geocoding match for address", nil)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return domain.Coordinate{}, a.geocodingError(address, "geocoding result has a malformed latitude", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return domain.Coordinate{}, a.geocodingError(address, "geocoding result has a malformed longitude", err)
	}

	coord, err := domain.NewCoordinate(lat, lon)
	if err != nil {
		return domain.Coordinate{}, a.geocodingError(address, "geocoding result is not a usable coordinate", err)
	}

	return coord, nil
}

func (a *NominatimAdapter) geocodingError(address domain.Address, message string, err error) *domain.GeocodingError {
	return &domain.GeocodingError{
		Address:     address.String(),
		Message:     message,
		OriginalErr: err,
	}
}
