package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/delivery-platform/delivery-rate-service/internal/domain"
	"github.com/delivery-platform/delivery-rate-service/pkg/logging"
	"github.com/delivery-platform/delivery-rate-service/pkg/metrics"
)

const metersPerMile = 1609.344

// OSRMAdapter is the Anti-Corruption Layer adapter for an OSRM-style
// routing API. It translates coordinates into an OSRM route request
// and the response back into plain miles; every failure becomes a
// *domain.RoutingError so callers can fall back uniformly.
type OSRMAdapter struct {
	baseURL string
	client  *http.Client
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewOSRMAdapter creates a routing adapter against the given base URL,
// e.g. "https://router.project-osrm.org". metrics may be nil.
func NewOSRMAdapter(baseURL string, m *metrics.Metrics, logger *logging.Logger) *OSRMAdapter {
	return &OSRMAdapter{
		baseURL: baseURL,
		client: &http.Client{
			// The caller enforces the routing deadline via context;
			// this is a safety net against leaked requests.
			Timeout: 10 * time.Second,
		},
		metrics: m,
		logger:  logger,
	}
}

type osrmRoute struct {
	Distance float64 `json:"distance"` // meters
	Duration float64 `json:"duration"` // seconds
}

type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

// RouteDistance implements domain.RoutingProvider
func (a *OSRMAdapter) RouteDistance(ctx context.Context, origin, destination domain.Coordinate, apiKey string) (float64, error) {
	start := time.Now()
	miles, err := a.routeDistance(ctx, origin, destination, apiKey)
	if a.metrics != nil {
		a.metrics.RecordProviderRequest("osrm", err == nil, time.Since(start))
	}
	return miles, err
}

func (a *OSRMAdapter) routeDistance(ctx context.Context, origin, destination domain.Coordinate, apiKey string) (float64, error) {
	// OSRM takes lon,lat pairs
	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=false",
		a.baseURL,
		origin.Longitude(), origin.Latitude(),
		destination.Longitude(), destination.Latitude(),
	)
	if apiKey != "" {
		url += "&api_key=" + apiKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, domain.NewRoutingError("REQUEST_BUILD", "failed to build routing request", false, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, domain.NewRoutingError("TIMEOUT", "routing request timed out", true, err)
		}
		return 0, domain.NewRoutingError("REQUEST_FAILED", "routing request failed", true, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		code := fmt.Sprintf("HTTP_%d", resp.StatusCode)
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return 0, domain.NewRoutingError(code,
			fmt.Sprintf("routing API returned status %d", resp.StatusCode), retryable, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, domain.NewRoutingError("READ_FAILED", "failed to read routing response", true, err)
	}

	var parsed osrmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, domain.NewRoutingError("MALFORMED_RESPONSE", "routing response is not valid JSON", false, err)
	}

	if parsed.Code != "Ok" {
		return 0, domain.NewRoutingError("API_"+parsed.Code,
			fmt.Sprintf("routing API rejected the request: %s", parsed.Message), false, nil)
	}

	if len(parsed.Routes) == 0 {
		return 0, domain.NewRoutingError("NO_ROUTE", "no route between origin and destination", false, nil)
	}

	distance := parsed.Routes[0].Distance
	if distance <= 0 {
		return 0, domain.NewRoutingError("BAD_DISTANCE",
			fmt.Sprintf("routing API returned a non-positive distance: %f", distance), false, nil)
	}

	return distance / metersPerMile, nil
}
