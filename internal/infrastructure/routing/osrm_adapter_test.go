package routing

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delivery-platform/delivery-rate-service/internal/domain"
	"github.com/delivery-platform/delivery-rate-service/pkg/logging"
)

func testLogger() *logging.Logger {
	return logging.New(&logging.Config{
		Level:       logging.LevelError,
		ServiceName: "test",
		Output:      io.Discard,
	})
}

func coords(t *testing.T) (domain.Coordinate, domain.Coordinate) {
	t.Helper()
	origin, err := domain.NewCoordinate(38.3353600, -82.7815527)
	require.NoError(t, err)
	dest, err := domain.NewCoordinate(38.45, -82.64)
	require.NoError(t, err)
	return origin, dest
}

func TestOSRMAdapter_RouteDistance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/route/v1/driving/")
		assert.Equal(t, "false", r.URL.Query().Get("overview"))
		w.Header().Set("Content-Type", "application/json")
		// 16093.44 meters = 10 miles
		w.Write([]byte(`{"code":"Ok","routes":[{"distance":16093.44,"duration":1200}]}`))
	}))
	defer server.Close()

	adapter := NewOSRMAdapter(server.URL, nil, testLogger())
	origin, dest := coords(t)

	miles, err := adapter.RouteDistance(context.Background(), origin, dest, "")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, miles, 0.0001)
}

func TestOSRMAdapter_PassesAPIKey(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("api_key")
		w.Write([]byte(`{"code":"Ok","routes":[{"distance":1609.344}]}`))
	}))
	defer server.Close()

	adapter := NewOSRMAdapter(server.URL, nil, testLogger())
	origin, dest := coords(t)

	_, err := adapter.RouteDistance(context.Background(), origin, dest, "secret-key")
	require.NoError(t, err)
	assert.Equal(t, "secret-key", gotKey)
}

func TestOSRMAdapter_Errors(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantCode  string
		retryable bool
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantCode:  "HTTP_502",
			retryable: true,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantCode:  "HTTP_429",
			retryable: true,
		},
		{
			name: "client error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
			wantCode:  "HTTP_403",
			retryable: false,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{{{not json`))
			},
			wantCode:  "MALFORMED_RESPONSE",
			retryable: false,
		},
		{
			name: "api rejection",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"code":"InvalidQuery","message":"bad coordinates"}`))
			},
			wantCode:  "API_InvalidQuery",
			retryable: false,
		},
		{
			name: "no routes",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"code":"Ok","routes":[]}`))
			},
			wantCode:  "NO_ROUTE",
			retryable: false,
		},
		{
			name: "non-positive distance",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"code":"Ok","routes":[{"distance":0}]}`))
			},
			wantCode:  "BAD_DISTANCE",
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			adapter := NewOSRMAdapter(server.URL, nil, testLogger())
			origin, dest := coords(t)

			_, err := adapter.RouteDistance(context.Background(), origin, dest, "")
			require.Error(t, err)

			var routingErr *domain.RoutingError
			require.True(t, stderrors.As(err, &routingErr))
			assert.Equal(t, tt.wantCode, routingErr.Code)
			assert.Equal(t, tt.retryable, routingErr.Retryable)
		})
	}
}

func TestOSRMAdapter_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	adapter := NewOSRMAdapter(server.URL, nil, testLogger())
	origin, dest := coords(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := adapter.RouteDistance(ctx, origin, dest, "")
	require.Error(t, err)

	var routingErr *domain.RoutingError
	require.True(t, stderrors.As(err, &routingErr))
	assert.Equal(t, "TIMEOUT", routingErr.Code)
	assert.True(t, routingErr.Retryable)
}
