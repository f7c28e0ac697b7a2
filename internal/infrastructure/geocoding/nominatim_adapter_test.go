package geocoding

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

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

func testAddress() domain.Address {
	return domain.Address{
		Street:     "12 Elm St",
		City:       "Grayson",
		State:      "KY",
		PostalCode: "41143",
		Country:    "US",
	}
}

func TestNominatimAdapter_Resolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.NotEmpty(t, r.URL.Query().Get("q"))
		assert.Equal(t, "delivery-rate-service-test", r.Header.Get("User-Agent"))
		w.Write([]byte(`[{"lat":"38.3321","lon":"-82.9470","display_name":"12 Elm St, Grayson KY"}]`))
	}))
	defer server.Close()

	adapter := NewNominatimAdapter(server.URL, "delivery-rate-service-test", nil, testLogger())

	coord, err := adapter.Resolve(context.Background(), testAddress())
	require.NoError(t, err)
	assert.InDelta(t, 38.3321, coord.Latitude(), 0.0001)
	assert.InDelta(t, -82.9470, coord.Longitude(), 0.0001)
}

func TestNominatimAdapter_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "no match",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[]`))
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json at all`))
			},
		},
		{
			name: "malformed latitude",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[{"lat":"abc","lon":"-82.9"}]`))
			},
		},
		{
			name: "zero coordinate sentinel",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[{"lat":"0","lon":"0"}]`))
			},
		},
		{
			name: "out of range coordinate",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[{"lat":"5000","lon":"-82.9"}]`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			adapter := NewNominatimAdapter(server.URL, "delivery-rate-service-test", nil, testLogger())

			_, err := adapter.Resolve(context.Background(), testAddress())
			require.Error(t, err)

			var geoErr *domain.GeocodingError
			require.True(t, stderrors.As(err, &geoErr), "all failures must be GeocodingError")
			assert.Equal(t, testAddress().String(), geoErr.Address)
		})
	}
}
