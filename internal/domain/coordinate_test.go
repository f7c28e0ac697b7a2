package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCoordinate(t *testing.T) {
	tests := []struct {
		name      string
		lat       float64
		lon       float64
		expectErr error
	}{
		{
			name: "valid coordinate",
			lat:  38.3353600,
			lon:  -82.7815527,
		},
		{
			name: "valid southern hemisphere",
			lat:  -33.8688,
			lon:  151.2093,
		},
		{
			name:      "zero pair rejected as geocoding sentinel",
			lat:       0,
			lon:       0,
			expectErr: ErrZeroCoordinate,
		},
		{
			name: "zero latitude alone is valid",
			lat:  0,
			lon:  -82.78,
		},
		{
			name: "zero longitude alone is valid",
			lat:  38.33,
			lon:  0,
		},
		{
			name:      "latitude beyond 90",
			lat:       90.0001,
			lon:       10,
			expectErr: ErrOutOfRangeCoordinate,
		},
		{
			name:      "longitude beyond 180",
			lat:       45,
			lon:       -180.5,
			expectErr: ErrOutOfRangeCoordinate,
		},
		{
			name:      "corrupt provider value",
			lat:       38.33,
			lon:       82781552.7,
			expectErr: ErrOutOfRangeCoordinate,
		},
		{
			name: "boundary latitude 90 accepted",
			lat:  90,
			lon:  1,
		},
		{
			name: "boundary longitude -180 accepted",
			lat:  1,
			lon:  -180,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord, err := NewCoordinate(tt.lat, tt.lon)

			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.lat, coord.Latitude())
			assert.Equal(t, tt.lon, coord.Longitude())
		})
	}
}

func TestCoordinateFromParts(t *testing.T) {
	lat := 38.3353600
	lon := -82.7815527

	t.Run("both parts present", func(t *testing.T) {
		coord, err := CoordinateFromParts(&lat, &lon)
		require.NoError(t, err)
		assert.Equal(t, lat, coord.Latitude())
	})

	t.Run("missing latitude", func(t *testing.T) {
		_, err := CoordinateFromParts(nil, &lon)
		assert.ErrorIs(t, err, ErrMissingCoordinate)
	})

	t.Run("missing longitude", func(t *testing.T) {
		_, err := CoordinateFromParts(&lat, nil)
		assert.ErrorIs(t, err, ErrMissingCoordinate)
	})

	t.Run("present but zero pair", func(t *testing.T) {
		zero := 0.0
		_, err := CoordinateFromParts(&zero, &zero)
		assert.ErrorIs(t, err, ErrZeroCoordinate)
	})
}
