package domain

import (
	"context"
	"fmt"
)

// Documented defaults. All of these are operator-tunable settings;
// the values here only apply when nothing is stored.
const (
	DefaultOriginLatitude         = 38.3353600
	DefaultOriginLongitude        = -82.7815527
	DefaultRatePerMile            = 3.0
	DefaultMaxDistanceManual      = 100.0
	DefaultMaxDistanceSelfService = 60.0
	DefaultMaxQuantitySelfService = 8
	DefaultRoadMultiplier         = 1.3
)

// RateConfig is an immutable snapshot of the operator-tunable pricing
// parameters. A fresh snapshot is fetched for every computation; the
// engine never caches one across calls.
type RateConfig struct {
	OriginLatitude         float64 `bson:"originLatitude" json:"originLatitude"`
	OriginLongitude        float64 `bson:"originLongitude" json:"originLongitude"`
	RatePerMile            float64 `bson:"ratePerMile" json:"ratePerMile"`
	MaxDistanceManual      float64 `bson:"maxDistanceManual" json:"maxDistanceManual"`
	MaxDistanceSelfService float64 `bson:"maxDistanceSelfService" json:"maxDistanceSelfService"`
	MaxQuantitySelfService int     `bson:"maxQuantitySelfService" json:"maxQuantitySelfService"`
	RoadMultiplier         float64 `bson:"roadMultiplier" json:"roadMultiplier"`
	UseExternalRouting     bool    `bson:"useExternalRouting" json:"useExternalRouting"`
	ExternalRoutingAPIKey  string  `bson:"externalRoutingApiKey" json:"externalRoutingApiKey,omitempty"`
}

// DefaultRateConfig returns the documented defaults
func DefaultRateConfig() RateConfig {
	return RateConfig{
		OriginLatitude:         DefaultOriginLatitude,
		OriginLongitude:        DefaultOriginLongitude,
		RatePerMile:            DefaultRatePerMile,
		MaxDistanceManual:      DefaultMaxDistanceManual,
		MaxDistanceSelfService: DefaultMaxDistanceSelfService,
		MaxQuantitySelfService: DefaultMaxQuantitySelfService,
		RoadMultiplier:         DefaultRoadMultiplier,
		UseExternalRouting:     false,
	}
}

// Validate checks the snapshot for operator misconfiguration
func (c RateConfig) Validate() error {
	if c.RatePerMile <= 0 {
		return fmt.Errorf("rate per mile must be positive, got %f", c.RatePerMile)
	}
	if c.MaxDistanceManual <= 0 {
		return fmt.Errorf("manual max distance must be positive, got %f", c.MaxDistanceManual)
	}
	if c.MaxDistanceSelfService <= 0 {
		return fmt.Errorf("self-service max distance must be positive, got %f", c.MaxDistanceSelfService)
	}
	if c.MaxQuantitySelfService <= 0 {
		return fmt.Errorf("self-service max quantity must be positive, got %d", c.MaxQuantitySelfService)
	}
	if c.RoadMultiplier < 1 {
		return fmt.Errorf("road multiplier must be at least 1, got %f", c.RoadMultiplier)
	}
	if _, err := NewCoordinate(c.OriginLatitude, c.OriginLongitude); err != nil {
		return fmt.Errorf("origin coordinates: %w", err)
	}
	return nil
}

// Origin returns the configured origin as a Coordinate.
// Validate must have passed for the snapshot.
func (c RateConfig) Origin() Coordinate {
	origin, _ := NewCoordinate(c.OriginLatitude, c.OriginLongitude)
	return origin
}

// RoutingEnabled reports whether the external routing path applies:
// the toggle is on and an API key is configured.
func (c RateConfig) RoutingEnabled() bool {
	return c.UseExternalRouting && c.ExternalRoutingAPIKey != ""
}

// SettingsProvider supplies the current RateConfig. Implementations
// must be cheap to call: the engine asks on every computation.
type SettingsProvider interface {
	GetRateConfig(ctx context.Context) (RateConfig, error)
}
