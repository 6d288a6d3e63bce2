// Package config holds the UTM core's recognized configuration options
// (§6), loaded from YAML with environment-variable overrides, generalizing
// the teacher's simulation-config loader to this system's parameters.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/picogrid/utm-core/pkg/models"
)

// LaneSet is the set of altitudes (meters AGL) legal for one direction
// class (§4.4).
type LaneSet []float64

// DirectionAltitudeMap assigns a lane set to each cardinal direction class.
type DirectionAltitudeMap struct {
	NorthSouth LaneSet `yaml:"north_south"`
	EastWest   LaneSet `yaml:"east_west"`
}

// Config holds every recognized option from spec.md §6.
type Config struct {
	GridResolutionM       float64              `yaml:"grid_resolution_m"`
	TimeResolutionS       float64              `yaml:"time_resolution_s"`
	HorizontalSeparationM float64              `yaml:"horizontal_separation_m"`
	VerticalSeparationM   float64              `yaml:"vertical_separation_m"`
	DroneMaxSpeedMps      float64              `yaml:"drone_max_speed_mps"`
	DroneCruiseSpeedMps   float64              `yaml:"drone_cruise_speed_mps"`
	DirectionAltitudeMap  DirectionAltitudeMap `yaml:"direction_altitude_map"`
	NoFlyZones            []models.Zone        `yaml:"no_fly_zones"`
	SensitiveAreas        []models.Zone        `yaml:"sensitive_areas"`
	OperationalBounds     models.BBox          `yaml:"operational_bounds"`
	MaxExpansions         int                  `yaml:"max_expansions"`
	MaxResolveRetries     int                  `yaml:"max_resolve_retries"`
	SpeedMinRatio         float64              `yaml:"speed_min_ratio"`
	DynamicPenalty        float64              `yaml:"dynamic_penalty"`
	RequestDeadline       time.Duration        `yaml:"request_deadline"`
	MinAltitudeM          float64              `yaml:"min_altitude_m"`
	MaxAltitudeM          float64              `yaml:"max_altitude_m"`
	LogLevel              string               `yaml:"log_level"`
}

// Zones returns the combined NO_FLY + SENSITIVE zone set for the geofence
// index, tagging each entry with its configured Kind.
func (c *Config) Zones() []models.Zone {
	all := make([]models.Zone, 0, len(c.NoFlyZones)+len(c.SensitiveAreas))
	for _, z := range c.NoFlyZones {
		z.Kind = models.ZoneNoFly
		z.Multiplier = math.Inf(1) // classify() returns +Inf for NO_FLY regardless of this field
		all = append(all, z)
	}
	for _, z := range c.SensitiveAreas {
		z.Kind = models.ZoneSensitive
		if z.Multiplier < 1 {
			z.Multiplier = 1
		}
		all = append(all, z)
	}
	return all
}

// Lanes returns the lane set for a direction class (§4.4: NORTH/SOUTH vs
// EAST/WEST).
func (c *Config) Lanes(northSouth bool) LaneSet {
	if northSouth {
		return c.DirectionAltitudeMap.NorthSouth
	}
	return c.DirectionAltitudeMap.EastWest
}

// Default returns the configuration with every default named in spec.md
// §6, using the San Francisco operational area from the worked scenarios
// in §8 and the 50/90 (N/S) and 30/70/110 (E/W) lane sets from §4.4.
func Default() *Config {
	return &Config{
		GridResolutionM:       50,
		TimeResolutionS:       5,
		HorizontalSeparationM: 30,
		VerticalSeparationM:   15,
		DroneMaxSpeedMps:      15,
		DroneCruiseSpeedMps:   10,
		DirectionAltitudeMap: DirectionAltitudeMap{
			NorthSouth: LaneSet{50, 90},
			EastWest:   LaneSet{30, 70, 110},
		},
		OperationalBounds: models.BBox{
			MinLat: 37.60, MaxLat: 37.80,
			MinLon: -122.45, MaxLon: -122.35,
		},
		MaxExpansions:     50000,
		MaxResolveRetries: 3,
		SpeedMinRatio:     0.3,
		DynamicPenalty:    200,
		RequestDeadline:   5 * time.Second,
		MinAltitudeM:      20,
		MaxAltitudeM:      150,
		LogLevel:          "info",
	}
}

// Validate checks internal consistency of the configuration.
func (c *Config) Validate() error {
	if c.GridResolutionM <= 0 {
		return fmt.Errorf("grid_resolution_m must be positive")
	}
	if c.TimeResolutionS <= 0 {
		return fmt.Errorf("time_resolution_s must be positive")
	}
	if c.HorizontalSeparationM <= 0 || c.VerticalSeparationM <= 0 {
		return fmt.Errorf("separation minima must be positive")
	}
	if c.DroneMaxSpeedMps <= 0 || c.DroneCruiseSpeedMps <= 0 {
		return fmt.Errorf("drone speeds must be positive")
	}
	if c.DroneCruiseSpeedMps > c.DroneMaxSpeedMps {
		return fmt.Errorf("cruise speed must not exceed max speed")
	}
	if len(c.DirectionAltitudeMap.NorthSouth) == 0 || len(c.DirectionAltitudeMap.EastWest) == 0 {
		return fmt.Errorf("direction_altitude_map must define both lane sets")
	}
	if c.OperationalBounds.MinLat >= c.OperationalBounds.MaxLat ||
		c.OperationalBounds.MinLon >= c.OperationalBounds.MaxLon {
		return fmt.Errorf("operational_bounds min must be less than max")
	}
	if c.MaxExpansions <= 0 {
		return fmt.Errorf("max_expansions must be positive")
	}
	if c.MaxResolveRetries < 0 {
		return fmt.Errorf("max_resolve_retries must not be negative")
	}
	if c.SpeedMinRatio <= 0 || c.SpeedMinRatio >= 1 {
		return fmt.Errorf("speed_min_ratio must be in (0,1)")
	}
	if c.DynamicPenalty <= 0 {
		return fmt.Errorf("dynamic_penalty must be positive")
	}
	if c.RequestDeadline <= 0 {
		return fmt.Errorf("request_deadline must be positive")
	}
	if c.MinAltitudeM >= c.MaxAltitudeM {
		return fmt.Errorf("min_altitude_m must be less than max_altitude_m")
	}
	for _, lane := range c.DirectionAltitudeMap.NorthSouth {
		if lane < c.MinAltitudeM || lane > c.MaxAltitudeM {
			return fmt.Errorf("north_south lane %.1f outside [min_altitude_m,max_altitude_m]", lane)
		}
	}
	for _, lane := range c.DirectionAltitudeMap.EastWest {
		if lane < c.MinAltitudeM || lane > c.MaxAltitudeM {
			return fmt.Errorf("east_west lane %.1f outside [min_altitude_m,max_altitude_m]", lane)
		}
	}
	return nil
}
