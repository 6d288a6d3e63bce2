package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/picogrid/utm-core/pkg/models"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		hasErr bool
	}{
		{"valid default", func(c *Config) {}, false},
		{"zero grid resolution", func(c *Config) { c.GridResolutionM = 0 }, true},
		{"cruise exceeds max speed", func(c *Config) { c.DroneCruiseSpeedMps = c.DroneMaxSpeedMps + 1 }, true},
		{"empty north-south lanes", func(c *Config) { c.DirectionAltitudeMap.NorthSouth = nil }, true},
		{"inverted operational bounds", func(c *Config) { c.OperationalBounds.MinLat = c.OperationalBounds.MaxLat }, true},
		{"negative max resolve retries", func(c *Config) { c.MaxResolveRetries = -1 }, true},
		{"speed min ratio out of range", func(c *Config) { c.SpeedMinRatio = 1.5 }, true},
		{"lane outside altitude bounds", func(c *Config) {
			c.DirectionAltitudeMap.EastWest = LaneSet{c.MaxAltitudeM + 10}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.hasErr && err == nil {
				t.Errorf("expected validation error, got nil")
			}
			if !tt.hasErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestZonesTagsKindAndClampsMultiplier(t *testing.T) {
	cfg := Default()
	cfg.NoFlyZones = []models.Zone{{Name: "a", Polygon: models.BBox{MaxLat: 1, MaxLon: 1}}}
	cfg.SensitiveAreas = []models.Zone{{Name: "b", Polygon: models.BBox{MaxLat: 1, MaxLon: 1}, Multiplier: 0.2}}

	zones := cfg.Zones()
	if len(zones) != 2 {
		t.Fatalf("expected 2 zones, got %d", len(zones))
	}
	if zones[0].Kind != models.ZoneNoFly {
		t.Errorf("expected first zone tagged NO_FLY, got %s", zones[0].Kind)
	}
	if zones[1].Kind != models.ZoneSensitive {
		t.Errorf("expected second zone tagged SENSITIVE, got %s", zones[1].Kind)
	}
	if zones[1].Multiplier != 1 {
		t.Errorf("expected sub-1 multiplier clamped to 1, got %f", zones[1].Multiplier)
	}
}

func TestLanesSelectsDirectionSet(t *testing.T) {
	cfg := Default()
	if len(cfg.Lanes(true)) != len(cfg.DirectionAltitudeMap.NorthSouth) {
		t.Error("expected north-south lanes for northSouth=true")
	}
	if len(cfg.Lanes(false)) != len(cfg.DirectionAltitudeMap.EastWest) {
		t.Error("expected east-west lanes for northSouth=false")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Default()
	cfg.GridResolutionM = 75

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.GridResolutionM != 75 {
		t.Errorf("expected round-tripped grid_resolution_m 75, got %f", loaded.GridResolutionM)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error loading a nonexistent file")
	}
}

func TestLoadOrDefaultEmptyPathUsesDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GridResolutionM != Default().GridResolutionM {
		t.Error("expected LoadOrDefault(\"\") to return compiled-in defaults")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("UTM_GRID_RESOLUTION_M", "123")
	t.Setenv("UTM_LOG_LEVEL", "debug")

	cfg := Default()
	applyEnvOverrides(cfg)

	if cfg.GridResolutionM != 123 {
		t.Errorf("expected env override to set grid_resolution_m=123, got %f", cfg.GridResolutionM)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected env override to set log_level=debug, got %s", cfg.LogLevel)
	}
}

func TestSaveRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Default()
	cfg.GridResolutionM = -1

	if err := Save(cfg, path); err == nil {
		t.Error("expected Save to reject an invalid config")
	}
	if _, err := os.Stat(path); err == nil {
		t.Error("expected no file to be written for an invalid config")
	}
}
