package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML configuration file at path, validates it, and returns
// it. Generalizes the teacher's LoadConfig (cmd/drone-swarm/config/loader.go).
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads config from path if non-empty, else returns the
// compiled-in default. Any viper-bound UTM_* environment variables are
// applied on top, mirroring the teacher's MergeWithEnvironment step.
func LoadOrDefault(path string) (*Config, error) {
	var cfg *Config
	var err error

	if path != "" {
		cfg, err = Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = Default()
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides reads UTM_-prefixed environment variables via viper and
// overlays any that are set onto cfg. Only scalar top-level knobs are
// exposed this way; zone sets and the direction/altitude map are
// file-only, matching the teacher's split between bulk YAML config and
// narrow env overrides for operational knobs.
func applyEnvOverrides(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix("UTM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if v.IsSet("grid_resolution_m") {
		cfg.GridResolutionM = v.GetFloat64("grid_resolution_m")
	}
	if v.IsSet("time_resolution_s") {
		cfg.TimeResolutionS = v.GetFloat64("time_resolution_s")
	}
	if v.IsSet("horizontal_separation_m") {
		cfg.HorizontalSeparationM = v.GetFloat64("horizontal_separation_m")
	}
	if v.IsSet("vertical_separation_m") {
		cfg.VerticalSeparationM = v.GetFloat64("vertical_separation_m")
	}
	if v.IsSet("drone_max_speed_mps") {
		cfg.DroneMaxSpeedMps = v.GetFloat64("drone_max_speed_mps")
	}
	if v.IsSet("drone_cruise_speed_mps") {
		cfg.DroneCruiseSpeedMps = v.GetFloat64("drone_cruise_speed_mps")
	}
	if v.IsSet("max_expansions") {
		cfg.MaxExpansions = v.GetInt("max_expansions")
	}
	if v.IsSet("max_resolve_retries") {
		cfg.MaxResolveRetries = v.GetInt("max_resolve_retries")
	}
	if v.IsSet("speed_min_ratio") {
		cfg.SpeedMinRatio = v.GetFloat64("speed_min_ratio")
	}
	if v.IsSet("dynamic_penalty") {
		cfg.DynamicPenalty = v.GetFloat64("dynamic_penalty")
	}
	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}
}

// Save writes cfg to path as YAML, validating first; an invalid config is
// rejected and no file is written. Mirrors the teacher's SaveConfig.
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
