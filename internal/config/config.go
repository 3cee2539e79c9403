// Package config loads engine configuration from defaults, an optional YAML
// file, and DOTREP_-prefixed environment variables, in that precedence order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	apperrors "github.com/dotrep-labs/reputation-engine/internal/errors"
	"github.com/dotrep-labs/reputation-engine/internal/scoring"
)

const envPrefix = "DOTREP_"

// Config is the full engine configuration.
type Config struct {
	Addr    string `koanf:"addr"`
	DataDir string `koanf:"data_dir"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	XCMGatewayURL string        `koanf:"xcm_gateway_url"`
	DKGNodeURL    string        `koanf:"dkg_node_url"`
	SourceTimeout time.Duration `koanf:"source_timeout"`

	PercentileCeiling float64 `koanf:"percentile_ceiling"`

	AnomalyThreshold float64 `koanf:"anomaly_threshold"`
	AnomalyWeeks     int     `koanf:"anomaly_weeks"`

	CacheTTL time.Duration `koanf:"cache_ttl"`

	Scoring scoring.Config `koanf:"scoring"`
}

func defaults() Config {
	return Config{
		Addr:              ":8080",
		DataDir:           "./data",
		XCMGatewayURL:     "http://localhost:9933",
		DKGNodeURL:        "http://localhost:8900",
		SourceTimeout:     10 * time.Second,
		PercentileCeiling: 1000,
		AnomalyThreshold:  3.0,
		AnomalyWeeks:      12,
		CacheTTL:          30 * time.Second,
		Scoring:           scoring.DefaultConfig(),
	}
}

// Load builds the configuration. A missing config file is fine; a malformed
// file or an invalid resulting configuration is fatal at startup.
func Load() (*Config, error) {
	k := koanf.New(".")

	cfg := defaults()

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, apperrors.NewConfigurationError(
				fmt.Sprintf("failed to load config file %s", path), err)
		}
	}

	// DOTREP_SCORING__DECAY_FACTOR maps to scoring.decay_factor.
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return nil, apperrors.NewConfigurationError("failed to load environment", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, apperrors.NewConfigurationError("failed to unmarshal configuration", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine must not start with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return apperrors.NewConfigurationError("addr must not be empty", nil)
	}
	if c.DataDir == "" {
		return apperrors.NewConfigurationError("data_dir must not be empty", nil)
	}
	if c.SourceTimeout <= 0 {
		return apperrors.NewConfigurationError("source_timeout must be positive", nil)
	}
	if c.PercentileCeiling <= 0 {
		return apperrors.NewConfigurationError("percentile_ceiling must be positive", nil)
	}
	if c.AnomalyThreshold <= 0 {
		return apperrors.NewConfigurationError("anomaly_threshold must be positive", nil)
	}
	if c.AnomalyWeeks < 1 || c.AnomalyWeeks > 52 {
		return apperrors.NewConfigurationError("anomaly_weeks must be between 1 and 52", nil)
	}
	if c.CacheTTL <= 0 {
		return apperrors.NewConfigurationError("cache_ttl must be positive", nil)
	}
	if err := c.Scoring.Validate(); err != nil {
		return apperrors.NewConfigurationError("invalid scoring configuration", err)
	}
	return nil
}
