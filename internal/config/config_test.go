package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 10*time.Second, cfg.SourceTimeout)
	assert.Equal(t, 1000.0, cfg.PercentileCeiling)
	assert.Equal(t, 3.0, cfg.AnomalyThreshold)
	assert.Equal(t, 12, cfg.AnomalyWeeks)
	assert.NoError(t, cfg.Scoring.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DOTREP_ADDR", ":9999")
	t.Setenv("DOTREP_ANOMALY_WEEKS", "8")
	t.Setenv("DOTREP_SOURCE_TIMEOUT", "3s")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 8, cfg.AnomalyWeeks)
	assert.Equal(t, 3*time.Second, cfg.SourceTimeout)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	yaml := "addr: \":7070\"\nanomaly_threshold: 2.5\nscoring:\n  decay_factor: 0.02\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("DOTREP_CONFIG", path)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, 2.5, cfg.AnomalyThreshold)
	assert.Equal(t, 0.02, cfg.Scoring.DecayFactor)
}

func TestLoadMissingFileIsFatal(t *testing.T) {
	t.Setenv("DOTREP_CONFIG", "/nonexistent/engine.yaml")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadInvalidConfigurationIsFatal(t *testing.T) {
	t.Setenv("DOTREP_ANOMALY_WEEKS", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Addr = "" }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero source timeout", func(c *Config) { c.SourceTimeout = 0 }},
		{"negative ceiling", func(c *Config) { c.PercentileCeiling = -1 }},
		{"zero threshold", func(c *Config) { c.AnomalyThreshold = 0 }},
		{"weeks too small", func(c *Config) { c.AnomalyWeeks = 0 }},
		{"weeks too large", func(c *Config) { c.AnomalyWeeks = 53 }},
		{"zero cache ttl", func(c *Config) { c.CacheTTL = 0 }},
		{"bad scoring weights", func(c *Config) { c.Scoring.AxisWeights["quality"] = 0.9 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	valid := defaults()
	assert.NoError(t, valid.Validate())
}
