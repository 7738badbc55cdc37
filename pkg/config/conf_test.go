package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mchmarny/lstvscan/pkg/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	dir := t.TempDir()

	c1, err := ReadOrCreate(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), c1)

	c1.Workers = 8
	c1.IncompletePolicy = "pad"
	c1.Thresholds.HighRiskEntropy = 6

	require.NoError(t, Save(dir, c1))

	c2, err := ReadOrCreate(dir)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestReadOrCreate_Errors(t *testing.T) {
	_, err := ReadOrCreate("")
	assert.Error(t, err)
	assert.Error(t, Save("", Default()))
	assert.Error(t, Save(t.TempDir(), nil))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Config)
		field string
	}{
		{"missing thresholds", func(c *Config) { c.Thresholds = risk.ThresholdConfig{} }, "thresholds.high_risk_confidence"},
		{"confidence above one", func(c *Config) { c.Thresholds.HighRiskConfidence = 1.2 }, "thresholds.high_risk_confidence"},
		{"moderate below high", func(c *Config) { c.Thresholds.ModerateRiskConfidence = 0.9 }, "thresholds.moderate_risk_confidence"},
		{"zero entropy", func(c *Config) { c.Thresholds.HighRiskEntropy = 0 }, "thresholds.high_risk_entropy"},
		{"bad policy", func(c *Config) { c.IncompletePolicy = "drop" }, "incomplete_policy"},
		{"zero workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"bad level", func(c *Config) { c.RankLevel = "s1_s2" }, "rank_level"},
		{"bad key", func(c *Config) { c.RankKey = "random" }, "rank_key"},
		{"zero grid", func(c *Config) { c.GridSize = 0 }, "grid_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mod(c)
			err := c.Validate()
			require.Error(t, err)

			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.True(t, IsConfigurationError(err))
		})
	}

	assert.NoError(t, Default().Validate())
	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}

func TestLoad_MissingThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 2\n"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	body := `thresholds:
  high_risk_confidence: 0.9
  moderate_risk_confidence: 0.95
  high_risk_entropy: 4.5
workers: 2
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Workers)
	assert.Equal(t, 10, c.GridSize)
	assert.Equal(t, 0.9, c.Thresholds.HighRiskConfidence)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	assert.True(t, IsConfigurationError(err))

	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, IsConfigurationError(err))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: [\n"), 0600))
	_, err = Load(path)
	assert.True(t, IsConfigurationError(err))
}

func TestConfigurationError_Message(t *testing.T) {
	e := &ConfigurationError{Field: "valid_ids", Reason: "required", Err: os.ErrNotExist}
	assert.Contains(t, e.Error(), "valid_ids")
	assert.Contains(t, e.Error(), "required")
	assert.ErrorIs(t, e, os.ErrNotExist)
}
