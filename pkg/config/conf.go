package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mchmarny/lstvscan/pkg/risk"
	"gopkg.in/yaml.v3"
)

const (
	configFileName = "config.yaml"
	dirMode        = 0700
	fileMode       = 0600
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config represents the run configuration. It is read once before a run and
// treated as read-only afterwards.
type Config struct {
	Thresholds           risk.ThresholdConfig `yaml:"thresholds" json:"thresholds"`
	GridSize             int                  `yaml:"grid_size" json:"grid_size" validate:"gte=1,lte=100"`
	DetectionThreshold   float64              `yaml:"detection_threshold" json:"detection_threshold" validate:"gt=0,lt=1"`
	IncompletePolicy     string               `yaml:"incomplete_policy" json:"incomplete_policy" validate:"oneof=exclude pad"`
	RequireValidationSet bool                 `yaml:"require_validation_set" json:"require_validation_set"`
	Workers              int                  `yaml:"workers" json:"workers" validate:"gte=1,lte=256"`
	TrialSize            int                  `yaml:"trial_size" json:"trial_size" validate:"gte=1"`
	Seed                 uint64               `yaml:"seed" json:"seed"`
	TopN                 int                  `yaml:"top_n" json:"top_n" validate:"gte=0"`
	RankLevel            string               `yaml:"rank_level" json:"rank_level" validate:"oneof=l1_l2 l2_l3 l3_l4 l4_l5 l5_s1"`
	RankKey              string               `yaml:"rank_key" json:"rank_key" validate:"oneof=confidence entropy"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Thresholds:           risk.DefaultThresholds(),
		GridSize:             10,
		DetectionThreshold:   0.5,
		IncompletePolicy:     "exclude",
		RequireValidationSet: true,
		Workers:              4,
		TrialSize:            10,
		Seed:                 42,
		TopN:                 20,
		RankLevel:            "l5_s1",
		RankKey:              "confidence",
	}
}

// ConfigurationError is the only error that aborts a run. It is raised
// before any study is processed.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += " in " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// Validate checks all fields and returns a *ConfigurationError naming the
// first offending field.
func (c *Config) Validate() error {
	if c == nil {
		return &ConfigurationError{Reason: "config required"}
	}
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ConfigurationError{
			Field:  yamlPath(fe.Namespace()),
			Reason: fmt.Sprintf("failed %q check (value: %v, param: %s)", fe.Tag(), fe.Value(), fe.Param()),
		}
	}
	return &ConfigurationError{Err: err}
}

// yamlPath turns Config.Thresholds.HighRiskEntropy into
// thresholds.high_risk_entropy.
func yamlPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func Save(dirPath string, c *Config) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(dirPath, configFileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configFileName, err)
	}
	return nil
}

// Load reads and validates a config file. Fields missing from the file keep
// their default values, except thresholds, which must all be present.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, &ConfigurationError{Field: "config", Reason: "path required"}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Field: "config", Reason: "cannot read " + path, Err: err}
	}

	c := Default()
	c.Thresholds = risk.ThresholdConfig{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, &ConfigurationError{Field: "config", Reason: "cannot parse " + path, Err: err}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadOrCreate reads app config from directory or creates a default one.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if _, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dirPath, dirMode); err != nil {
			return nil, fmt.Errorf("failed to create dir %s: %w", dirPath, err)
		}
	}

	path := filepath.Join(dirPath, configFileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Save(dirPath, Default()); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	return Load(path)
}

// GetOrCreateHomeDir returns the app directory under the user's home.
// The created flag is set when the directory did not exist.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("failed to get user home dir: %w", err)
	}

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
		created = true
	}
	return dir, created, nil
}
