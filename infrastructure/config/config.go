// Package config loads the engine's settings from an optional YAML file with
// environment-variable overrides.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	pkgerrors "easymemo/pkg/errors"
)

// Config carries everything the engine needs to run
type Config struct {
	// APIBaseURL is the memo service root, e.g. https://api.example.com
	APIBaseURL string `validate:"required,url"`

	// AuthToken is the bearer credential; empty runs in guest mode
	AuthToken string

	// StorePath is the SQLite file holding the persisted collection
	StorePath string `validate:"required"`

	RequestTimeout    time.Duration `validate:"gt=0"`
	ProbeTimeout      time.Duration `validate:"gt=0"`
	ProbeInterval     time.Duration `validate:"gt=0"`
	ReconcileInterval time.Duration `validate:"gt=0"`

	PageSize int `validate:"gt=0,lte=100"`

	LogLevel string `validate:"oneof=debug info warn error"`
}

// Default returns the baseline configuration. The store lands under the
// platform config directory.
func Default() Config {
	storePath := "easymemo.db"
	if dir, err := os.UserConfigDir(); err == nil {
		storePath = filepath.Join(dir, "easymemo", "easymemo.db")
	}

	return Config{
		APIBaseURL:        "http://localhost:5001",
		StorePath:         storePath,
		RequestTimeout:    10 * time.Second,
		ProbeTimeout:      5 * time.Second,
		ProbeInterval:     30 * time.Second,
		ReconcileInterval: 30 * time.Second,
		PageSize:          20,
		LogLevel:          "info",
	}
}

// Load builds the configuration in three layers: defaults, then the YAML file
// at path when it exists, then EASYMEMO_* environment variables. An empty path
// skips the file layer.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// No file is fine; defaults plus env carry the day.
		case err != nil:
			return Config{}, pkgerrors.NewStorageError("reading config file", err)
		default:
			if err := applyYAML(data, &cfg); err != nil {
				return Config{}, err
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration's structural constraints
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return pkgerrors.NewValidationError("invalid configuration").WithCause(err)
	}
	return nil
}

// fileConfig is the YAML shape. Durations are strings ("5s", "1m") and
// numbers are pointers so an absent key is distinguishable from zero; only
// keys present in the file override the defaults.
type fileConfig struct {
	APIBaseURL string `yaml:"apiBaseUrl"`
	AuthToken  string `yaml:"authToken"`
	StorePath  string `yaml:"storePath"`

	RequestTimeout    string `yaml:"requestTimeout"`
	ProbeTimeout      string `yaml:"probeTimeout"`
	ProbeInterval     string `yaml:"probeInterval"`
	ReconcileInterval string `yaml:"reconcileInterval"`

	PageSize *int `yaml:"pageSize"`

	LogLevel string `yaml:"logLevel"`
}

func applyYAML(data []byte, cfg *Config) error {
	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return pkgerrors.NewValidationError("malformed config file").WithCause(err)
	}

	if raw.APIBaseURL != "" {
		cfg.APIBaseURL = raw.APIBaseURL
	}
	if raw.AuthToken != "" {
		cfg.AuthToken = raw.AuthToken
	}
	if raw.StorePath != "" {
		cfg.StorePath = raw.StorePath
	}
	if raw.LogLevel != "" {
		cfg.LogLevel = raw.LogLevel
	}
	if raw.PageSize != nil {
		cfg.PageSize = *raw.PageSize
	}

	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"requestTimeout", raw.RequestTimeout, &cfg.RequestTimeout},
		{"probeTimeout", raw.ProbeTimeout, &cfg.ProbeTimeout},
		{"probeInterval", raw.ProbeInterval, &cfg.ProbeInterval},
		{"reconcileInterval", raw.ReconcileInterval, &cfg.ReconcileInterval},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return pkgerrors.NewValidationError(d.key + " is not a duration").WithCause(err)
		}
		*d.dst = parsed
	}

	return nil
}

func applyEnv(cfg *Config) {
	cfg.APIBaseURL = getEnv("EASYMEMO_API_BASE_URL", cfg.APIBaseURL)
	cfg.AuthToken = getEnv("EASYMEMO_AUTH_TOKEN", cfg.AuthToken)
	cfg.StorePath = getEnv("EASYMEMO_STORE_PATH", cfg.StorePath)
	cfg.LogLevel = getEnv("EASYMEMO_LOG_LEVEL", cfg.LogLevel)

	cfg.RequestTimeout = getEnvDuration("EASYMEMO_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.ProbeTimeout = getEnvDuration("EASYMEMO_PROBE_TIMEOUT", cfg.ProbeTimeout)
	cfg.ProbeInterval = getEnvDuration("EASYMEMO_PROBE_INTERVAL", cfg.ProbeInterval)
	cfg.ReconcileInterval = getEnvDuration("EASYMEMO_RECONCILE_INTERVAL", cfg.ReconcileInterval)

	cfg.PageSize = getEnvInt("EASYMEMO_PAGE_SIZE", cfg.PageSize)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
