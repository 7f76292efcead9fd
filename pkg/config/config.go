package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DatabaseConfig controls the local encrypted SQLCipher database.
type DatabaseConfig struct {
	Path            string `json:"path" env:"DATABASE_PATH"`
	MaxOpenConns    int    `json:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `json:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `json:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool   `json:"migrate_on_start" yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL"`
	Format     string `json:"format" env:"LOG_FORMAT"`
	Output     string `json:"output" env:"LOG_OUTPUT"`
	FilePrefix string `json:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// SecurityConfig controls envelope-encryption of account secrets, such as
// the escrowed SQLCipher database passphrase (see infrastructure/secrets).
type SecurityConfig struct {
	MasterKey string `json:"-" env:"SECRETS_MASTER_KEY"`
}

// OAuthConfig controls the PKCE authorization-code flow used to obtain and
// refresh the upstream API token.
type OAuthConfig struct {
	ClientID              string        `json:"client_id" env:"OAUTH_CLIENT_ID"`
	AuthorizationEndpoint string        `json:"authorization_endpoint" env:"OAUTH_AUTHORIZATION_ENDPOINT"`
	TokenEndpoint         string        `json:"token_endpoint" env:"OAUTH_TOKEN_ENDPOINT"`
	Scopes                []string      `json:"scopes"`
	CallbackTimeout       time.Duration `json:"callback_timeout" env:"OAUTH_CALLBACK_TIMEOUT"`
}

// ClassificationConfig controls the LLM classification endpoint.
type ClassificationConfig struct {
	Endpoint string        `json:"endpoint" env:"CLASSIFICATION_ENDPOINT"`
	APIKey   string        `json:"-" env:"CLASSIFICATION_API_KEY"`
	Model    string        `json:"model" env:"CLASSIFICATION_MODEL"`
	Timeout  time.Duration `json:"timeout" env:"CLASSIFICATION_TIMEOUT"`
}

// SchedulerConfig overrides the cron cadence of the background jobs. Empty
// strings fall back to each scheduler's own default expression.
type SchedulerConfig struct {
	CalendarSyncCron       string `json:"calendar_sync_cron" env:"SCHEDULER_CALENDAR_SYNC_CRON"`
	ClassificationRunCron  string `json:"classification_run_cron" env:"SCHEDULER_CLASSIFICATION_RUN_CRON"`
	OutboxDrainCron        string `json:"outbox_drain_cron" env:"SCHEDULER_OUTBOX_DRAIN_CRON"`
	MetricsCleanupCron     string `json:"metrics_cleanup_cron" env:"SCHEDULER_METRICS_CLEANUP_CRON"`
}

// MetricsConfig controls the DogStatsD exporter and host health sampler.
type MetricsConfig struct {
	DogStatsDAddr       string        `json:"dogstatsd_addr" env:"METRICS_DOGSTATSD_ADDR"`
	Namespace           string        `json:"namespace" env:"METRICS_NAMESPACE"`
	HealthCheckInterval time.Duration `json:"health_check_interval" env:"METRICS_HEALTH_CHECK_INTERVAL"`
}

// RuntimeConfig controls environment-dependent behavior shared across
// infrastructure/runtime's strict-identity and environment checks.
type RuntimeConfig struct {
	Environment string `json:"environment" env:"PULSEARC_ENV"`
}

// Config is the top-level configuration structure for the agent process.
type Config struct {
	Database       DatabaseConfig        `json:"database"`
	Logging        LoggingConfig         `json:"logging"`
	Runtime        RuntimeConfig         `json:"runtime"`
	Security       SecurityConfig        `json:"security"`
	OAuth          OAuthConfig           `json:"oauth"`
	Classification ClassificationConfig  `json:"classification"`
	Scheduler      SchedulerConfig       `json:"scheduler"`
	Metrics        MetricsConfig         `json:"metrics"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "pulsearc.db",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 300,
			MigrateOnStart:  true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			FilePrefix: "pulsearc-agent",
		},
		Runtime: RuntimeConfig{
			Environment: "development",
		},
		Security:       SecurityConfig{},
		OAuth:          OAuthConfig{CallbackTimeout: 2 * time.Minute},
		Classification: ClassificationConfig{Timeout: 30 * time.Second},
		Scheduler:      SchedulerConfig{},
		Metrics: MetricsConfig{
			DogStatsDAddr:       "127.0.0.1:8125",
			Namespace:           "pulsearc.",
			HealthCheckInterval: 30 * time.Second,
		},
	}
}

// Load loads configuration from file (if present) and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/config.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode returns an error when no tagged fields are present in the
		// environment; treat that case as "no overrides" so local runs work
		// without exporting vars.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	return cfg, nil
}

// LoadFile reads configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	return nil
}

// LoadConfig is a helper used by tests to load JSON config snippets.
func LoadConfig(path string) (*Config, error) {
	cfg := New()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
