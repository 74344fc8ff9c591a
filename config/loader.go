// Package config loads and validates the service's configuration.
//
// Precedence: defaults -> YAML file (if present) -> environment variables.
// Environment variable names are exactly the ones enumerated in the
// external interface surface (DB_URL, CRM_TOKEN, ...); no prefix is
// applied, matching how the service is actually deployed.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service's complete, validated configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	CRM       CRMConfig       `yaml:"crm"`
	TaxID     TaxIDConfig     `yaml:"tax_id"`
	Enrich    EnrichConfig    `yaml:"enrich"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Log       LogConfig       `yaml:"log"`
	Worker    WorkerConfig    `yaml:"worker"`
}

// ServerConfig controls the HTTP listener and its metrics sibling.
type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig wraps the single DB_URL connection string plus pool sizing.
type DatabaseConfig struct {
	URL             string        `yaml:"url" env:"DB_URL"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
}

// DSN returns the Postgres connection string GORM expects.
func (d DatabaseConfig) DSN() string {
	return d.URL
}

// CRMConfig holds the Bearer-authenticated CRM client's credentials.
type CRMConfig struct {
	Token         string `yaml:"token" env:"CRM_TOKEN"`
	BaseURL       string `yaml:"base_url" env:"CRM_BASE_URL"`
	DefaultSeller string `yaml:"default_seller_id" env:"DEFAULT_SELLER_ID"`
}

// TaxIDConfig holds the Basic-authenticated tax-ID resolver's credentials.
type TaxIDConfig struct {
	BaseURL  string `yaml:"base_url" env:"TAX_ID_RESOLVER_BASE_URL"`
	User     string `yaml:"user" env:"TAX_ID_RESOLVER_USER"`
	Password string `yaml:"password" env:"TAX_ID_RESOLVER_PASS"`
}

// EnrichConfig holds the API-key-authenticated deep-enrichment provider's
// credentials and the outbound message clamp.
type EnrichConfig struct {
	BaseURL              string `yaml:"base_url" env:"DEEP_ENRICH_BASE_URL"`
	APIKey               string `yaml:"api_key" env:"DEEP_ENRICH_API_KEY"`
	DescriptionMaxLength int    `yaml:"description_max_length" env:"DESCRIPTION_MAX_LENGTH"`
}

// WebhookConfig holds the shared secrets for the two webhook routes.
type WebhookConfig struct {
	Secret      string `yaml:"secret" env:"WEBHOOK_SECRET"`
	AdsKey      string `yaml:"ads_key" env:"ADS_WEBHOOK_KEY"`
}

// LogConfig controls zap's output.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// WorkerConfig controls the bounded background enrichment dispatcher and
// the reconciliation sweep that reclaims stuck in-flight jobs.
type WorkerConfig struct {
	PoolSize           int           `yaml:"pool_size" env:"WORKER_POOL_SIZE"`
	QueueSize          int           `yaml:"queue_size" env:"WORKER_QUEUE_SIZE"`
	ReconcileInterval  time.Duration `yaml:"reconcile_interval" env:"RECONCILE_SWEEP_INTERVAL"`
	ReconcileTimeout   time.Duration `yaml:"reconcile_timeout" env:"RECONCILE_STUCK_TIMEOUT"`
}

// Loader builds a Config via default values, an optional YAML file, and
// an environment-variable overlay.
type Loader struct {
	configPath string
	validators []func(*Config) error
}

// NewLoader returns a Loader with no file configured.
func NewLoader() *Loader {
	return &Loader{validators: make([]func(*Config) error, 0)}
}

// WithConfigPath sets an optional YAML file to overlay onto the defaults.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithValidator registers an additional validation pass run after Load.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load applies defaults, then the file (if configured), then environment
// variables, then runs validators.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := loadFromEnv(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// loadFromEnv walks v recursively, setting any field tagged `env:"NAME"`
// from the environment variable of that exact name.
func loadFromEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := loadFromEnv(field); err != nil {
				return err
			}
			continue
		}

		envKey := fieldType.Tag.Get("env")
		if envKey == "" || envKey == "-" {
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad loads configuration from path (if non-empty) and the
// environment, panicking on failure. Intended for use at process startup.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate checks the required settings named in the external interface
// surface and fails fast on anything missing or out of range.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.URL == "" {
		errs = append(errs, "DB_URL is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, "PORT must be a valid TCP port")
	}
	if c.Enrich.DescriptionMaxLength <= 0 {
		errs = append(errs, "DESCRIPTION_MAX_LENGTH must be positive")
	}
	if c.Worker.PoolSize <= 0 {
		errs = append(errs, "WORKER_POOL_SIZE must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
