package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HTTPD_"

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. .env file (HTTPD_ENV_FILE or ./.env); existing variables are kept
//  3. YAML config file (explicit path, HTTPD_CONFIG env, ./config.yaml, /etc/httpd/config.yaml)
//  4. HTTPD_* environment variable overrides
//  5. File reference resolution (_file suffix)
//  6. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv reads HTTPD_ENV_FILE, or .env in the working directory. A
// missing default file is not an error; a missing explicit one is.
func loadDotEnv() error {
	path := os.Getenv(EnvPrefix + "ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. HTTPD_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/httpd/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv(EnvPrefix + "CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "/etc/httpd/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// envOverride binds one HTTPD_* variable to a config field.
type envOverride struct {
	name  string
	apply func(v string) error
}

func stringVar(dst *string) func(string) error {
	return func(v string) error { *dst = v; return nil }
}

func intVar(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func floatVar(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	}
}

func boolVar(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func durationVar(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}

func sizeVar(dst *SizeBytes) func(string) error {
	return func(v string) error {
		s, err := ParseSize(v)
		if err != nil {
			return err
		}
		*dst = s
		return nil
	}
}

// applyEnvOverrides maps HTTPD_* environment variables onto config fields.
// Every malformed value is reported.
func applyEnvOverrides(cfg *Config) error {
	overrides := []envOverride{
		{"PORT", intVar(&cfg.Server.Port)},
		{"ENGINE", stringVar(&cfg.Server.Engine)},
		{"DOCUMENT_ROOT", stringVar(&cfg.Server.DocumentRoot)},
		{"MAX_BODY_SIZE", sizeVar(&cfg.Server.MaxBodySize)},
		{"LOOPS", intVar(&cfg.Server.Loops)},
		{"STORAGE", stringVar(&cfg.Storage.Type)},
		{"UPLOAD_DIR", stringVar(&cfg.Storage.Dir)},
		{"STORAGE_SIZE", intVar(&cfg.Storage.MaxSize)},
		{"PEBBLE_PATH", stringVar(&cfg.Storage.Pebble.Path)},
		{"POSTGRES_DSN", stringVar(&cfg.Storage.Postgres.DSN)},
		{"RETENTION_ENABLED", boolVar(&cfg.Retention.Enabled)},
		{"RETENTION_CRON", stringVar(&cfg.Retention.Cron)},
		{"RETENTION_MAX_AGE", durationVar(&cfg.Retention.MaxAge)},
		{"AUTH_ENABLED", boolVar(&cfg.Auth.Enabled)},
		{"LOGIN_MODE", stringVar(&cfg.Auth.Login)},
		{"TOKEN", stringVar(&cfg.Auth.Token)},
		{"JWT_SECRET", stringVar(&cfg.Auth.JWT.Secret)},
		{"RATE_LIMIT_RPS", floatVar(&cfg.RateLimit.RequestsPerSecond)},
		{"RATE_LIMIT_BURST", intVar(&cfg.RateLimit.Burst)},
		{"METRICS_PATH", stringVar(&cfg.Observability.Metrics.Path)},
		{"DEBUG", stringVar(&cfg.Observability.Debug)},
		{"LOG_LEVEL", stringVar(&cfg.Observability.LogLevel)},
	}

	var errs []error
	for _, o := range overrides {
		v, ok := os.LookupEnv(EnvPrefix + o.name)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, o.name, err))
		}
	}
	return errors.Join(errs...)
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	refs := []struct {
		name  string
		file  string
		value *string
	}{
		{"storage.postgres.dsn_file", cfg.Storage.Postgres.DSNFile, &cfg.Storage.Postgres.DSN},
		{"auth.jwt.secret_file", cfg.Auth.JWT.SecretFile, &cfg.Auth.JWT.Secret},
		{"auth.token_file", cfg.Auth.TokenFile, &cfg.Auth.Token},
	}
	for _, ref := range refs {
		if ref.file == "" || *ref.value != "" {
			continue
		}
		val, err := readSecretFile(ref.file)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.name, err)
		}
		*ref.value = val
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
