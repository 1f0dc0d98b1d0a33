// Package config provides unified configuration for the httpd server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. .env file (values already in the environment win)
//  3. YAML config file (discovered or explicitly specified)
//  4. Environment variable overrides (HTTPD_ prefix)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import "time"

// Config holds all configuration for the httpd server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Retention     RetentionConfig     `yaml:"retention"`
	Auth          AuthConfig          `yaml:"auth"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// Transport engines.
const (
	EngineNetHTTP  = "nethttp"
	EngineFastHTTP = "fasthttp"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	Engine          string        `yaml:"engine"`           // "nethttp" or "fasthttp", default: "nethttp"
	DocumentRoot    string        `yaml:"document_root"`    // default: "html"
	MaxBodySize     SizeBytes     `yaml:"max_body_size"`    // default: 10MB
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	IdleTimeout     time.Duration `yaml:"idle_timeout"`     // default: 120s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	Loops           int           `yaml:"loops"`            // event loops, 0 = one per CPU
}

// Storage backends for uploads.
const (
	StorageFS       = "fs"
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StoragePebble   = "pebble"
)

// StorageConfig selects where uploads are kept.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "fs", "memory", "postgres" or "pebble", default: "fs"
	Dir      string         `yaml:"dir"`      // fs directory, default: "html/uploads"
	MaxSize  int            `yaml:"max_size"` // memory store entries, default: 1000
	Pebble   PebbleConfig   `yaml:"pebble"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// PebbleConfig holds the embedded store settings.
type PebbleConfig struct {
	Path string `yaml:"path"` // default: "data/uploads"
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`  // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"` // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// RetentionConfig controls periodic pruning of old uploads.
type RetentionConfig struct {
	Enabled bool          `yaml:"enabled"`
	Cron    string        `yaml:"cron"`    // default: "0 * * * *"
	MaxAge  time.Duration `yaml:"max_age"` // default: 168h
}

// Login token modes.
const (
	LoginStatic = "static"
	LoginJWT    = "jwt"
)

// AuthConfig holds token authentication settings.
type AuthConfig struct {
	// Enabled requires a token on every path but /login and /ping.
	Enabled bool `yaml:"enabled"`

	Login     string    `yaml:"login"`      // "static" or "jwt", default: "static"
	Token     string    `yaml:"token"`      // static token, empty means DefaultToken
	TokenFile string    `yaml:"token_file"` // _file variant for token
	JWT       JWTConfig `yaml:"jwt"`
}

// DefaultToken is the static login token when none is configured.
const DefaultToken = "abcdefg"

// StaticToken returns the configured static token or DefaultToken.
func (a AuthConfig) StaticToken() string {
	if a.Token == "" {
		return DefaultToken
	}
	return a.Token
}

// JWTConfig holds the signing settings of jwt login mode.
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	SecretFile string        `yaml:"secret_file"` // _file variant for secret
	Issuer     string        `yaml:"issuer"`
	TTL        time.Duration `yaml:"ttl"` // default: 24h
}

// RateLimitConfig holds per-client request limits. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics  MetricsConfig `yaml:"metrics"`
	Debug    string        `yaml:"debug"`     // debug categories, e.g. "transport,scheduler"
	LogLevel string        `yaml:"log_level"` // default: "INFO"
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			Engine:          EngineNetHTTP,
			DocumentRoot:    "html",
			MaxBodySize:     10 << 20,
			ReadTimeout:     30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Type:    StorageFS,
			Dir:     "html/uploads",
			MaxSize: 1000,
			Pebble: PebbleConfig{
				Path: "data/uploads",
			},
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
		},
		Retention: RetentionConfig{
			Cron:   "0 * * * *",
			MaxAge: 7 * 24 * time.Hour,
		},
		Auth: AuthConfig{
			Login: LoginStatic,
			JWT: JWTConfig{
				TTL: 24 * time.Hour,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
			LogLevel: "INFO",
		},
	}
}
