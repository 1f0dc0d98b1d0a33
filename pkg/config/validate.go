package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adhocore/gronx"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}

	switch c.Server.Engine {
	case EngineNetHTTP, EngineFastHTTP:
	default:
		errs = append(errs, fmt.Errorf("server.engine must be %q or %q, got %q", EngineNetHTTP, EngineFastHTTP, c.Server.Engine))
	}

	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	if c.Server.Loops < 0 {
		errs = append(errs, fmt.Errorf("server.loops must be >= 0, got %d", c.Server.Loops))
	}

	switch c.Storage.Type {
	case StorageFS:
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("storage.dir is required when storage.type is \"fs\""))
		}
	case StorageMemory:
		if c.Storage.MaxSize <= 0 {
			errs = append(errs, fmt.Errorf("storage.max_size must be > 0, got %d", c.Storage.MaxSize))
		}
	case StoragePebble:
		if c.Storage.Pebble.Path == "" {
			errs = append(errs, errors.New("storage.pebble.path is required when storage.type is \"pebble\""))
		}
	case StoragePostgres:
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, errors.New("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be one of fs, memory, postgres, pebble, got %q", c.Storage.Type))
	}

	if c.Retention.Enabled {
		if !gronx.New().IsValid(c.Retention.Cron) {
			errs = append(errs, fmt.Errorf("retention.cron: not a valid cron expression: %q", c.Retention.Cron))
		}
		if c.Retention.MaxAge <= 0 {
			errs = append(errs, fmt.Errorf("retention.max_age must be > 0, got %s", c.Retention.MaxAge))
		}
	}

	switch c.Auth.Login {
	case LoginStatic:
	case LoginJWT:
		if c.Auth.JWT.Secret == "" && c.Auth.JWT.SecretFile == "" {
			errs = append(errs, errors.New("auth.jwt.secret or auth.jwt.secret_file is required when auth.login is \"jwt\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.login must be %q or %q, got %q", LoginStatic, LoginJWT, c.Auth.Login))
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.requests_per_second must be >= 0, got %g", c.RateLimit.RequestsPerSecond))
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with /, got %q", c.Observability.Metrics.Path))
	}

	return errors.Join(errs...)
}
