package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rhuss/httpd/pkg/auth"
	"github.com/rhuss/httpd/pkg/auth/apikey"
	"github.com/rhuss/httpd/pkg/auth/jwt"
	"github.com/rhuss/httpd/pkg/config"
	"github.com/rhuss/httpd/pkg/httpd"
	"github.com/rhuss/httpd/pkg/retention"
	"github.com/rhuss/httpd/pkg/storage"
	"github.com/rhuss/httpd/pkg/storage/fs"
	"github.com/rhuss/httpd/pkg/storage/memory"
	"github.com/rhuss/httpd/pkg/storage/pebble"
	"github.com/rhuss/httpd/pkg/storage/postgres"
)

// app holds the long-lived components built from a Config.
type app struct {
	service   *httpd.Service
	store     storage.UploadStore
	retention *retention.Manager
}

// Close stops retention and releases the upload store.
func (a *app) Close() error {
	if a.retention != nil {
		a.retention.Stop()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// buildApp wires storage, retention, auth and rate limiting into the
// service. Components already started are released when a later one fails.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	store, err := newStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("creating %s store: %w", cfg.Storage.Type, err)
	}
	a.store = store
	logger.Info("storage enabled", "type", cfg.Storage.Type)

	if cfg.Retention.Enabled {
		a.retention, err = retention.Start(ctx, a.store, cfg.Retention.Cron, cfg.Retention.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("starting retention: %w", err)
		}
		logger.Info("retention enabled", "cron", cfg.Retention.Cron, "max_age", cfg.Retention.MaxAge)
	}

	chain, issuer, err := newAuth(cfg.Auth)
	if err != nil {
		return nil, err
	}
	if chain != nil {
		logger.Info("authentication enabled", "login", cfg.Auth.Login)
	}

	a.service = httpd.New(httpd.Options{
		DocumentRoot: cfg.Server.DocumentRoot,
		Uploads:      a.store,
		Tokens:       issuer,
		Auth:         chain,
		Limiter:      newLimiter(cfg.RateLimit),
		Loops:        cfg.Server.Loops,
		Logger:       logger,
	})
	return a, nil
}

func newStore(ctx context.Context, cfg config.StorageConfig) (storage.UploadStore, error) {
	switch cfg.Type {
	case config.StorageFS:
		return fs.New(cfg.Dir)
	case config.StorageMemory:
		return memory.New(cfg.MaxSize), nil
	case config.StoragePebble:
		return pebble.New(cfg.Pebble.Path)
	case config.StoragePostgres:
		return postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// newAuth returns the login token issuer and, when authentication is
// enabled, the chain guarding every non-bypassed route. A token from the
// issuer is always accepted by the chain.
func newAuth(cfg config.AuthConfig) (*auth.AuthChain, httpd.TokenIssuer, error) {
	var (
		issuer httpd.TokenIssuer
		authn  auth.Authenticator
	)
	switch cfg.Login {
	case config.LoginJWT:
		j, err := jwt.New(jwt.Config{
			Secret: []byte(cfg.JWT.Secret),
			Issuer: cfg.JWT.Issuer,
			TTL:    cfg.JWT.TTL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("creating jwt issuer: %w", err)
		}
		issuer, authn = j, j
	case config.LoginStatic, "":
		token := cfg.StaticToken()
		issuer = httpd.StaticToken(token)
		authn = apikey.New([]apikey.RawKeyEntry{{
			Key:      token,
			Identity: auth.Identity{Subject: httpd.DefaultUsername},
		}})
	default:
		return nil, nil, errors.New("unknown login mode " + cfg.Login)
	}

	if !cfg.Enabled {
		return nil, issuer, nil
	}
	return &auth.AuthChain{
		Authenticators:  []auth.Authenticator{authn},
		DefaultDecision: auth.No,
	}, issuer, nil
}

// newLimiter returns nil when limiting is disabled so the preprocessor
// skips the step.
func newLimiter(cfg config.RateLimitConfig) auth.RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	return auth.NewClientLimiter(cfg.RequestsPerSecond, cfg.Burst)
}
