// Package postgres provides a PostgreSQL upload store built on pgx/v5
// connection pooling.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/httpd/pkg/debug"
	"github.com/rhuss/httpd/pkg/storage"
)

// Store is a PostgreSQL-backed UploadStore.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.UploadStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Save upserts an upload. A re-saved upload gets a fresh saved_at.
func (s *Store) Save(ctx context.Context, name string, content []byte) error {
	name, err := storage.CleanName(name)
	if err != nil {
		return err
	}
	if content == nil {
		content = []byte{}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO uploads (name, content, size, saved_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET content = EXCLUDED.content, size = EXCLUDED.size, saved_at = EXCLUDED.saved_at
	`, name, content, len(content))
	if err != nil {
		return fmt.Errorf("inserting upload: %w", err)
	}
	debug.Log(debug.Storage, "upload saved", "backend", "postgres", "name", name, "bytes", len(content))
	return nil
}

// Load returns the content stored under name.
func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	name, err := storage.CleanName(name)
	if err != nil {
		return nil, err
	}

	var content []byte
	err = s.pool.QueryRow(ctx, "SELECT content FROM uploads WHERE name = $1", name).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying upload: %w", err)
	}
	return content, nil
}

// Prune deletes uploads saved before the cutoff.
func (s *Store) Prune(ctx context.Context, before time.Time) (int, error) {
	result, err := s.pool.Exec(ctx, "DELETE FROM uploads WHERE saved_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("pruning uploads: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
