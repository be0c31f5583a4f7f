// Package postgres is the PostgreSQL store implementation built on
// pgx connection pools.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cathal-killeen/fins/pkg/errors"
	"github.com/cathal-killeen/fins/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config holds the database connection settings.
type Config struct {
	DSN             string        `json:"dsn" mapstructure:"dsn"`
	MaxConns        int32         `json:"max_conns" mapstructure:"max_conns"`
	ConnectTimeout  time.Duration `json:"connect_timeout" mapstructure:"connect_timeout"`
	MigrateOnStart  bool          `json:"migrate_on_start" mapstructure:"migrate_on_start"`
}

// DefaultConfig returns the standard database configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxConns:       10,
		ConnectTimeout: 10 * time.Second,
		MigrateOnStart: true,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max conns must be positive: %d", c.MaxConns)
	}
	return nil
}

// Store implements the persistence interfaces against PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// New connects to the database and optionally applies pending
// migrations.
func New(ctx context.Context, config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "database", nil, err)
	}

	poolConfig, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "database.dsn", nil, err)
	}
	poolConfig.MaxConns = config.MaxConns

	connectCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, errors.PersistenceError(errors.CodeConnectionFailed, "connect to database", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, errors.PersistenceError(errors.CodeConnectionFailed, "ping database", err)
	}

	s := &Store{
		pool:   pool,
		logger: logger.GetGlobalLogger().WithComponent("postgres"),
	}

	if config.MigrateOnStart {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate applies embedded migration files that have not yet been
// recorded in schema_migrations, in filename order.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return errors.PersistenceError(errors.CodeQueryFailed, "create migrations table", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return errors.InternalError("read embedded migrations", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, filename := range files {
		var applied bool
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`,
			filename,
		).Scan(&applied)
		if err != nil {
			return errors.PersistenceError(errors.CodeQueryFailed, "check migration "+filename, err)
		}
		if applied {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + filename)
		if err != nil {
			return errors.InternalError("read migration "+filename, err)
		}

		if _, err := s.pool.Exec(ctx, string(content)); err != nil {
			return errors.PersistenceError(errors.CodeQueryFailed, "apply migration "+filename, err)
		}

		if _, err := s.pool.Exec(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1)`, filename,
		); err != nil {
			return errors.PersistenceError(errors.CodeQueryFailed, "record migration "+filename, err)
		}

		s.logger.WithField("version", filename).Info("Applied migration")
	}

	return nil
}
