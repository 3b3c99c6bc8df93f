package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql, used by goose
	"github.com/pressly/goose/v3"

	"workingonit/backend/internal/config"
)

// NewPool builds the pool for the remote mirror from RemoteConfig. Connections
// are opened lazily, so an unreachable server is not an error here; only a
// malformed DSN is.
func NewPool(ctx context.Context, cfg config.RemoteConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse remote DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	return pool, nil
}

// MigratePostgres applies the embedded goose migrations to the remote mirror
// and returns how many were applied.
func MigratePostgres(ctx context.Context, dsn string) (int, error) {
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		return 0, fmt.Errorf("open remote: %w", err)
	}
	defer database.Close()

	if err := database.PingContext(ctx); err != nil {
		return 0, fmt.Errorf("ping remote: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, database, PostgresMigrations())
	if err != nil {
		return 0, fmt.Errorf("goose new provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("goose up: %w", err)
	}
	return len(results), nil
}
