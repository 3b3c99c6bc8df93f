package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"workingonit/backend/internal/config"
	"workingonit/backend/internal/db"
	"workingonit/backend/internal/syncqueue"
)

// remoteLink owns the pool of the Postgres mirror. An unreachable server at
// startup is not fatal: the link is marked offline, changes queue locally,
// and Retry keeps trying until the server answers.
type remoteLink struct {
	cfg  config.RemoteConfig
	pool *pgxpool.Pool
	conn *syncqueue.Connectivity
	log  *slog.Logger

	ready bool
}

func openRemote(ctx context.Context, cfg config.RemoteConfig, conn *syncqueue.Connectivity, logger *slog.Logger) (*remoteLink, error) {
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	link := &remoteLink{
		cfg:  cfg,
		pool: pool,
		conn: conn,
		log:  logger.With("component", "remote"),
	}
	if err := link.prepare(ctx); err != nil {
		link.log.Warn("remote unavailable at startup, changes will be queued", slog.Any("error", err))
		conn.SetOffline()
		return link, nil
	}
	link.ready = true
	return link, nil
}

// prepare pings the server and applies pending migrations when enabled.
func (l *remoteLink) prepare(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.ConnectTimeout)
	defer cancel()

	if err := l.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping remote: %w", err)
	}
	if l.cfg.AutoMigrate {
		applied, err := db.MigratePostgres(ctx, l.cfg.DSN)
		if err != nil {
			return fmt.Errorf("migrate remote: %w", err)
		}
		l.log.Info("remote migrations applied", slog.Int("count", applied))
	}
	return nil
}

// Retry tries the remote again every RetryInterval, and whenever a client
// reports connectivity, until prepare succeeds. It then marks the link
// online, which makes the sync worker flush the queues.
func (l *remoteLink) Retry(ctx context.Context) error {
	if l.ready {
		return nil
	}
	restored := l.conn.Restored()
	ticker := time.NewTicker(l.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-restored:
		}
		if err := l.prepare(ctx); err != nil {
			l.log.Debug("remote still unavailable", slog.Any("error", err))
			continue
		}
		l.ready = true
		l.log.Info("remote reachable again")
		l.conn.SetOnline()
		return nil
	}
}

func (l *remoteLink) Close() {
	l.pool.Close()
}
