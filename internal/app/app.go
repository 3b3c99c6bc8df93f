package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"workingonit/backend/internal/classifier"
	"workingonit/backend/internal/clock"
	"workingonit/backend/internal/config"
	"workingonit/backend/internal/db"
	"workingonit/backend/internal/handler"
	"workingonit/backend/internal/remote"
	"workingonit/backend/internal/repository"
	"workingonit/backend/internal/router"
	"workingonit/backend/internal/service"
	"workingonit/backend/internal/syncqueue"
)

// Run loads configuration, wires the local store, the optional remote
// mirror, the sync worker and the HTTP API, and serves until ctx is done.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)
	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.Bool("remote_enabled", cfg.Remote.Enabled()),
		slog.Bool("ai_enabled", cfg.Classifier.AIEnabled()),
	)
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := OpenLocal(cfg.Local)
	if err != nil {
		return err
	}
	defer database.Close()

	kv := repository.NewSQLiteKV(database)

	syncCfg := syncqueue.Config{
		KV:            kv,
		Connectivity:  syncqueue.NewConnectivity(cfg.Sync.StartOnline),
		Clock:         clock.System{},
		RemoteTimeout: cfg.Sync.RemoteTimeout,
		WorkerBuffer:  cfg.Sync.WorkerBuffer,
		Log:           logger,
	}
	var link *remoteLink
	if cfg.Remote.Enabled() {
		link, err = openRemote(ctx, cfg.Remote, syncCfg.Connectivity, logger)
		if err != nil {
			return err
		}
		defer link.Close()
		syncCfg.Remote = remote.NewPostgres(link.pool)
	}
	syncer := syncqueue.New(syncCfg)

	var suggester classifier.Suggester
	if cfg.Classifier.AIEnabled() {
		suggester = classifier.NewAnthropic(classifier.AnthropicConfig{
			APIKey:  cfg.Classifier.AnthropicAPIKey,
			Model:   cfg.Classifier.Model,
			Timeout: cfg.Classifier.Timeout,
			BaseURL: cfg.Classifier.BaseURL,
		})
	}

	trackerService := service.NewTrackerService(service.TrackerConfig{
		KV:           kv,
		Classifier:   classifier.New(logger, suggester),
		Syncer:       syncer,
		Clock:        clock.System{},
		TickInterval: cfg.Server.TickInterval,
		Log:          logger,
	})
	defer trackerService.Close()

	userRepo := repository.NewUserRepository(database)
	authService := service.NewAuthService(userRepo, trackerService, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger)

	engine := router.New(authService, router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Timer:    handler.NewTimerHandler(trackerService),
		Activity: handler.NewActivityHandler(trackerService),
		Project:  handler.NewProjectHandler(trackerService),
		Entries:  handler.NewEntriesHandler(trackerService),
		Sync:     handler.NewSyncHandler(trackerService),
	}, cfg.Server.Origins(), logger)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		// Timer streams end when the process context is cancelled.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("backend listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return syncer.Run(gctx)
	})
	if link != nil {
		g.Go(func() error {
			return link.Retry(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// OpenLocal opens the SQLite store and applies its migrations, from
// MigrationsDir when set and from the embedded set otherwise.
func OpenLocal(cfg config.LocalConfig) (*sql.DB, error) {
	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var migrations fs.FS = db.SQLiteMigrations()
	if cfg.MigrationsDir != "" {
		migrations = os.DirFS(cfg.MigrationsDir)
	}
	if err := db.RunMigrations(database, migrations); err != nil {
		database.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return database, nil
}
