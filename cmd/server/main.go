// Package main is the entry point for the voca-study-hub API server.
//
// The service schedules spaced-repetition vocabulary reviews and walks
// learners through 30-day study cycles per level. Layout follows Clean
// Architecture:
// - Domain: scheduling and cycle rules with no external dependencies
// - Application: use case orchestration (Commands/Queries)
// - Infrastructure: PostgreSQL store, Redis status cache
// - Interface: HTTP endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vocahub/voca-study-hub/config"
	"github.com/vocahub/voca-study-hub/internal/application/command"
	"github.com/vocahub/voca-study-hub/internal/application/query"
	"github.com/vocahub/voca-study-hub/internal/domain/study"
	"github.com/vocahub/voca-study-hub/internal/infrastructure/persistence/postgres"
	"github.com/vocahub/voca-study-hub/internal/infrastructure/persistence/redis"
	httpserver "github.com/vocahub/voca-study-hub/internal/interface/http"
	"github.com/vocahub/voca-study-hub/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.App.Debug,
	})
	log.Info("starting voca-study-hub",
		logger.String("environment", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Bool("debug", cfg.App.Debug))

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database")
	conn, err := newConnection(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection")
		conn.Close()
	}()

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. MIGRATIONS
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.AutoMigrate {
		log.Info("running database migrations")
		migrator := postgres.NewMigrator(conn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		status, err := migrator.Status(ctx)
		if err != nil {
			log.Warn("failed to get migration status", logger.Err(err))
		} else {
			applied := 0
			for _, m := range status {
				if m.IsApplied {
					applied++
				}
			}
			log.Info("migrations completed",
				logger.Int("applied", applied),
				logger.Int("total", len(status)))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (optional level-status cache)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		statusCache study.StatusCache = study.NopStatusCache{}
		cachePinger httpserver.Pinger
	)
	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis")
		redisCache, err := redis.NewCache(redisConfig(cfg))
		if err != nil {
			log.Warn("failed to connect to Redis, status caching disabled", logger.Err(err))
		} else {
			defer redisCache.Close()
			statusCache = redis.NewStatusCache(redisCache, log)
			cachePinger = redisCache
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. APPLICATION LAYER (Commands, Queries)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer")
	store := postgres.NewStore(conn)

	registerLearnerCmd := command.NewRegisterLearnerHandler(store, log)
	recordReviewCmd := command.NewRecordReviewHandler(store, statusCache, log)
	openDayCmd := command.NewOpenDayHandler(store, statusCache, log)
	completeDayCmd := command.NewCompleteDayHandler(store, statusCache, log)
	confirmCycleCmd := command.NewConfirmCycleHandler(store, statusCache, log)

	authenticateQuery := query.NewAuthenticateHandler(store)
	nextCardQuery := query.NewNextCardHandler(store)
	todayCardQuery := query.NewTodayCardHandler(store)
	remindCardQuery := query.NewRemindCardHandler(store)
	levelStatusQuery := query.NewLevelStatusHandler(store, statusCache)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server")

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.EnableCORS = cfg.HTTP.EnableCORS
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	server := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		RegisterLearner: registerLearnerCmd,
		RecordReview:    recordReviewCmd,
		OpenDay:         openDayCmd,
		CompleteDay:     completeDayCmd,
		ConfirmCycle:    confirmCycleCmd,
		Authenticate:    authenticateQuery,
		NextCard:        nextCardQuery,
		TodayCard:       todayCardQuery,
		RemindCard:      remindCardQuery,
		LevelStatus:     levelStatusQuery,
		Database:        conn,
		Cache:           cachePinger,
		Logger:          log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", logger.String("address", server.Address()))
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("service error", logger.Err(err))
		return err
	}

	log.Info("starting graceful shutdown",
		logger.Duration("timeout", cfg.App.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	log.Info("shutdown completed")
	return nil
}

// newConnection builds a pool from DATABASE_URL when set, otherwise from the
// component settings, applying pool limits from the configuration.
func newConnection(ctx context.Context, cfg *config.Config) (*postgres.Connection, error) {
	if cfg.Database.URL != "" {
		return postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	}
	pgCfg := postgres.DefaultConfig()
	if cfg.Database.MaxConns > 0 {
		pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	}
	if cfg.Database.MinConns > 0 {
		pgCfg.MinConns = int32(cfg.Database.MinConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	}
	if cfg.Database.ConnMaxIdleTime > 0 {
		pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	}
	return postgres.NewConnection(ctx, pgCfg)
}

// redisConfig maps application settings onto the cache package config.
func redisConfig(cfg *config.Config) redis.Config {
	rc := redis.DefaultConfig()
	if cfg.Redis.Host != "" {
		rc.Host = cfg.Redis.Host
	}
	if cfg.Redis.Port > 0 {
		rc.Port = cfg.Redis.Port
	}
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	if cfg.Redis.PoolSize > 0 {
		rc.PoolSize = cfg.Redis.PoolSize
	}
	if cfg.Redis.MinIdleConns > 0 {
		rc.MinIdleConns = cfg.Redis.MinIdleConns
	}
	if cfg.Redis.DialTimeout > 0 {
		rc.DialTimeout = cfg.Redis.DialTimeout
	}
	if cfg.Redis.ReadTimeout > 0 {
		rc.ReadTimeout = cfg.Redis.ReadTimeout
	}
	if cfg.Redis.WriteTimeout > 0 {
		rc.WriteTimeout = cfg.Redis.WriteTimeout
	}
	return rc
}
