package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"taskboard/api/internal/cache"
	"taskboard/api/internal/config"
	"taskboard/api/internal/database"
	"taskboard/api/internal/handlers"
	"taskboard/api/internal/jobs"
	"taskboard/api/internal/log"
	"taskboard/api/internal/metrics"
	"taskboard/api/internal/repository"
	"taskboard/api/internal/security"
	"taskboard/api/internal/server"
	"taskboard/api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, dbPool, "up"); err != nil {
			logger.Fatal().Err(err).Msg("auto migrate failed")
		}
		logger.Info().Msg("migrations applied")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	hasher, err := security.NewPasswordHasher(cfg.Security.PasswordAlgorithm)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid password algorithm")
	}
	tokens, err := security.NewTokenService(cfg.Security.JWTSecret, cfg.Security.JWTAccessTTL, cfg.Security.JWTRefreshTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid token settings")
	}

	registry := metrics.NewRegistry()
	appMetrics := metrics.New(registry)

	users := repository.NewUserRepository(dbPool)
	licenses := repository.NewLicenseRepository(dbPool)
	tasks := repository.NewTaskRepository(dbPool)

	deps := handlers.Dependencies{
		Log:      logger,
		Config:   cfg,
		Database: dbPool,
	}

	// Interfaces stay nil when redis is disabled.
	var statusCache service.StatusCache
	if redisClient != nil {
		licenseCache := cache.NewLicenseStatusCache(redisClient, cfg.Redis.StatusTTL)
		statusCache = licenseCache
		deps.Cache = licenseCache
	}

	guard := service.NewSessionGuard(tokens, users, logger)
	deps.Guard = guard
	deps.Auth = service.NewAuthService(users, hasher, tokens, guard, appMetrics, logger)
	deps.Licenses = service.NewLicenseService(licenses, statusCache, appMetrics, logger)
	deps.Tasks = service.NewTaskService(tasks, logger)

	handlerSet := handlers.NewHandlerSet(deps)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet, appMetrics, registry)

	scheduler := jobs.NewScheduler(licenses, appMetrics, cfg.Jobs.LicenseReport, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("scheduler did not stop in time")
	}

	db.Close()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
