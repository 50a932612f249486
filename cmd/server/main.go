package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/vitals-triage-server/internal/api"
	"github.com/vitals-triage-server/internal/cache"
	"github.com/vitals-triage-server/internal/config"
	"github.com/vitals-triage-server/internal/database"
	"github.com/vitals-triage-server/internal/logging"
	"github.com/vitals-triage-server/internal/service"
	"github.com/vitals-triage-server/internal/store"
	"github.com/vitals-triage-server/internal/stream"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, configManager, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func run(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()

	dbConfig := database.ConfigFromDomain(cfg.Database)
	db, err := database.NewConnection(ctx, dbConfig, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	runner, err := database.NewMigrationRunner(dbConfig.URL(), cfg.Database.MigrationsPath, logger)
	if err != nil {
		return err
	}
	if err := runner.Up(); err != nil {
		runner.Close()
		return err
	}
	runner.Close()

	pgStore, err := store.NewPostgresStore(db.Pool, logger)
	if err != nil {
		return err
	}

	checks := map[string]api.HealthCheck{"database": db.Health}

	// Redis is optional: without it profiles are cached in process only.
	var shared cache.ProfileCache
	redisCache, err := cache.NewRedisCache(ctx, cfg.Cache, logger)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, continuing with in-memory profile cache only")
	} else {
		defer redisCache.Close()
		shared = redisCache
		checks["redis"] = redisCache.Ping
	}

	engine := service.NewHealthRuleEngine(logger, cfg.Thresholds)
	resolver := service.NewProfileResolver(pgStore,
		cache.NewMemoryCache(cfg.Cache.MemoryMaxItems, cfg.Cache.MemoryTTL),
		shared, service.DefaultProfileResolverConfig(), logger)
	hub := stream.NewHub(cfg.Stream, logger)
	svc := service.NewAssessmentService(engine, resolver, pgStore, hub, logger)

	server := api.NewServer(configManager, api.Dependencies{
		Service:      svc,
		Hub:          hub,
		Logger:       logger,
		HealthChecks: checks,
	})

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"environment": cfg.Server.Environment,
	}).Info("Starting vitals triage server")

	return server.Start(ctx)
}
