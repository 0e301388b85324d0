package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dispatch/internal/app"
	"dispatch/internal/audit"
	"dispatch/internal/config"
	"dispatch/internal/repository/memory"
	"dispatch/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic goes first so the database and Redis can be instrumented.
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", zap.Error(err))
		} else {
			logger.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	var (
		repos app.Repositories
		db    *sql.DB
	)
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		repos = app.MemoryRepositories(memory.NewStore())
		if err := repos.Settings.Put(ctx, config.SeedRateConfig()); err != nil {
			logger.Fatal("failed to seed memory settings", zap.Error(err))
		}
		logger.Info("using in-memory storage")
	default:
		db, err = app.OpenStorage(ctx, cfg.Database, nrApp)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		repos = app.PostgresRepositories(db)
		if config.SettingsBootstrap() {
			if err := app.BootstrapSettings(ctx, repos.Settings, logger); err != nil {
				logger.Fatal("failed to bootstrap settings", zap.Error(err))
			}
		}
		logger.Info("connected to PostgreSQL", zap.String("host", cfg.Database.Host))
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	var auditLog service.AuditLog = service.NewLoggerAuditLog(logger)
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaLog := audit.NewKafkaLog(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		defer func() {
			if err := kafkaLog.Close(); err != nil {
				logger.Warn("failed to close audit publisher", zap.Error(err))
			}
		}()
		auditLog = kafkaLog
		logger.Info("publishing audit entries to Kafka", zap.String("topic", cfg.Kafka.AuditTopic))
	}

	router, _ := app.Wire(app.Deps{
		Config:      cfg,
		Repos:       repos,
		RedisClient: redisClient,
		NewRelicApp: nrApp,
		AuditLog:    auditLog,
		Payout:      service.NewMockPayout(),
		Notifier:    service.NewNotificationService(logger),
		Logger:      logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}
	logger.Info("server exited")
}
