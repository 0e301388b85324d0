package app

import (
	"database/sql"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dispatch/internal/config"
	"dispatch/internal/handler"
	internalRedis "dispatch/internal/redis"
	"dispatch/internal/repository"
	"dispatch/internal/repository/memory"
	"dispatch/internal/repository/postgres"
	"dispatch/internal/service"
)

// Repositories is the storage backend of the service.
type Repositories struct {
	Agents   repository.AgentRepository
	Orders   repository.OrderRepository
	Ledger   repository.LedgerRepository
	Settings repository.SettingsRepository
}

// PostgresRepositories returns repositories backed by db.
func PostgresRepositories(db *sql.DB) Repositories {
	return Repositories{
		Agents:   postgres.NewAgentRepository(db),
		Orders:   postgres.NewOrderRepository(db),
		Ledger:   postgres.NewLedgerRepository(db),
		Settings: postgres.NewSettingsRepository(db),
	}
}

// MemoryRepositories returns repositories backed by store.
func MemoryRepositories(store *memory.Store) Repositories {
	return Repositories{
		Agents:   store.Agents(),
		Orders:   store.Orders(),
		Ledger:   store.Ledger(),
		Settings: store.Settings(),
	}
}

// Deps contains everything Wire needs. RedisClient and NewRelicApp may be nil.
type Deps struct {
	Config      *config.Config
	Repos       Repositories
	RedisClient *redis.Client
	NewRelicApp *newrelic.Application
	AuditLog    service.AuditLog
	Payout      service.PayoutProcessor
	Notifier    service.Notifier
	Logger      *zap.Logger
}

// Services groups the wired domain services.
type Services struct {
	Settings    *service.SettingsService
	Agents      *service.AgentService
	Dispatch    *service.DispatchService
	Orders      *service.OrderService
	Ledger      *service.LedgerService
	Performance *service.PerformanceService
}

// Wire builds the services and the HTTP router.
func Wire(d Deps) (*gin.Engine, *Services) {
	cfg := d.Config

	var (
		locationStore internalRedis.LocationStoreInterface
		lockStore     internalRedis.LockStoreInterface
		cacheStore    internalRedis.CacheStoreInterface
	)
	if d.RedisClient != nil {
		locationStore = internalRedis.NewLocationStore(d.RedisClient)
		lockStore = internalRedis.NewLockStore(d.RedisClient)
		cacheStore = internalRedis.NewCacheStore(d.RedisClient, cfg.Redis.SettingsTTL)
	}

	settingsService := service.NewSettingsService(d.Repos.Settings, cacheStore, d.Logger)
	agentService := service.NewAgentService(d.Repos.Agents, settingsService, locationStore, d.Logger)
	performanceService := service.NewPerformanceService(d.Repos.Agents, d.Logger)
	ledgerService := service.NewLedgerService(
		d.Repos.Ledger, settingsService, d.Payout, d.Notifier, d.AuditLog, d.Logger, cfg.Ledger.PayoutTimeout,
	)
	dispatchService := service.NewDispatchService(
		d.Repos.Agents, d.Repos.Orders, settingsService, lockStore, d.Notifier, d.AuditLog, d.Logger, cfg.Dispatch.AgentLockTTL,
	)
	orderService := service.NewOrderService(
		d.Repos.Orders,
		d.Repos.Agents,
		settingsService,
		service.NewVolumeCounter(d.Repos.Ledger, cfg.Dispatch.Location),
		ledgerService,
		performanceService,
		locationStore,
		d.Notifier,
		d.AuditLog,
		d.Logger,
	)

	router := NewRouter(RouterDeps{
		AgentHandler:    handler.NewAgentHandler(agentService),
		OrderHandler:    handler.NewOrderHandler(dispatchService, orderService),
		WalletHandler:   handler.NewWalletHandler(ledgerService),
		AdminHandler:    handler.NewAdminHandler(ledgerService, orderService, settingsService),
		RedisClient:     d.RedisClient,
		NewRelicApp:     d.NewRelicApp,
		Logger:          d.Logger,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		AdminPrincipals: cfg.Server.AdminPrincipals,
	})

	return router, &Services{
		Settings:    settingsService,
		Agents:      agentService,
		Dispatch:    dispatchService,
		Orders:      orderService,
		Ledger:      ledgerService,
		Performance: performanceService,
	}
}
