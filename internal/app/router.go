package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dispatch/internal/handler"
	"dispatch/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	AgentHandler    *handler.AgentHandler
	OrderHandler    *handler.OrderHandler
	WalletHandler   *handler.WalletHandler
	AdminHandler    *handler.AdminHandler
	RedisClient     *redis.Client // nil disables idempotency replay
	NewRelicApp     *newrelic.Application
	Logger          *zap.Logger
	AllowedOrigins  []string
	AdminPrincipals []string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.AccessLog(deps.Logger))
	router.Use(middleware.CORS(deps.AllowedOrigins))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(middleware.RequirePrincipal())
	if deps.NewRelicApp != nil {
		v1.Use(middleware.NewRelicAttributes())
	}
	v1.Use(middleware.Idempotency(deps.RedisClient, deps.Logger))
	{
		v1.PUT("/agents/me/location", deps.AgentHandler.UpdateLocation)

		orders := v1.Group("/orders")
		{
			orders.POST("/assign", deps.OrderHandler.AssignOrder)
			orders.GET("/:id", deps.OrderHandler.GetOrder)
			orders.POST("/:id/transition", deps.OrderHandler.Transition)
		}

		wallet := v1.Group("/wallet")
		{
			wallet.GET("", deps.WalletHandler.GetWallet)
			wallet.GET("/transactions", deps.WalletHandler.ListTransactions)
			wallet.POST("/withdrawals", deps.WalletHandler.RequestWithdrawal)
		}

		admin := v1.Group("/admin", middleware.RequireAdmin(deps.AdminPrincipals))
		{
			admin.POST("/agents", deps.AgentHandler.Register)
			admin.POST("/agents/:id/credits", deps.AdminHandler.Credit)
			admin.POST("/agents/:id/penalties", deps.AdminHandler.ApplyPenalty)
			admin.POST("/orders/:id/settle", deps.AdminHandler.SettleOrder)
			admin.GET("/settings/rates", deps.AdminHandler.GetRates)
			admin.PUT("/settings/rates", deps.AdminHandler.PutRates)
		}
	}

	return router
}
