package handler

import (
	"campus-wallet/internal/adapter/http/middleware"
	redisStore "campus-wallet/internal/adapter/storage/redis"
	"campus-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc      ports.LedgerService
	SettlementSvc  ports.SettlementService
	ReconcilerSvc  ports.ReconcilerService
	Verifier       CallbackVerifier
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	settlementHandler := NewSettlementHandler(deps.SettlementSvc)
	settlements := v1.Group("/settlements")
	{
		settlements.POST("", rl("settlements"), settlementHandler.Initiate)
		settlements.GET("/:reference", rl("settlements"), settlementHandler.Get)
		settlements.POST("/:reference/confirm-student", rl("settlements"), settlementHandler.ConfirmStudent)
		settlements.POST("/:reference/confirm-merchant", rl("settlements"), settlementHandler.ConfirmMerchant)
		settlements.POST("/:reference/cancel", rl("settlements"), settlementHandler.Cancel)
	}

	topupHandler := NewTopUpHandler(deps.ReconcilerSvc, deps.Verifier, deps.Logger)
	topups := v1.Group("/topups")
	{
		topups.POST("", rl("topups"), topupHandler.Initiate)
		topups.POST("/:reference/reconcile", rl("reconcile"), topupHandler.Reconcile)
	}
	v1.POST("/gateway/callback", rl("callback"), topupHandler.Callback)

	walletHandler := NewWalletHandler(deps.LedgerSvc)
	wallets := v1.Group("/wallets")
	{
		wallets.GET("/:id/balance", rl("wallets"), walletHandler.GetBalance)
		wallets.GET("/:id/entries", rl("wallets"), walletHandler.ListEntries)
	}

	return r
}
