package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus-wallet/config"
	"campus-wallet/internal/adapter/gateway"
	httpHandler "campus-wallet/internal/adapter/http/handler"
	pgStorage "campus-wallet/internal/adapter/storage/postgres"
	redisStorage "campus-wallet/internal/adapter/storage/redis"
	"campus-wallet/internal/core/ports"
	"campus-wallet/internal/service"
	"campus-wallet/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Campus Wallet")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	entryRepo := pgStorage.NewEntryRepo(pool)
	settlementRepo := pgStorage.NewSettlementRepo(pool)
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	settingRepo := pgStorage.NewSettingRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize gateway client
	gwClient := gateway.NewClient(cfg.Gateway, log)

	// Initialize notifier
	var notifier ports.NotificationSink = service.NopNotifier{}
	if cfg.Notifier.WebhookURL != "" {
		notifier = service.NewWebhookNotifier(cfg.Notifier.WebhookURL, cfg.Notifier.Secret, nil, log)
	}

	// Initialize business services
	ledgerSvc := service.NewLedgerService(walletRepo, entryRepo, idempotencyCache, transactor, log)
	limitSvc := service.NewLimitService(walletRepo, entryRepo, settingRepo, log)
	settlementSvc := service.NewSettlementService(settlementRepo, walletRepo, ledgerSvc, limitSvc, transactor, notifier, log)
	reconcilerSvc := service.NewReconcilerService(paymentRepo, walletRepo, ledgerSvc, settingRepo, gwClient, transactor, notifier, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		LedgerSvc:      ledgerSvc,
		SettlementSvc:  settlementSvc,
		ReconcilerSvc:  reconcilerSvc,
		Verifier:       gwClient,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
