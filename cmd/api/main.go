package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticket-wallet-service/config"
	gatewayClient "ticket-wallet-service/internal/adapter/gateway"
	httpHandler "ticket-wallet-service/internal/adapter/http/handler"
	pgStorage "ticket-wallet-service/internal/adapter/storage/postgres"
	redisStorage "ticket-wallet-service/internal/adapter/storage/redis"
	"ticket-wallet-service/internal/core/domain"
	"ticket-wallet-service/internal/core/ports"
	"ticket-wallet-service/internal/service"
	"ticket-wallet-service/pkg/logger"

	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("ticket-wallet-service", cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Ticket Wallet Service")

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
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	topupRepo := pgStorage.NewTopupRepo(pool)
	webhookRepo := pgStorage.NewWebhookRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	responseCache := redisStorage.NewResponseCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	gwClient := gatewayClient.NewClient(
		cfg.Gateway.BaseURL,
		cfg.Gateway.WebhookSecret,
		sigSvc,
		&http.Client{Timeout: cfg.Gateway.Timeout},
		log,
	)

	// The resolver is the single writer for wallet balances.
	resolver := service.NewResolver(
		walletRepo,
		ledgerRepo,
		transactor,
		cfg.Wallet.ApplyMaxAttempts,
		cfg.Wallet.ApplyRetryDelay,
		log,
	)

	// Initialize business services
	walletSvc := service.NewWalletService(walletRepo, ledgerRepo, log)
	topupSvc := service.NewTopupService(
		walletRepo,
		ledgerRepo,
		topupRepo,
		transactor,
		gwClient,
		resolver,
		domain.Money(cfg.Wallet.MinTopup),
		cfg.Wallet.TopupExpiry,
		log,
	)
	paymentSvc := service.NewPaymentService(walletRepo, ledgerRepo, transactor, resolver, log)
	webhookSvc := service.NewWebhookService(
		ledgerRepo,
		topupRepo,
		webhookRepo,
		resolver,
		sigSvc,
		cfg.Gateway.WebhookSecret,
		responseCache,
		log,
	)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		TopupSvc:       topupSvc,
		PaymentSvc:     paymentSvc,
		WebhookSvc:     webhookSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// Background sweep: fail top-up requests the gateway never resolved.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	go runExpirySweep(sweepCtx, topupSvc, cfg.Wallet.ExpirySweepInterval, log)

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

	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// runExpirySweep periodically fails stale PENDING top-ups so their
// wallets are never credited by a late webhook.
func runExpirySweep(ctx context.Context, topupSvc ports.TopupService, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := topupSvc.ExpireStaleTopups(ctx)
			if err != nil {
				log.Error().Err(err).Msg("top-up expiry sweep failed")
				continue
			}
			if n > 0 {
				log.Info().Int("expired", n).Msg("expired stale top-up requests")
			}
		}
	}
}
