package handler

import (
	"ticket-wallet-service/internal/adapter/http/middleware"
	redisStore "ticket-wallet-service/internal/adapter/storage/redis"
	"ticket-wallet-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	TopupSvc       ports.TopupService
	PaymentSvc     ports.PaymentService
	WebhookSvc     ports.WebhookService
	TokenSvc       ports.TokenService
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
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check, verifies PostgreSQL and Redis connectivity.
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

	// --- Gateway callback (HMAC over raw body, no user auth) ---
	webhookHandler := NewWebhookHandler(deps.WebhookSvc)
	v1.POST("/payment/webhook", rl("webhook"), webhookHandler.Handle)

	// --- JWT-authenticated routes (user wallet) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.WalletSvc, deps.TopupSvc)
	paymentHandler := NewPaymentHandler(deps.PaymentSvc)

	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.POST("", rl("wallet_read"), walletHandler.Create)
		wallet.GET("/balance", rl("wallet_read"), walletHandler.GetBalance)
		wallet.GET("/transactions", rl("wallet_read"), walletHandler.ListTransactions)
		wallet.GET("/summary", rl("wallet_read"), walletHandler.GetSummary)
		wallet.POST("/topup", rl("wallet_topup"), walletHandler.Topup)
	}

	payments := v1.Group("/payments", jwtAuth)
	{
		payments.POST("", rl("payments"), paymentHandler.Charge)
		payments.POST("/refund", rl("payments"), paymentHandler.Refund)
	}

	return r
}
