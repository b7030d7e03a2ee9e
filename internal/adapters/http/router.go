// Package http - router configuration for the REST API.
//
// The router is the composition point of the HTTP layer: it wires the
// middleware chain, the health and metrics endpoints, and the versioned
// API groups.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Haleralex/fundflow/internal/adapters/http/common"
	"github.com/Haleralex/fundflow/internal/adapters/http/handlers"
	"github.com/Haleralex/fundflow/internal/adapters/http/middleware"
)

// ============================================
// Router Configuration
// ============================================

// RouterConfig configures the router.
type RouterConfig struct {
	// Logger for the middleware chain
	Logger *slog.Logger
	// Pool for the readiness probe
	Pool *pgxpool.Pool
	// Redis for the readiness probe
	Redis *redis.Client
	// Version reported by /health
	Version string
	// Environment (development, test, production)
	Environment string
	// AllowedOrigins for production CORS
	AllowedOrigins []string
	// AuthTokenValidator validates bearer tokens
	AuthTokenValidator middleware.TokenValidator
	// TracingEnabled adds the otelgin middleware
	TracingEnabled bool
	// ServiceName is the otel instrumentation name
	ServiceName string
}

// DefaultRouterConfig returns a development configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		Logger:             slog.Default(),
		Version:            "dev",
		Environment:        "development",
		AllowedOrigins:     []string{"*"},
		AuthTokenValidator: middleware.MockTokenValidator(),
		ServiceName:        "fundflow",
	}
}

// ============================================
// Use Case Providers
// ============================================

// WalletUseCases groups the wallet use cases.
type WalletUseCases struct {
	CreateWallet handlers.CreateWalletUseCase
	AddFunds     handlers.AddFundsUseCase
	GetBalance   handlers.GetBalanceUseCase
}

// TransferUseCases groups the transfer use cases.
type TransferUseCases struct {
	ExecuteTransfer      handlers.ExecuteTransferUseCase
	FindByIdempotencyKey handlers.FindByIdempotencyKeyUseCase
}

// ============================================
// Router Builder
// ============================================

// RouterBuilder assembles a gin engine step by step.
type RouterBuilder struct {
	config    *RouterConfig
	wallets   *WalletUseCases
	transfers *TransferUseCases
	limits    handlers.LimitsReader
}

// NewRouterBuilder creates a builder.
func NewRouterBuilder(config *RouterConfig) *RouterBuilder {
	if config == nil {
		config = DefaultRouterConfig()
	}
	return &RouterBuilder{config: config}
}

// WithWalletUseCases adds the wallet use cases.
func (b *RouterBuilder) WithWalletUseCases(useCases *WalletUseCases) *RouterBuilder {
	b.wallets = useCases
	return b
}

// WithTransferUseCases adds the transfer use cases.
func (b *RouterBuilder) WithTransferUseCases(useCases *TransferUseCases) *RouterBuilder {
	b.transfers = useCases
	return b
}

// WithLimits adds the limit reader.
func (b *RouterBuilder) WithLimits(limits handlers.LimitsReader) *RouterBuilder {
	b.limits = limits
	return b
}

// Build creates the configured gin engine.
func (b *RouterBuilder) Build() *gin.Engine {
	if b.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	handlers.SetupValidator()

	// ============================================
	// Global Middleware
	// ============================================

	// Recovery goes first so nothing below can crash the process.
	router.Use(middleware.Recovery(&middleware.RecoveryConfig{
		Logger:           b.config.Logger,
		EnableStackTrace: b.config.Environment != "production",
	}))

	router.Use(middleware.RequestID())

	if b.config.TracingEnabled {
		router.Use(otelgin.Middleware(b.config.ServiceName))
	}

	if b.config.Environment == "production" {
		router.Use(middleware.CORS(middleware.ProductionCORSConfig(b.config.AllowedOrigins)))
	} else {
		router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	}

	router.Use(middleware.Logging(&middleware.LoggingConfig{
		Logger:    b.config.Logger,
		SkipPaths: []string{"/health", "/live", "/ready", "/metrics"},
	}))

	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))

	router.Use(middleware.Metrics())

	// ============================================
	// Metrics Endpoint (no auth)
	// ============================================

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============================================
	// Health Check Routes (no auth)
	// ============================================

	healthHandler := handlers.NewHealthHandler(b.config.Pool, b.config.Redis, b.config.Version)
	healthHandler.RegisterRoutes(router)

	// ============================================
	// API v1 Routes (auth required)
	// ============================================

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(&middleware.AuthConfig{
		TokenValidator: b.config.AuthTokenValidator,
	}))
	{
		if b.wallets != nil {
			walletHandler := handlers.NewWalletHandler(
				b.wallets.CreateWallet,
				b.wallets.AddFunds,
				b.wallets.GetBalance,
			)
			wallets := v1.Group("/wallets")
			{
				wallets.POST("", walletHandler.CreateWallet)
				wallets.GET("/:id/balance", walletHandler.GetBalance)

				// Money-moving operations carry a stricter per-user cap.
				funding := wallets.Group("")
				funding.Use(middleware.TransferRateLimit())
				{
					funding.POST("/:id/funds", walletHandler.AddFunds)
				}
			}
		}

		if b.transfers != nil {
			transferHandler := handlers.NewTransferHandler(
				b.transfers.ExecuteTransfer,
				b.transfers.FindByIdempotencyKey,
			)
			transfers := v1.Group("/transfers")
			{
				transfers.GET("/idempotency/:key", transferHandler.FindByIdempotencyKey)

				executing := transfers.Group("")
				executing.Use(middleware.TransferRateLimit())
				{
					executing.POST("", transferHandler.ExecuteTransfer)
				}
			}
		}

		if b.limits != nil {
			handlers.NewLimitsHandler(b.limits).RegisterRoutes(v1)
		}
	}

	// ============================================
	// 404 Handler
	// ============================================

	router.NoRoute(func(c *gin.Context) {
		common.Error(c, http.StatusNotFound, &common.APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	})

	return router
}

// NewRouter creates a router in one call for the simple cases.
func NewRouter(config *RouterConfig) *gin.Engine {
	return NewRouterBuilder(config).Build()
}
