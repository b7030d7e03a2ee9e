// Package container wires the application together.
//
// The container owns the lifecycle of every dependency: construction,
// access and cleanup happen in one place.
//
// Pattern: Composition Root
package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	natsgo "github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	httpadapter "github.com/Haleralex/fundflow/internal/adapters/http"
	"github.com/Haleralex/fundflow/internal/adapters/http/middleware"
	"github.com/Haleralex/fundflow/internal/application/ports"
	"github.com/Haleralex/fundflow/internal/application/usecases/limits"
	"github.com/Haleralex/fundflow/internal/application/usecases/transfer"
	"github.com/Haleralex/fundflow/internal/application/usecases/wallet"
	"github.com/Haleralex/fundflow/internal/config"
	"github.com/Haleralex/fundflow/internal/domain/valueobjects"
	rediscache "github.com/Haleralex/fundflow/internal/infrastructure/cache/redis"
	"github.com/Haleralex/fundflow/internal/infrastructure/messaging/nats"
	"github.com/Haleralex/fundflow/internal/infrastructure/persistence/postgres"
	"github.com/Haleralex/fundflow/internal/pkg/logger"
	"github.com/Haleralex/fundflow/internal/pkg/telemetry"
)

// ============================================
// Container
// ============================================

// Container is the application DI container.
type Container struct {
	config *config.Config
	logger *slog.Logger

	// Infrastructure
	pool        *pgxpool.Pool
	redisClient *redis.Client
	natsConn    *natsgo.Conn
	telemetry   *telemetry.Provider

	// Repositories
	walletRepo      ports.WalletRepository
	transactionRepo ports.TransactionRepository
	limitRepo       ports.LimitRepository

	// Unit of Work
	uow ports.UnitOfWork

	// Caches and locks
	lockManager      ports.WalletLockManager
	balanceCache     ports.BalanceCache
	limitCache       ports.LimitCache
	idempotencyStore ports.IdempotencyStore

	// Event Publisher
	eventPublisher ports.EventPublisher

	// Use Cases
	createWalletUC    *wallet.CreateWalletUseCase
	addFundsUC        *wallet.AddFundsUseCase
	getBalanceUC      *wallet.GetBalanceUseCase
	limitsService     *limits.Service
	idempotencyGate   *transfer.IdempotencyGate
	executeTransferUC *transfer.ExecuteTransferUseCase
	findByKeyUC       *transfer.FindByIdempotencyKeyUseCase

	// HTTP
	httpServer *httpadapter.Server
}

// New creates a container with the given configuration.
func New(cfg *config.Config) *Container {
	return &Container{config: cfg}
}

// ============================================
// Initialization
// ============================================

// Initialize builds every dependency, in dependency order.
func (c *Container) Initialize(ctx context.Context) error {
	c.initLogger()
	c.logger.Info("Initializing application container...")

	if err := c.initTelemetry(ctx); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database connected")

	if err := c.initRedis(ctx); err != nil {
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	c.logger.Info("Redis connected")

	if err := c.initNATS(); err != nil {
		return fmt.Errorf("failed to initialize nats: %w", err)
	}
	c.logger.Info("NATS connected")

	c.initRepositories()
	c.logger.Info("Repositories initialized")

	if err := c.initUseCases(); err != nil {
		return fmt.Errorf("failed to initialize use cases: %w", err)
	}
	c.logger.Info("Use cases initialized")

	c.initHTTPServer()
	c.logger.Info("HTTP server initialized")

	c.logger.Info("Container initialization complete")
	return nil
}

func (c *Container) initLogger() {
	cfg := &logger.Config{
		Level:     c.config.Log.Level,
		Format:    c.config.Log.Format,
		AddSource: c.config.App.Debug,
	}
	logger.Setup(cfg)
	c.logger = slog.Default()
}

func (c *Container) initTelemetry(ctx context.Context) error {
	provider, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     c.config.Telemetry.Enabled,
		ServiceName: c.config.App.Name,
		Endpoint:    c.config.Telemetry.Endpoint,
		Insecure:    c.config.Telemetry.Insecure,
		SampleRatio: c.config.Telemetry.SampleRatio,
	})
	if err != nil {
		return err
	}
	c.telemetry = provider
	return nil
}

func (c *Container) initDatabase(ctx context.Context) error {
	pool, err := postgres.NewConnectionPool(ctx, postgres.Config{
		Host:            c.config.Database.Host,
		Port:            c.config.Database.Port,
		Database:        c.config.Database.Database,
		User:            c.config.Database.User,
		Password:        c.config.Database.Password,
		SSLMode:         c.config.Database.SSLMode,
		MaxConns:        c.config.Database.MaxConnections,
		MinConns:        c.config.Database.MinConnections,
		MaxConnLifetime: c.config.Database.MaxConnLifetime,
		MaxConnIdleTime: c.config.Database.MaxConnIdleTime,
	})
	if err != nil {
		return err
	}
	c.pool = pool
	return nil
}

func (c *Container) initRedis(ctx context.Context) error {
	client, err := rediscache.NewClient(ctx, rediscache.Config{
		Host:     c.config.Redis.Host,
		Port:     c.config.Redis.Port,
		Password: c.config.Redis.Password,
		DB:       c.config.Redis.DB,
		PoolSize: c.config.Redis.PoolSize,
	})
	if err != nil {
		return err
	}
	c.redisClient = client
	return nil
}

func (c *Container) initNATS() error {
	conn, err := nats.Connect(nats.Config{
		URL:           c.config.NATS.URL,
		Name:          c.config.App.Name,
		MaxReconnects: c.config.NATS.MaxReconnects,
		ReconnectWait: c.config.NATS.ReconnectWait,
	})
	if err != nil {
		return err
	}
	c.natsConn = conn
	c.eventPublisher = nats.NewEventPublisher(conn, c.logger)
	return nil
}

func (c *Container) initRepositories() {
	c.walletRepo = postgres.NewWalletRepository(c.pool)
	c.transactionRepo = postgres.NewTransactionRepository(c.pool)
	c.limitRepo = postgres.NewLimitRepository(c.pool)
	c.uow = postgres.NewUnitOfWork(c.pool)

	c.lockManager = rediscache.NewWalletLockManager(c.redisClient)
	c.balanceCache = rediscache.NewBalanceCache(c.redisClient, c.config.Cache.BalanceTTL)
	c.limitCache = rediscache.NewLimitCache(c.redisClient, c.config.Cache.LimitDailyTTL, c.config.Cache.LimitMonthlyTTL)
	c.idempotencyStore = rediscache.NewIdempotencyStore(
		c.redisClient,
		c.config.Cache.ResultTTL,
		c.config.Cache.RequestHashTTL,
		c.config.Cache.ErrorTTL,
	)
}

func (c *Container) initUseCases() error {
	currency, err := valueobjects.NewCurrency(c.config.Limits.Currency)
	if err != nil {
		return fmt.Errorf("limits currency: %w", err)
	}
	daily, err := valueobjects.NewMoney(c.config.Limits.DailyDefault, currency)
	if err != nil {
		return fmt.Errorf("daily limit default: %w", err)
	}
	monthly, err := valueobjects.NewMoney(c.config.Limits.MonthlyDefault, currency)
	if err != nil {
		return fmt.Errorf("monthly limit default: %w", err)
	}

	c.limitsService = limits.NewService(
		c.limitRepo,
		c.limitCache,
		limits.Defaults{Daily: daily, Monthly: monthly},
		c.logger,
		nil,
	)

	c.createWalletUC = wallet.NewCreateWalletUseCase(c.walletRepo, c.balanceCache, c.eventPublisher, c.logger)
	c.addFundsUC = wallet.NewAddFundsUseCase(
		c.walletRepo,
		c.transactionRepo,
		c.uow,
		c.lockManager,
		c.balanceCache,
		c.eventPublisher,
		c.logger,
		c.config.Transfer.LockTTL,
		c.config.Transfer.LockWait,
	)
	c.getBalanceUC = wallet.NewGetBalanceUseCase(
		c.walletRepo,
		c.lockManager,
		c.balanceCache,
		c.logger,
		c.config.Cache.BalanceTTL,
		nil,
	)

	c.idempotencyGate = transfer.NewIdempotencyGate(
		c.transactionRepo,
		c.idempotencyStore,
		c.logger,
		c.config.Transfer.KeyRetries,
	)

	c.executeTransferUC = transfer.NewExecuteTransferUseCase(transfer.Deps{
		Wallets:        c.walletRepo,
		Transactions:   c.transactionRepo,
		UnitOfWork:     c.uow,
		Locks:          c.lockManager,
		BalanceCache:   c.balanceCache,
		Gate:           c.idempotencyGate,
		Limits:         c.limitsService,
		Publisher:      c.eventPublisher,
		Logger:         c.logger,
		LockTTL:        c.config.Transfer.LockTTL,
		LockWait:       c.config.Transfer.LockWait,
		ReservationTTL: c.config.Transfer.ReservationTTL,
		StepRetries:    c.config.Transfer.StepRetries,
	})

	c.findByKeyUC = transfer.NewFindByIdempotencyKeyUseCase(c.transactionRepo, c.walletRepo, c.logger)

	return nil
}

func (c *Container) initHTTPServer() {
	var tokenValidator middleware.TokenValidator
	if c.config.Auth.EnableMockAuth {
		tokenValidator = middleware.MockTokenValidator()
	} else {
		tokenValidator = middleware.NewJWTTokenValidator(c.config.Auth.JWTSecret, c.config.Auth.JWTIssuer)
	}

	routerConfig := &httpadapter.RouterConfig{
		Logger:             c.logger,
		Pool:               c.pool,
		Redis:              c.redisClient,
		Version:            c.config.App.Version,
		Environment:        c.config.App.Environment,
		AuthTokenValidator: tokenValidator,
		TracingEnabled:     c.config.Telemetry.Enabled,
		ServiceName:        c.config.App.Name,
	}

	router := httpadapter.NewRouterBuilder(routerConfig).
		WithWalletUseCases(&httpadapter.WalletUseCases{
			CreateWallet: c.createWalletUC,
			AddFunds:     c.addFundsUC,
			GetBalance:   c.getBalanceUC,
		}).
		WithTransferUseCases(&httpadapter.TransferUseCases{
			ExecuteTransfer:      c.executeTransferUC,
			FindByIdempotencyKey: c.findByKeyUC,
		}).
		WithLimits(c.limitsService).
		Build()

	serverConfig := &httpadapter.ServerConfig{
		Host:            c.config.Server.Host,
		Port:            fmt.Sprintf("%d", c.config.Server.Port),
		ReadTimeout:     c.config.Server.ReadTimeout,
		WriteTimeout:    c.config.Server.WriteTimeout,
		IdleTimeout:     c.config.Server.IdleTimeout,
		ShutdownTimeout: c.config.Server.ShutdownTimeout,
		Logger:          c.logger,
	}

	c.httpServer = httpadapter.NewServer(serverConfig, router)
}

// ============================================
// Getters
// ============================================

// Config returns the configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the logger.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// Pool returns the database pool.
func (c *Container) Pool() *pgxpool.Pool {
	return c.pool
}

// HTTPServer returns the HTTP server.
func (c *Container) HTTPServer() *httpadapter.Server {
	return c.httpServer
}

// ExecuteTransferUseCase returns the transfer use case.
func (c *Container) ExecuteTransferUseCase() *transfer.ExecuteTransferUseCase {
	return c.executeTransferUC
}

// LimitsService returns the limit service.
func (c *Container) LimitsService() *limits.Service {
	return c.limitsService
}

// ============================================
// Run and Shutdown
// ============================================

// Run starts the application and blocks until a shutdown signal.
func (c *Container) Run() error {
	c.logger.Info("Starting fundflow API server",
		slog.String("version", c.config.App.Version),
		slog.String("environment", c.config.App.Environment),
		slog.String("address", c.config.Server.Address()),
	)

	return c.httpServer.Run()
}

// Shutdown stops every component in reverse dependency order.
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")

	var errs []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		}
	}

	if c.natsConn != nil {
		if err := c.natsConn.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("NATS drain: %w", err))
		}
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}

	if c.pool != nil {
		done := make(chan struct{})
		go func() {
			c.pool.Close()
			close(done)
		}()

		select {
		case <-done:
			c.logger.Info("Database connection closed")
		case <-ctx.Done():
			c.logger.Warn("Database close timeout")
		}
	}

	if c.telemetry != nil {
		if err := c.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	c.logger.Info("Container shutdown complete")
	return nil
}
