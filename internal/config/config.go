// Package config - Application configuration management.
//
// Uses Viper for:
// - Loading from YAML files
// - Environment variables
// - Default values
//
// Priority order (highest to lowest):
// 1. Environment variables
// 2. Config file
// 3. Default values
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ============================================
// Main Configuration
// ============================================

// Config is the root configuration of the service.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Transfer  TransferConfig  `mapstructure:"transfer"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// ============================================
// App Configuration
// ============================================

// AppConfig holds application identity settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	Debug       bool   `mapstructure:"debug"`
}

// IsDevelopment returns true when the environment is development.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true when the environment is production.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// ============================================
// Server Configuration
// ============================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the full server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ============================================
// Database Configuration
// ============================================

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int32         `mapstructure:"max_connections"`
	MinConnections  int32         `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// DSN returns the PostgreSQL connection URL.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
	)
}

// ============================================
// Redis Configuration
// ============================================

// RedisConfig holds Redis settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// ============================================
// NATS Configuration
// ============================================

// NATSConfig holds NATS settings.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// ============================================
// Auth Configuration
// ============================================

// AuthConfig holds authentication settings.
type AuthConfig struct {
	JWTSecret      string `mapstructure:"jwt_secret"`
	JWTIssuer      string `mapstructure:"jwt_issuer"`
	EnableMockAuth bool   `mapstructure:"enable_mock_auth"` // development only!
}

// ============================================
// Limits Configuration
// ============================================

// LimitsConfig holds the default transfer limits applied to new ledgers.
// Amounts are decimal strings in the system currency.
type LimitsConfig struct {
	DailyDefault   string `mapstructure:"daily_default"`
	MonthlyDefault string `mapstructure:"monthly_default"`
	Currency       string `mapstructure:"currency"`
}

// ============================================
// Transfer Configuration
// ============================================

// TransferConfig holds the execution knobs of the transfer saga.
type TransferConfig struct {
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
	LockWait       time.Duration `mapstructure:"lock_wait"`
	ReservationTTL time.Duration `mapstructure:"reservation_ttl"`
	StepRetries    int           `mapstructure:"step_retries"`
	KeyRetries     int           `mapstructure:"key_retries"`
}

// ============================================
// Cache Configuration
// ============================================

// CacheConfig holds the TTLs of the Redis-backed caches.
type CacheConfig struct {
	BalanceTTL      time.Duration `mapstructure:"balance_ttl"`
	LimitDailyTTL   time.Duration `mapstructure:"limit_daily_ttl"`
	LimitMonthlyTTL time.Duration `mapstructure:"limit_monthly_ttl"`
	ResultTTL       time.Duration `mapstructure:"result_ttl"`
	RequestHashTTL  time.Duration `mapstructure:"request_hash_ttl"`
	ErrorTTL        time.Duration `mapstructure:"error_ttl"`
}

// ============================================
// Telemetry Configuration
// ============================================

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// ============================================
// Log Configuration
// ============================================

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// ============================================
// Configuration Loading
// ============================================

// Load loads configuration from a file and environment variables.
//
// configPath is the directory holding the config (e.g. "configs"),
// configName the file name without extension (e.g. "config").
func Load(configPath, configName string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/fundflow")

	v.SetEnvPrefix("FUNDFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No file found - defaults and env vars only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("FUNDFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets the default values.
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "fundflow")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", true)

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.database", "fundflow")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 25)

	// NATS defaults
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "change-me-in-production")
	v.SetDefault("auth.jwt_issuer", "fundflow")
	v.SetDefault("auth.enable_mock_auth", true)

	// Limits defaults
	v.SetDefault("limits.daily_default", "10000.00")
	v.SetDefault("limits.monthly_default", "100000.00")
	v.SetDefault("limits.currency", "USD")

	// Transfer defaults
	v.SetDefault("transfer.lock_ttl", "30s")
	v.SetDefault("transfer.lock_wait", "5s")
	v.SetDefault("transfer.reservation_ttl", "1m")
	v.SetDefault("transfer.step_retries", 2)
	v.SetDefault("transfer.key_retries", 3)

	// Cache defaults
	v.SetDefault("cache.balance_ttl", "5m")
	v.SetDefault("cache.limit_daily_ttl", "24h")
	v.SetDefault("cache.limit_monthly_ttl", "720h")
	v.SetDefault("cache.result_ttl", "1h")
	v.SetDefault("cache.request_hash_ttl", "30m")
	v.SetDefault("cache.error_ttl", "5m")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4318")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sample_ratio", 1.0)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// bindEnvVars binds the environment variables commonly set in deployments.
func bindEnvVars(v *viper.Viper) {
	// Database (usually injected through env in production)
	_ = v.BindEnv("database.host", "FUNDFLOW_DATABASE_HOST", "DB_HOST")
	_ = v.BindEnv("database.port", "FUNDFLOW_DATABASE_PORT", "DB_PORT")
	_ = v.BindEnv("database.user", "FUNDFLOW_DATABASE_USER", "DB_USER")
	_ = v.BindEnv("database.password", "FUNDFLOW_DATABASE_PASSWORD", "DB_PASSWORD")
	_ = v.BindEnv("database.database", "FUNDFLOW_DATABASE_DATABASE", "DB_NAME")

	// Redis
	_ = v.BindEnv("redis.host", "FUNDFLOW_REDIS_HOST", "REDIS_HOST")
	_ = v.BindEnv("redis.password", "FUNDFLOW_REDIS_PASSWORD", "REDIS_PASSWORD")

	// NATS
	_ = v.BindEnv("nats.url", "FUNDFLOW_NATS_URL", "NATS_URL")

	// Auth
	_ = v.BindEnv("auth.jwt_secret", "FUNDFLOW_AUTH_JWT_SECRET", "JWT_SECRET")

	// Server
	_ = v.BindEnv("server.port", "FUNDFLOW_SERVER_PORT", "PORT")

	// App
	_ = v.BindEnv("app.environment", "FUNDFLOW_APP_ENVIRONMENT", "ENVIRONMENT", "ENV")
}

// ============================================
// Configuration Validation
// ============================================

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.App.IsProduction() {
		if c.Auth.JWTSecret == "change-me-in-production" {
			return fmt.Errorf("JWT secret must be changed in production")
		}

		if c.Auth.EnableMockAuth {
			return fmt.Errorf("mock auth must be disabled in production")
		}
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Transfer.StepRetries < 0 || c.Transfer.KeyRetries < 0 {
		return fmt.Errorf("retry budgets cannot be negative")
	}

	return nil
}

// ============================================
// Development Helpers
// ============================================

// Development returns a configuration for local development.
func Development() *Config {
	return &Config{
		App: AppConfig{
			Name:        "fundflow",
			Version:     "dev",
			Environment: "development",
			Debug:       true,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "postgres",
			Database:        "fundflow",
			SSLMode:         "disable",
			MaxConnections:  10,
			MinConnections:  2,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			PoolSize: 10,
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			MaxReconnects: 10,
			ReconnectWait: 2 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret:      "dev-secret-key",
			JWTIssuer:      "fundflow-dev",
			EnableMockAuth: true,
		},
		Limits: LimitsConfig{
			DailyDefault:   "10000.00",
			MonthlyDefault: "100000.00",
			Currency:       "USD",
		},
		Transfer: TransferConfig{
			LockTTL:        30 * time.Second,
			LockWait:       5 * time.Second,
			ReservationTTL: time.Minute,
			StepRetries:    2,
			KeyRetries:     3,
		},
		Cache: CacheConfig{
			BalanceTTL:      5 * time.Minute,
			LimitDailyTTL:   24 * time.Hour,
			LimitMonthlyTTL: 720 * time.Hour,
			ResultTTL:       time.Hour,
			RequestHashTTL:  30 * time.Minute,
			ErrorTTL:        5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
		},
	}
}

// Test returns a configuration for tests.
func Test() *Config {
	cfg := Development()
	cfg.App.Environment = "test"
	cfg.Database.Database = "fundflow_test"
	cfg.Log.Level = "error" // less noise in tests
	return cfg
}
