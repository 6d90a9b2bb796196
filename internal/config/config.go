// Package config provides configuration management for the whale tracker application.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Env       string
	Server    ServerConfig
	Database  DatabaseConfig
	Chain     ChainConfig
	Tracking  TrackingConfig
	Broadcast BroadcastConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ChainConfig holds Solana RPC and token configuration
type ChainConfig struct {
	RPCPrimary    string
	RPCSecondary  string
	MintAddress   string
	PriceAPIURL   string
	FallbackPrice float64
	// RequestsPerSecond bounds the call rate against the RPC provider
	RequestsPerSecond int
}

// TrackingConfig holds scan scheduler configuration
type TrackingConfig struct {
	// WhaleThreshold is the minimum token balance for an address to count as a whale
	WhaleThreshold float64
	// ScanInterval is the period between scan cycles
	ScanInterval time.Duration
	// MovementThresholdPct is the absolute percentage change that triggers a movement event
	MovementThresholdPct float64
}

// BroadcastConfig holds websocket fan-out configuration
type BroadcastConfig struct {
	// HeartbeatInterval is the ping/pong liveness check period
	HeartbeatInterval time.Duration
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// DefaultMintAddress is the CHONK9K token mint on Solana mainnet
const DefaultMintAddress = "DnUsQnwNot38V9JbisNC18VHZkae1eKK5N2Dgy55pump"

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Env: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "whale_tracker"),
				User:           getEnv("POSTGRES_USER", "tracker"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "whale_tracker"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Chain: ChainConfig{
			RPCPrimary:        getEnv("SOLANA_RPC_URL", ""),
			RPCSecondary:      getEnv("SOLANA_RPC_FALLBACK_URL", ""),
			MintAddress:       getEnv("TOKEN_MINT_ADDRESS", DefaultMintAddress),
			PriceAPIURL:       getEnv("PRICE_API_URL", "https://price.jup.ag/v4/price"),
			FallbackPrice:     getEnvAsFloat("PRICE_FALLBACK", 0.000051),
			RequestsPerSecond: getEnvAsInt("SOLANA_RPC_RPS", 10),
		},
		Tracking: TrackingConfig{
			WhaleThreshold:       getEnvAsFloat("WHALE_THRESHOLD", 100000),
			ScanInterval:         getEnvAsDuration("SCAN_INTERVAL", 5*time.Minute),
			MovementThresholdPct: getEnvAsFloat("MOVEMENT_THRESHOLD_PCT", 5.0),
		},
		Broadcast: BroadcastConfig{
			HeartbeatInterval: getEnvAsDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 50),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// IsProduction reports whether the app runs in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks configuration consistency. Tracking cannot run in production
// without a chain endpoint, so that is a fatal configuration error.
func (c *Config) Validate() error {
	if c.IsProduction() && c.Chain.RPCPrimary == "" {
		return fmt.Errorf("SOLANA_RPC_URL is required in production mode")
	}
	if c.Tracking.WhaleThreshold <= 0 {
		return fmt.Errorf("WHALE_THRESHOLD must be positive, got %v", c.Tracking.WhaleThreshold)
	}
	if c.Tracking.ScanInterval < time.Second {
		return fmt.Errorf("SCAN_INTERVAL must be at least 1s, got %v", c.Tracking.ScanInterval)
	}
	if c.Broadcast.HeartbeatInterval < time.Second {
		return fmt.Errorf("WS_HEARTBEAT_INTERVAL must be at least 1s, got %v", c.Broadcast.HeartbeatInterval)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
