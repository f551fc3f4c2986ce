package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Market   MarketConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port  string
	Env   string
	Debug bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string
}

// AuthConfig holds token signing configuration
type AuthConfig struct {
	JWTSecret string
}

// MarketConfig holds marketplace and pricing configuration
type MarketConfig struct {
	PriceUpdateSchedule string        // cron spec for price fluctuation
	SweepInterval       time.Duration // interval between listing expiry sweeps
}

// Load loads configuration from the environment, reading an optional .env
// file first. Missing values fall back to development defaults.
func Load() *Config {
	// Ignore a missing .env file; plain env vars still apply.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:  getEnv("PORT", "8080"),
			Env:   getEnv("ENV", "development"),
			Debug: getEnv("DEBUG", "") == "true",
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "nexus.db"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "nexus-secret-key"),
		},
		Market: MarketConfig{
			PriceUpdateSchedule: getEnv("PRICE_UPDATE_SCHEDULE", "@every 5m"),
			SweepInterval:       getDuration("SWEEP_INTERVAL", time.Hour),
		},
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
