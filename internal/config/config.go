// Package config loads swap-desk settings from the environment, with an
// optional .env file for local development.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Marketplace backend
	BackendURL     string
	BackendTimeout time.Duration

	// Storage (both optional; empty selects the in-memory store)
	DatabaseURL string
	RedisURL    string

	DraftTTL     time.Duration // idle drafts are purged after this
	CatalogTTL   time.Duration // catalog listing cache lifetime
	SlotCapacity int

	LogLevel slog.Level
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		BackendURL:     strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:7207"), "/"),
		BackendTimeout: getEnvAsDuration("BACKEND_TIMEOUT", 10*time.Second),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisURL:       getEnv("REDIS_URL", ""),
		DraftTTL:       getEnvAsDuration("DRAFT_TTL", 24*time.Hour),
		CatalogTTL:     getEnvAsDuration("CATALOG_TTL", 30*time.Second),
		SlotCapacity:   getEnvAsInt("SLOT_CAPACITY", 3),
		LogLevel:       getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(value)
	if err != nil || result <= 0 {
		return defaultValue
	}
	return result
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := time.ParseDuration(value)
	if err != nil || result <= 0 {
		return defaultValue
	}
	return result
}

// getEnvAsLevel accepts debug, info, warn or error.
func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return defaultValue
	}
	return level
}
