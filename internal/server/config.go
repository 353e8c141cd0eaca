// Package server provides the HTTP surface of the relay: configuration,
// origin checking, the WebSocket upgrade endpoint, and server lifecycle
// helpers with sensible production defaults.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// StoreBackend selects which directory store implementation the relay uses.
type StoreBackend string

const (
	// StoreMemory keeps the directory in process memory.
	StoreMemory StoreBackend = "memory"
	// StoreRedis keeps the directory in Redis so several relay instances
	// can share it.
	StoreRedis StoreBackend = "redis"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// StoreConfig selects and parameterizes the directory store backend.
type StoreConfig struct {
	Backend       StoreBackend
	RedisAddr     string
	RedisPassword string
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port           string
	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      RateLimitConfig
	Store          StoreConfig
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() *Config {
	return &Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 512,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		Store: StoreConfig{
			Backend:   StoreMemory,
			RedisAddr: "localhost:6379",
		},
	}
}

// NewConfigFromEnv creates a Config from environment variables, falling back
// to defaults for anything unset or unparsable.
func NewConfigFromEnv() *Config {
	cfg := NewConfig()

	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseRefillInterval(interval, cfg.RateLimit.RefillInterval)
	}

	if backend := os.Getenv("STORE_BACKEND"); backend != "" {
		cfg.Store.Backend = parseStoreBackend(backend, cfg.Store.Backend)
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Store.RedisAddr = addr
	}
	cfg.Store.RedisPassword = os.Getenv("REDIS_PASSWORD")

	return cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseRefillInterval(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func parseStoreBackend(value string, defaultValue StoreBackend) StoreBackend {
	switch StoreBackend(strings.ToLower(strings.TrimSpace(value))) {
	case StoreMemory:
		return StoreMemory
	case StoreRedis:
		return StoreRedis
	default:
		return defaultValue
	}
}
