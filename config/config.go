// Package config provides application configuration management.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	ServerPort string
	APIToken   string

	// Database configuration
	DatabaseDriver string
	DatabaseDSN    string

	// Databricks workspace configuration
	DatabricksHost     string
	DatabricksToken    string
	EndpointCacheTTL   time.Duration
	ServingCallTimeout time.Duration

	// Settings / defaults
	DefaultsPath    string
	FallbackUser    string
	Environment     string
	HistoryLimit    int
	SessionLimit    int
	ChatWorkerCount int

	// Redis / events configuration
	RedisAddr        string
	RedisUsername    string
	RedisPassword    string
	RedisDB          int
	RedisTLSEnabled  bool
	RedisTLSInsecure bool
	EventsChannel    string
	ChatStream       string
	ChatGroup        string
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	driver := getEnv("DATABASE_DRIVER", "sqlite")
	dsn := getEnv("DATABASE_DSN", "")
	if dsn == "" {
		if driver == "postgres" {
			dsn = os.Getenv("DATABASE_URL")
		} else {
			dsn = "data/chat-config.db"
		}
	}
	fallbackUser := os.Getenv("USER")
	if fallbackUser == "" {
		fallbackUser = "default_user"
	}
	return &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		APIToken:           os.Getenv("CHAT_APP_API_TOKEN"),
		DatabaseDriver:     driver,
		DatabaseDSN:        dsn,
		DatabricksHost:     normalizeHost(os.Getenv("DATABRICKS_HOST")),
		DatabricksToken:    os.Getenv("DATABRICKS_TOKEN"),
		EndpointCacheTTL:   getEnvDuration("ENDPOINT_CACHE_TTL", 5*time.Minute),
		ServingCallTimeout: getEnvDuration("SERVING_CALL_TIMEOUT", 10*time.Minute),
		DefaultsPath:       getEnv("PROFILE_DEFAULTS_PATH", ""),
		FallbackUser:       getEnv("FALLBACK_USER", fallbackUser),
		Environment:        getEnv("ENVIRONMENT", "development"),
		HistoryLimit:       getEnvInt("HISTORY_LIMIT", 100),
		SessionLimit:       getEnvInt("SESSION_LIMIT", 50),
		ChatWorkerCount:    getEnvInt("CHAT_WORKER_COUNT", 4),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisUsername:      getEnv("REDIS_USERNAME", ""),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		RedisTLSEnabled:    getEnvBool("REDIS_TLS_ENABLED", false),
		RedisTLSInsecure:   getEnvBool("REDIS_TLS_INSECURE_SKIP_VERIFY", false),
		EventsChannel:      getEnv("EVENTS_CHANNEL", "chat-config-events"),
		ChatStream:         getEnv("REDIS_CHAT_STREAM", "chat-config:requests"),
		ChatGroup:          getEnv("REDIS_CHAT_GROUP", "chat-workers"),
	}
}

// normalizeHost ensures the workspace URL carries a scheme and no trailing slash.
func normalizeHost(host string) string {
	if host == "" {
		return ""
	}
	if !strings.HasPrefix(host, "https://") && !strings.HasPrefix(host, "http://") {
		host = "https://" + host
	}
	return strings.TrimRight(host, "/")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s: %s, using default %s", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Printf("Invalid int for %s: %s, using default %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "y":
			return true
		case "0", "false", "no", "n":
			return false
		default:
			log.Printf("Invalid bool for %s: %s, using default %t", key, value, defaultValue)
		}
	}
	return defaultValue
}
