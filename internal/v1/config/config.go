package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration
type Config struct {
	// Listen port (defaults to 3001)
	ListenPort string

	// Timing knobs (spec.md §6.4)
	PingIntervalMs       int
	PongTimeoutMs        int
	TieWindowMs          int
	TieBufferMs          int
	FinalAnswerTimeoutMs int
	RoomGraceMs          int

	// Optional variables with defaults
	GoEnv          string
	LogLevel       string
	FrontendOrigin string

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string

	PersistenceBackend string // "filesystem" | "document_store"
	PersistenceDir     string

	GeneratorEndpoint string
	GeneratorAPIKey   string

	// Rate Limits
	RateLimitApiGlobal       string
	RateLimitApiRooms        string
	RateLimitWsIp            string
	RateLimitBuzzParticipant string
}

// ValidateEnv validates all required environment variables and returns a Config object
// Returns an error if any required variable is missing or invalid
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	// LISTEN_PORT (defaults to 3001; must be a valid port number)
	cfg.ListenPort = getEnvOrDefault("LISTEN_PORT", "3001")
	if port, err := strconv.Atoi(cfg.ListenPort); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("LISTEN_PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.ListenPort))
	}

	// Required: GENERATOR_ENDPOINT
	cfg.GeneratorEndpoint = os.Getenv("GENERATOR_ENDPOINT")
	if cfg.GeneratorEndpoint == "" {
		errors = append(errors, "GENERATOR_ENDPOINT is required")
	}
	cfg.GeneratorAPIKey = os.Getenv("GENERATOR_API_KEY")

	// Timing knobs (spec.md §6.4)
	cfg.PingIntervalMs = getEnvIntOrDefault("PING_INTERVAL_MS", 1000)
	cfg.PongTimeoutMs = getEnvIntOrDefault("PONG_TIMEOUT_MS", 3000)
	cfg.TieWindowMs = getEnvIntOrDefault("TIE_WINDOW_MS", 250)
	cfg.TieBufferMs = getEnvIntOrDefault("TIE_BUFFER_MS", 50)
	cfg.FinalAnswerTimeoutMs = getEnvIntOrDefault("FINAL_ANSWER_TIMEOUT_MS", 30000)
	cfg.RoomGraceMs = getEnvIntOrDefault("ROOM_GRACE_MS", 30000)

	if cfg.PongTimeoutMs <= cfg.PingIntervalMs {
		errors = append(errors, fmt.Sprintf("PONG_TIMEOUT_MS (%d) must be greater than PING_INTERVAL_MS (%d)", cfg.PongTimeoutMs, cfg.PingIntervalMs))
	}

	// Conditional: REDIS_ADDR (required if REDIS_ENABLED=true)
	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			// Default to localhost:6379 if not specified
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			errors = append(errors, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	// Optional: GO_ENV (defaults to "production")
	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")

	// Optional: LOG_LEVEL (defaults to "info")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Optional: FRONTEND_ORIGIN (CORS)
	cfg.FrontendOrigin = getEnvOrDefault("FRONTEND_ORIGIN", "http://localhost:3000")

	// Persistence Adapter backend selection
	cfg.PersistenceBackend = getEnvOrDefault("PERSISTENCE_BACKEND", "filesystem")
	if cfg.PersistenceBackend != "filesystem" && cfg.PersistenceBackend != "document_store" {
		errors = append(errors, fmt.Sprintf("PERSISTENCE_BACKEND must be 'filesystem' or 'document_store' (got '%s')", cfg.PersistenceBackend))
	}
	if cfg.PersistenceBackend == "document_store" && !cfg.RedisEnabled {
		errors = append(errors, "PERSISTENCE_BACKEND=document_store requires REDIS_ENABLED=true")
	}
	cfg.PersistenceDir = getEnvOrDefault("PERSISTENCE_DIR", "./data/games")

	// Rate Limits (Defaults: M = Minute, S = Second)
	cfg.RateLimitApiGlobal = getEnvOrDefault("RATE_LIMIT_API_GLOBAL", "1000-M")
	cfg.RateLimitApiRooms = getEnvOrDefault("RATE_LIMIT_API_ROOMS", "100-M")
	cfg.RateLimitWsIp = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")
	cfg.RateLimitBuzzParticipant = getEnvOrDefault("RATE_LIMIT_BUZZ_PARTICIPANT", "20-S")

	// If there are validation errors, return them
	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	// Log validated configuration (with secrets redacted)
	logValidatedConfig(cfg)

	return cfg, nil
}

// isValidHostPort checks if a string is in the format "host:port"
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	// Validate port is a number
	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	// Validate host is not empty
	if parts[0] == "" {
		return false
	}

	return true
}

// logValidatedConfig logs the validated configuration with secrets redacted
func logValidatedConfig(cfg *Config) {
	slog.Info("✅ Environment configuration validated successfully")
	slog.Info("Configuration",
		"listen_port", cfg.ListenPort,
		"generator_endpoint", cfg.GeneratorEndpoint,
		"generator_api_key", redactSecret(cfg.GeneratorAPIKey),
		"persistence_backend", cfg.PersistenceBackend,
		"redis_enabled", cfg.RedisEnabled,
		"redis_addr", cfg.RedisAddr,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"tie_window_ms", cfg.TieWindowMs,
		"tie_buffer_ms", cfg.TieBufferMs,
		"rate_limit_api_global", cfg.RateLimitApiGlobal,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault parses an integer environment variable, falling back to
// defaultValue on absence or malformed input.
func getEnvIntOrDefault(key string, defaultValue int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("invalid integer env var, using default", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return v
}

// redactSecret redacts a secret by showing only the first 8 characters
func redactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
