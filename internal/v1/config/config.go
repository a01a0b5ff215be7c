package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration
type Config struct {
	// Listener
	Port string

	// Signaling timings
	PingPeriod      time.Duration // application-layer ping interval
	IdleTimeout     time.Duration // allowed silence after a ping
	RoomGracePeriod time.Duration // how long an empty room survives
	RoomCap         int           // 0 disables the cap

	// Optional variables with defaults
	GoEnv           string
	LogLevel        string
	DevelopmentMode bool
	AllowedOrigins  string

	// Rate limits (ulule/limiter formatted rates, e.g. "100-M")
	RateLimitAPI string
	RateLimitWs  string

	// Tracing
	OtelEnabled       bool
	OtelCollectorAddr string
}

// Defaults for the signaling timings.
const (
	DefaultPort            = "8080"
	DefaultPingPeriod      = 15 * time.Second
	DefaultIdleTimeout     = 15 * time.Second
	DefaultRoomGracePeriod = 60 * time.Second
)

// ValidateEnv validates all environment variables and returns a Config
// object. Returns an error if any variable is malformed.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	// Optional: PORT (defaults to 8080, must be a valid port when set)
	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
		}
	}

	// Signaling timings (Go duration syntax, e.g. "15s")
	var err error
	if cfg.PingPeriod, err = durationOrDefault("PING_PERIOD", DefaultPingPeriod); err != nil {
		errors = append(errors, err.Error())
	}
	if cfg.IdleTimeout, err = durationOrDefault("IDLE_TIMEOUT", DefaultIdleTimeout); err != nil {
		errors = append(errors, err.Error())
	}
	if cfg.RoomGracePeriod, err = durationOrDefault("ROOM_GRACE_PERIOD", DefaultRoomGracePeriod); err != nil {
		errors = append(errors, err.Error())
	}

	// Optional: ROOM_CAP (defaults to 0 = unlimited)
	if capStr := os.Getenv("ROOM_CAP"); capStr != "" {
		roomCap, err := strconv.Atoi(capStr)
		if err != nil || roomCap < 0 {
			errors = append(errors, fmt.Sprintf("ROOM_CAP must be a non-negative integer (got '%s')", capStr))
		} else {
			cfg.RoomCap = roomCap
		}
	}

	// Optional: GO_ENV (defaults to "production")
	cfg.GoEnv = os.Getenv("GO_ENV")
	if cfg.GoEnv == "" {
		cfg.GoEnv = "production"
	}

	// Optional: LOG_LEVEL (defaults to "info")
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	// Rate Limits (Defaults: M = Minute, H = Hour)
	cfg.RateLimitAPI = getEnvOrDefault("RATE_LIMIT_API", "100-M")
	cfg.RateLimitWs = getEnvOrDefault("RATE_LIMIT_WS", "60-M")

	// Tracing
	cfg.OtelEnabled = os.Getenv("OTEL_ENABLED") == "true"
	cfg.OtelCollectorAddr = getEnvOrDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")
	if cfg.OtelEnabled && !isValidHostPort(cfg.OtelCollectorAddr) {
		errors = append(errors, fmt.Sprintf("OTEL_COLLECTOR_ADDR must be in format 'host:port' (got '%s')", cfg.OtelCollectorAddr))
	}

	// If there are validation errors, return them
	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

// AllowedOriginList splits the comma-separated ALLOWED_ORIGINS value.
// Example: ALLOWED_ORIGINS="http://localhost:3000,https://your-app.com"
// Falls back to the given defaults when the variable is unset.
func (cfg *Config) AllowedOriginList(defaults []string) []string {
	if cfg.AllowedOrigins == "" {
		slog.Warn("ALLOWED_ORIGINS not set, using default development origins", "defaults", defaults)
		return defaults
	}
	parts := strings.Split(cfg.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// durationOrDefault parses an optional duration environment variable.
func durationOrDefault(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration (got '%s')", key, raw)
	}
	return d, nil
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
	return parts[0] != ""
}

// logValidatedConfig logs the validated configuration
func logValidatedConfig(cfg *Config) {
	slog.Info("✅ Environment configuration validated successfully")
	slog.Info("Configuration",
		"port", cfg.Port,
		"ping_period", cfg.PingPeriod,
		"idle_timeout", cfg.IdleTimeout,
		"room_grace_period", cfg.RoomGracePeriod,
		"room_cap", cfg.RoomCap,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"development_mode", cfg.DevelopmentMode,
		"rate_limit_api", cfg.RateLimitAPI,
		"rate_limit_ws", cfg.RateLimitWs,
		"otel_enabled", cfg.OtelEnabled,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
