// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server and ingest worker.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Ranking
	CalibrationPath   string `koanf:"calibration_path"`
	MaxFeedSize       int    `koanf:"max_feed_size"`
	CacheTTLSeconds   int    `koanf:"cache_ttl_seconds"`
	HistoryMaxPerUser int    `koanf:"history_max_per_user"`

	// Feed cache backend: "memory" or "redis"
	CacheBackend  string `koanf:"cache_backend"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// Event sink backend: "log", "postgres", or "redis"
	SinkBackend    string `koanf:"sink_backend"`
	PostgresDSN    string `koanf:"postgres_dsn"`
	EventStreamKey string `koanf:"event_stream_key"`

	// Event dispatcher
	DispatchQueueSize int `koanf:"dispatch_queue_size"`
	DispatchWorkers   int `koanf:"dispatch_workers"`

	// Ingest worker (websocket event firehose)
	IngestURL string `koanf:"ingest_url"`

	// Tracing
	TracingEnabled  bool   `koanf:"tracing_enabled"`
	TracingEndpoint string `koanf:"tracing_endpoint"`
	TracingProtocol string `koanf:"tracing_protocol"` // "http" or "grpc"
	TracingInsecure bool   `koanf:"tracing_insecure"`
}

// Configuration validation errors.
var (
	ErrInvalidPort          = errors.New("PORT must be a valid integer")
	ErrInvalidCacheBackend  = errors.New("CACHE_BACKEND must be \"memory\" or \"redis\"")
	ErrInvalidSinkBackend   = errors.New("SINK_BACKEND must be \"log\", \"postgres\", or \"redis\"")
	ErrMissingRedisAddr     = errors.New("REDIS_ADDR is required when a redis backend is selected")
	ErrMissingPostgresDSN   = errors.New("POSTGRES_DSN is required when SINK_BACKEND is \"postgres\"")
	ErrInvalidMaxFeedSize   = errors.New("MAX_FEED_SIZE must be positive")
	ErrInvalidCacheTTL      = errors.New("CACHE_TTL_SECONDS must be positive")
	ErrInvalidHistoryMax    = errors.New("HISTORY_MAX_PER_USER must be non-negative")
	ErrInvalidTraceProtocol = errors.New("TRACING_PROTOCOL must be \"http\" or \"grpc\"")
)

// Default values for configuration.
const (
	DefaultPort              = 8080
	DefaultEnv               = "development"
	DefaultMaxFeedSize       = 50
	DefaultCacheTTLSeconds   = 3600
	DefaultHistoryMaxPerUser = 0 // unbounded
	DefaultCacheBackend      = "memory"
	DefaultSinkBackend       = "log"
	DefaultEventStreamKey    = "pulsenote:events"
	DefaultDispatchQueueSize = 1024
	DefaultDispatchWorkers   = 4
	DefaultTracingProtocol   = "http"
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Try PULSENOTE_PORT first, then PORT
	port, portErr := getEnvIntOrDefaultMulti([]string{"PULSENOTE_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	maxFeedSize, sizeErr := getEnvIntOrDefault("MAX_FEED_SIZE", k.Int("max_feed_size"), DefaultMaxFeedSize)
	if sizeErr != nil {
		loadErrs = append(loadErrs, sizeErr)
	}

	cacheTTL, ttlErr := getEnvIntOrDefault("CACHE_TTL_SECONDS", k.Int("cache_ttl_seconds"), DefaultCacheTTLSeconds)
	if ttlErr != nil {
		loadErrs = append(loadErrs, ttlErr)
	}

	historyMax, historyErr := getEnvIntOrDefault("HISTORY_MAX_PER_USER", k.Int("history_max_per_user"), DefaultHistoryMaxPerUser)
	if historyErr != nil {
		loadErrs = append(loadErrs, historyErr)
	}

	redisDB, redisDBErr := getEnvIntOrDefault("REDIS_DB", k.Int("redis_db"), 0)
	if redisDBErr != nil {
		loadErrs = append(loadErrs, redisDBErr)
	}

	queueSize, queueErr := getEnvIntOrDefault("DISPATCH_QUEUE_SIZE", k.Int("dispatch_queue_size"), DefaultDispatchQueueSize)
	if queueErr != nil {
		loadErrs = append(loadErrs, queueErr)
	}

	workers, workersErr := getEnvIntOrDefault("DISPATCH_WORKERS", k.Int("dispatch_workers"), DefaultDispatchWorkers)
	if workersErr != nil {
		loadErrs = append(loadErrs, workersErr)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:              port,
		Env:               getEnvOrDefaultMulti([]string{"PULSENOTE_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		CalibrationPath:   getEnvOrKoanf("CALIBRATION_PATH", k, "calibration_path"),
		MaxFeedSize:       maxFeedSize,
		CacheTTLSeconds:   cacheTTL,
		HistoryMaxPerUser: historyMax,
		CacheBackend:      getEnvOrDefault("CACHE_BACKEND", k.String("cache_backend"), DefaultCacheBackend),
		RedisAddr:         getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),
		RedisPassword:     getEnvOrKoanf("REDIS_PASSWORD", k, "redis_password"),
		RedisDB:           redisDB,
		SinkBackend:       getEnvOrDefault("SINK_BACKEND", k.String("sink_backend"), DefaultSinkBackend),
		PostgresDSN:       getEnvOrKoanf("POSTGRES_DSN", k, "postgres_dsn"),
		EventStreamKey:    getEnvOrDefault("EVENT_STREAM_KEY", k.String("event_stream_key"), DefaultEventStreamKey),
		DispatchQueueSize: queueSize,
		DispatchWorkers:   workers,
		IngestURL:         getEnvOrKoanf("INGEST_URL", k, "ingest_url"),
		TracingEnabled:    getEnvBool("TRACING_ENABLED", k, "tracing_enabled", false),
		TracingEndpoint:   getEnvOrKoanf("TRACING_ENDPOINT", k, "tracing_endpoint"),
		TracingProtocol:   getEnvOrDefault("TRACING_PROTOCOL", k.String("tracing_protocol"), DefaultTracingProtocol),
		TracingInsecure:   getEnvBool("TRACING_INSECURE", k, "tracing_insecure", false),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
// Note: a zero value from a YAML file falls back to the default.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvBool returns a boolean from the environment or koanf, with env taking precedence.
// Recognizes true/1/yes/on and false/0/no/off (case-insensitive).
func getEnvBool(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) bool {
	result := defaultVal
	if k.Exists(koanfKey) {
		result = k.Bool(koanfKey)
	}
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			result = true
		case "false", "0", "no", "off":
			result = false
		}
	}
	return result
}

// Validate checks that the configuration values are coherent.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.MaxFeedSize <= 0 {
		errs = append(errs, ErrInvalidMaxFeedSize)
	}
	if c.CacheTTLSeconds <= 0 {
		errs = append(errs, ErrInvalidCacheTTL)
	}
	if c.HistoryMaxPerUser < 0 {
		errs = append(errs, ErrInvalidHistoryMax)
	}

	switch c.CacheBackend {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, ErrMissingRedisAddr)
		}
	default:
		errs = append(errs, ErrInvalidCacheBackend)
	}

	switch c.SinkBackend {
	case "log":
	case "postgres":
		if c.PostgresDSN == "" {
			errs = append(errs, ErrMissingPostgresDSN)
		}
	case "redis":
		if c.RedisAddr == "" && c.CacheBackend != "redis" {
			errs = append(errs, ErrMissingRedisAddr)
		}
	default:
		errs = append(errs, ErrInvalidSinkBackend)
	}

	if c.TracingEnabled {
		switch c.TracingProtocol {
		case "http", "grpc":
		default:
			errs = append(errs, ErrInvalidTraceProtocol)
		}
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// Secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                 fmt.Sprintf("%d", c.Port),
		"env":                  c.Env,
		"calibration_path":     c.CalibrationPath,
		"max_feed_size":        fmt.Sprintf("%d", c.MaxFeedSize),
		"cache_ttl_seconds":    fmt.Sprintf("%d", c.CacheTTLSeconds),
		"history_max_per_user": fmt.Sprintf("%d", c.HistoryMaxPerUser),
		"cache_backend":        c.CacheBackend,
		"redis_addr":           c.RedisAddr,
		"redis_password":       maskSecret(c.RedisPassword),
		"sink_backend":         c.SinkBackend,
		"postgres_dsn":         maskDatabaseURL(c.PostgresDSN),
		"event_stream_key":     c.EventStreamKey,
		"dispatch_queue_size":  fmt.Sprintf("%d", c.DispatchQueueSize),
		"dispatch_workers":     fmt.Sprintf("%d", c.DispatchWorkers),
		"ingest_url":           c.IngestURL,
		"tracing_enabled":      fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_endpoint":     c.TracingEndpoint,
		"tracing_protocol":     c.TracingProtocol,
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a database URL.
// Supports both postgres:// and postgresql:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
