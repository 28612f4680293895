// Package config provides configuration loading and validation for the
// API server. It uses koanf to merge environment variables with
// optional file overrides.
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

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. Empty means the in-memory post store, for local
	// development and tests.
	DatabaseURL string `koanf:"database_url"`

	// Redis. Empty means in-process rate limiting only.
	RedisURL string `koanf:"redis_url"`

	// JWT authentication. The previous secret is set only during a
	// rotation window.
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// Quality scoring service. Empty disables the analyzer; unrated
	// posts then score the neutral default.
	QualityServiceURL    string `koanf:"quality_service_url"`
	QualityTimeoutMillis int    `koanf:"quality_timeout_ms"`

	// User directory service. Empty falls back to an in-memory
	// directory, which is only useful for local development.
	DirectoryServiceURL    string `koanf:"directory_service_url"`
	DirectoryTimeoutMillis int    `koanf:"directory_timeout_ms"`

	// Path to a JSON ranking calibration file. Empty uses built-in
	// weights.
	FeedCalibrationPath string `koanf:"feed_calibration_path"`

	// CORS allowlist, comma-separated in the env var.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Rate limits, requests per minute.
	RateLimitGlobal int `koanf:"rate_limit_global"`
	RateLimitFeed   int `koanf:"rate_limit_feed"`
	RateLimitWrite  int `koanf:"rate_limit_write"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingOTLPEndpoint string  `koanf:"tracing_otlp_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`
}

// Configuration validation errors.
var (
	ErrMissingJWTSecret    = errors.New("JWT_SECRET is required")
	ErrInvalidPort         = errors.New("PORT must be a valid integer")
	ErrInvalidSamplingRate = errors.New("TRACING_SAMPLING_RATE must be between 0 and 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort                   = 8080
	DefaultEnv                    = "development"
	DefaultQualityTimeoutMillis   = 2000
	DefaultDirectoryTimeoutMillis = 2000
	DefaultRateLimitGlobal        = 300
	DefaultRateLimitFeed          = 60
	DefaultRateLimitWrite         = 20
	DefaultTracingSamplingRate    = 0.1
)

// Load reads configuration from environment variables and an optional
// YAML file. Environment variables take precedence over file values.
// It returns the loaded config and a slice of validation errors, empty
// when valid.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefaultMulti([]string{"LUMEN_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	qualityTimeout, timeoutErr := getEnvIntOrDefault("QUALITY_TIMEOUT_MS", k.Int("quality_timeout_ms"), DefaultQualityTimeoutMillis)
	if timeoutErr != nil {
		loadErrs = append(loadErrs, timeoutErr)
	}

	directoryTimeout, timeoutErr := getEnvIntOrDefault("DIRECTORY_TIMEOUT_MS", k.Int("directory_timeout_ms"), DefaultDirectoryTimeoutMillis)
	if timeoutErr != nil {
		loadErrs = append(loadErrs, timeoutErr)
	}

	globalLimit, err := getEnvIntOrDefault("RATE_LIMIT_GLOBAL", k.Int("rate_limit_global"), DefaultRateLimitGlobal)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	feedLimit, err := getEnvIntOrDefault("RATE_LIMIT_FEED", k.Int("rate_limit_feed"), DefaultRateLimitFeed)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	writeLimit, err := getEnvIntOrDefault("RATE_LIMIT_WRITE", k.Int("rate_limit_write"), DefaultRateLimitWrite)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	samplingRate, err := getEnvFloatOrDefault("TRACING_SAMPLING_RATE", k.Float64("tracing_sampling_rate"), DefaultTracingSamplingRate)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	cfg := &Config{
		Port:                   port,
		Env:                    getEnvOrDefaultMulti([]string{"LUMEN_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:            getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:               getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		JWTSecret:              getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret:      getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		QualityServiceURL:      getEnvOrKoanf("QUALITY_SERVICE_URL", k, "quality_service_url"),
		QualityTimeoutMillis:   qualityTimeout,
		DirectoryServiceURL:    getEnvOrKoanf("DIRECTORY_SERVICE_URL", k, "directory_service_url"),
		DirectoryTimeoutMillis: directoryTimeout,
		FeedCalibrationPath:    getEnvOrKoanf("FEED_CALIBRATION_PATH", k, "feed_calibration_path"),
		CORSAllowedOrigins:     getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		RateLimitGlobal:        globalLimit,
		RateLimitFeed:          feedLimit,
		RateLimitWrite:         writeLimit,
		TracingEnabled:         getEnvBoolOrKoanf("TRACING_ENABLED", k, "tracing_enabled"),
		TracingOTLPEndpoint:    getEnvOrKoanf("TRACING_OTLP_ENDPOINT", k, "tracing_otlp_endpoint"),
		TracingSamplingRate:    samplingRate,
		TracingInsecure:        getEnvBoolOrKoanf("TRACING_INSECURE", k, "tracing_insecure"),
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set,
// otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvListOrKoanf parses a comma-separated environment variable into
// a list, falling back to the koanf value.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if val := os.Getenv(envKey); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return k.Strings(koanfKey)
}

// getEnvBoolOrKoanf interprets common truthy and falsy spellings from
// the environment, falling back to the koanf value.
func getEnvBoolOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) bool {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return k.Bool(koanfKey)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in
// order, then the koanf value, then the default.
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

// getEnvIntOrDefault returns the environment variable as int if set,
// otherwise the koanf value, or the default. A set but unparseable env
// value is an error.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in
// order. A zero value in a YAML file falls back to the default.
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

// getEnvFloatOrDefault returns the environment variable as float64 if
// set, otherwise the koanf value, or the default.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks required values and ranges. It returns a slice of
// validation errors, empty when valid.
func (c *Config) Validate() []error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		errs = append(errs, ErrInvalidSamplingRate)
	}

	return errs
}

// LogSummary returns the configuration with secrets masked, suitable
// for a startup log line.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                  fmt.Sprintf("%d", c.Port),
		"env":                   c.Env,
		"database_url":          maskDatabaseURL(c.DatabaseURL),
		"redis_url":             maskDatabaseURL(c.RedisURL),
		"jwt_secret":            maskSecret(c.JWTSecret),
		"jwt_previous_secret":   maskSecret(c.JWTPreviousSecret),
		"quality_service_url":   c.QualityServiceURL,
		"quality_timeout_ms":    fmt.Sprintf("%d", c.QualityTimeoutMillis),
		"directory_service_url": c.DirectoryServiceURL,
		"directory_timeout_ms":  fmt.Sprintf("%d", c.DirectoryTimeoutMillis),
		"feed_calibration_path": c.FeedCalibrationPath,
		"cors_allowed_origins":  strings.Join(c.CORSAllowedOrigins, ","),
		"rate_limit_global":     fmt.Sprintf("%d", c.RateLimitGlobal),
		"rate_limit_feed":       fmt.Sprintf("%d", c.RateLimitFeed),
		"rate_limit_write":      fmt.Sprintf("%d", c.RateLimitWrite),
		"tracing_enabled":       fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_otlp_endpoint": c.TracingOTLPEndpoint,
		"tracing_sampling_rate": fmt.Sprintf("%g", c.TracingSamplingRate),
	}
}

// maskSecret shows only the first 4 characters of a secret. Secrets
// shorter than 8 characters are fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
