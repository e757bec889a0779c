// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	BaserowURL   string
	BaserowToken string
	TableID      int64
	AuthScheme   string

	StorageDir   string
	RateTokens   int
	RateInterval time.Duration

	ListenAddr     string
	RequestTimeout time.Duration
	DBPath         string
	LogLevel       string
	LogFile        string

	Cache        bool
	CacheEntries int
}

// ConfigurationError names a required setting that is missing or unusable.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Key, e.Reason)
}

// LoadDotEnv loads variables from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables. Required Baserow
// settings are not checked here; call Validate before talking to the table.
// Optional variables with defaults: PROFILEHUB_STORAGE_DIR (storage),
// PROFILEHUB_RATE_TOKENS (45), PROFILEHUB_RATE_INTERVAL (1m),
// PROFILEHUB_LISTEN_ADDR (127.0.0.1:8080), PROFILEHUB_DB_PATH (profilehub.db;
// empty keeps the journal in memory),
// PROFILEHUB_LOG_LEVEL (info), PROFILEHUB_CACHE (false),
// PROFILEHUB_CACHE_ENTRIES (256) and PROFILEHUB_REQUEST_TIMEOUT (the rate
// interval plus 30s).
func Load() (*Config, error) {
	cfg := &Config{
		BaserowURL:   strings.TrimSpace(os.Getenv("BASEROW_API_URL")),
		BaserowToken: strings.TrimSpace(os.Getenv("BASEROW_API_TOKEN")),
		AuthScheme:   "Token",
		StorageDir:   "storage",
		RateTokens:   45,
		RateInterval: time.Minute,
		ListenAddr:   "127.0.0.1:8080",
		DBPath:       "profilehub.db",
		LogLevel:     "info",
		LogFile:      os.Getenv("PROFILEHUB_LOG_FILE"),
		CacheEntries: 256,
	}

	if v, ok := os.LookupEnv("BASEROW_TABLE_ID"); ok && strings.TrimSpace(v) != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("BASEROW_TABLE_ID has invalid integer %q: %w", v, err)
		}
		cfg.TableID = id
	}

	if v, ok := os.LookupEnv("BASEROW_AUTH_SCHEME"); ok && v != "" {
		cfg.AuthScheme = v
	}

	if v, ok := os.LookupEnv("PROFILEHUB_STORAGE_DIR"); ok && v != "" {
		cfg.StorageDir = v
	}

	if v, ok := os.LookupEnv("PROFILEHUB_RATE_TOKENS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PROFILEHUB_RATE_TOKENS has invalid integer %q: %w", v, err)
		}
		cfg.RateTokens = n
	}

	if v, ok := os.LookupEnv("PROFILEHUB_RATE_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PROFILEHUB_RATE_INTERVAL has invalid duration %q: %w", v, err)
		}
		cfg.RateInterval = parsed
	}

	if v, ok := os.LookupEnv("PROFILEHUB_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}

	cfg.RequestTimeout = cfg.RateInterval + 30*time.Second
	if v, ok := os.LookupEnv("PROFILEHUB_REQUEST_TIMEOUT"); ok && v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PROFILEHUB_REQUEST_TIMEOUT has invalid duration %q: %w", v, err)
		}
		cfg.RequestTimeout = parsed
	}

	if v, ok := os.LookupEnv("PROFILEHUB_DB_PATH"); ok {
		cfg.DBPath = v
	}

	if v, ok := os.LookupEnv("PROFILEHUB_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if v, ok := os.LookupEnv("PROFILEHUB_CACHE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("PROFILEHUB_CACHE has invalid boolean %q: %w", v, err)
		}
		cfg.Cache = b
	}

	if v, ok := os.LookupEnv("PROFILEHUB_CACHE_ENTRIES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PROFILEHUB_CACHE_ENTRIES has invalid integer %q: %w", v, err)
		}
		cfg.CacheEntries = n
	}

	return cfg, nil
}

// Validate checks the settings needed to reach the remote table and to build
// the rate limiter. It returns a *ConfigurationError for the first problem.
func (c *Config) Validate() error {
	if c.BaserowURL == "" {
		return &ConfigurationError{Key: "BASEROW_API_URL", Reason: "is required"}
	}
	u, err := url.Parse(c.BaserowURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigurationError{Key: "BASEROW_API_URL", Reason: "must be an absolute URL"}
	}
	if c.BaserowToken == "" {
		return &ConfigurationError{Key: "BASEROW_API_TOKEN", Reason: "is required"}
	}
	if c.TableID <= 0 {
		return &ConfigurationError{Key: "BASEROW_TABLE_ID", Reason: "must be a positive integer"}
	}
	if c.RateTokens <= 0 {
		return &ConfigurationError{Key: "PROFILEHUB_RATE_TOKENS", Reason: "must be positive"}
	}
	if c.RateInterval <= 0 {
		return &ConfigurationError{Key: "PROFILEHUB_RATE_INTERVAL", Reason: "must be positive"}
	}
	if c.RequestTimeout <= 0 {
		return &ConfigurationError{Key: "PROFILEHUB_REQUEST_TIMEOUT", Reason: "must be positive"}
	}
	if c.Cache && c.CacheEntries <= 0 {
		return &ConfigurationError{Key: "PROFILEHUB_CACHE_ENTRIES", Reason: "must be positive when the cache is enabled"}
	}
	return nil
}
