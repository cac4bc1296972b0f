// Package config provides environment-aware configuration management for
// the engine's server and worker entrypoints.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment names a deployment tier.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// ParseEnvironment validates a raw environment string.
func ParseEnvironment(raw string) (Environment, bool) {
	switch Environment(raw) {
	case Development, Testing, Production:
		return Environment(raw), true
	default:
		return "", false
	}
}

// Config holds all engine configuration, loaded once at process start.
type Config struct {
	Env Environment

	// Central database (tenants, domains, users).
	CentralDSN string

	// Per-tenant database DSN template; %s is substituted with the
	// tenant's database name (tenant_<id>) by internal/tenant's
	// ConnectionManager.
	TenantDSNTemplate string

	// Credential envelope master key, 32 raw bytes, hex or base64 encoded
	// on disk; resolved eagerly so a misconfigured deployment fails fast.
	CredentialMasterKeyHex string

	// Credential cache.
	CredentialCacheTTL time.Duration

	// Job dispatcher.
	DispatcherPollInterval time.Duration
	DispatcherBatchSize    int
	WorkerPoolSize         int
	DefaultMaxAttempts     int
	RetryInitialBackoff    time.Duration
	RetryMaxBackoff        time.Duration
	RetryMultiplier        float64

	// HTTP read-model API.
	HTTPAddr string

	// Logging.
	LogLevel  string
	LogFormat string

	// Metrics.
	MetricsEnabled bool
	MetricsAddr    string

	// Storage.
	StorageRoot string

	// Features.
	TestMode bool
}

// Load reads ENGINE_ENV (defaulting to development), overlays a
// per-environment .env file if present, then populates Config from the
// process environment.
func Load() (*Config, error) {
	envStr := os.Getenv("ENGINE_ENV")
	if envStr == "" {
		envStr = string(Development)
	}
	env, ok := ParseEnvironment(envStr)
	if !ok {
		return nil, fmt.Errorf("invalid ENGINE_ENV: %s (must be development, testing, or production)", envStr)
	}

	configFile := filepath.Join("config", fmt.Sprintf("%s.env", env))
	if err := godotenv.Load(configFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Printf("warning: could not load %s: %v\n", configFile, err)
		}
	}

	cfg := &Config{Env: env}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromEnv() error {
	c.CentralDSN = getEnv("CENTRAL_DATABASE_URL", "postgres://localhost:5432/docuflow_central?sslmode=disable")
	c.TenantDSNTemplate = getEnv("TENANT_DATABASE_URL_TEMPLATE", "postgres://localhost:5432/%s?sslmode=disable")
	c.CredentialMasterKeyHex = getEnv("CREDENTIAL_MASTER_KEY", "")

	ttl, err := time.ParseDuration(getEnv("CREDENTIAL_CACHE_TTL", "5m"))
	if err != nil {
		return fmt.Errorf("invalid CREDENTIAL_CACHE_TTL: %w", err)
	}
	c.CredentialCacheTTL = ttl

	pollInterval, err := time.ParseDuration(getEnv("DISPATCHER_POLL_INTERVAL", "2s"))
	if err != nil {
		return fmt.Errorf("invalid DISPATCHER_POLL_INTERVAL: %w", err)
	}
	c.DispatcherPollInterval = pollInterval
	c.DispatcherBatchSize = getIntEnv("DISPATCHER_BATCH_SIZE", 20)
	c.WorkerPoolSize = getIntEnv("WORKER_POOL_SIZE", 8)
	c.DefaultMaxAttempts = getIntEnv("DEFAULT_MAX_ATTEMPTS", 3)

	initialBackoff, err := time.ParseDuration(getEnv("RETRY_INITIAL_BACKOFF", "500ms"))
	if err != nil {
		return fmt.Errorf("invalid RETRY_INITIAL_BACKOFF: %w", err)
	}
	c.RetryInitialBackoff = initialBackoff
	maxBackoff, err := time.ParseDuration(getEnv("RETRY_MAX_BACKOFF", "30s"))
	if err != nil {
		return fmt.Errorf("invalid RETRY_MAX_BACKOFF: %w", err)
	}
	c.RetryMaxBackoff = maxBackoff
	c.RetryMultiplier = getFloatEnv("RETRY_MULTIPLIER", 2.0)

	c.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.LogFormat = getEnv("LOG_FORMAT", "text")

	c.MetricsEnabled = getBoolEnv("METRICS_ENABLED", c.Env == Production)
	c.MetricsAddr = getEnv("METRICS_ADDR", ":9090")

	c.StorageRoot = getEnv("STORAGE_ROOT", "./storage")

	c.TestMode = getBoolEnv("TEST_MODE", false)

	return nil
}

func (c *Config) IsDevelopment() bool { return c.Env == Development }
func (c *Config) IsTesting() bool     { return c.Env == Testing }
func (c *Config) IsProduction() bool  { return c.Env == Production }

// Validate rejects configurations that would be unsafe in production.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.CredentialMasterKeyHex == "" {
			return fmt.Errorf("CREDENTIAL_MASTER_KEY is required in production")
		}
		if c.TestMode {
			return fmt.Errorf("TEST_MODE must be false in production")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getFloatEnv(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getBoolEnv(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
