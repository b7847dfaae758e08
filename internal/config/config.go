// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Lineage source kinds.
const (
	SourceSQLite = "sqlite"
	SourceDuckDB = "duckdb"
)

// LineageConfig holds traversal, cache and source settings.
type LineageConfig struct {
	Source         string // "sqlite" (recorded events, default) or "duckdb"
	DuckDBPath     string // DuckDB database file; empty means in-memory
	TableRelation  string // DuckDB relation holding table lineage
	ColumnRelation string // DuckDB relation holding column lineage

	CacheTTL     time.Duration // default 1h
	CacheMaxSize int           // default 1000

	FetchTimeout            time.Duration // per-fetch bound, default 30s
	MaxConcurrentTraversals int           // default 8
	CoalesceMisses          bool          // default true
	DefaultDaysBack         int           // default 90
	SourceRPS               float64       // 0 disables source rate limiting
	SourceBurst             int           // default 10

	JanitorSchedule    string // cron spec, default every 10 minutes
	EventRetentionDays int    // 0 keeps recorded events forever
}

// Config holds the configuration for the lineage HTTP API.
type Config struct {
	MetaDBPath string // path to SQLite metastore file
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// OTLPEndpoint enables trace export when set.
	OTLPEndpoint string

	Lineage LineageConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		MetaDBPath:   os.Getenv("META_DB_PATH"),
		ListenAddr:   os.Getenv("LISTEN_ADDR"),
		LogLevel:     os.Getenv("LOG_LEVEL"),
		Env:          os.Getenv("ENV"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Lineage: LineageConfig{
			Source:          strings.ToLower(strings.TrimSpace(os.Getenv("LINEAGE_SOURCE"))),
			DuckDBPath:      os.Getenv("DUCKDB_PATH"),
			TableRelation:   os.Getenv("LINEAGE_TABLE_RELATION"),
			ColumnRelation:  os.Getenv("LINEAGE_COLUMN_RELATION"),
			CoalesceMisses:  parseBoolEnvDefault("LINEAGE_COALESCE_MISSES", true),
			JanitorSchedule: os.Getenv("LINEAGE_JANITOR_SCHEDULE"),
		},
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Lineage tuning. Malformed values are errors rather than silent defaults.
	var err error
	lc := &cfg.Lineage
	if lc.CacheTTL, err = durationEnv("LINEAGE_CACHE_TTL", time.Hour); err != nil {
		return nil, err
	}
	if lc.FetchTimeout, err = durationEnv("LINEAGE_FETCH_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if lc.CacheMaxSize, err = intEnv("LINEAGE_CACHE_MAX_SIZE", 1000); err != nil {
		return nil, err
	}
	if lc.MaxConcurrentTraversals, err = intEnv("LINEAGE_MAX_CONCURRENT_TRAVERSALS", 8); err != nil {
		return nil, err
	}
	if lc.DefaultDaysBack, err = intEnv("LINEAGE_DEFAULT_DAYS_BACK", 90); err != nil {
		return nil, err
	}
	if lc.SourceBurst, err = intEnv("LINEAGE_SOURCE_BURST", 10); err != nil {
		return nil, err
	}
	if lc.EventRetentionDays, err = intEnv("LINEAGE_EVENT_RETENTION_DAYS", 0); err != nil {
		return nil, err
	}
	if v := os.Getenv("LINEAGE_SOURCE_RPS"); v != "" {
		if lc.SourceRPS, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid LINEAGE_SOURCE_RPS %q: %w", v, err)
		}
	}

	// Defaults
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "lineage_meta.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if lc.Source == "" {
		lc.Source = SourceSQLite
	}
	if lc.JanitorSchedule == "" {
		lc.JanitorSchedule = "*/10 * * * *"
	}

	if lc.Source != SourceSQLite && lc.Source != SourceDuckDB {
		return nil, fmt.Errorf("LINEAGE_SOURCE must be %q or %q, got %q", SourceSQLite, SourceDuckDB, lc.Source)
	}
	if lc.CacheMaxSize <= 0 {
		return nil, fmt.Errorf("LINEAGE_CACHE_MAX_SIZE must be positive")
	}
	if lc.MaxConcurrentTraversals <= 0 {
		return nil, fmt.Errorf("LINEAGE_MAX_CONCURRENT_TRAVERSALS must be positive")
	}
	if lc.DefaultDaysBack <= 0 {
		return nil, fmt.Errorf("LINEAGE_DEFAULT_DAYS_BACK must be positive")
	}
	if lc.FetchTimeout <= 0 {
		cfg.Warnings = append(cfg.Warnings, "LINEAGE_FETCH_TIMEOUT disabled: edge source fetches are unbounded")
	}
	if lc.Source == SourceDuckDB && lc.DuckDBPath == "" {
		cfg.Warnings = append(cfg.Warnings, "DUCKDB_PATH not set, reading lineage from an empty in-memory DuckDB")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
		if lc.FetchTimeout <= 0 {
			return nil, fmt.Errorf("LINEAGE_FETCH_TIMEOUT must be positive in production (ENV=production)")
		}
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Env vars take precedence.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
