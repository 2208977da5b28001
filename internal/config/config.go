// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Trace database: a SQLite file path or a postgres:// URL.
	Database string

	// Query settings.
	QueryTimeout time.Duration

	// Export settings.
	ExportConcurrency int // Lazy property loads in flight during an export.

	// Timezone formats real timestamps; empty means UTC.
	Timezone string

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
// Malformed values are reported together.
func Load() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	queryTimeout, err := envDuration("TRACELENS_QUERY_TIMEOUT", 30*time.Second)
	collect(err)
	exportConcurrency, err := envInt("TRACELENS_EXPORT_CONCURRENCY", 8)
	collect(err)
	otelInsecure, err := envBool("TRACELENS_OTEL_INSECURE", false)
	collect(err)

	cfg := Config{
		Database:          envStr("TRACELENS_DB", ""),
		QueryTimeout:      queryTimeout,
		ExportConcurrency: exportConcurrency,
		Timezone:          envStr("TRACELENS_TIMEZONE", ""),
		OTELEndpoint:      envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:      otelInsecure,
		ServiceName:       envStr("OTEL_SERVICE_NAME", "tracelens"),
		LogLevel:          envStr("TRACELENS_LOG_LEVEL", "info"),
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that configured values are in range. Database may be
// empty here; commands that need it check for it.
func (c Config) Validate() error {
	var errs []error
	if c.QueryTimeout <= 0 {
		errs = append(errs, errors.New("config: TRACELENS_QUERY_TIMEOUT must be positive"))
	}
	if c.ExportConcurrency <= 0 {
		errs = append(errs, errors.New("config: TRACELENS_EXPORT_CONCURRENCY must be positive"))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("config: TRACELENS_TIMEZONE=%q: %w", c.Timezone, err))
		}
	}
	return errors.Join(errs...)
}

// Location returns the configured timezone, or nil for UTC.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil
	}
	return loc
}

// IsPostgres reports whether Database names a PostgreSQL server.
func (c Config) IsPostgres() bool {
	return strings.HasPrefix(c.Database, "postgres://") || strings.HasPrefix(c.Database, "postgresql://")
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
