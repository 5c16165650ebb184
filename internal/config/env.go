// Package config reads the process-wide knobs this system recognizes from
// the environment. Loading configuration from a file is explicitly out of
// scope (the admin surface owns that); this package only parses env vars
// and applies defaults, the same overlay technique the teacher's
// internal/config/env.go uses, scaled down to this system's knob set.
package config

import (
	"os"
	"strconv"
	"time"

	"lineupd/internal/log"
)

func parseString(key, defaultValue string) string {
	logger := log.WithComponent("config")
	if v, ok := os.LookupEnv(key); ok && v != "" {
		logger.Debug().Str("key", key).Str("source", "environment").Msg("using environment variable")
		return v
	}
	logger.Debug().Str("key", key).Str("source", "default").Msg("using default value")
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	logger := log.WithComponent("config")
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		logger.Warn().Str("key", key).Str("value", v).Msg("invalid integer, using default")
	}
	return defaultValue
}

// Config holds the process-wide settings recognized by §6 of the
// specification: the Refresh.* and Snapshot.* knobs plus the bind address
// and catalog location. Per-request HTTP options (headers, user-agent,
// timeout) live on the Provider row, not here.
type Config struct {
	// ListenAddr is the address the client-endpoint HTTP server binds.
	ListenAddr string

	// CatalogPath is the SQLite database file backing the Catalog Store.
	CatalogPath string

	// RefreshIntervalHours is the schedule-loop sleep interval.
	RefreshIntervalHours int

	// RefreshTimeoutMinutes bounds a single refresh run.
	RefreshTimeoutMinutes int

	// RefreshStartupDelaySeconds delays the first scheduled refresh.
	RefreshStartupDelaySeconds int

	// SnapshotRetentionCount bounds snapshots retained per profile.
	SnapshotRetentionCount int

	// SnapshotDirectory is the root directory for snapshot artifacts.
	SnapshotDirectory string

	// LogLevel is the zerolog level name ("debug", "info", ...).
	LogLevel string
}

// FromEnv loads a Config from the process environment, applying the
// defaults named in spec §6.
func FromEnv() Config {
	return Config{
		ListenAddr:                 parseString("LINEUPD_LISTEN_ADDR", ":8080"),
		CatalogPath:                parseString("LINEUPD_CATALOG_PATH", "./data/catalog.db"),
		RefreshIntervalHours:       parseInt("LINEUPD_REFRESH_INTERVAL_HOURS", 4),
		RefreshTimeoutMinutes:      parseInt("LINEUPD_REFRESH_TIMEOUT_MINUTES", 5),
		RefreshStartupDelaySeconds: parseInt("LINEUPD_REFRESH_STARTUP_DELAY_SECONDS", 30),
		SnapshotRetentionCount:     parseInt("LINEUPD_SNAPSHOT_RETENTION_COUNT", 3),
		SnapshotDirectory:          parseString("LINEUPD_SNAPSHOT_DIR", "./data/snapshots"),
		LogLevel:                   parseString("LINEUPD_LOG_LEVEL", "info"),
	}
}

// RefreshInterval returns the schedule-loop sleep duration.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalHours) * time.Hour
}

// RefreshTimeout returns the per-run deadline duration.
func (c Config) RefreshTimeout() time.Duration {
	return time.Duration(c.RefreshTimeoutMinutes) * time.Minute
}

// RefreshStartupDelay returns the pre-first-run sleep duration.
func (c Config) RefreshStartupDelay() time.Duration {
	return time.Duration(c.RefreshStartupDelaySeconds) * time.Second
}
