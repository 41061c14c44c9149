// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration knobs for the HTTP server and the sync pipeline.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// UpdatesDir is the watched directory; processed files move to its
	// "processed" subdirectory.
	UpdatesDir string
	// CatalogSource is the path of the full-catalog JSON document read by
	// the daily resync.
	CatalogSource string
	// ResyncAt is the local wall-clock boundary ("HH:MM") at which the daily
	// full resync fires.
	ResyncAt string
	// SettleDelay is how long the watcher waits after a write notification
	// before reading the file, to avoid partially written content.
	SettleDelay time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvms(key string, defMs int) time.Duration {
	ms := atoienv(key, defMs)
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT", 15),
		UpdatesDir:      getenv("UPDATES_DIR", "updates"),
		CatalogSource:   getenv("CATALOG_SOURCE", "catalog.json"),
		ResyncAt:        getenv("RESYNC_AT", "00:00"),
		SettleDelay:     durenvms("SETTLE_DELAY_MS", 200),
	}
}
