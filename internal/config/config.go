/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	MetricsBind string

	DBBackend DatabaseBackend
	DBDSN     string

	// Media layout
	MediaRoot  string // catalog media files
	ScratchDir string // one-shot effect/announcement artifacts
	CacheDir   string // deterministic filtered/normalized renders

	// External tools and collaborators
	FFmpegBin      string
	FFprobeBin     string
	PlayerBin      string // player binary used by the process transport
	TTSBaseURL     string // HTTP text-to-speech service, empty disables announcements
	LineGenBaseURL string // HTTP text generator for transition lines, empty uses local templates
	FilterPresets  string // optional YAML preset file path

	// Session behavior
	AnnounceDefault bool          // announcements enabled for new sessions
	RetryDelay      time.Duration // delay before retrying a failed selection
	MaxRetries      int           // consecutive selection failures before the session stops
	RandomHistory   int           // recent picks excluded from random selection

	// Redis render-cache index
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// NATS status fan-out
	NATSURL string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("MUNIN_ENV", "development"),
		HTTPBind:    getEnv("MUNIN_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("MUNIN_HTTP_PORT", 8080),
		MetricsBind: getEnv("MUNIN_METRICS_BIND", "127.0.0.1:9000"),

		DBBackend: DatabaseBackend(getEnv("MUNIN_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:     getEnv("MUNIN_DB_DSN", ""),

		MediaRoot:  getEnv("MUNIN_MEDIA_ROOT", "./media"),
		ScratchDir: getEnv("MUNIN_SCRATCH_DIR", os.TempDir()),
		CacheDir:   getEnv("MUNIN_CACHE_DIR", "./cache"),

		FFmpegBin:      getEnv("MUNIN_FFMPEG_BIN", "ffmpeg"),
		FFprobeBin:     getEnv("MUNIN_FFPROBE_BIN", "ffprobe"),
		PlayerBin:      getEnv("MUNIN_PLAYER_BIN", "ffplay"),
		TTSBaseURL:     getEnv("MUNIN_TTS_URL", ""),
		LineGenBaseURL: getEnv("MUNIN_LINEGEN_URL", ""),
		FilterPresets:  getEnv("MUNIN_FILTER_PRESETS", ""),

		AnnounceDefault: getEnvBool("MUNIN_ANNOUNCE_DEFAULT", true),
		RetryDelay:      time.Duration(getEnvInt("MUNIN_RETRY_DELAY_SECONDS", 3)) * time.Second,
		MaxRetries:      getEnvInt("MUNIN_MAX_RETRIES", 5),
		RandomHistory:   getEnvInt("MUNIN_RANDOM_HISTORY", 10),

		RedisAddr:     getEnv("MUNIN_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("MUNIN_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("MUNIN_REDIS_DB", 0),

		NATSURL: getEnv("MUNIN_NATS_URL", ""),

		TracingEnabled:    getEnvBool("MUNIN_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("MUNIN_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("MUNIN_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		if cfg.DBBackend == DatabaseSQLite {
			cfg.DBDSN = "munin.db"
		} else {
			return nil, fmt.Errorf("MUNIN_DB_DSN must be provided for backend %q", cfg.DBBackend)
		}
	}

	if cfg.RetryDelay <= 0 {
		return nil, fmt.Errorf("MUNIN_RETRY_DELAY_SECONDS must be positive")
	}

	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("MUNIN_MAX_RETRIES must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}
