// Package config parses and validates all application configuration from
// environment variables using caarlos0/env/v11.
//
// Call [Load] once at startup; pass the resulting [Config] to subcommands.
// Server exits if any field tagged "required" is missing.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration sourced from environment variables.
// Sensitive fields must never be logged.
type Config struct {
	// ── Database ─────────────────────────────────────────────────────────────────
	DatabaseURL       string        `env:"DATABASE_URL,required"`
	DBMaxConns        int32         `env:"DB_MAX_CONNS"          envDefault:"25"`
	DBMaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`

	// ── Server ───────────────────────────────────────────────────────────────────
	ListenAddr             string `env:"LISTEN_ADDR"              envDefault:":8080"`
	AppEnv                 string `env:"APP_ENV"                  envDefault:"development"`
	ShutdownTimeoutSeconds int    `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"30"`

	// ── Worker pool ──────────────────────────────────────────────────────────────
	WorkerPollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"2s"`
	WorkerConcurrency  int           `env:"WORKER_CONCURRENCY"   envDefault:"4"`
	// A processing job with no progress update for this long is considered stuck
	// and is requeued by the reaper.
	WorkerStaleThreshold time.Duration `env:"WORKER_STALE_THRESHOLD" envDefault:"10m"`
	WorkerStaleInterval  time.Duration `env:"WORKER_STALE_INTERVAL"  envDefault:"1m"`
	JobMaxAttempts       int           `env:"JOB_MAX_ATTEMPTS"       envDefault:"4"`
	JobBackoffBase       time.Duration `env:"JOB_BACKOFF_BASE"       envDefault:"30s"`
	JobBackoffCap        time.Duration `env:"JOB_BACKOFF_CAP"        envDefault:"15m"`

	// ── AI — Google Gemini (document extraction) ─────────────────────────────────
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`

	// ── Vendor research ──────────────────────────────────────────────────────────
	ResearchEndpoint string        `env:"RESEARCH_ENDPOINT"`
	ResearchTimeout  time.Duration `env:"RESEARCH_TIMEOUT" envDefault:"10s"`

	// ── Documents ────────────────────────────────────────────────────────────────
	// Root directory of uploaded property documents referenced by storage_path.
	DocumentRoot string `env:"DOCUMENT_ROOT" envDefault:"/var/lib/wastewise/documents"`

	// ── Rate limiting ────────────────────────────────────────────────────────────
	RateLimitEvictTTL time.Duration `env:"RATE_LIMIT_EVICT_TTL" envDefault:"15m"`

	// ── Logging ──────────────────────────────────────────────────────────────────
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load parses and returns Config from environment variables.
// Returns an error if any required field is missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
