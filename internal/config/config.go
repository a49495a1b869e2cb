package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for the analytics service.
type Config struct {
	Server    Server    `yaml:"server"`
	Database  Database  `yaml:"database"`
	Relays    Relays    `yaml:"relays"`
	Webhook   Webhook   `yaml:"webhook"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Registry  Registry  `yaml:"registry"`
	Cache     Cache     `yaml:"cache"`
	Logging   Logging   `yaml:"logging"`
}

// Server contains HTTP listener settings.
type Server struct {
	Port            int      `yaml:"port"`
	ShutdownGraceMs int      `yaml:"shutdown_grace_ms"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// Database contains the domain store's SQL connection settings.
type Database struct {
	Driver string `yaml:"driver"` // "sqlite3" is the only driver wired in this build
	DSN    string `yaml:"dsn"`
}

// Relays contains relay-pool configuration.
type Relays struct {
	Seeds  []string    `yaml:"seeds"`
	Policy RelayPolicy `yaml:"policy"`
}

// RelayPolicy contains connection and backoff tuning for the relay pool.
type RelayPolicy struct {
	ConnectTimeoutMs int `yaml:"connect_timeout_ms"`
	QueryTimeoutMs   int `yaml:"query_timeout_ms"`   // §4.6 per-relay scan query timeout
	IdleRefreshMs    int `yaml:"idle_refresh_ms"`    // §4.2 heartbeat REQ refresh
	BackoffMinMs     int `yaml:"backoff_min_ms"`     // §4.2 initial backoff
	BackoffMaxMs     int `yaml:"backoff_max_ms"`     // §4.2 capped backoff
	BackoffJitterPct int `yaml:"backoff_jitter_pct"` // §4.2 ±20%
	DedupCacheSize   int `yaml:"dedup_cache_size"`   // §4.2 suggested 2^17
	EventQueueSize   int `yaml:"event_queue_size"`   // §5 bounded channel to the router
}

// Webhook contains delivery tuning for the dispatcher.
type Webhook struct {
	TimeoutMs            int    `yaml:"timeout_ms"`
	RetryCount           int    `yaml:"retry_count"`
	BackoffMs            []int  `yaml:"backoff_ms"` // §4.4: 1s, 5s, 25s
	UserAgent            string `yaml:"user_agent"`
	HistoricalCutoffDays int    `yaml:"historical_cutoff_days"` // §4.3 events older than this never enqueue a webhook
}

// RateLimit contains per-tier request budgets.
type RateLimit struct {
	FreePerHour    int `yaml:"free_per_hour"`
	PremiumPerHour int `yaml:"premium_per_hour"`
}

// Registry contains tenant-registry reload tuning.
type Registry struct {
	ReloadIntervalMs int `yaml:"reload_interval_ms"`
}

// Cache contains insight-cache tuning.
type Cache struct {
	RedisAddr           string `yaml:"redis_addr"` // empty disables Redis; domain store is used instead
	RedisDB             int    `yaml:"redis_db"`
	DistributionTTLMs   int    `yaml:"distribution_ttl_ms"`   // §4.7 suggested 1h
	RecommendationTTLMs int    `yaml:"recommendation_ttl_ms"` // §4.7 suggested 4h
	DefaultTTLMs        int    `yaml:"default_ttl_ms"`        // §4.7 suggested 24h
}

// Logging mirrors the teacher's structured-logging config shape.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with every suggested default from the spec applied.
func Default() *Config {
	return &Config{
		Server:   Server{Port: 3000, ShutdownGraceMs: 10_000},
		Database: Database{Driver: "sqlite3", DSN: "analytics.db"},
		Relays: Relays{
			Seeds: []string{
				"wss://relay.damus.io",
				"wss://nos.lol",
				"wss://relay.primal.net",
			},
			Policy: RelayPolicy{
				ConnectTimeoutMs: 10_000,
				QueryTimeoutMs:   12_000,
				IdleRefreshMs:    10 * 60 * 1000,
				BackoffMinMs:     1_000,
				BackoffMaxMs:     60_000,
				BackoffJitterPct: 20,
				DedupCacheSize:   1 << 17,
				EventQueueSize:   2048,
			},
		},
		Webhook: Webhook{
			TimeoutMs:            5_000,
			RetryCount:           3,
			BackoffMs:            []int{1_000, 5_000, 25_000},
			UserAgent:            "deep-claw-analytics/1.0",
			HistoricalCutoffDays: 7,
		},
		RateLimit: RateLimit{FreePerHour: 100, PremiumPerHour: 1000},
		Registry:  Registry{ReloadIntervalMs: 5 * 60 * 1000},
		Cache: Cache{
			DistributionTTLMs:   60 * 60 * 1000,
			RecommendationTTLMs: 4 * 60 * 60 * 1000,
			DefaultTTLMs:        24 * 60 * 60 * 1000,
		},
		Logging: Logging{Level: "info", Format: "text"},
	}
}

// Load reads a YAML configuration file, applies spec defaults for anything
// left unset, and then applies environment-variable overrides for secrets
// and deployment-specific values that should never live in a checked-in file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANALYTICS_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("ANALYTICS_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ANALYTICS_RELAY_URLS"); v != "" {
		cfg.Relays.Seeds = strings.Split(v, ",")
	}
	if v := os.Getenv("ANALYTICS_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("ANALYTICS_WEBHOOK_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Webhook.TimeoutMs = ms
		}
	}
	if v := os.Getenv("ANALYTICS_WEBHOOK_RETRY_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Webhook.RetryCount = n
		}
	}
	if v := os.Getenv("ANALYTICS_RATE_LIMIT_FREE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.FreePerHour = n
		}
	}
	if v := os.Getenv("ANALYTICS_RATE_LIMIT_PREMIUM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.PremiumPerHour = n
		}
	}
	if v := os.Getenv("ANALYTICS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive")
	}
	if len(c.Relays.Seeds) == 0 {
		return fmt.Errorf("relays.seeds must not be empty")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn must not be empty")
	}
	if c.RateLimit.FreePerHour <= 0 || c.RateLimit.PremiumPerHour <= 0 {
		return fmt.Errorf("rate_limit values must be positive")
	}
	return nil
}

// ConnectTimeout returns the relay connect timeout as a duration.
func (p RelayPolicy) ConnectTimeout() time.Duration {
	return time.Duration(p.ConnectTimeoutMs) * time.Millisecond
}

// QueryTimeout returns the relay scan query timeout as a duration.
func (p RelayPolicy) QueryTimeout() time.Duration {
	return time.Duration(p.QueryTimeoutMs) * time.Millisecond
}

// IdleRefresh returns the idle heartbeat interval as a duration.
func (p RelayPolicy) IdleRefresh() time.Duration {
	return time.Duration(p.IdleRefreshMs) * time.Millisecond
}

// Backoffs returns the configured webhook backoff schedule as durations.
func (w Webhook) Backoffs() []time.Duration {
	out := make([]time.Duration, len(w.BackoffMs))
	for i, ms := range w.BackoffMs {
		out[i] = time.Duration(ms) * time.Millisecond
	}
	return out
}

// Timeout returns the webhook HTTP timeout as a duration.
func (w Webhook) Timeout() time.Duration {
	return time.Duration(w.TimeoutMs) * time.Millisecond
}

// ReloadInterval returns the tenant registry reload cadence as a duration.
func (r Registry) ReloadInterval() time.Duration {
	return time.Duration(r.ReloadIntervalMs) * time.Millisecond
}
