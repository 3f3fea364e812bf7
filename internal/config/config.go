// Package config defines the top-level configuration for the ledger daemon
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by LEDGER_* environment variables.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Pricing  PricingConfig  `toml:"pricing"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Local    LocalConfig    `toml:"local"`
	Persist  PersistConfig  `toml:"persist"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Backup   BackupConfig   `toml:"backup"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// EngineConfig holds portfolio engine parameters.
type EngineConfig struct {
	// Namespace prefixes every local persistence key.
	Namespace  string  `toml:"namespace"`
	FeePercent float64 `toml:"fee_percent"`
	// NoiseThreshold is the minimum drift in dollars that yields a rebalance action.
	NoiseThreshold float64 `toml:"noise_threshold"`
	CoverRatio     float64 `toml:"cover_ratio"`
	// ReconcileWindow is how many recent journal entries a pending order is
	// matched against.
	ReconcileWindow        int     `toml:"reconcile_window"`
	ReconcileTolerance     float64 `toml:"reconcile_tolerance"`
	SafetyNetCriticalBelow float64 `toml:"safety_net_critical_below"`
	// ActiveAccount overrides the stored active account on boot when set.
	ActiveAccount string   `toml:"active_account"`
	LeaseTTL      duration `toml:"lease_ttl"`
}

// PricingConfig holds the quote source and polling parameters.
type PricingConfig struct {
	BaseURL        string   `toml:"base_url"`
	PollInterval   duration `toml:"poll_interval"`
	RequestTimeout duration `toml:"request_timeout"`
	BatchSize      int      `toml:"batch_size"`
	// Live starts polling on boot.
	Live     bool     `toml:"live"`
	CacheTTL duration `toml:"cache_ttl"`
}

// LedgerConfig points the engine at a remote Ledger Store API. An empty
// BaseURL in engine mode runs on local persistence only; in full mode the
// in-process Postgres store is used directly.
type LedgerConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout duration `toml:"timeout"`
	APIKey  string   `toml:"api_key"`
}

// LocalConfig selects the local scoped persistence backend.
type LocalConfig struct {
	Driver string `toml:"driver"` // sqlite | redis | memory
	Path   string `toml:"path"`
}

// PersistConfig tunes the asynchronous save queue.
type PersistConfig struct {
	SaveTimeout duration `toml:"save_timeout"`
	MinBackoff  duration `toml:"min_backoff"`
	MaxBackoff  duration `toml:"max_backoff"`
	MaxAttempts int      `toml:"max_attempts"`
}

// PostgresConfig holds PostgreSQL connection parameters for the ledger
// store and the audit log.
type PostgresConfig struct {
	Enabled        bool     `toml:"enabled"`
	DSN            string   `toml:"dsn"`
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	Database       string   `toml:"database"`
	User           string   `toml:"user"`
	Password       string   `toml:"password"`
	SSLMode        string   `toml:"ssl_mode"`
	PoolMaxConns   int      `toml:"pool_max_conns"`
	PoolMinConns   int      `toml:"pool_min_conns"`
	ConnectTimeout duration `toml:"connect_timeout"`
	RunMigrations  bool     `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. When disabled, the price
// cache, locks and event bus run in memory.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
	StreamMax  int64  `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// BackupConfig enables encrypted backup archives in S3.
type BackupConfig struct {
	Enabled    bool   `toml:"enabled"`
	Passphrase string `toml:"passphrase"`
	Prefix     string `toml:"prefix"`
	// Interval archives every account periodically. Zero disables it.
	Interval   duration `toml:"interval"`
	Iterations int      `toml:"kdf_iterations"`
	// Keep is the number of archives retained per account. Zero keeps all.
	Keep int `toml:"keep"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	TelegramAPIBase   string   `toml:"telegram_api_base"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	DedupWindow       duration `toml:"dedup_window"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			Namespace:              "ledger",
			FeePercent:             1.0,
			NoiseThreshold:         10,
			CoverRatio:             0.9,
			ReconcileWindow:        5,
			ReconcileTolerance:     0.10,
			SafetyNetCriticalBelow: 5,
			LeaseTTL:               duration{30 * time.Second},
		},
		Pricing: PricingConfig{
			BaseURL:        "https://api.coinbase.com",
			PollInterval:   duration{30 * time.Second},
			RequestTimeout: duration{10 * time.Second},
			BatchSize:      5,
			Live:           false,
			CacheTTL:       duration{24 * time.Hour},
		},
		Ledger: LedgerConfig{
			Timeout: duration{15 * time.Second},
		},
		Local: LocalConfig{
			Driver: "sqlite",
			Path:   "data/ledger.db",
		},
		Persist: PersistConfig{
			SaveTimeout: duration{10 * time.Second},
			MinBackoff:  duration{500 * time.Millisecond},
			MaxBackoff:  duration{30 * time.Second},
			MaxAttempts: 5,
		},
		Postgres: PostgresConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "ledger",
			User:           "postgres",
			SSLMode:        "disable",
			PoolMaxConns:   10,
			PoolMinConns:   2,
			ConnectTimeout: duration{10 * time.Second},
			RunMigrations:  true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "ledger",
			StreamMax:  10000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "ledger-backups",
			ForcePathStyle: true,
		},
		Backup: BackupConfig{
			Prefix: "backups",
			Keep:   30,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events:      []string{"reconciliation", "alert_triggered", "safety_net_critical", "persistence_degraded"},
			DedupWindow: duration{time.Hour},
		},
		Mode:     "engine",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"engine": true,
	"store":  true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validDrivers = map[string]bool{
	"sqlite": true,
	"redis":  true,
	"memory": true,
}

var validEvents = map[string]bool{
	"reconciliation":       true,
	"price_sync":           true,
	"price_error":          true,
	"alert_triggered":      true,
	"safety_net_critical":  true,
	"persistence_degraded": true,
}

// RunsEngine reports whether the mode runs the portfolio engine.
func (c *Config) RunsEngine() bool {
	m := strings.ToLower(c.Mode)
	return m == "engine" || m == "full"
}

// RunsStore reports whether the mode serves the Ledger Store API.
func (c *Config) RunsStore() bool {
	m := strings.ToLower(c.Mode)
	return m == "store" || m == "full"
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: engine, store, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if c.RunsEngine() {
		if strings.TrimSpace(c.Engine.Namespace) == "" {
			errs = append(errs, "engine: namespace must not be empty")
		}
		if c.Engine.FeePercent < 0 || c.Engine.FeePercent >= 100 {
			errs = append(errs, fmt.Sprintf("engine: fee_percent must be in [0, 100), got %g", c.Engine.FeePercent))
		}
		if c.Engine.NoiseThreshold < 0 {
			errs = append(errs, "engine: noise_threshold must be >= 0")
		}
		if c.Engine.CoverRatio <= 0 || c.Engine.CoverRatio > 1 {
			errs = append(errs, "engine: cover_ratio must be in (0, 1]")
		}
		if c.Engine.ReconcileWindow < 1 {
			errs = append(errs, "engine: reconcile_window must be >= 1")
		}
		if c.Engine.ReconcileTolerance <= 0 || c.Engine.ReconcileTolerance >= 1 {
			errs = append(errs, "engine: reconcile_tolerance must be in (0, 1)")
		}
		if c.Engine.SafetyNetCriticalBelow < 0 || c.Engine.SafetyNetCriticalBelow > 100 {
			errs = append(errs, "engine: safety_net_critical_below must be in [0, 100]")
		}
		if a := strings.ToLower(strings.TrimSpace(c.Engine.ActiveAccount)); a != "" && a != "sui" && a != "alts" {
			errs = append(errs, fmt.Sprintf("engine: active_account must be sui or alts, got %q", c.Engine.ActiveAccount))
		}

		if c.Pricing.PollInterval.Duration < time.Second {
			errs = append(errs, "pricing: poll_interval must be >= 1s")
		}
		if c.Pricing.BatchSize < 1 {
			errs = append(errs, "pricing: batch_size must be >= 1")
		}

		if !validDrivers[strings.ToLower(c.Local.Driver)] {
			errs = append(errs, fmt.Sprintf("local: unknown driver %q (valid: sqlite, redis, memory)", c.Local.Driver))
		}
		if strings.EqualFold(c.Local.Driver, "sqlite") && c.Local.Path == "" {
			errs = append(errs, "local: path is required for the sqlite driver")
		}
		if strings.EqualFold(c.Local.Driver, "redis") && !c.Redis.Enabled {
			errs = append(errs, "local: the redis driver requires redis.enabled")
		}

		if c.Persist.MaxAttempts < 1 {
			errs = append(errs, "persist: max_attempts must be >= 1")
		}
		if c.Persist.MinBackoff.Duration > c.Persist.MaxBackoff.Duration {
			errs = append(errs, "persist: min_backoff must not exceed max_backoff")
		}
	}

	// Postgres backs the served ledger store.
	if c.RunsStore() && !c.Postgres.Enabled {
		errs = append(errs, "postgres: enabled is required for mode "+c.Mode)
	}
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be in [0, pool_max_conns]")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Backup.Keep < 0 {
		errs = append(errs, "backup: keep must be >= 0")
	}
	if c.Backup.Enabled {
		if len(c.Backup.Passphrase) < 12 {
			errs = append(errs, "backup: passphrase must be at least 12 characters")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when backups are enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when backups are enabled")
		}
	}

	if c.Server.Enabled || c.RunsStore() {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	for _, e := range c.Notify.Events {
		if !validEvents[strings.TrimSpace(e)] {
			errs = append(errs, fmt.Sprintf("notify: unknown event %q", e))
		}
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
