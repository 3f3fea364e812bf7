package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies LEDGER_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known LEDGER_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setStr(&cfg.Engine.Namespace, "LEDGER_ENGINE_NAMESPACE")
	setFloat64(&cfg.Engine.FeePercent, "LEDGER_ENGINE_FEE_PERCENT")
	setFloat64(&cfg.Engine.NoiseThreshold, "LEDGER_ENGINE_NOISE_THRESHOLD")
	setFloat64(&cfg.Engine.CoverRatio, "LEDGER_ENGINE_COVER_RATIO")
	setInt(&cfg.Engine.ReconcileWindow, "LEDGER_ENGINE_RECONCILE_WINDOW")
	setFloat64(&cfg.Engine.ReconcileTolerance, "LEDGER_ENGINE_RECONCILE_TOLERANCE")
	setFloat64(&cfg.Engine.SafetyNetCriticalBelow, "LEDGER_ENGINE_SAFETY_NET_CRITICAL_BELOW")
	setStr(&cfg.Engine.ActiveAccount, "LEDGER_ENGINE_ACTIVE_ACCOUNT")
	setDuration(&cfg.Engine.LeaseTTL, "LEDGER_ENGINE_LEASE_TTL")

	// ── Pricing ──
	setStr(&cfg.Pricing.BaseURL, "LEDGER_PRICING_BASE_URL")
	setDuration(&cfg.Pricing.PollInterval, "LEDGER_PRICING_POLL_INTERVAL")
	setDuration(&cfg.Pricing.RequestTimeout, "LEDGER_PRICING_REQUEST_TIMEOUT")
	setInt(&cfg.Pricing.BatchSize, "LEDGER_PRICING_BATCH_SIZE")
	setBool(&cfg.Pricing.Live, "LEDGER_PRICING_LIVE")
	setDuration(&cfg.Pricing.CacheTTL, "LEDGER_PRICING_CACHE_TTL")

	// ── Ledger Store client ──
	setStr(&cfg.Ledger.BaseURL, "LEDGER_LEDGER_BASE_URL")
	setDuration(&cfg.Ledger.Timeout, "LEDGER_LEDGER_TIMEOUT")
	setStr(&cfg.Ledger.APIKey, "LEDGER_LEDGER_API_KEY")

	// ── Local ──
	setStr(&cfg.Local.Driver, "LEDGER_LOCAL_DRIVER")
	setStr(&cfg.Local.Path, "LEDGER_LOCAL_PATH")

	// ── Persist ──
	setDuration(&cfg.Persist.SaveTimeout, "LEDGER_PERSIST_SAVE_TIMEOUT")
	setDuration(&cfg.Persist.MinBackoff, "LEDGER_PERSIST_MIN_BACKOFF")
	setDuration(&cfg.Persist.MaxBackoff, "LEDGER_PERSIST_MAX_BACKOFF")
	setInt(&cfg.Persist.MaxAttempts, "LEDGER_PERSIST_MAX_ATTEMPTS")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "LEDGER_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "LEDGER_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "LEDGER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "LEDGER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "LEDGER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "LEDGER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "LEDGER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "LEDGER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "LEDGER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "LEDGER_POSTGRES_POOL_MIN_CONNS")
	setDuration(&cfg.Postgres.ConnectTimeout, "LEDGER_POSTGRES_CONNECT_TIMEOUT")
	setBool(&cfg.Postgres.RunMigrations, "LEDGER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "LEDGER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "LEDGER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LEDGER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LEDGER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "LEDGER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "LEDGER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "LEDGER_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "LEDGER_REDIS_KEY_PREFIX")
	setInt64(&cfg.Redis.StreamMax, "LEDGER_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "LEDGER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LEDGER_S3_REGION")
	setStr(&cfg.S3.Bucket, "LEDGER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LEDGER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LEDGER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "LEDGER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "LEDGER_S3_FORCE_PATH_STYLE")

	// ── Backup ──
	setBool(&cfg.Backup.Enabled, "LEDGER_BACKUP_ENABLED")
	setStr(&cfg.Backup.Passphrase, "LEDGER_BACKUP_PASSPHRASE")
	setStr(&cfg.Backup.Prefix, "LEDGER_BACKUP_PREFIX")
	setDuration(&cfg.Backup.Interval, "LEDGER_BACKUP_INTERVAL")
	setInt(&cfg.Backup.Iterations, "LEDGER_BACKUP_KDF_ITERATIONS")
	setInt(&cfg.Backup.Keep, "LEDGER_BACKUP_KEEP")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "LEDGER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "LEDGER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "LEDGER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "LEDGER_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "LEDGER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "LEDGER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.TelegramAPIBase, "LEDGER_NOTIFY_TELEGRAM_API_BASE")
	setStr(&cfg.Notify.DiscordWebhookURL, "LEDGER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "LEDGER_NOTIFY_EVENTS")
	setDuration(&cfg.Notify.DedupWindow, "LEDGER_NOTIFY_DEDUP_WINDOW")

	// ── Top-level ──
	setStr(&cfg.Mode, "LEDGER_MODE")
	setStr(&cfg.LogLevel, "LEDGER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
