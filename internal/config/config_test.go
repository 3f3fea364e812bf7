package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.RunsEngine())
	assert.False(t, cfg.RunsStore())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.toml")
	body := `
mode = "full"
log_level = "debug"

[engine]
fee_percent = 0.5
reconcile_window = 8

[pricing]
poll_interval = "45s"

[postgres]
enabled = true
dsn = "postgres://u:p@db/ledger"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, 0.5, cfg.Engine.FeePercent)
	assert.Equal(t, 8, cfg.Engine.ReconcileWindow)
	assert.Equal(t, 45*time.Second, cfg.Pricing.PollInterval.Duration)
	// untouched fields keep their defaults
	assert.Equal(t, 0.9, cfg.Engine.CoverRatio)
	assert.Equal(t, 5, cfg.Pricing.BatchSize)
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.RunsStore())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LEDGER_MODE", "store")
	t.Setenv("LEDGER_POSTGRES_ENABLED", "true")
	t.Setenv("LEDGER_ENGINE_FEE_PERCENT", "2.5")
	t.Setenv("LEDGER_PERSIST_MAX_BACKOFF", "1m")
	t.Setenv("LEDGER_SERVER_CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("LEDGER_REDIS_STREAM_MAX_LEN", "50")
	t.Setenv("LEDGER_SERVER_PORT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "store", cfg.Mode)
	assert.True(t, cfg.Postgres.Enabled)
	assert.Equal(t, 2.5, cfg.Engine.FeePercent)
	assert.Equal(t, time.Minute, cfg.Persist.MaxBackoff.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, int64(50), cfg.Redis.StreamMax)
	assert.Equal(t, 8000, cfg.Server.Port, "unparsable values are ignored")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Engine.FeePercent = -1
	cfg.Engine.ActiveAccount = "doge"
	cfg.Local.Driver = "redis"
	cfg.Notify.Events = []string{"moon"}
	cfg.Notify.TelegramToken = "token-only"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		`unknown log_level "loud"`,
		"fee_percent",
		"active_account",
		"redis driver requires redis.enabled",
		`unknown event "moon"`,
		"telegram_token and telegram_chat_id",
	} {
		assert.Contains(t, msg, want)
	}

	cfg = Defaults()
	cfg.Mode = "turbo"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "turbo"`)
}

func TestValidateStoreModeNeedsPostgres(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "store"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: enabled is required")

	cfg.Postgres.Enabled = true
	require.NoError(t, cfg.Validate())
}

func TestValidateBackup(t *testing.T) {
	cfg := Defaults()
	cfg.Backup.Enabled = true
	cfg.Backup.Passphrase = "short"
	cfg.S3.Bucket = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "passphrase must be at least 12")
	assert.Contains(t, err.Error(), "bucket must not be empty")

	cfg = Defaults()
	assert.Equal(t, 30, cfg.Backup.Keep)
	cfg.Backup.Keep = -1
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keep must be >= 0")
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Ledger.APIKey = "k1"
	cfg.Postgres.DSN = "postgres://u:secret@db/ledger"
	cfg.Postgres.Password = "secret"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Backup.Passphrase = "correct horse battery"
	cfg.Server.APIKey = "k2"
	cfg.Notify.TelegramToken = "tg"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Ledger.APIKey)
	assert.Equal(t, "***", out.Postgres.DSN)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.S3.SecretKey)
	assert.Equal(t, "***", out.Backup.Passphrase)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	assert.Empty(t, out.Redis.Password, "empty secrets stay empty")

	out.Server.CORSOrigins[0] = "mutated"
	assert.Equal(t, "http://localhost:3000", cfg.Server.CORSOrigins[0])
	assert.Equal(t, "k1", cfg.Ledger.APIKey)
}

func TestDurationText(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration)
	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(b))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
