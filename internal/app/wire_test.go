package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolioledger/internal/cache/memory"
	"github.com/alanyoungcy/portfolioledger/internal/config"
	"github.com/alanyoungcy/portfolioledger/internal/store/local"
	"github.com/alanyoungcy/portfolioledger/internal/store/remote"
)

func TestWireInProcessFallbacks(t *testing.T) {
	cfg := config.Defaults()
	cfg.Local.Driver = "memory"

	deps, cleanup, err := Wire(context.Background(), &cfg, nil)
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &memory.EventBus{}, deps.Bus)
	assert.IsType(t, &memory.PriceCache{}, deps.PriceCache)
	assert.IsType(t, &local.MemoryStore{}, deps.Local)
	assert.Nil(t, deps.Store)
	assert.Nil(t, deps.Remote)
	assert.Nil(t, deps.Locks)
	assert.Nil(t, deps.Archiver)
	assert.Nil(t, deps.Notifier)
	assert.Empty(t, deps.Checks)
}

func TestWireSQLiteAndRemote(t *testing.T) {
	cfg := config.Defaults()
	cfg.Local.Path = filepath.Join(t.TempDir(), "nested", "ledger.db")
	cfg.Ledger.BaseURL = "http://ledger.internal:8001"
	cfg.Notify.DiscordWebhookURL = "http://discord.invalid/webhook"

	deps, cleanup, err := Wire(context.Background(), &cfg, nil)
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &local.SQLiteStore{}, deps.Local)
	assert.IsType(t, &remote.Client{}, deps.Remote)
	assert.NotNil(t, deps.Notifier)
}

func TestWireRedisDriverNeedsRedis(t *testing.T) {
	cfg := config.Defaults()
	cfg.Local.Driver = "redis"

	_, _, err := Wire(context.Background(), &cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires redis.enabled")
}
