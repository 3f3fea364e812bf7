package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/portfolioledger/internal/blob/s3"
	"github.com/alanyoungcy/portfolioledger/internal/cache/memory"
	"github.com/alanyoungcy/portfolioledger/internal/cache/redis"
	"github.com/alanyoungcy/portfolioledger/internal/config"
	"github.com/alanyoungcy/portfolioledger/internal/crypto"
	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/notify"
	"github.com/alanyoungcy/portfolioledger/internal/store/local"
	"github.com/alanyoungcy/portfolioledger/internal/store/postgres"
	"github.com/alanyoungcy/portfolioledger/internal/store/remote"
)

// Dependencies bundles every concrete dependency the modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Store is the Postgres ledger store served in store and full mode.
	Store domain.LedgerStore
	// Remote is the ledger store the engine saves to: the HTTP client when
	// ledger.base_url is set, otherwise Store. Nil runs local-only.
	Remote     domain.LedgerStore
	AuditStore domain.AuditStore

	Local      domain.LocalStore
	PriceCache domain.PriceCache
	Locks      domain.LockManager
	Bus        domain.EventBus

	Archiver domain.BackupArchiver
	Notifier *notify.Notifier

	// Checks back the readiness endpoint, one per wired backing service.
	Checks []domain.DependencyCheck
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:            cfg.Postgres.DSN,
			Host:           cfg.Postgres.Host,
			Port:           cfg.Postgres.Port,
			Database:       cfg.Postgres.Database,
			User:           cfg.Postgres.User,
			Password:       cfg.Postgres.Password,
			SSLMode:        cfg.Postgres.SSLMode,
			MaxConns:       cfg.Postgres.PoolMaxConns,
			MinConns:       cfg.Postgres.PoolMinConns,
			ConnectTimeout: cfg.Postgres.ConnectTimeout.Duration,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)
		deps.Checks = append(deps.Checks, domain.DependencyCheck{Name: "postgres", Check: pgClient.Ping})

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		audit := postgres.NewAuditStore(pgClient.Pool())
		deps.AuditStore = audit
		deps.Store = postgres.NewLedgerStore(pgClient.Pool(), audit, logger)
	}

	// --- Redis, or in-process fallbacks ---
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		var err error
		redisClient, err = redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Checks = append(deps.Checks, domain.DependencyCheck{Name: "redis", Check: redisClient.Ping})

		deps.PriceCache = redis.NewPriceCache(redisClient, cfg.Pricing.CacheTTL.Duration)
		deps.Locks = redis.NewLockManager(redisClient, logger)
		deps.Bus = redis.NewEventBus(redisClient, cfg.Redis.StreamMax)
	} else {
		deps.PriceCache = memory.NewPriceCache()
		deps.Bus = memory.NewEventBus(int(cfg.Redis.StreamMax))
	}

	// --- Local persistence ---
	switch strings.ToLower(cfg.Local.Driver) {
	case "sqlite":
		db, err := local.OpenSQLite(cfg.Local.Path)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: local sqlite: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		deps.Local = db
	case "redis":
		if redisClient == nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: local redis driver requires redis.enabled")
		}
		deps.Local = redis.NewKVStore(redisClient)
	default:
		deps.Local = local.NewMemoryStore()
	}

	// --- Ledger store the engine saves to ---
	switch {
	case cfg.Ledger.BaseURL != "":
		deps.Remote = remote.New(remote.Config{
			BaseURL: cfg.Ledger.BaseURL,
			Timeout: cfg.Ledger.Timeout.Duration,
			APIKey:  cfg.Ledger.APIKey,
		})
	case deps.Store != nil:
		deps.Remote = deps.Store
	}

	// --- Encrypted backup archives in S3 ---
	if cfg.Backup.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.Checks = append(deps.Checks, domain.DependencyCheck{Name: "s3", Check: s3Client.Health})

		sealer, err := crypto.NewSealer(cfg.Backup.Passphrase, cfg.Backup.Iterations)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: backup sealer: %w", err)
		}
		deps.Archiver = s3blob.NewBackupArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			sealer,
			deps.AuditStore,
			s3blob.ArchiverConfig{Prefix: cfg.Backup.Prefix, Keep: cfg.Backup.Keep},
			logger,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramAPIBase,
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, cfg.Notify.DedupWindow.Duration, logger)
	}

	return deps, cleanup, nil
}
