package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/ledger"
	"github.com/alanyoungcy/portfolioledger/internal/persist"
	"github.com/alanyoungcy/portfolioledger/internal/pricing"
	"github.com/alanyoungcy/portfolioledger/internal/rebalance"
	"github.com/alanyoungcy/portfolioledger/internal/reconcile"
	"github.com/alanyoungcy/portfolioledger/internal/server"
	"github.com/alanyoungcy/portfolioledger/internal/server/handler"
	"github.com/alanyoungcy/portfolioledger/internal/server/ws"
	"github.com/alanyoungcy/portfolioledger/internal/service"
	"github.com/alanyoungcy/portfolioledger/internal/store/local"
)

// shutdownTimeout bounds the final save drain and HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// EngineMode runs the portfolio engine with its HTTP API, WebSocket hub and
// notifications. Saves go to the remote ledger store when one is configured.
func (a *App) EngineMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting engine mode")

	g, ctx := errgroup.WithContext(ctx)

	svc, err := a.startEngine(ctx, g, deps)
	if err != nil {
		return fmt.Errorf("engine mode: %w", err)
	}
	a.runNotifier(ctx, g, deps)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svc, nil)
	}
	return g.Wait()
}

// StoreMode serves the Ledger Store API over Postgres and nothing else.
func (a *App) StoreMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting store mode")
	if deps.Store == nil {
		return fmt.Errorf("store mode: postgres ledger store not configured")
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, nil, deps.Store)
	return g.Wait()
}

// FullMode runs the engine and serves the Ledger Store API from one process.
// The engine saves straight to Postgres unless ledger.base_url points
// elsewhere.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	if deps.Store == nil {
		return fmt.Errorf("full mode: postgres ledger store not configured")
	}

	g, ctx := errgroup.WithContext(ctx)

	svc, err := a.startEngine(ctx, g, deps)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	a.runNotifier(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps, svc, deps.Store)
	return g.Wait()
}

// startEngine builds and hydrates the portfolio service, starts live pricing
// when configured and registers its shutdown and the backup loop on g.
func (a *App) startEngine(ctx context.Context, g *errgroup.Group, deps *Dependencies) (*service.PortfolioService, error) {
	gateway := pricing.NewGateway(
		pricing.NewCoinbase(a.cfg.Pricing.BaseURL, a.cfg.Pricing.RequestTimeout.Duration),
		deps.PriceCache,
		a.cfg.Pricing.BatchSize,
		a.logger,
	)

	svc := service.NewPortfolioService(service.Deps{
		Remote:   deps.Remote,
		Local:    local.NewScope(deps.Local, a.cfg.Engine.Namespace),
		Monitor:  reconcile.NewMonitor(a.cfg.Engine.ReconcileWindow, a.cfg.Engine.ReconcileTolerance, a.logger),
		Gateway:  gateway,
		Bus:      deps.Bus,
		Locks:    deps.Locks,
		Audit:    deps.AuditStore,
		Archiver: deps.Archiver,
	}, service.Config{
		Ledger: ledger.Options{FeePercent: a.cfg.Engine.FeePercent},
		Persist: persist.Config{
			SaveTimeout: a.cfg.Persist.SaveTimeout.Duration,
			MinBackoff:  a.cfg.Persist.MinBackoff.Duration,
			MaxBackoff:  a.cfg.Persist.MaxBackoff.Duration,
			MaxAttempts: a.cfg.Persist.MaxAttempts,
		},
		Rebalance: rebalance.Options{
			NoiseThreshold: a.cfg.Engine.NoiseThreshold,
			CoverRatio:     a.cfg.Engine.CoverRatio,
			FeeRate:        a.cfg.Engine.FeePercent / 100,
		},
		SafetyNetCriticalBelow: a.cfg.Engine.SafetyNetCriticalBelow,
		PollInterval:           a.cfg.Pricing.PollInterval.Duration,
		LeaseTTL:               a.cfg.Engine.LeaseTTL.Duration,
	}, a.logger)

	if err := svc.Start(ctx); err != nil {
		return nil, fmt.Errorf("start portfolio: %w", err)
	}

	if active := strings.ToLower(strings.TrimSpace(a.cfg.Engine.ActiveAccount)); active != "" {
		if err := svc.SwitchAccount(ctx, domain.AccountID(active)); err != nil {
			a.logger.WarnContext(ctx, "configured active account ignored",
				slog.String("account", active),
				slog.String("error", err.Error()),
			)
		}
	}

	if a.cfg.Pricing.Live {
		if err := svc.StartLive(ctx); err != nil {
			a.logger.WarnContext(ctx, "live pricing not started", slog.String("error", err.Error()))
		}
	}

	if deps.Archiver != nil && a.cfg.Backup.Interval.Duration > 0 {
		g.Go(func() error {
			return a.runBackupLoop(ctx, svc, a.cfg.Backup.Interval.Duration)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.InfoContext(shutCtx, "portfolio engine draining saves")
		if err := svc.Close(shutCtx); err != nil {
			a.logger.WarnContext(shutCtx, "portfolio engine close", slog.String("error", err.Error()))
		}
		return nil
	})

	return svc, nil
}

// runBackupLoop archives every account each interval until ctx is done.
// Failures are logged and retried on the next tick.
func (a *App) runBackupLoop(ctx context.Context, svc *service.PortfolioService, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, id := range domain.Accounts() {
				path, err := svc.ArchiveBackup(ctx, id)
				if err != nil {
					a.logger.WarnContext(ctx, "scheduled backup failed",
						slog.String("account", string(id)),
						slog.String("error", err.Error()),
					)
					continue
				}
				a.logger.InfoContext(ctx, "scheduled backup archived",
					slog.String("account", string(id)),
					slog.String("path", path),
				)
			}
		}
	}
}

func (a *App) runNotifier(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Notifier == nil {
		return
	}
	g.Go(func() error {
		return deps.Notifier.Run(ctx, deps.Bus)
	})
}

// startHTTPServer adds the HTTP server and its graceful shutdown to g. svc
// mounts the engine API and WebSocket hub; store mounts the Ledger Store
// API. Either may be nil.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	svc *service.PortfolioService,
	store domain.LedgerStore,
) {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.logger, deps.Checks...),
	}
	if deps.AuditStore != nil {
		handlers.Audit = handler.NewAuditHandler(deps.AuditStore, a.logger)
	}
	if store != nil {
		handlers.Ledger = handler.NewLedgerHandler(store, a.logger)
	}

	var hub *ws.Hub
	if svc != nil {
		handlers.Status = handler.NewStatusHandler(a.cfg.Mode, time.Now(), svc)
		handlers.Accounts = handler.NewAccountHandler(svc, a.logger)
		handlers.Trades = handler.NewTradeHandler(svc, a.logger)
		handlers.Prices = handler.NewPriceHandler(svc, a.logger)
		handlers.Analysis = handler.NewAnalysisHandler(svc, a.logger)
		handlers.Backups = handler.NewBackupHandler(svc, a.logger)

		hub = ws.NewHub(deps.Bus, ws.Config{
			AllowedOrigins: a.cfg.Server.CORSOrigins,
			Status:         func() any { return svc.Status() },
		}, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
