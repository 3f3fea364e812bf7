// Package service orchestrates the portfolio engine: it hydrates accounts
// from the ledger store and local persistence, applies mutations through
// the ledger, schedules saves, polls prices and publishes system events.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/portfolioledger/internal/aggregate"
	"github.com/alanyoungcy/portfolioledger/internal/alerts"
	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/ledger"
	"github.com/alanyoungcy/portfolioledger/internal/persist"
	"github.com/alanyoungcy/portfolioledger/internal/pricing"
	"github.com/alanyoungcy/portfolioledger/internal/rebalance"
	"github.com/alanyoungcy/portfolioledger/internal/reconcile"
	"github.com/alanyoungcy/portfolioledger/internal/store/local"
)

// Config holds the tunables of the portfolio service.
type Config struct {
	// Ledger configures fees and the clock of every account.
	Ledger ledger.Options
	// Persist configures the save queue.
	Persist persist.Config
	// Rebalance holds the noise threshold and cover ratio. The fee rate is
	// taken from each account.
	Rebalance rebalance.Options
	// SafetyNetCriticalBelow is the global cash percentage under which a
	// safety_net_critical event is emitted.
	SafetyNetCriticalBelow float64
	// PollInterval is the live price polling period.
	PollInterval time.Duration
	// LeaseTTL enables the per-account writer lease when positive.
	LeaseTTL time.Duration
}

// Deps are the collaborators of the service. Remote, Locks, Audit and
// Archiver are optional.
type Deps struct {
	Remote   domain.LedgerStore
	Local    *local.Scope
	Monitor  *reconcile.Monitor
	Gateway  *pricing.Gateway
	Bus      domain.EventBus
	Locks    domain.LockManager
	Audit    domain.AuditStore
	Archiver domain.BackupArchiver
}

// Status is the observable sync state of the engine.
type Status struct {
	ActiveAccount domain.AccountID   `json:"activeAccount"`
	Syncing       bool               `json:"syncing"`
	Live          bool               `json:"live"`
	LastPriceSync *time.Time         `json:"lastPriceSync,omitempty"`
	Degraded      []domain.AccountID `json:"degraded,omitempty"`
	StaleSymbols  []string           `json:"staleSymbols,omitempty"`
}

// PortfolioService owns the ledger book and everything that keeps it in
// sync with the outside world.
type PortfolioService struct {
	book     *ledger.Book
	remote   domain.LedgerStore
	local    *local.Scope
	monitor  *reconcile.Monitor
	gateway  *pricing.Gateway
	bus      domain.EventBus
	locks    domain.LockManager
	audit    domain.AuditStore
	archiver domain.BackupArchiver
	alerts   *alerts.Book
	saver    *persist.Saver
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	syncing atomic.Int32
	snapMu  sync.Mutex

	safetyMu sync.Mutex
	critical bool

	mu       sync.Mutex
	leases   map[domain.AccountID]func()
	degraded map[domain.AccountID]bool
	lastSync time.Time
	stale    []string
	stopPoll func()
}

// NewPortfolioService creates the service with every account seeded from
// defaults. Call Start to hydrate them.
func NewPortfolioService(deps Deps, cfg Config, logger *slog.Logger) *PortfolioService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Ledger.Now == nil {
		cfg.Ledger.Now = time.Now
	}
	if cfg.SafetyNetCriticalBelow <= 0 {
		cfg.SafetyNetCriticalBelow = aggregate.DefaultCriticalBelow
	}
	if cfg.Rebalance.NoiseThreshold <= 0 && cfg.Rebalance.CoverRatio <= 0 {
		cfg.Rebalance = rebalance.DefaultOptions()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if deps.Local == nil {
		deps.Local = local.NewScope(local.NewMemoryStore(), "")
	}
	if deps.Monitor == nil {
		deps.Monitor = reconcile.NewMonitor(0, -1, logger)
	}

	s := &PortfolioService{
		book:     ledger.NewBook(cfg.Ledger),
		remote:   deps.Remote,
		local:    deps.Local,
		monitor:  deps.Monitor,
		gateway:  deps.Gateway,
		bus:      deps.Bus,
		locks:    deps.Locks,
		audit:    deps.Audit,
		archiver: deps.Archiver,
		alerts:   alerts.NewBook(nil, cfg.Ledger.Now),
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "portfolio")),
		now:      cfg.Ledger.Now,
		leases:   make(map[domain.AccountID]func()),
		degraded: make(map[domain.AccountID]bool),
	}
	s.saver = persist.NewSaver(s.savePrimary, persist.Hooks{
		Fallback:   s.saveFallback,
		OnDegraded: s.onDegraded,
		OnSaved:    s.onSaved,
	}, cfg.Persist, logger)
	return s
}

// Start restores the active account and alerts, then loads every account.
func (s *PortfolioService) Start(ctx context.Context) error {
	var active domain.AccountID
	if ok, err := s.local.LoadGlobal(ctx, local.FieldActiveAccount, &active); err != nil {
		s.logger.WarnContext(ctx, "portfolio: active account unreadable", slog.String("error", err.Error()))
	} else if ok {
		if err := s.book.SwitchAccount(active); err != nil {
			s.logger.WarnContext(ctx, "portfolio: stored active account ignored", slog.String("error", err.Error()))
		}
	}

	var stored []domain.PriceAlert
	if ok, err := s.local.LoadGlobal(ctx, local.FieldAlerts, &stored); err != nil {
		s.logger.WarnContext(ctx, "portfolio: alerts unreadable", slog.String("error", err.Error()))
	} else if ok {
		s.alerts.Replace(stored)
	}

	for _, id := range domain.Accounts() {
		if _, err := s.Load(ctx, id); err != nil {
			return err
		}
	}
	s.checkSafetyNet(ctx)
	return nil
}

// Close stops polling, drains pending saves and releases account leases.
func (s *PortfolioService) Close(ctx context.Context) error {
	s.StopLive()
	err := s.saver.Close(ctx)

	s.mu.Lock()
	leases := s.leases
	s.leases = make(map[domain.AccountID]func())
	s.mu.Unlock()
	for _, unlock := range leases {
		unlock()
	}
	return err
}

// Flush waits until every scheduled save has completed.
func (s *PortfolioService) Flush(ctx context.Context) error {
	return s.saver.Flush(ctx)
}

// Account returns a copy of the state of id.
func (s *PortfolioService) Account(id domain.AccountID) (domain.AccountState, error) {
	acct, err := s.book.Account(id)
	if err != nil {
		return domain.AccountState{}, err
	}
	return acct.Snapshot(), nil
}

// ActiveAccount returns the active account id.
func (s *PortfolioService) ActiveAccount() domain.AccountID {
	return s.book.Active()
}

// SwitchAccount makes id active and persists the choice.
func (s *PortfolioService) SwitchAccount(ctx context.Context, id domain.AccountID) error {
	if err := s.book.SwitchAccount(id); err != nil {
		return fmt.Errorf("portfolio: %w", err)
	}
	if err := s.local.SaveGlobal(ctx, local.FieldActiveAccount, id); err != nil {
		s.logger.WarnContext(ctx, "portfolio: persist active account failed",
			slog.String("account", string(id)),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// Global returns the cross-account aggregate.
func (s *PortfolioService) Global() aggregate.Global {
	return aggregate.ComputeWithThreshold(s.cfg.SafetyNetCriticalBelow, s.book.Snapshots()...)
}

// Syncing reports whether a save to the ledger store is in flight.
func (s *PortfolioService) Syncing() bool {
	return s.syncing.Load() > 0
}

// Status returns the current sync state.
func (s *PortfolioService) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		ActiveAccount: s.book.Active(),
		Syncing:       s.Syncing(),
		Live:          s.stopPoll != nil,
		StaleSymbols:  append([]string(nil), s.stale...),
	}
	if !s.lastSync.IsZero() {
		ts := s.lastSync
		st.LastPriceSync = &ts
	}
	for _, id := range domain.Accounts() {
		if s.degraded[id] {
			st.Degraded = append(st.Degraded, id)
		}
	}
	return st
}

func (s *PortfolioService) acquireLease(ctx context.Context, id domain.AccountID) error {
	if s.locks == nil || s.cfg.LeaseTTL <= 0 {
		return nil
	}
	s.mu.Lock()
	_, held := s.leases[id]
	s.mu.Unlock()
	if held {
		return nil
	}

	unlock, err := s.locks.Acquire(ctx, "account:"+string(id), s.cfg.LeaseTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return fmt.Errorf("portfolio: account %s is owned by another engine: %w", id, err)
		}
		return fmt.Errorf("portfolio: lease %s: %w", id, err)
	}
	s.mu.Lock()
	s.leases[id] = unlock
	s.mu.Unlock()
	return nil
}
