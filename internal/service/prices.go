package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/pricing"
	"github.com/alanyoungcy/portfolioledger/internal/snapshots"
	"github.com/alanyoungcy/portfolioledger/internal/store/local"
)

// ErrNoGateway is returned by price operations when no gateway is wired.
var ErrNoGateway = errors.New("portfolio: price gateway not configured")

// Symbols returns every non-cash symbol held in any account or watched by
// an alert, sorted.
func (s *PortfolioService) Symbols() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(sym string) {
		sym = domain.NormalizeSymbol(sym)
		if sym == "" || sym == domain.CashSymbol || seen[sym] {
			return
		}
		seen[sym] = true
		out = append(out, sym)
	}
	for _, st := range s.book.Snapshots() {
		for _, sym := range st.Symbols() {
			add(sym)
		}
	}
	for _, sym := range s.alerts.Symbols() {
		add(sym)
	}
	sort.Strings(out)
	return out
}

// RefreshPrices fetches quotes once, falling back to cached quotes for
// symbols the source could not price, and applies them. The error is
// informational when a partial map was applied.
func (s *PortfolioService) RefreshPrices(ctx context.Context) (domain.PriceMap, error) {
	if s.gateway == nil {
		return nil, ErrNoGateway
	}
	prices, stale, err := s.gateway.FetchWithFallback(ctx, s.Symbols())
	s.mu.Lock()
	s.stale = stale
	s.mu.Unlock()
	if len(prices) == 0 {
		if err == nil {
			err = fmt.Errorf("portfolio: refresh: %w", domain.ErrQuoteUnavailable)
		}
		s.onPriceError(ctx, err)
		return prices, err
	}
	s.ApplyPrices(ctx, prices)
	s.onPriceSync(ctx, s.now(), len(prices))
	return prices, err
}

// StartLive begins polling prices every configured interval. Calling it
// while already live is a no-op.
func (s *PortfolioService) StartLive(ctx context.Context) error {
	if s.gateway == nil {
		return ErrNoGateway
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopPoll != nil {
		return nil
	}
	var last int
	s.stopPoll = s.gateway.StartPolling(ctx, s.Symbols, s.cfg.PollInterval, pricing.PollCallbacks{
		OnUpdate: func(prices domain.PriceMap) {
			last = len(prices)
			s.ApplyPrices(ctx, prices)
		},
		OnSyncComplete: func(ts time.Time) { s.onPriceSync(ctx, ts, last) },
		OnError:        func(err error) { s.onPriceError(ctx, err) },
	})
	s.logger.InfoContext(ctx, "portfolio: live pricing started", slog.Duration("interval", s.cfg.PollInterval))
	return nil
}

// StopLive stops polling and waits for a running round to finish.
func (s *PortfolioService) StopLive() {
	s.mu.Lock()
	stop := s.stopPoll
	s.stopPoll = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// ApplyPrices updates every account, fires matching alerts and records the
// daily snapshots.
func (s *PortfolioService) ApplyPrices(ctx context.Context, prices domain.PriceMap) {
	for _, id := range domain.Accounts() {
		acct, err := s.book.Account(id)
		if err != nil {
			continue
		}
		if acct.ApplyPrices(prices) > 0 {
			s.schedule(ctx, acct)
			s.recordSnapshot(ctx, acct.Snapshot())
		}
	}

	if fired := s.alerts.Check(prices); len(fired) > 0 {
		for i := range fired {
			a := fired[i]
			s.emit(ctx, domain.SystemEvent{
				Kind:    domain.EventAlertTriggered,
				Message: fmt.Sprintf("%s is %s $%g (now $%g)", a.Symbol, a.Condition, a.Price, prices[a.Symbol]),
				Alert:   &a,
			})
		}
		s.saveAlerts(ctx)
	}
	s.checkSafetyNet(ctx)
}

func (s *PortfolioService) onPriceSync(ctx context.Context, ts time.Time, n int) {
	s.mu.Lock()
	s.lastSync = ts
	s.mu.Unlock()
	s.emit(ctx, domain.SystemEvent{
		Kind:    domain.EventPriceSync,
		Message: fmt.Sprintf("Prices updated for %d symbols", n),
		At:      ts.UTC(),
	})
}

func (s *PortfolioService) onPriceError(ctx context.Context, err error) {
	s.emit(ctx, domain.SystemEvent{
		Kind:    domain.EventPriceError,
		Message: err.Error(),
	})
}

// recordSnapshot stores today's snapshot of state. Empty accounts are
// skipped.
func (s *PortfolioService) recordSnapshot(ctx context.Context, state domain.AccountState) {
	if state.TotalValue() <= 0 {
		return
	}
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	history := loadField[[]domain.DailySnapshot](ctx, s, state.ID, local.FieldSnapshots, nil, nil)
	history = snapshots.Record(history, snapshots.FromState(state, s.now()))
	if err := s.local.Save(ctx, state.ID, local.FieldSnapshots, history); err != nil {
		s.logger.WarnContext(ctx, "portfolio: save snapshot failed",
			slog.String("account", string(state.ID)),
			slog.String("error", err.Error()),
		)
	}
}

// History returns the daily snapshots of id, oldest first.
func (s *PortfolioService) History(ctx context.Context, id domain.AccountID) ([]domain.DailySnapshot, error) {
	if _, err := domain.ParseAccountID(string(id)); err != nil {
		return nil, err
	}
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	return loadField[[]domain.DailySnapshot](ctx, s, id, local.FieldSnapshots, nil, nil), nil
}

// Performance summarises the snapshot history of id.
func (s *PortfolioService) Performance(ctx context.Context, id domain.AccountID) (snapshots.Performance, error) {
	history, err := s.History(ctx, id)
	if err != nil {
		return snapshots.Performance{}, err
	}
	return snapshots.ComputePerformance(history, s.now()), nil
}
