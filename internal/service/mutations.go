package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/ledger"
)

// commit schedules a save of acct, records the mutation in the audit log
// and re-evaluates the global safety net.
func (s *PortfolioService) commit(ctx context.Context, acct *ledger.Account, event string, detail map[string]any) {
	s.schedule(ctx, acct)
	if detail == nil {
		detail = map[string]any{}
	}
	detail["account"] = string(acct.ID())
	s.auditLog(ctx, event, detail)
	s.checkSafetyNet(ctx)
}

// ExecuteTrade journals entry on id and applies it to the balances.
func (s *PortfolioService) ExecuteTrade(ctx context.Context, id domain.AccountID, entry domain.JournalEntry) (ledger.TradeResult, error) {
	acct, err := s.book.Account(id)
	if err != nil {
		return ledger.TradeResult{}, err
	}
	res, err := acct.ExecuteTrade(entry)
	if err != nil {
		return ledger.TradeResult{}, err
	}
	s.commit(ctx, acct, "trade.execute", map[string]any{
		"entry_id":  res.Entry.ID,
		"type":      string(res.Entry.Type),
		"symbol":    res.Entry.Symbol,
		"net":       res.Net,
		"fee":       res.Fee,
		"applied":   res.Applied,
		"duplicate": res.Duplicate,
	})
	return res, nil
}

// AddOrder stages a pending order on id.
func (s *PortfolioService) AddOrder(ctx context.Context, id domain.AccountID, order domain.PendingOrder) (domain.PendingOrder, error) {
	acct, err := s.book.Account(id)
	if err != nil {
		return domain.PendingOrder{}, err
	}
	added, err := acct.AddOrder(order)
	if err != nil {
		return domain.PendingOrder{}, err
	}
	s.commit(ctx, acct, "order.add", map[string]any{
		"order_id": added.ID,
		"type":     string(added.Type),
		"symbol":   added.Symbol,
		"units":    added.Units,
		"price":    added.Price,
	})
	return added, nil
}

// KillOrder cancels a pending order.
func (s *PortfolioService) KillOrder(ctx context.Context, id domain.AccountID, orderID string) error {
	acct, err := s.book.Account(id)
	if err != nil {
		return err
	}
	if !acct.KillOrder(orderID) {
		return fmt.Errorf("portfolio: kill order %q: %w", orderID, domain.ErrNotFound)
	}
	s.commit(ctx, acct, "order.kill", map[string]any{"order_id": orderID})
	return nil
}

// FillOrder executes a pending order at its limit price.
func (s *PortfolioService) FillOrder(ctx context.Context, id domain.AccountID, orderID string) (ledger.TradeResult, error) {
	acct, err := s.book.Account(id)
	if err != nil {
		return ledger.TradeResult{}, err
	}
	res, err := acct.FillOrder(orderID)
	if err != nil {
		return ledger.TradeResult{}, err
	}
	s.commit(ctx, acct, "order.fill", map[string]any{
		"order_id": orderID,
		"symbol":   res.Entry.Symbol,
		"net":      res.Net,
		"fee":      res.Fee,
	})
	return res, nil
}

// RemoveJournalEntry deletes a journal entry without reversing its effect
// on balances. The deletion reaches the ledger store with the next sync.
func (s *PortfolioService) RemoveJournalEntry(ctx context.Context, id domain.AccountID, entryID string) error {
	acct, err := s.book.Account(id)
	if err != nil {
		return err
	}
	if !acct.RemoveJournalEntry(entryID) {
		return fmt.Errorf("portfolio: remove journal entry %q: %w", entryID, domain.ErrNotFound)
	}
	s.commit(ctx, acct, "journal.remove", map[string]any{"entry_id": entryID})
	return nil
}

// RecyclePnL moves the profit of symbol into the anchor position.
func (s *PortfolioService) RecyclePnL(ctx context.Context, id domain.AccountID, symbol string) (float64, error) {
	acct, err := s.book.Account(id)
	if err != nil {
		return 0, err
	}
	moved, err := acct.RecyclePnL(symbol)
	if err != nil {
		return 0, err
	}
	if moved > 0 {
		s.commit(ctx, acct, "position.recycle", map[string]any{"symbol": symbol, "value": moved})
	}
	return moved, nil
}

// SyncAssetBalance overwrites the units held of symbol.
func (s *PortfolioService) SyncAssetBalance(ctx context.Context, id domain.AccountID, symbol string, units float64) error {
	acct, err := s.book.Account(id)
	if err != nil {
		return err
	}
	if err := acct.SyncAssetBalance(symbol, units); err != nil {
		return err
	}
	s.commit(ctx, acct, "position.sync_balance", map[string]any{"symbol": symbol, "units": units})
	return nil
}

// ImportAsset adds a tradable zero-unit position. A non-positive price is
// looked up through the price gateway.
func (s *PortfolioService) ImportAsset(ctx context.Context, id domain.AccountID, symbol string, price float64) (domain.Position, error) {
	acct, err := s.book.Account(id)
	if err != nil {
		return domain.Position{}, err
	}
	sym := domain.NormalizeSymbol(symbol)
	if price <= 0 && s.gateway != nil && sym != "" {
		prices, _, err := s.gateway.FetchWithFallback(ctx, []string{sym})
		if err != nil {
			s.logger.WarnContext(ctx, "portfolio: no quote for imported asset",
				slog.String("symbol", sym),
				slog.String("error", err.Error()),
			)
		}
		price = prices[sym]
	}
	pos, err := acct.ImportAsset(sym, price)
	if err != nil {
		return domain.Position{}, err
	}
	s.commit(ctx, acct, "position.import", map[string]any{"symbol": pos.Symbol, "price": pos.CurrentPrice})
	return pos, nil
}

// SetTargetAllocation sets the target percentage of symbol.
func (s *PortfolioService) SetTargetAllocation(ctx context.Context, id domain.AccountID, symbol string, pct float64) error {
	acct, err := s.book.Account(id)
	if err != nil {
		return err
	}
	if err := acct.SetTargetAllocation(symbol, pct); err != nil {
		return err
	}
	s.commit(ctx, acct, "target.allocation", map[string]any{"symbol": symbol, "percent": pct})
	return nil
}

// SetTargetValue sets the capital goal of id.
func (s *PortfolioService) SetTargetValue(ctx context.Context, id domain.AccountID, v float64) error {
	acct, err := s.book.Account(id)
	if err != nil {
		return err
	}
	if err := acct.SetTargetValue(v); err != nil {
		return err
	}
	s.commit(ctx, acct, "target.value", map[string]any{"value": v})
	return nil
}

// ResetAccount wipes id back to its defaults in memory and local storage.
// The next sync wipes the ledger store copy before writing the defaults.
func (s *PortfolioService) ResetAccount(ctx context.Context, id domain.AccountID) error {
	acct, err := s.book.Account(id)
	if err != nil {
		return err
	}
	if err := s.local.ClearAccount(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "portfolio: clear local state failed",
			slog.String("account", string(id)),
			slog.String("error", err.Error()),
		)
	}
	acct.Reset(ledger.Defaults(id))
	s.commit(ctx, acct, "account.reset", nil)
	return nil
}

// checkSafetyNet emits safety_net_critical when the global cash share
// crosses below the threshold. It fires again only after recovering.
// Computing, comparing and publishing share one critical section so
// concurrent commits observe and report transitions in order.
func (s *PortfolioService) checkSafetyNet(ctx context.Context) {
	s.safetyMu.Lock()
	defer s.safetyMu.Unlock()

	g := s.Global()
	was := s.critical
	s.critical = g.IsSafetyNetCritical

	if g.IsSafetyNetCritical && !was {
		s.emit(ctx, domain.SystemEvent{
			Kind: domain.EventSafetyNetCritical,
			Message: fmt.Sprintf("Global cash at %.1f%% of %.2f, below the %.1f%% safety net",
				g.SafetyNetPercent, g.GlobalTotalValue, s.cfg.SafetyNetCriticalBelow),
		})
	}
}
