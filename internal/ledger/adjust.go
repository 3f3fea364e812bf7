package ledger

import (
	"fmt"
	"math"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// AnchorSymbol is the asset profits are recycled into on the anchor account.
const AnchorSymbol = "SUI"

// RemoveJournalEntry deletes a journal entry by ID without reversing its
// balance effect and records a tombstone for the ledger store. It reports
// whether an entry was removed.
func (a *Account) RemoveJournalEntry(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.journalIndex(id)
	if i < 0 {
		return false
	}
	a.state.Journal = append(a.state.Journal[:i], a.state.Journal[i+1:]...)
	if !a.state.Tombstones.HasJournal(id) {
		a.state.Tombstones.Journal = append(a.state.Tombstones.Journal, id)
	}
	return true
}

// RecyclePnL moves the unrealised profit of symbol into the anchor position
// at current prices and adds it to the recycled counter. It returns the
// amount moved; zero when the position has no profit.
func (a *Account) RecyclePnL(symbol string) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sym := domain.NormalizeSymbol(symbol)
	if a.state.ID != domain.AnchorAccount {
		return 0, fmt.Errorf("ledger: recycle %s: account %s has no anchor: %w", sym, a.state.ID, domain.ErrInvalidOrder)
	}
	if sym == AnchorSymbol || sym == domain.CashSymbol {
		return 0, fmt.Errorf("ledger: recycle %s: %w", sym, domain.ErrInvalidOrder)
	}
	ai := a.positionIndex(sym)
	if ai < 0 {
		return 0, fmt.Errorf("ledger: recycle %s: %w", sym, domain.ErrUnknownAsset)
	}
	ki := a.positionIndex(AnchorSymbol)
	if ki < 0 {
		return 0, fmt.Errorf("ledger: recycle %s: anchor %s: %w", sym, AnchorSymbol, domain.ErrUnknownAsset)
	}

	asset := &a.state.Positions[ai]
	anchor := &a.state.Positions[ki]
	profit := math.Max(0, asset.GainLoss)
	if profit <= 0 || asset.CurrentPrice <= 0 || anchor.CurrentPrice <= 0 {
		return 0, nil
	}

	asset.Units = math.Max(0, asset.Units-profit/asset.CurrentPrice)
	anchor.Units += profit / anchor.CurrentPrice
	anchor.TotalCost += profit
	a.state.RecycledValue += profit
	a.recompute()
	return profit, nil
}

// SyncAssetBalance overwrites the units held of symbol, scaling the cost
// basis proportionally. A position synced up from zero units starts at a cost
// equal to its current value. NaN or negative units are treated as zero.
func (a *Account) SyncAssetBalance(symbol string, units float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := a.positionIndex(symbol)
	if i < 0 {
		return fmt.Errorf("ledger: sync balance %s: %w", domain.NormalizeSymbol(symbol), domain.ErrUnknownAsset)
	}
	if math.IsNaN(units) || math.IsInf(units, 0) || units < 0 {
		units = 0
	}
	p := &a.state.Positions[i]
	switch {
	case p.Units > 0:
		p.TotalCost = p.TotalCost * (units / p.Units)
	case units > 0:
		p.TotalCost = units * p.CurrentPrice
	}
	p.Units = units
	a.recompute()
	return nil
}

// ImportAsset adds a zero-unit position for symbol priced at price so it can
// be traded. An existing position is returned unchanged.
func (a *Account) ImportAsset(symbol string, price float64) (domain.Position, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sym := domain.NormalizeSymbol(symbol)
	if sym == "" {
		return domain.Position{}, fmt.Errorf("ledger: import asset: empty symbol: %w", domain.ErrUnknownAsset)
	}
	if i := a.positionIndex(sym); i >= 0 {
		return a.state.Positions[i], nil
	}
	if math.IsNaN(price) || price < 0 {
		price = 0
	}
	pos := domain.Position{Symbol: sym, Name: sym, CurrentPrice: price}

	// Keep cash last.
	ci := a.positionIndex(domain.CashSymbol)
	if ci < 0 {
		a.state.Positions = append(a.state.Positions, pos)
	} else {
		a.state.Positions = append(a.state.Positions[:ci], append([]domain.Position{pos}, a.state.Positions[ci:]...)...)
	}
	a.recompute()
	i := a.positionIndex(sym)
	return a.state.Positions[i], nil
}

// SetTargetAllocation sets the target percentage for symbol.
func (a *Account) SetTargetAllocation(symbol string, pct float64) error {
	if math.IsNaN(pct) || pct < 0 || pct > 100 {
		return fmt.Errorf("ledger: target allocation %v out of range: %w", pct, domain.ErrInvalidOrder)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.positionIndex(symbol)
	if i < 0 {
		return fmt.Errorf("ledger: target allocation %s: %w", domain.NormalizeSymbol(symbol), domain.ErrUnknownAsset)
	}
	a.state.Positions[i].TargetAllocation = pct
	return nil
}

// SetTargetValue sets the account capital goal.
func (a *Account) SetTargetValue(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("ledger: target value %v: %w", v, domain.ErrInvalidOrder)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.TargetValue = v
	return nil
}
