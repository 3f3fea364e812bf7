package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/idgen"
)

// TradeResult reports the cash effect of an executed journal entry.
type TradeResult struct {
	Entry     domain.JournalEntry
	Gross     float64
	Fee       float64
	Net       float64 // cash debited on a buy, credited on a sell
	Applied   bool    // balances were mutated
	Duplicate bool    // entry id was already journaled; nothing changed
}

// ExecuteTrade appends entry to the journal and, when it carries both units
// and price and is not silent, applies it to the traded position and cash.
//
// An entry whose ID is already journaled is a no-op apart from removing an
// open pending order with the same ID. Unknown symbols fail with
// domain.ErrUnknownAsset and leave the account untouched.
func (a *Account) ExecuteTrade(entry domain.JournalEntry) (TradeResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.executeLocked(entry)
}

func (a *Account) executeLocked(entry domain.JournalEntry) (TradeResult, error) {
	entry = entry.Clone()
	if entry.ID == "" {
		entry.ID = idgen.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = a.opts.Now().UTC()
	}
	entry.Symbol = domain.NormalizeSymbol(entry.Symbol)
	if entry.Type == "" {
		entry.Type = domain.EntryNote
	}
	if !entry.Type.Valid() {
		return TradeResult{}, fmt.Errorf("ledger: execute trade %q: type %q: %w", entry.ID, entry.Type, domain.ErrInvalidOrder)
	}

	if a.journalIndex(entry.ID) >= 0 {
		a.removeOrder(entry.ID)
		return TradeResult{Entry: entry, Duplicate: true}, nil
	}

	res := TradeResult{Entry: entry}
	if entry.IsTrade() && !entry.Silent {
		applied, err := a.applyTrade(entry)
		if err != nil {
			return TradeResult{}, err
		}
		res.Gross, res.Fee, res.Net = applied.gross, applied.fee, applied.net
		res.Applied = true
	}

	a.appendJournal(entry)
	a.removeOrder(entry.ID)
	a.recompute()
	return res, nil
}

type cashEffect struct {
	gross, fee, net float64
}

// applyTrade mutates the traded position and cash. It validates everything
// before touching state. Callers must hold a.mu.
func (a *Account) applyTrade(entry domain.JournalEntry) (cashEffect, error) {
	units, price := *entry.Units, *entry.Price
	if units <= 0 || price <= 0 {
		return cashEffect{}, fmt.Errorf("ledger: execute trade %q: units and price must be > 0: %w", entry.ID, domain.ErrInvalidOrder)
	}
	if entry.Symbol == domain.CashSymbol {
		return cashEffect{}, fmt.Errorf("ledger: execute trade %q: cannot trade %s: %w", entry.ID, domain.CashSymbol, domain.ErrInvalidOrder)
	}
	pi := a.positionIndex(entry.Symbol)
	if pi < 0 {
		return cashEffect{}, fmt.Errorf("ledger: execute trade %q: symbol %s: %w", entry.ID, entry.Symbol, domain.ErrUnknownAsset)
	}
	ci := a.positionIndex(domain.CashSymbol)
	if ci < 0 {
		return cashEffect{}, fmt.Errorf("ledger: execute trade %q: symbol %s: %w", entry.ID, domain.CashSymbol, domain.ErrUnknownAsset)
	}

	du, dp := decimal.NewFromFloat(units), decimal.NewFromFloat(price)
	gross := du.Mul(dp)
	fee := gross.Mul(a.fee)

	pos := &a.state.Positions[pi]
	cash := &a.state.Positions[ci]
	cashUnits := decimal.NewFromFloat(cash.Units)
	posUnits := decimal.NewFromFloat(pos.Units)
	posCost := decimal.NewFromFloat(pos.TotalCost)

	var net decimal.Decimal
	switch entry.Type {
	case domain.EntryBuy:
		net = gross.Add(fee)
		cash.Units = cashUnits.Sub(net).InexactFloat64()
		pos.Units = posUnits.Add(du).InexactFloat64()
		pos.TotalCost = posCost.Add(net).InexactFloat64()
	case domain.EntrySell:
		net = gross.Sub(fee)
		cash.Units = cashUnits.Add(net).InexactFloat64()
		remaining := decimal.Max(posUnits.Sub(du), decimal.Zero)
		if posUnits.IsPositive() {
			pos.TotalCost = posCost.Mul(remaining).Div(posUnits).InexactFloat64()
		} else {
			pos.TotalCost = 0
		}
		pos.Units = remaining.InexactFloat64()
	}
	return cashEffect{
		gross: gross.InexactFloat64(),
		fee:   fee.InexactFloat64(),
		net:   net.InexactFloat64(),
	}, nil
}
