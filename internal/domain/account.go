package domain

import (
	"fmt"
	"strings"
)

// AccountID identifies one of the two independent portfolios.
type AccountID string

const (
	// AnchorAccount is the conservative account holding the anchor asset.
	AnchorAccount AccountID = "sui"
	// RotatorAccount is the tactical account rotating between alts.
	RotatorAccount AccountID = "alts"
)

// Accounts returns every known account in a stable order.
func Accounts() []AccountID {
	return []AccountID{AnchorAccount, RotatorAccount}
}

// ParseAccountID validates s as a known account identifier.
func ParseAccountID(s string) (AccountID, error) {
	id := AccountID(strings.ToLower(strings.TrimSpace(s)))
	switch id {
	case AnchorAccount, RotatorAccount:
		return id, nil
	default:
		return "", fmt.Errorf("account %q: %w", s, ErrUnknownAccount)
	}
}

// AccountState is the complete state of one account: positions including
// cash, the journal in chronological order, open pending orders, the
// recycled-profit counter and the capital goal. Tombstones are bookkeeping
// for the ledger store and never leave the engine in API responses.
type AccountState struct {
	ID            AccountID      `json:"id"`
	Positions     []Position     `json:"positions"`
	Journal       []JournalEntry `json:"journal"`
	PendingOrders []PendingOrder `json:"pendingOrders"`
	RecycledValue float64        `json:"recycledValue"`
	TargetValue   float64        `json:"targetValue"`
	Tombstones    Tombstones     `json:"-" yaml:"-"`
}

// TotalValue sums the current value of every position, cash included.
func (s AccountState) TotalValue() float64 {
	var total float64
	for _, p := range s.Positions {
		total += p.CurrentValue
	}
	return total
}

// CashValue returns the value of the cash position, or 0 when absent.
func (s AccountState) CashValue() float64 {
	for _, p := range s.Positions {
		if p.IsCash() {
			return p.CurrentValue
		}
	}
	return 0
}

// Position returns the position for symbol using a case-insensitive match.
func (s AccountState) Position(symbol string) (Position, bool) {
	sym := NormalizeSymbol(symbol)
	for _, p := range s.Positions {
		if NormalizeSymbol(p.Symbol) == sym {
			return p, true
		}
	}
	return Position{}, false
}

// Symbols returns the non-cash symbols held in the account.
func (s AccountState) Symbols() []string {
	out := make([]string, 0, len(s.Positions))
	for _, p := range s.Positions {
		if !p.IsCash() {
			out = append(out, p.Symbol)
		}
	}
	return out
}

// Clone returns a deep copy of s.
func (s AccountState) Clone() AccountState {
	out := s
	out.Positions = append([]Position(nil), s.Positions...)
	out.PendingOrders = append([]PendingOrder(nil), s.PendingOrders...)
	out.Journal = make([]JournalEntry, len(s.Journal))
	for i, e := range s.Journal {
		out.Journal[i] = e.Clone()
	}
	out.Tombstones = s.Tombstones.Clone()
	return out
}

// Validate checks every position, journal entry and pending order, and that
// journal and order IDs are unique.
func (s AccountState) Validate() error {
	if _, err := ParseAccountID(string(s.ID)); err != nil {
		return err
	}
	seen := make(map[string]bool, len(s.Positions))
	for _, p := range s.Positions {
		if err := p.Validate(); err != nil {
			return err
		}
		sym := NormalizeSymbol(p.Symbol)
		if seen[sym] {
			return fmt.Errorf("position %s: duplicate symbol", sym)
		}
		seen[sym] = true
	}
	entries := make(map[string]bool, len(s.Journal))
	for _, e := range s.Journal {
		if err := e.Validate(); err != nil {
			return err
		}
		if entries[e.ID] {
			return fmt.Errorf("journal entry %s: duplicate id", e.ID)
		}
		entries[e.ID] = true
	}
	orders := make(map[string]bool, len(s.PendingOrders))
	for _, o := range s.PendingOrders {
		if err := o.Validate(); err != nil {
			return err
		}
		if orders[o.ID] {
			return fmt.Errorf("pending order %s: duplicate id", o.ID)
		}
		orders[o.ID] = true
	}
	return nil
}
