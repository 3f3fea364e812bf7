// Package importer reads and writes account backups and turns pasted
// brokerage text into a reviewable preview.
package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// Backup is the exported account format. Absent fields leave the target
// state untouched on import.
type Backup struct {
	ActiveAccount domain.AccountID      `json:"activeAccount" yaml:"activeAccount"`
	Assets        []domain.Position     `json:"assets,omitempty" yaml:"assets,omitempty"`
	Journal       []domain.JournalEntry `json:"journal,omitempty" yaml:"journal,omitempty"`
	PendingOrders []domain.PendingOrder `json:"pendingOrders,omitempty" yaml:"pendingOrders,omitempty"`
	RecycledToSui *float64              `json:"recycledToSui,omitempty" yaml:"recycledToSui,omitempty"`
}

// NewBackup captures state as the backup of the active account.
func NewBackup(state domain.AccountState) Backup {
	s := state.Clone()
	recycled := s.RecycledValue
	return Backup{
		ActiveAccount: s.ID,
		Assets:        nonNil(s.Positions),
		Journal:       nonNil(s.Journal),
		PendingOrders: nonNil(s.PendingOrders),
		RecycledToSui: &recycled,
	}
}

// ExportBackup renders state as indented backup JSON.
func ExportBackup(state domain.AccountState) ([]byte, error) {
	b, err := json.MarshalIndent(NewBackup(state), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("importer: export %s: %w", state.ID, err)
	}
	return b, nil
}

// ParseBackup decodes and validates raw. Any failure wraps
// domain.ErrMalformedImport.
func ParseBackup(raw []byte) (Backup, error) {
	var b Backup
	if err := json.Unmarshal(raw, &b); err != nil {
		return Backup{}, malformed("parse: %v", err)
	}
	if err := b.Validate(); err != nil {
		return Backup{}, err
	}
	return b, nil
}

// Validate checks every item of the backup. Journal and order IDs must be
// unique.
func (b Backup) Validate() error {
	if b.ActiveAccount != "" {
		if _, err := domain.ParseAccountID(string(b.ActiveAccount)); err != nil {
			return malformed("account %q: %v", b.ActiveAccount, err)
		}
	}
	seen := make(map[string]bool, len(b.Assets))
	for i, p := range b.Assets {
		if err := p.Validate(); err != nil {
			return malformed("asset %d: %v", i, err)
		}
		sym := domain.NormalizeSymbol(p.Symbol)
		if seen[sym] {
			return malformed("asset %d: duplicate symbol %s", i, sym)
		}
		seen[sym] = true
	}
	entries := make(map[string]bool, len(b.Journal))
	for i, e := range b.Journal {
		if err := e.Validate(); err != nil {
			return malformed("journal %d: %v", i, err)
		}
		if entries[e.ID] {
			return malformed("journal %d: duplicate id %s", i, e.ID)
		}
		entries[e.ID] = true
	}
	orders := make(map[string]bool, len(b.PendingOrders))
	for i, o := range b.PendingOrders {
		if err := o.Validate(); err != nil {
			return malformed("order %d: %v", i, err)
		}
		if orders[o.ID] {
			return malformed("order %d: duplicate id %s", i, o.ID)
		}
		orders[o.ID] = true
	}
	if b.RecycledToSui != nil {
		v := *b.RecycledToSui
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return malformed("recycledToSui %v", v)
		}
	}
	return nil
}

// Apply returns state with the fields present in the backup replaced.
func (b Backup) Apply(state domain.AccountState) domain.AccountState {
	out := state.Clone()
	if b.Assets != nil {
		out.Positions = make([]domain.Position, len(b.Assets))
		copy(out.Positions, b.Assets)
	}
	if b.Journal != nil {
		out.Journal = make([]domain.JournalEntry, len(b.Journal))
		for i, e := range b.Journal {
			out.Journal[i] = e.Clone()
		}
	}
	if b.PendingOrders != nil {
		out.PendingOrders = make([]domain.PendingOrder, len(b.PendingOrders))
		copy(out.PendingOrders, b.PendingOrders)
	}
	if b.RecycledToSui != nil {
		out.RecycledValue = *b.RecycledToSui
	}
	return out
}

func malformed(format string, args ...any) error {
	return errors.Join(domain.ErrMalformedImport, fmt.Errorf("importer: "+format, args...))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
