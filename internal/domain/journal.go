package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// EntryType classifies a journal entry.
type EntryType string

const (
	EntryBuy  EntryType = "buy"
	EntrySell EntryType = "sell"
	EntryNote EntryType = "note"
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	switch t {
	case EntryBuy, EntrySell, EntryNote:
		return true
	}
	return false
}

// JournalEntry is one immutable record of an executed trade or annotation.
// Entries are deduplicated by ID, so IDs imported from an external ledger are
// kept verbatim.
type JournalEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EntryType `json:"type"`
	Symbol    string    `json:"symbol"`
	Units     *float64  `json:"units,omitempty"`
	Price     *float64  `json:"price,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Silent    bool      `json:"silent,omitempty"`
}

// IsTrade reports whether the entry carries both units and price and is a
// buy or sell.
func (e JournalEntry) IsTrade() bool {
	return (e.Type == EntryBuy || e.Type == EntrySell) && e.Units != nil && e.Price != nil
}

// UnitsOr returns the entry units or def when unset.
func (e JournalEntry) UnitsOr(def float64) float64 {
	if e.Units == nil {
		return def
	}
	return *e.Units
}

// PriceOr returns the entry price or def when unset.
func (e JournalEntry) PriceOr(def float64) float64 {
	if e.Price == nil {
		return def
	}
	return *e.Price
}

// Clone copies the entry including its pointer fields.
func (e JournalEntry) Clone() JournalEntry {
	out := e
	if e.Units != nil {
		u := *e.Units
		out.Units = &u
	}
	if e.Price != nil {
		p := *e.Price
		out.Price = &p
	}
	return out
}

// Validate checks the fields that must hold for a persisted entry.
func (e JournalEntry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("journal: empty id")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("journal %s: unknown type %q", e.ID, e.Type)
	}
	if e.Type != EntryNote && strings.TrimSpace(e.Symbol) == "" {
		return fmt.Errorf("journal %s: empty symbol", e.ID)
	}
	if e.Units != nil && (math.IsNaN(*e.Units) || math.IsInf(*e.Units, 0) || *e.Units < 0) {
		return fmt.Errorf("journal %s: invalid units", e.ID)
	}
	if e.Price != nil && (math.IsNaN(*e.Price) || math.IsInf(*e.Price, 0) || *e.Price < 0) {
		return fmt.Errorf("journal %s: invalid price", e.ID)
	}
	return nil
}

// Float returns a pointer to v, for building entries inline.
func Float(v float64) *float64 {
	return &v
}
