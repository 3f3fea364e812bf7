package domain

import (
	"fmt"
	"math"
	"strings"
)

// CashSymbol is the distinguished free-liquidity position. Its price is
// always 1 and its units equal its value.
const CashSymbol = "USD"

// Position is the holding of a single symbol within an account.
type Position struct {
	Symbol           string  `json:"symbol"`
	Name             string  `json:"name,omitempty"`
	Units            float64 `json:"units"`
	TotalCost        float64 `json:"totalCost"`
	CurrentPrice     float64 `json:"currentPrice"`
	CurrentValue     float64 `json:"currentValue"`
	GainLoss         float64 `json:"gainLoss"`
	Allocation       float64 `json:"allocation"`
	TargetAllocation float64 `json:"targetAllocation"`
}

// IsCash reports whether p is the cash position.
func (p Position) IsCash() bool {
	return strings.EqualFold(p.Symbol, CashSymbol)
}

// AverageCost returns TotalCost / Units, or the current price when no units
// are held.
func (p Position) AverageCost() float64 {
	if p.Units <= 0 {
		return p.CurrentPrice
	}
	return p.TotalCost / p.Units
}

// Validate checks the fields that must hold for a persisted position.
func (p Position) Validate() error {
	if strings.TrimSpace(p.Symbol) == "" {
		return fmt.Errorf("position: empty symbol")
	}
	for name, v := range map[string]float64{
		"units":             p.Units,
		"total_cost":        p.TotalCost,
		"current_price":     p.CurrentPrice,
		"target_allocation": p.TargetAllocation,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("position %s: %s is not finite", p.Symbol, name)
		}
	}
	if p.Units < 0 && !p.IsCash() {
		return fmt.Errorf("position %s: negative units %v", p.Symbol, p.Units)
	}
	return nil
}

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
