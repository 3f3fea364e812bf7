// Package aggregate derives cross-account views. Nothing here is stored;
// callers recompute from fresh account snapshots every time.
package aggregate

import (
	"sort"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// DefaultCriticalBelow is the safety-net percentage under which liquidity is
// critical.
const DefaultCriticalBelow = 5.0

// Global is the combined view over every account.
type Global struct {
	GlobalTotalValue    float64 `json:"globalTotalValue" yaml:"global_total_value"`
	GlobalCashBalance   float64 `json:"globalCashBalance" yaml:"global_cash_balance"`
	SafetyNetPercent    float64 `json:"safetyNetPercent" yaml:"safety_net_percent"`
	IsSafetyNetCritical bool    `json:"isSafetyNetCritical" yaml:"is_safety_net_critical"`
}

// Compute combines states using DefaultCriticalBelow.
func Compute(states ...domain.AccountState) Global {
	return ComputeWithThreshold(DefaultCriticalBelow, states...)
}

// ComputeWithThreshold combines states. An empty book (zero total value) is
// never critical.
func ComputeWithThreshold(criticalBelow float64, states ...domain.AccountState) Global {
	var g Global
	for _, s := range states {
		g.GlobalTotalValue += s.TotalValue()
		g.GlobalCashBalance += s.CashValue()
	}
	if g.GlobalTotalValue > 0 {
		g.SafetyNetPercent = g.GlobalCashBalance / g.GlobalTotalValue * 100
		g.IsSafetyNetCritical = g.SafetyNetPercent < criticalBelow
	}
	return g
}

// CrossAccountOverlap returns the sorted non-cash symbols with units held in
// both a and b.
func CrossAccountOverlap(a, b domain.AccountState) []string {
	held := make(map[string]bool)
	for _, p := range a.Positions {
		if !p.IsCash() && p.Units > 0 {
			held[domain.NormalizeSymbol(p.Symbol)] = true
		}
	}
	var out []string
	for _, p := range b.Positions {
		sym := domain.NormalizeSymbol(p.Symbol)
		if !p.IsCash() && p.Units > 0 && held[sym] {
			out = append(out, sym)
			delete(held, sym)
		}
	}
	sort.Strings(out)
	return out
}
