package rebalance

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/ledger"
)

// SimulationOptions describes a what-if scenario.
type SimulationOptions struct {
	// PriceOverrides replaces the current price of the listed symbols.
	PriceOverrides domain.PriceMap
	// SimulateFills executes every open pending order at its limit price.
	SimulateFills bool
	// FeeRate is the fee charged on simulated fills, as a fraction.
	FeeRate float64
}

// Simulate returns a copy of positions with price overrides applied and,
// optionally, every open pending order filled. Cash always moves on a fill;
// the traded position moves only when held. The input is not modified.
func Simulate(positions []domain.Position, pending []domain.PendingOrder, opts SimulationOptions) []domain.Position {
	out := append([]domain.Position(nil), positions...)
	index := make(map[string]int, len(out))
	for i := range out {
		index[domain.NormalizeSymbol(out[i].Symbol)] = i
		if out[i].IsCash() {
			continue
		}
		if price, ok := opts.PriceOverrides[domain.NormalizeSymbol(out[i].Symbol)]; ok && price >= 0 {
			out[i].CurrentPrice = price
		}
	}

	if opts.SimulateFills {
		fee := decimal.NewFromFloat(opts.FeeRate)
		ci, hasCash := index[domain.CashSymbol]
		for _, o := range pending {
			if !o.IsOpen() {
				continue
			}
			gross := decimal.NewFromFloat(o.Units).Mul(decimal.NewFromFloat(o.Price))
			charge := gross.Mul(fee)
			pi, held := index[domain.NormalizeSymbol(o.Symbol)]
			switch o.Type {
			case domain.OrderSideBuy:
				if hasCash {
					out[ci].Units -= gross.Add(charge).InexactFloat64()
				}
				if held {
					out[pi].Units += o.Units
				}
			case domain.OrderSideSell:
				if hasCash {
					out[ci].Units += gross.Sub(charge).InexactFloat64()
				}
				if held {
					out[pi].Units = math.Max(0, out[pi].Units-o.Units)
				}
			}
		}
	}

	ledger.Recompute(out)
	return out
}

// TotalValue sums current values.
func TotalValue(positions []domain.Position) float64 {
	var total float64
	for _, p := range positions {
		total += p.CurrentValue
	}
	return total
}
