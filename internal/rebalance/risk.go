package rebalance

import (
	"sort"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// Concentration summarises how concentrated the non-cash holdings are.
type Concentration struct {
	HHI                float64 `json:"hhi" yaml:"hhi"`
	EffectivePositions float64 `json:"effectivePositions" yaml:"effective_positions"`
}

// ComputeConcentration returns the Herfindahl index over non-cash
// allocations and its reciprocal, the effective number of positions.
func ComputeConcentration(positions []domain.Position) Concentration {
	var hhi float64
	for _, p := range positions {
		if p.IsCash() {
			continue
		}
		w := p.Allocation / 100
		hhi += w * w
	}
	c := Concentration{HHI: hhi, EffectivePositions: 1}
	if hhi > 0 {
		c.EffectivePositions = 1 / hhi
	}
	return c
}

// Drawdown is the distance of a position's price from its average cost.
type Drawdown struct {
	Symbol    string  `json:"symbol" yaml:"symbol"`
	Price     float64 `json:"price" yaml:"price"`
	CostBasis float64 `json:"costBasis" yaml:"cost_basis"`
	Percent   float64 `json:"percent" yaml:"percent"`
}

// Drawdowns lists every non-cash position by (price-avgCost)/avgCost,
// worst first.
func Drawdowns(positions []domain.Position) []Drawdown {
	out := make([]Drawdown, 0, len(positions))
	for _, p := range positions {
		if p.IsCash() {
			continue
		}
		basis := p.AverageCost()
		d := Drawdown{Symbol: p.Symbol, Price: p.CurrentPrice, CostBasis: basis}
		if basis > 0 {
			d.Percent = (p.CurrentPrice - basis) / basis * 100
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Percent != out[j].Percent {
			return out[i].Percent < out[j].Percent
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Health classifies an allocation against its strategy.
type Health string

const (
	HealthCritical Health = "CRITICAL"
	HealthUnder    Health = "UNDER"
	HealthOnTarget Health = "ON_TARGET"
	HealthOver     Health = "OVER"
)

// Strategy holds the per-account allocation thresholds, all in percent.
type Strategy struct {
	Name              string
	CashCriticalBelow float64
	CashHealthyAbove  float64
	CashMax           float64
	MaxConcentration  float64
}

// StrategyFor returns the thresholds of account id.
func StrategyFor(id domain.AccountID) Strategy {
	if id == domain.RotatorAccount {
		return Strategy{
			Name:              "Balanced Alt Rotation",
			CashCriticalBelow: 20,
			CashHealthyAbove:  30,
			CashMax:           40,
			MaxConcentration:  22,
		}
	}
	return Strategy{
		Name:              "Aggressive Growth, SUI Anchor",
		CashCriticalBelow: 10,
		CashHealthyAbove:  20,
		CashMax:           40,
		MaxConcentration:  85,
	}
}

// CashHealth classifies a cash percentage.
func CashHealth(cashPercent float64, s Strategy) Health {
	switch {
	case cashPercent < s.CashCriticalBelow:
		return HealthCritical
	case cashPercent < s.CashHealthyAbove:
		return HealthUnder
	case cashPercent > s.CashMax:
		return HealthOver
	default:
		return HealthOnTarget
	}
}

// AssetHealth flags a position more than five points above maxConcentration.
func AssetHealth(percent, maxConcentration float64) Health {
	if percent > maxConcentration+5 {
		return HealthOver
	}
	return HealthOnTarget
}
