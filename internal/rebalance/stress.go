package rebalance

import (
	"strings"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// StressAll applies a shock to every non-cash position.
const StressAll = "ALL"

// StressPosition is one position before and after a shock.
type StressPosition struct {
	Symbol             string  `json:"symbol" yaml:"symbol"`
	Value              float64 `json:"value" yaml:"value"`
	StressedValue      float64 `json:"stressedValue" yaml:"stressed_value"`
	Delta              float64 `json:"delta" yaml:"delta"`
	Allocation         float64 `json:"allocation" yaml:"allocation"`
	StressedAllocation float64 `json:"stressedAllocation" yaml:"stressed_allocation"`
}

// StressResult is the outcome of ComputeStressTest.
type StressResult struct {
	ShockPercent float64          `json:"shockPercent" yaml:"shock_percent"`
	Target       string           `json:"target" yaml:"target"`
	Positions    []StressPosition `json:"positions" yaml:"positions"`
	Before       float64          `json:"before" yaml:"before"`
	After        float64          `json:"after" yaml:"after"`
	NetImpact    float64          `json:"netImpact" yaml:"net_impact"`
}

// ComputeStressTest scales the value of every position matching target
// ("ALL" or a symbol) by 1+shockPercent/100 and recomputes allocations
// against the stressed total. Cash is never shocked.
func ComputeStressTest(positions []domain.Position, shockPercent float64, target string) StressResult {
	target = domain.NormalizeSymbol(target)
	if target == "" {
		target = StressAll
	}
	res := StressResult{
		ShockPercent: shockPercent,
		Target:       target,
		Positions:    make([]StressPosition, 0, len(positions)),
	}
	factor := 1 + shockPercent/100
	for _, p := range positions {
		sp := StressPosition{
			Symbol:        p.Symbol,
			Value:         p.CurrentValue,
			StressedValue: p.CurrentValue,
		}
		if !p.IsCash() && (target == StressAll || strings.EqualFold(p.Symbol, target)) {
			sp.StressedValue = p.CurrentValue * factor
		}
		sp.Delta = sp.StressedValue - sp.Value
		res.Before += sp.Value
		res.After += sp.StressedValue
		res.Positions = append(res.Positions, sp)
	}
	for i := range res.Positions {
		sp := &res.Positions[i]
		if res.Before > 0 {
			sp.Allocation = sp.Value / res.Before * 100
		}
		if res.After > 0 {
			sp.StressedAllocation = sp.StressedValue / res.After * 100
		}
	}
	res.NetImpact = res.After - res.Before
	return res
}
