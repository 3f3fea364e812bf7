package rebalance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

func TestComputeConcentration(t *testing.T) {
	t.Parallel()

	c := ComputeConcentration([]domain.Position{
		{Symbol: "A", Allocation: 50},
		{Symbol: "B", Allocation: 50},
		{Symbol: domain.CashSymbol, Allocation: 90},
	})
	assert.InDelta(t, 0.5, c.HHI, 1e-9)
	assert.InDelta(t, 2.0, c.EffectivePositions, 1e-9)

	empty := ComputeConcentration(nil)
	assert.Zero(t, empty.HHI)
	assert.Equal(t, 1.0, empty.EffectivePositions)
}

func TestDrawdowns(t *testing.T) {
	t.Parallel()

	dd := Drawdowns([]domain.Position{
		{Symbol: "UP", Units: 10, TotalCost: 10, CurrentPrice: 1.5},
		{Symbol: "DOWN", Units: 10, TotalCost: 20, CurrentPrice: 1},
		{Symbol: "NEW", CurrentPrice: 3},
		{Symbol: domain.CashSymbol, Units: 10, TotalCost: 10, CurrentPrice: 1},
	})
	assert.Len(t, dd, 3)
	assert.Equal(t, "DOWN", dd[0].Symbol)
	assert.InDelta(t, -50.0, dd[0].Percent, 1e-9)
	assert.Equal(t, "NEW", dd[1].Symbol)
	assert.Zero(t, dd[1].Percent)
	assert.InDelta(t, 50.0, dd[2].Percent, 1e-9)
}

func TestCashHealth(t *testing.T) {
	t.Parallel()

	anchor := StrategyFor(domain.AnchorAccount)
	rotator := StrategyFor(domain.RotatorAccount)
	tests := []struct {
		pct      float64
		strategy Strategy
		want     Health
	}{
		{5, anchor, HealthCritical},
		{15, anchor, HealthUnder},
		{25, anchor, HealthOnTarget},
		{45, anchor, HealthOver},
		{15, rotator, HealthCritical},
		{25, rotator, HealthUnder},
		{32, rotator, HealthOnTarget},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CashHealth(tt.pct, tt.strategy), "%v%% %s", tt.pct, tt.strategy.Name)
	}
}

func TestAssetHealth(t *testing.T) {
	t.Parallel()

	assert.Equal(t, HealthOnTarget, AssetHealth(25, 22))
	assert.Equal(t, HealthOver, AssetHealth(27.5, 22))
}
