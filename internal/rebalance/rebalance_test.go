package rebalance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/ledger"
)

func book() []domain.Position {
	ps := []domain.Position{
		{Symbol: "A", Units: 100, CurrentPrice: 5, TargetAllocation: 25},  // 500 vs 250 target: trim 250
		{Symbol: "B", Units: 10, CurrentPrice: 10, TargetAllocation: 25},  // 100 vs 250: add 150
		{Symbol: "C", Units: 50, CurrentPrice: 2, TargetAllocation: 10.5}, // 100 vs 105: hold
		{Symbol: "D", Units: 0, CurrentPrice: 1, TargetAllocation: 15},    // 0 vs 150: add 150
		{Symbol: domain.CashSymbol, Units: 300, TargetAllocation: 24.5},
	}
	ledger.Recompute(ps)
	return ps
}

func TestComputeRebalanceActions(t *testing.T) {
	t.Parallel()
	ps := book()
	total := TotalValue(ps)
	require.InDelta(t, 1000.0, total, 1e-9)

	actions := ComputeRebalance(ps, total, nil, DefaultOptions())
	require.Len(t, actions, 3)

	assert.Equal(t, "A", actions[0].Symbol)
	assert.Equal(t, ActionTrim, actions[0].Action)
	assert.Equal(t, StatusActionable, actions[0].Status)
	assert.InDelta(t, -250.0, actions[0].Diff, 1e-9)
	assert.InDelta(t, 50.0, actions[0].SuggestedUnits, 1e-9)
	assert.InDelta(t, 2.5, actions[0].Fee, 1e-9)

	// B and D tie on |diff|; symbol breaks the tie.
	assert.Equal(t, "B", actions[1].Symbol)
	assert.Equal(t, "D", actions[2].Symbol)
	assert.Equal(t, ActionAdd, actions[1].Action)
	assert.InDelta(t, 15.0, actions[1].SuggestedUnits, 1e-9)
}

func TestComputeRebalanceNetting(t *testing.T) {
	t.Parallel()
	ps := book()
	pending := []domain.PendingOrder{
		{ID: "s-lo", Type: domain.OrderSideSell, Symbol: "A", Units: 20, Price: 6, Status: domain.OrderStatusOpen},
		{ID: "s-hi", Type: domain.OrderSideSell, Symbol: "a", Units: 20, Price: 6.5, Status: domain.OrderStatusOpen},
		{ID: "b-1", Type: domain.OrderSideBuy, Symbol: "B", Units: 5, Price: 10, Status: domain.OrderStatusOpen},
		{ID: "b-2", Type: domain.OrderSideBuy, Symbol: "B", Units: 5, Price: 9, Status: domain.OrderStatusCancelled},
		{ID: "wrong-side", Type: domain.OrderSideSell, Symbol: "D", Units: 500, Price: 1, Status: domain.OrderStatusOpen},
	}

	actions := ComputeRebalance(ps, 1000, pending, DefaultOptions())
	bySymbol := map[string]Action{}
	for _, a := range actions {
		bySymbol[a.Symbol] = a
	}

	a := bySymbol["A"]
	assert.Equal(t, StatusCovered, a.Status) // 250 pending vs 250 needed
	assert.Zero(t, a.RemainingValue)
	assert.Zero(t, a.SuggestedUnits)
	require.NotNil(t, a.CoveringOrder)
	assert.Equal(t, "s-hi", a.CoveringOrder.ID)

	b := bySymbol["B"]
	assert.Equal(t, StatusPartial, b.Status)
	assert.InDelta(t, 50.0, b.PendingValue, 1e-9)
	assert.InDelta(t, 100.0, b.RemainingValue, 1e-9)
	assert.InDelta(t, 10.0, b.SuggestedUnits, 1e-9)

	d := bySymbol["D"]
	assert.Equal(t, StatusActionable, d.Status)
	assert.Nil(t, d.CoveringOrder)
}

func TestComputeRebalanceCoverThreshold(t *testing.T) {
	t.Parallel()
	ps := book()
	// 225 of 250 is exactly 90%.
	pending := []domain.PendingOrder{{ID: "s", Type: domain.OrderSideSell, Symbol: "A", Units: 45, Price: 5, Status: domain.OrderStatusOpen}}

	actions := ComputeRebalance(ps, 1000, pending, DefaultOptions())
	require.NotEmpty(t, actions)
	assert.Equal(t, StatusCovered, actions[0].Status)

	pending[0].Units = 44
	actions = ComputeRebalance(ps, 1000, pending, DefaultOptions())
	assert.Equal(t, StatusPartial, actions[0].Status)
	assert.InDelta(t, 30.0, actions[0].RemainingValue, 1e-9)
}

func TestComputeRebalanceDeterministic(t *testing.T) {
	t.Parallel()
	ps := ledger.Defaults(domain.RotatorAccount)

	first := ComputeRebalance(ps.Positions, ps.TotalValue(), ps.PendingOrders, DefaultOptions())
	second := ComputeRebalance(ps.Positions, ps.TotalValue(), ps.PendingOrders, DefaultOptions())
	assert.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, first[i-1].AbsDiff, first[i].AbsDiff)
	}
}

func TestComputeStressTest(t *testing.T) {
	t.Parallel()
	ps := []domain.Position{
		{Symbol: "Y", Units: 1000, CurrentPrice: 1},
		{Symbol: "Z", Units: 500, CurrentPrice: 1},
		{Symbol: domain.CashSymbol, Units: 500},
	}
	ledger.Recompute(ps)

	res := ComputeStressTest(ps, -30, "y")
	require.Len(t, res.Positions, 3)

	y := res.Positions[0]
	assert.InDelta(t, 700.0, y.StressedValue, 1e-9)
	assert.InDelta(t, -300.0, y.Delta, 1e-9)

	z := res.Positions[1]
	assert.InDelta(t, 500.0, z.StressedValue, 1e-9)
	assert.Zero(t, z.Delta)
	assert.Greater(t, z.StressedAllocation, z.Allocation)

	assert.InDelta(t, 2000.0, res.Before, 1e-9)
	assert.InDelta(t, 1700.0, res.After, 1e-9)
	assert.InDelta(t, -300.0, res.NetImpact, 1e-9)

	// Input untouched.
	assert.InDelta(t, 1000.0, ps[0].CurrentValue, 1e-9)
}

func TestComputeStressTestAllSkipsCash(t *testing.T) {
	t.Parallel()
	ps := book()

	res := ComputeStressTest(ps, -50, StressAll)
	for _, p := range res.Positions {
		if p.Symbol == domain.CashSymbol {
			assert.Equal(t, p.Value, p.StressedValue)
			continue
		}
		assert.InDelta(t, p.Value*0.5, p.StressedValue, 1e-9)
	}
	var sum float64
	for _, p := range res.Positions {
		sum += p.StressedAllocation
	}
	assert.InDelta(t, 100.0, sum, 1e-9)
}

func TestSimulate(t *testing.T) {
	t.Parallel()
	ps := book()
	pending := []domain.PendingOrder{
		{ID: "1", Type: domain.OrderSideBuy, Symbol: "B", Units: 10, Price: 10, Status: domain.OrderStatusOpen},
		{ID: "2", Type: domain.OrderSideSell, Symbol: "A", Units: 100, Price: 5, Status: domain.OrderStatusOpen},
		{ID: "3", Type: domain.OrderSideBuy, Symbol: "NEW", Units: 1, Price: 10, Status: domain.OrderStatusOpen},
		{ID: "4", Type: domain.OrderSideBuy, Symbol: "B", Units: 99, Price: 1, Status: domain.OrderStatusFilled},
	}

	out := Simulate(ps, pending, SimulationOptions{
		PriceOverrides: domain.PriceMap{"B": 20, "USD": 3},
		SimulateFills:  true,
		FeeRate:        0.01,
	})

	get := func(sym string) domain.Position {
		for _, p := range out {
			if p.Symbol == sym {
				return p
			}
		}
		t.Fatalf("missing %s", sym)
		return domain.Position{}
	}
	b := get("B")
	assert.Equal(t, 20.0, b.CurrentPrice)
	assert.InDelta(t, 20.0, b.Units, 1e-9)
	assert.Zero(t, get("A").Units)

	// 300 - 101 + 495 - 10.1
	cash := get(domain.CashSymbol)
	assert.InDelta(t, 683.9, cash.Units, 1e-9)
	assert.Equal(t, 1.0, cash.CurrentPrice)

	assert.InDelta(t, 10.0, ps[1].CurrentPrice, 1e-9)
	assert.InDelta(t, 10.0, ps[1].Units, 1e-9)
}
