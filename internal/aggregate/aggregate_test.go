package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/ledger"
)

func account(id domain.AccountID, cash, other float64) domain.AccountState {
	s := domain.AccountState{
		ID: id,
		Positions: []domain.Position{
			{Symbol: "X", Units: other, CurrentPrice: 1},
			{Symbol: domain.CashSymbol, Units: cash},
		},
	}
	ledger.Recompute(s.Positions)
	return s
}

func TestComputeSafetyNetCritical(t *testing.T) {
	t.Parallel()

	g := Compute(
		account(domain.AnchorAccount, 40, 960),
		account(domain.RotatorAccount, 10, 990),
	)
	assert.InDelta(t, 2000.0, g.GlobalTotalValue, 1e-9)
	assert.InDelta(t, 50.0, g.GlobalCashBalance, 1e-9)
	assert.InDelta(t, 2.5, g.SafetyNetPercent, 1e-9)
	assert.True(t, g.IsSafetyNetCritical)
}

func TestComputeHealthy(t *testing.T) {
	t.Parallel()

	g := Compute(account(domain.AnchorAccount, 100, 900), account(domain.RotatorAccount, 100, 900))
	assert.InDelta(t, 10.0, g.SafetyNetPercent, 1e-9)
	assert.False(t, g.IsSafetyNetCritical)

	strict := ComputeWithThreshold(15, account(domain.AnchorAccount, 100, 900))
	assert.True(t, strict.IsSafetyNetCritical)
}

func TestComputeEmptyBook(t *testing.T) {
	t.Parallel()

	g := Compute(account(domain.AnchorAccount, 0, 0), account(domain.RotatorAccount, 0, 0))
	assert.Zero(t, g.GlobalTotalValue)
	assert.Zero(t, g.SafetyNetPercent)
	assert.False(t, g.IsSafetyNetCritical)

	assert.False(t, Compute().IsSafetyNetCritical)
}

func TestCrossAccountOverlap(t *testing.T) {
	t.Parallel()

	a := domain.AccountState{Positions: []domain.Position{
		{Symbol: "SUI", Units: 1}, {Symbol: "LINK", Units: 2}, {Symbol: "ETH"}, {Symbol: "USD", Units: 5},
	}}
	b := domain.AccountState{Positions: []domain.Position{
		{Symbol: "link", Units: 1}, {Symbol: "SUI", Units: 3}, {Symbol: "ETH", Units: 1}, {Symbol: "USD", Units: 5},
	}}
	assert.Equal(t, []string{"LINK", "SUI"}, CrossAccountOverlap(a, b))

	seeds := CrossAccountOverlap(ledger.Defaults(domain.AnchorAccount), ledger.Defaults(domain.RotatorAccount))
	assert.Empty(t, seeds)
}
